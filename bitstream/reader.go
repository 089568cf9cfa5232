/*
Copyright 2011-2026 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package bitstream presents a borrowed byte slice as an MSB-first bit
// sequence, refilled 16 bits at a time in little-endian order. It is the
// bit-level substrate for the lzxpress package's Huffman decoder.
package bitstream

import "fmt"

// Reader reads bits out of a byte slice it does not own. The zero value is
// not usable; construct with New.
//
// buffer holds up to 32 valid bits, top-aligned: the next bit to consume is
// always the current MSB. Refill ORs a new little-endian 16-bit unit in
// directly below the bits already buffered, shifted up by 16 - bitCnt.
type Reader struct {
	data    []byte
	cursor  int // next unread byte offset in data
	buffer  uint32
	bitCnt  uint // number of valid bits currently in buffer, top-aligned
}

// New constructs a Reader over data. No reading occurs until Seek and Refill
// are called.
func New(data []byte) *Reader {
	return &Reader{data: data}
}

// Seek positions the byte cursor and discards any buffered bits.
func (r *Reader) Seek(offset int) {
	r.cursor = offset
	r.buffer = 0
	r.bitCnt = 0
}

// Cursor returns the current byte offset into the underlying slice.
func (r *Reader) Cursor() int {
	return r.cursor
}

// BytesRemaining returns the number of unread bytes in the underlying slice.
func (r *Reader) BytesRemaining() int {
	return len(r.data) - r.cursor
}

// RemainingBits returns the number of valid bits currently buffered.
func (r *Reader) RemainingBits() uint {
	return r.bitCnt
}

// Refill reads one little-endian 16-bit unit and folds it into the buffer
// directly below the bits already held. Callable only when bitCnt <= 16. If fewer than 2 bytes remain,
// Refill is a no-op: it is not an error on its own, per the format's
// end-of-stream convention (spec: "refill past end is NOT an error").
func (r *Reader) Refill() {
	if r.bitCnt > 16 {
		panic(fmt.Sprintf("bitstream: refill with %d bits already buffered", r.bitCnt))
	}

	if r.BytesRemaining() < 2 {
		return
	}

	word := uint32(r.data[r.cursor]) | uint32(r.data[r.cursor+1])<<8
	r.cursor += 2
	r.buffer |= word << (16 - r.bitCnt)
	r.bitCnt += 16
}

// Prime performs the initial 32-bit fill used at the start of a chunk: two
// sequential Refill calls, leaving the first word in the high 16 bits and
// the second in the low 16 bits of buffer.
func (r *Reader) Prime() {
	r.Refill()
	r.Refill()
}

// PeekBits returns the top n bits (1 <= n <= 16) without consuming them.
// Panics if fewer than n bits are buffered — the caller (ChunkDecoder) is
// responsible for refilling at points where underflow cannot occur on valid
// input; an underflow here signals a corrupt stream.
func (r *Reader) PeekBits(n uint) uint32 {
	if n == 0 || n > 16 {
		panic(fmt.Sprintf("bitstream: peek width %d out of [1,16]", n))
	}

	if r.bitCnt < n {
		panic(fmt.Sprintf("bitstream: peek %d bits with only %d buffered", n, r.bitCnt))
	}

	return r.buffer >> (32 - n)
}

// ConsumeBits shifts n bits out of the top of the buffer.
func (r *Reader) ConsumeBits(n uint) {
	if r.bitCnt < n {
		panic(fmt.Sprintf("bitstream: consume %d bits with only %d buffered", n, r.bitCnt))
	}

	r.buffer <<= n
	r.bitCnt -= n
}

// RefillIfNeeded tops the buffer back up whenever fewer than 16 bits remain
// and at least 2 bytes of input are left. This is the exact condition the
// decoder calls after every bit consumption (one bit in the Huffman tree
// walk, or a 1-16 bit distance read), so that the byte cursor advances in
// lockstep with a reference decoder and the next chunk's table is found at
// the right offset.
func (r *Reader) RefillIfNeeded() {
	if r.bitCnt < 16 && r.BytesRemaining() >= 2 {
		r.Refill()
	}
}

// ReadBit consumes and returns the top bit, then opportunistically refills.
func (r *Reader) ReadBit() uint32 {
	v := r.PeekBits(1)
	r.ConsumeBits(1)
	r.RefillIfNeeded()
	return v
}

// ReadBits consumes and returns the top n bits (1 <= n <= 16), then
// opportunistically refills.
func (r *Reader) ReadBits(n uint) uint32 {
	v := r.PeekBits(n)
	r.ConsumeBits(n)
	r.RefillIfNeeded()
	return v
}

// Raw exposes the top-aligned accumulator itself (not just the valid-bit
// count). A value of 0 means no undecoded bits are buffered — used as the
// end-of-stream heuristic alongside an exhausted byte cursor.
func (r *Reader) Raw() uint32 {
	return r.buffer
}

// ReadByte reads one byte directly from the underlying slice, bypassing the
// bit buffer. Used for the byte-aligned length-escape reads in ChunkDecoder,
// which the format defines as byte-stream reads, not bit-stream reads.
func (r *Reader) ReadByte() (byte, error) {
	if r.BytesRemaining() < 1 {
		return 0, fmt.Errorf("bitstream: read byte past end of input")
	}

	b := r.data[r.cursor]
	r.cursor++
	return b, nil
}

// ReadUint16LE reads a little-endian 16-bit value directly from the
// underlying slice, bypassing the bit buffer.
func (r *Reader) ReadUint16LE() (uint16, error) {
	if r.BytesRemaining() < 2 {
		return 0, fmt.Errorf("bitstream: read uint16 past end of input")
	}

	v := uint16(r.data[r.cursor]) | uint16(r.data[r.cursor+1])<<8
	r.cursor += 2
	return v, nil
}
