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

package lzxpress

import (
	"fmt"

	"github.com/glacierw/mba-toolkit/bitstream"
)

// ChunkSize is the maximum number of decompressed bytes one block produces.
const ChunkSize = 65536

// escapeLengthSentinel is the length-nibble value that signals the length
// needs one or three additional byte-stream reads to resolve.
const escapeLengthSentinel = 15

// secondLevelEscapeValue is the accumulated length that, when reached via
// the first escape byte, is replaced (not added to) by a 16-bit absolute
// length read next. Resolved against original_source per spec.md's Open
// Question on 270 vs 273.
const secondLevelEscapeValue = 270

// matchBaseLength is added to every resolved match length unconditionally.
const matchBaseLength = 3

// DecodeChunk decodes symbols into output[cursor:] until cursor reaches
// chunkEnd, the underlying stream is exhausted, or a decode error occurs.
// It returns the new cursor and whether the overall stream end was reached
// (bit accumulator drained with output already at its full capacity).
func DecodeChunk(r *bitstream.Reader, table *HuffmanTable, output []byte, cursor, chunkEnd, totalSize int) (int, bool, error) {
	for cursor < chunkEnd {
		symbol, err := table.Decode(r)
		if err != nil {
			return cursor, false, err
		}

		r.RefillIfNeeded()

		if symbol < 256 {
			output[cursor] = byte(symbol)
			cursor++
		}

		if r.Raw() == 0 && cursor >= totalSize {
			return cursor, true, nil
		}

		if symbol >= 256 {
			newCursor, err := decodeMatch(r, symbol-256, output, cursor, totalSize)
			if err != nil {
				return cursor, false, err
			}

			cursor = newCursor
			r.RefillIfNeeded()
		}
	}

	return cursor, false, nil
}

// decodeMatch resolves one (distance, length) back-reference starting at
// output[cursor] and performs the overlap-aware copy, returning the
// advanced cursor.
func decodeMatch(r *bitstream.Reader, s int, output []byte, cursor, totalSize int) (int, error) {
	distanceBits := uint(s >> 4)
	lengthNibble := s & 0x0F

	var distance int

	if distanceBits == 0 {
		distance = 1
	} else {
		if r.RemainingBits() < distanceBits {
			return cursor, fmt.Errorf("lzxpress: bit stream exhausted reading %d distance bits", distanceBits)
		}

		extra := r.ReadBits(distanceBits)
		distance = int((uint32(1) << distanceBits) | extra)
	}

	length, err := resolveLength(r, lengthNibble)
	if err != nil {
		return cursor, err
	}

	length += matchBaseLength

	if distance < 1 || distance > cursor {
		return cursor, fmt.Errorf("lzxpress: match distance %d out of bounds at cursor %d", distance, cursor)
	}

	if length > totalSize-cursor {
		return cursor, fmt.Errorf("lzxpress: match length %d exceeds remaining capacity %d", length, totalSize-cursor)
	}

	src := cursor - distance

	// Byte-at-a-time, not copy(): source and destination ranges legally
	// overlap when distance < length, and the overlap must replicate
	// forward (copy() with overlapping slices in Go does not).
	for i := 0; i < length; i++ {
		output[cursor] = output[src]
		cursor++
		src++
	}

	return cursor, nil
}

// resolveLength implements the escape arithmetic: the nibble value itself
// unless it is the 15 sentinel, in which case one extra byte is added; if
// that sum equals 270 the accumulated value is REPLACED (not added to) by
// a little-endian 16-bit absolute length read next.
func resolveLength(r *bitstream.Reader, nibble int) (int, error) {
	if nibble != escapeLengthSentinel {
		return nibble, nil
	}

	extra, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("lzxpress: length escape: %w", err)
	}

	length := nibble + int(extra)

	if length != secondLevelEscapeValue {
		return length, nil
	}

	abs, err := r.ReadUint16LE()
	if err != nil {
		return 0, fmt.Errorf("lzxpress: second-level length escape: %w", err)
	}

	return int(abs), nil
}
