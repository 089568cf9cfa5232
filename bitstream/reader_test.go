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

package bitstream

import "testing"

func TestPrimeFoldsTwoLittleEndianWords(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	r := New(data)
	r.Seek(0)
	r.Prime()

	if r.RemainingBits() != 32 {
		t.Fatalf("expected 32 buffered bits, got %d", r.RemainingBits())
	}

	// first word little-endian = 0x0201, lands in the high 16 bits
	if got := r.PeekBits(16); got != 0x0201 {
		t.Fatalf("high word = %#x, want 0x0201", got)
	}

	r.ConsumeBits(16)

	// second word little-endian = 0x0403, now in the high 16 bits
	if got := r.PeekBits(16); got != 0x0403 {
		t.Fatalf("low word after consume = %#x, want 0x0403", got)
	}
}

func TestTakeBitsMSBFirst(t *testing.T) {
	// bit pattern 0101010101010101 big-endian over the buffer, built from
	// two bytes whose bits alternate when read MSB-first after the
	// little-endian byte swap performed by Refill.
	data := []byte{0x55, 0x55}
	r := New(data)
	r.Seek(0)
	r.Prime()

	for i := 0; i < 4; i++ {
		if got := r.ReadBit(); got != 0 {
			t.Fatalf("bit %d = %d, want 0", i*2, got)
		}

		if got := r.ReadBit(); got != 1 {
			t.Fatalf("bit %d = %d, want 1", i*2+1, got)
		}
	}
}

func TestRefillPastEndIsNotError(t *testing.T) {
	r := New([]byte{0x01, 0x02})
	r.Seek(0)
	r.Refill()

	if r.RemainingBits() != 16 {
		t.Fatalf("expected 16 bits, got %d", r.RemainingBits())
	}

	// no more bytes: Refill is a silent no-op
	r.Refill()

	if r.RemainingBits() != 16 {
		t.Fatalf("expected 16 bits after no-op refill, got %d", r.RemainingBits())
	}
}

func TestSeekResetsBuffer(t *testing.T) {
	r := New([]byte{0xFF, 0xFF, 0x00, 0x00})
	r.Seek(0)
	r.Prime()

	if r.RemainingBits() == 0 {
		t.Fatal("expected bits buffered before seek")
	}

	r.Seek(2)

	if r.RemainingBits() != 0 {
		t.Fatalf("expected 0 bits after seek, got %d", r.RemainingBits())
	}

	if r.Cursor() != 2 {
		t.Fatalf("cursor = %d, want 2", r.Cursor())
	}
}
