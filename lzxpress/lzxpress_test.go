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
	"bytes"
	"testing"
)

// setLength sets the 4-bit code length of symbol sym within a 256-byte
// packed table.
func setLength(table *[256]byte, sym int, length byte) {
	k := sym / 2

	if sym%2 == 0 {
		table[k] = (table[k] &^ 0x0F) | (length & 0x0F)
	} else {
		table[k] = (table[k] &^ 0xF0) | (length << 4)
	}
}

func TestDecompressAllLiterals(t *testing.T) {
	var table [256]byte
	setLength(&table, 0, 1)
	setLength(&table, 1, 1)

	compressed := append(table[:], 0x00, 0x55, 0x00, 0x00)

	got, err := Decompress(compressed, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []byte{0x00, 0x01, 0x00, 0x01, 0x00, 0x01, 0x00, 0x01}

	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDecompressSingleBackReference(t *testing.T) {
	var table [256]byte
	setLength(&table, 'A', 2)
	setLength(&table, 'B', 2)
	setLength(&table, 256+0x13, 2) // distance_bits=1, length_nibble=3

	compressed := append(table[:], 0x00, 0x18, 0x00, 0x00)

	got, err := Decompress(compressed, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(got) != "ABABABAB" {
		t.Fatalf("got %q, want %q", got, "ABABABAB")
	}
}

func TestDecompressLengthEscalation(t *testing.T) {
	var table [256]byte
	setLength(&table, 'Z', 1)
	setLength(&table, 256+15, 1) // distance_bits=0, length_nibble=15

	compressed := append(table[:], 0x00, 0x40, 0x00, 0x00, 0x00)

	got, err := Decompress(compressed, 19)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 19 {
		t.Fatalf("got %d bytes, want 19", len(got))
	}

	for i, b := range got {
		if b != 'Z' {
			t.Fatalf("byte %d = %q, want 'Z'", i, b)
		}
	}
}

func TestDecompressSecondLevelEscape(t *testing.T) {
	var table [256]byte
	setLength(&table, 'Q', 1)
	setLength(&table, 256+15, 1) // distance_bits=0, length_nibble=15

	compressed := append(table[:], 0x00, 0x40, 0x00, 0x00, 0xFF, 0x00, 0x01)

	got, err := Decompress(compressed, 260)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 260 {
		t.Fatalf("got %d bytes, want 260 (1 literal + 259-byte match: 256 replaces 270, then base 3 is added)", len(got))
	}

	for i, b := range got {
		if b != 'Q' {
			t.Fatalf("byte %d = %q, want 'Q'", i, b)
		}
	}
}

func TestHuffmanTableAllZeroLengthsIsDecodeError(t *testing.T) {
	var table [256]byte

	ht, err := NewHuffmanTable(table[:])
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}

	compressed := append(table[:], 0x00, 0x00, 0x00, 0x00)

	if _, err := Decompress(compressed, 1); err == nil {
		t.Fatal("expected decode error for all-zero-length table, got none")
	}

	_ = ht
}

func TestDecompressBoundedOutput(t *testing.T) {
	var table [256]byte
	setLength(&table, 0, 1)
	setLength(&table, 1, 1)

	compressed := append(table[:], 0x00, 0x55, 0x00, 0x00)

	got, err := Decompress(compressed, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("got %d bytes, want exactly 3 (the capacity)", len(got))
	}
}
