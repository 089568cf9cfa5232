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

// Package lzxpress implements the LZXPRESS Huffman decompressor used to
// read compressed Windows Registry (REGF) value data: canonical Huffman
// table construction, per-chunk symbol/match decoding and the outer
// stream loop.
package lzxpress

import (
	"fmt"
	"sort"

	"github.com/glacierw/mba-toolkit/bitstream"
)

// SymbolCount is the size of the LZXPRESS Huffman alphabet: 256 literal
// byte values plus 256 (distance_bits, length_nibble) match codes.
const SymbolCount = 512

// TableSize is the number of packed bytes (two 4-bit code lengths each)
// that prefix every compressed block.
const TableSize = 256

// huffmanNode is one node of the canonical decode tree, flattened into a
// slice so the tree owns no pointers. left/right hold -1 for "no child".
type huffmanNode struct {
	isLeaf bool
	symbol int
	left   int
	right  int
}

func (n huffmanNode) child(bit int) int {
	if bit == 0 {
		return n.left
	}

	return n.right
}

func (n *huffmanNode) setChild(bit, idx int) {
	if bit == 0 {
		n.left = idx
	} else {
		n.right = idx
	}
}

// HuffmanTable is the per-block decoder built from 256 bytes of packed
// code lengths, one for each of the 512 LZXPRESS symbols.
type HuffmanTable struct {
	nodes []huffmanNode
	empty bool
}

type codeSymbol struct {
	symbol int
	length byte
}

// NewHuffmanTable builds a canonical Huffman decode tree from exactly
// TableSize packed bytes: the lower nibble of packed[k] is the code length
// of symbol 2k, the upper nibble is the code length of symbol 2k+1.
func NewHuffmanTable(packed []byte) (*HuffmanTable, error) {
	if len(packed) != TableSize {
		return nil, fmt.Errorf("lzxpress: huffman table needs %d bytes, got %d", TableSize, len(packed))
	}

	syms := make([]codeSymbol, SymbolCount)

	for i, b := range packed {
		syms[2*i] = codeSymbol{symbol: 2 * i, length: b & 0x0F}
		syms[2*i+1] = codeSymbol{symbol: 2*i + 1, length: b >> 4}
	}

	sort.SliceStable(syms, func(i, j int) bool {
		if syms[i].length != syms[j].length {
			return syms[i].length < syms[j].length
		}

		return syms[i].symbol < syms[j].symbol
	})

	idx := 0
	for idx < SymbolCount && syms[idx].length == 0 {
		idx++
	}

	if idx == SymbolCount {
		return &HuffmanTable{empty: true}, nil
	}

	t := &HuffmanTable{
		nodes: []huffmanNode{{isLeaf: false, left: -1, right: -1}}, // root
	}

	var bits uint32
	var codeLen byte = 1

	for ; idx < SymbolCount; idx++ {
		s := syms[idx]
		bits <<= s.length - codeLen
		codeLen = s.length

		leafIdx := len(t.nodes)
		t.nodes = append(t.nodes, huffmanNode{isLeaf: true, symbol: s.symbol, left: -1, right: -1})

		if err := t.addLeaf(leafIdx, bits, codeLen); err != nil {
			return nil, err
		}

		bits++
	}

	return t, nil
}

// addLeaf walks from the root consuming codeLen-1 high bits of bits,
// allocating internal nodes on demand, then attaches the leaf at leafIdx
// as the final child. Collisions (a shorter code that is a prefix of this
// one, or a slot already occupied) are reported as errors rather than
// silently overwritten.
func (t *HuffmanTable) addLeaf(leafIdx int, bits uint32, codeLen byte) error {
	cur := 0
	remaining := codeLen

	for remaining > 1 {
		if t.nodes[cur].isLeaf {
			return fmt.Errorf("lzxpress: huffman code collision at depth %d", codeLen-remaining)
		}

		remaining--
		bit := int((bits >> remaining) & 1)
		child := t.nodes[cur].child(bit)

		if child == -1 {
			t.nodes = append(t.nodes, huffmanNode{isLeaf: false, left: -1, right: -1})
			child = len(t.nodes) - 1
			t.nodes[cur].setChild(bit, child)
		}

		cur = child
	}

	if t.nodes[cur].isLeaf {
		return fmt.Errorf("lzxpress: huffman code collision at depth %d", codeLen-1)
	}

	bit := int(bits & 1)

	if t.nodes[cur].child(bit) != -1 {
		return fmt.Errorf("lzxpress: huffman code collision assigning symbol %d", t.nodes[leafIdx].symbol)
	}

	t.nodes[cur].setChild(bit, leafIdx)
	return nil
}

// Decode walks the tree one bit at a time from r, returning the decoded
// symbol in [0, SymbolCount).
func (t *HuffmanTable) Decode(r *bitstream.Reader) (int, error) {
	if t.empty {
		return 0, fmt.Errorf("lzxpress: attempt to decode from an empty huffman table")
	}

	cur := 0

	for !t.nodes[cur].isLeaf {
		if r.RemainingBits() == 0 {
			return 0, fmt.Errorf("lzxpress: bit stream exhausted while decoding a symbol")
		}

		bit := int(r.ReadBit())
		next := t.nodes[cur].child(bit)

		if next == -1 {
			return 0, fmt.Errorf("lzxpress: missing huffman tree node")
		}

		cur = next
	}

	return t.nodes[cur].symbol, nil
}
