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

// Decompress decodes compressed (a concatenation of LZXPRESS Huffman
// blocks, each a 256-byte code-length table followed by its coded bit
// stream) into a freshly allocated buffer of at most capacity bytes. It
// returns the bytes actually produced; a non-nil error means decoding
// stopped early and the returned slice holds whatever was written before
// the failure.
//
// Each block's table starts exactly where the previous block's bit stream
// left its byte cursor — no realignment is performed between blocks; the
// format leaves unconsumed buffered bits behind at a chunk boundary rather
// than padding to a byte.
func Decompress(compressed []byte, capacity int) ([]byte, error) {
	output := make([]byte, capacity)
	r := bitstream.New(compressed)

	blockStart := 0
	cursor := 0

	for blockStart < len(compressed) && cursor < capacity {
		if len(compressed)-blockStart < TableSize {
			return output[:cursor], fmt.Errorf("lzxpress: truncated huffman table at offset %d", blockStart)
		}

		table, err := NewHuffmanTable(compressed[blockStart : blockStart+TableSize])
		if err != nil {
			return output[:cursor], err
		}

		r.Seek(blockStart + TableSize)
		r.Prime()

		chunkEnd := cursor + ChunkSize
		if chunkEnd > capacity {
			chunkEnd = capacity
		}

		newCursor, done, err := DecodeChunk(r, table, output, cursor, chunkEnd, capacity)
		cursor = newCursor

		if err != nil {
			return output[:cursor], err
		}

		blockStart = r.Cursor()

		if done {
			break
		}
	}

	return output[:cursor], nil
}
