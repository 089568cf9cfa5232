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

package protocol

import "testing"

func TestParseCommandRoundTrip(t *testing.T) {
	datagram, err := EncodeCommand(TagImpo, "C:\\dst\\file.bin")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cmd, err := ParseCommand(datagram)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cmd.Tag != TagImpo || cmd.Arg != "C:\\dst\\file.bin" {
		t.Fatalf("got %+v", cmd)
	}
}

func TestParseCommandUnknownTag(t *testing.T) {
	if _, err := ParseCommand([]byte("xxxx arg")); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func TestParseCommandMissingSpace(t *testing.T) {
	if _, err := ParseCommand([]byte("execXarg")); err == nil {
		t.Fatal("expected error for missing space separator")
	}
}

func TestParseCommandTruncatesAtNUL(t *testing.T) {
	datagram := append([]byte("exec "), append([]byte("cmd.exe"), 0, 'j', 'u', 'n', 'k')...)

	cmd, err := ParseCommand(datagram)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cmd.Arg != "cmd.exe" {
		t.Fatalf("arg = %q, want %q", cmd.Arg, "cmd.exe")
	}
}

func TestTransferDescriptorPolicyLimit(t *testing.T) {
	if _, err := NewTransferDescriptor("a", "b", MaxTransferSize+1); err == nil {
		t.Fatal("expected policy error past the 100 MiB limit")
	}

	d, err := NewTransferDescriptor("a", "b", 16385)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.FullChunks() != 2 || d.TailSize() != 1 {
		t.Fatalf("got chunks=%d tail=%d, want 2/1", d.FullChunks(), d.TailSize())
	}
}
