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

// Package mba defines the top level error taxonomy and event plumbing
// used by the guest/host agent transport.
//
// Concrete implementations live in sub-packages: bitstream and lzxpress
// implement the LZXPRESS Huffman decoder, protocol/guestagent/hostagent
// implement the command channel.
package mba

import "fmt"

// ErrorKind classifies an AgentError the way the guest
// and host agents report failures back to an operator.
type ErrorKind int

const (
	// ErrTransport covers socket/send/receive failures on the command channel.
	ErrTransport ErrorKind = iota
	// ErrProtocol covers malformed or out-of-sequence frames.
	ErrProtocol
	// ErrLocalIO covers failures opening, reading or writing local files.
	ErrLocalIO
	// ErrPolicy covers requests refused by local policy (e.g. a transfer
	// larger than protocol.MaxTransferSize).
	ErrPolicy
	// ErrDecoder names LZXPRESS Huffman stream corruption. The lzxpress
	// package does not use it: its errors are plain errors without a Kind.
	ErrDecoder
	// ErrResource covers exhausted buffers, ports or descriptors.
	ErrResource
)

func (k ErrorKind) String() string {
	switch k {
	case ErrTransport:
		return "transport"
	case ErrProtocol:
		return "protocol"
	case ErrLocalIO:
		return "local_io"
	case ErrPolicy:
		return "policy"
	case ErrDecoder:
		return "decoder"
	case ErrResource:
		return "resource"
	default:
		return "unknown"
	}
}

// AgentError is the one error type every guestagent/hostagent/app function
// returns instead of bare errors.New/fmt.Errorf, so operator-facing code can
// branch on Kind without string matching.
type AgentError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *AgentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}

	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError wraps err (which may be nil) with an operation name and kind.
func NewAgentError(op string, kind ErrorKind, err error) *AgentError {
	return &AgentError{Op: op, Kind: kind, Err: err}
}
