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

package mba

import (
	"fmt"
	"time"
)

const (
	EvtCommandReceived = 0 // a command tag was identified off the wire
	EvtCommandResult   = 1 // a command finished, success or failure
	EvtTransferChunk   = 2 // one bulk-transfer chunk was acked
	EvtTransferDone    = 3 // a bulk transfer completed
	EvtChildSpawned    = 4 // a child process was launched for exec
	EvtChildExited     = 5 // a child process finished
	EvtFatal           = 6 // the session is about to terminate

	HashNone   = 0
	Hash32Bits = 32
	Hash64Bits = 64
)

// Event is one entry in the guest log or the host operator console,
// modeled after a compressor's progress events but carrying agent-transport
// semantics instead of codec phases.
type Event struct {
	eventType int
	id        int
	size      int64
	hash      uint64
	hashType  int
	eventTime time.Time
	msg       string
}

// NewEventFromString creates an Event that simply wraps a human-readable message.
func NewEventFromString(evtType, id int, msg string, evtTime time.Time) *Event {
	if evtTime.IsZero() {
		evtTime = time.Now()
	}

	return &Event{eventType: evtType, id: id, msg: msg, eventTime: evtTime}
}

// NewEvent creates an Event carrying a byte count and, optionally, a digest.
// Returns nil if hashType is not one of HashNone, Hash32Bits, Hash64Bits.
func NewEvent(evtType, id int, size int64, hash uint64, hashType int, evtTime time.Time) *Event {
	if evtTime.IsZero() {
		evtTime = time.Now()
	}

	if hashType != HashNone && hashType != Hash32Bits && hashType != Hash64Bits {
		return nil
	}

	return &Event{eventType: evtType, id: id, size: size, hash: hash,
		hashType: hashType, eventTime: evtTime}
}

func (e *Event) Type() int       { return e.eventType }
func (e *Event) ID() int         { return e.id }
func (e *Event) Time() time.Time { return e.eventTime }
func (e *Event) Size() int64     { return e.size }
func (e *Event) Hash() uint64    { return e.hash }
func (e *Event) HashType() int   { return e.hashType }
func (e *Event) Message() string { return e.msg }

// String renders the event either as its wrapped message, or, for byte/hash
// carrying events, as a compact JSON-ish line.
func (e *Event) String() string {
	if len(e.msg) > 0 {
		return e.msg
	}

	hash := ""
	id := ""

	if e.hashType != HashNone {
		hash = fmt.Sprintf(", \"hash\": %x", e.hash)
	}

	if e.id >= 0 {
		id = fmt.Sprintf(", \"id\": %d", e.id)
	}

	return fmt.Sprintf("{ \"type\":\"%s\"%s, \"size\":%d, \"time\":%d%s }",
		eventTypeName(e.eventType), id, e.size, e.eventTime.UnixNano()/1000000, hash)
}

func eventTypeName(t int) string {
	switch t {
	case EvtCommandReceived:
		return "COMMAND_RECEIVED"
	case EvtCommandResult:
		return "COMMAND_RESULT"
	case EvtTransferChunk:
		return "TRANSFER_CHUNK"
	case EvtTransferDone:
		return "TRANSFER_DONE"
	case EvtChildSpawned:
		return "CHILD_SPAWNED"
	case EvtChildExited:
		return "CHILD_EXITED"
	case EvtFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Listener is implemented by anything that wants to observe Events: the
// guest's file logger, the host CLI's console printer, or a test spy.
type Listener interface {
	ProcessEvent(evt *Event)
}
