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

// Package guestagent implements the in-VM side of the command channel:
// the request loop, bulk file transfer, child process stdio relay, and
// log-file maintenance. Everything that used to live in the original
// agent's process-wide globals is a field of one Session value owned by
// the server loop, per the "Global mutable state" redesign note.
package guestagent

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/glacierw/mba-toolkit"
)

// State is one point in the AgentServer state machine.
type State int

const (
	StateUninit State = iota
	StateReady
	StateBusy
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Session centralizes everything the original guest agent kept in process
// globals: the bound socket, the current peer, the log file handle and
// the state machine. One Session exists for the lifetime of one agent run.
type Session struct {
	mu sync.Mutex

	conn  net.PacketConn
	peer  net.Addr
	state State

	logPath string
	logFile *os.File

	listeners []mba.Listener
}

// NewSession wraps an already-bound datagram connection. The session
// starts Uninit; call Open to move it to Ready.
func NewSession(conn net.PacketConn, logPath string) *Session {
	return &Session{conn: conn, logPath: logPath, state: StateUninit}
}

// AddListener registers an event observer (e.g. the file log writer).
func (s *Session) AddListener(l mba.Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Session) notify(evt *mba.Event) {
	for _, l := range s.listeners {
		l.ProcessEvent(evt)
	}
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Open creates the log file (shared-read, so logf can export it
// concurrently with the writer appending) and moves Uninit -> Ready.
func (s *Session) Open() error {
	f, err := os.OpenFile(s.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		s.setState(StateFatal)
		return mba.NewAgentError("session.Open", mba.ErrLocalIO, err)
	}

	s.logFile = f
	s.AddListener(NewFileLogListener(f))
	s.setState(StateReady)
	return nil
}

// Close releases the log file and the socket.
func (s *Session) Close() error {
	var err error

	if s.logFile != nil {
		err = s.logFile.Close()
	}

	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

// Fatal transitions the session to the terminal error state and emits an
// EvtFatal event; the server loop exits after observing this.
func (s *Session) Fatal(err error) {
	s.setState(StateFatal)
	s.notify(mba.NewEventFromString(mba.EvtFatal, -1, err.Error(), time.Time{}))
}
