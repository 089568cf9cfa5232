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

package guestagent

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestSessionOpenMovesUninitToReady(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	logPath := filepath.Join(t.TempDir(), "agent.log")
	s := NewSession(conn, logPath)

	if s.State() != StateUninit {
		t.Fatalf("initial state = %v, want uninit", s.State())
	}

	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if s.State() != StateReady {
		t.Fatalf("state after Open = %v, want ready", s.State())
	}

	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestSessionOpenFailureGoesFatal(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	s := NewSession(conn, filepath.Join("no", "such", "dir", "agent.log"))

	if err := s.Open(); err == nil {
		t.Fatal("expected Open to fail for an unwritable path")
	}

	if s.State() != StateFatal {
		t.Fatalf("state after failed Open = %v, want fatal", s.State())
	}
}

func TestSessionFatalNotifiesListeners(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	s := NewSession(conn, filepath.Join(t.TempDir(), "agent.log"))

	var seen int
	s.AddListener(spyListener{func() { seen++ }})

	s.Fatal(errors.New("boom"))

	if s.State() != StateFatal {
		t.Fatalf("state = %v, want fatal", s.State())
	}

	if seen != 1 {
		t.Fatalf("listener invoked %d times, want 1", seen)
	}
}
