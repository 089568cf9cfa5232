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
	"strings"
	"testing"
	"time"

	"github.com/glacierw/mba-toolkit"
	"github.com/glacierw/mba-toolkit/internal"
)

func TestFileLogListenerFormatsCRLFLines(t *testing.T) {
	buf := internal.NewBufferStream()
	listener := NewFileLogListener(buf)

	stamp := time.Date(2026, time.March, 5, 14, 30, 0, 0, time.UTC)
	evt := mba.NewEventFromString(mba.EvtCommandReceived, -1, "command: exec cmd.exe", stamp)

	listener.ProcessEvent(evt)

	out := make([]byte, buf.Len())
	if _, err := buf.Read(out); err != nil {
		t.Fatalf("read: %v", err)
	}

	line := string(out)

	if !strings.HasPrefix(line, "[ 3/5 14:30 ]   ") {
		t.Fatalf("unexpected line prefix: %q", line)
	}

	if !strings.HasSuffix(line, "\r\n") {
		t.Fatalf("line not CRLF-terminated: %q", line)
	}
}

func TestFileLogListenerMultipleEvents(t *testing.T) {
	buf := internal.NewBufferStream()
	listener := NewFileLogListener(buf)

	listener.ProcessEvent(mba.NewEventFromString(mba.EvtChildSpawned, -1, "cmd.exe /c dir", time.Time{}))
	listener.ProcessEvent(mba.NewEventFromString(mba.EvtChildExited, -1, "cmd.exe /c dir", time.Time{}))

	out := make([]byte, buf.Len())
	if _, err := buf.Read(out); err != nil {
		t.Fatalf("read: %v", err)
	}

	if strings.Count(string(out), "\r\n") != 2 {
		t.Fatalf("expected 2 CRLF-terminated lines, got %q", out)
	}
}
