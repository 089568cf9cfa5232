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
	"fmt"
	"io"

	"github.com/glacierw/mba-toolkit"
)

// FileLogListener writes one line per event to an io.Writer, formatted
// "[ M/D HH:MM ]   <message>\r\n" to match the original agent's CRLF log
// lines. It implements mba.Listener so it can be registered on a Session
// alongside any other observer (e.g. a console printer in app).
type FileLogListener struct {
	w io.Writer
}

// NewFileLogListener wraps an already-open writer (typically the
// Session's log file).
func NewFileLogListener(w io.Writer) *FileLogListener {
	return &FileLogListener{w: w}
}

func (l *FileLogListener) ProcessEvent(evt *mba.Event) {
	t := evt.Time()
	fmt.Fprintf(l.w, "[ %d/%d %02d:%02d ]   %s\r\n",
		int(t.Month()), t.Day(), t.Hour(), t.Minute(), evt.String())
}
