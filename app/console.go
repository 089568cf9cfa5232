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

package main

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/glacierw/mba-toolkit"
)

// ConsoleListener prints one line per event to stdout, buffered and
// mutex-guarded since the agent loop and the goroutine that reaps an invo
// child can both emit events concurrently.
type ConsoleListener struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewConsoleListener wraps os.Stdout in a buffered, concurrency-safe writer.
func NewConsoleListener() *ConsoleListener {
	return &ConsoleListener{w: bufio.NewWriter(os.Stdout)}
}

func (c *ConsoleListener) ProcessEvent(evt *mba.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w, evt.String())
	c.w.Flush()
}
