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

package hostagent

import (
	"encoding/binary"
	"io"

	"github.com/glacierw/mba-toolkit"
	"github.com/glacierw/mba-toolkit/protocol"
)

// Exec runs commandLine on the guest, streaming stdin from r to the
// child and returning its combined stdout/stderr, collected from the
// length-prefixed frame stream until the zero-length EOF frame. r's EOF
// signals end-of-input to the child via a zero-length datagram.
func (c *Client) Exec(commandLine string, stdin io.Reader) ([]byte, error) {
	datagram, err := c.sendCommand(protocol.TagExec, commandLine)
	if err != nil {
		return nil, err
	}

	if err := c.awaitAck(datagram); err != nil {
		return nil, err
	}

	if err := c.awaitExecReady(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go c.forwardStdin(stdin, done)

	out, err := c.readFrames()
	<-done
	return out, err
}

// Invoke is Exec's fire-and-forget counterpart: commandLine is spawned
// detached on the guest, with no EXEC_READY, no stdio streaming, and no
// wait for the child to exit — only a SUCCESS/CMDFAIL reply. Grounded on
// invoke_cmd's detached-launch contract in the original agent.
func (c *Client) Invoke(commandLine string) error {
	if err := c.sendAndAck(protocol.TagInvo, commandLine); err != nil {
		return err
	}

	token, err := c.recvToken()
	if err != nil {
		return err
	}

	if token != protocol.TokenSuccess {
		return mba.NewAgentError("hostagent.Invoke", mba.ErrLocalIO, nil)
	}

	return nil
}

func (c *Client) awaitExecReady() error {
	buf := make([]byte, protocol.MaxDatagramSize)
	c.conn.SetReadDeadline(deadline(c.timeout))
	n, err := c.conn.Read(buf)
	if err != nil {
		return mba.NewAgentError("hostagent.awaitExecReady", mba.ErrTransport, err)
	}

	if string(buf[:n]) != protocol.TokenExecReady {
		return mba.NewAgentError("hostagent.awaitExecReady", mba.ErrProtocol, nil)
	}

	return nil
}

// readFrames assembles length-prefixed frames into one byte slice,
// stopping at the zero-length EOF marker.
func (c *Client) readFrames() ([]byte, error) {
	var out []byte
	header := make([]byte, 4)

	for {
		c.conn.SetReadDeadline(deadline(c.timeout))

		if _, err := io.ReadFull(c.conn, header); err != nil {
			return out, mba.NewAgentError("hostagent.readFrames", mba.ErrTransport, err)
		}

		size := binary.LittleEndian.Uint32(header)
		if size == 0 {
			return out, nil
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return out, mba.NewAgentError("hostagent.readFrames", mba.ErrTransport, err)
		}

		out = append(out, payload...)
	}
}

func (c *Client) forwardStdin(r io.Reader, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, protocol.MaxDatagramSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := c.conn.Write(buf[:n]); werr != nil {
				return
			}
		}

		if err != nil {
			c.conn.Write(nil)
			return
		}
	}
}

// Sync asks the guest to flush its log writer to disk.
func (c *Client) Sync() error {
	if err := c.sendAndAck(protocol.TagSync, ""); err != nil {
		return err
	}

	token, err := c.recvToken()
	if err != nil {
		return err
	}

	if token != protocol.TokenSuccess {
		return mba.NewAgentError("hostagent.Sync", mba.ErrLocalIO, nil)
	}

	return nil
}
