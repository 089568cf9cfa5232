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

// Package hostagent is the operator-facing counterpart of guestagent: it
// dials the guest's UDP command socket, sends one framed command at a
// time and waits for the echoed acknowledgement, the same synchronous
// request/response shape the original monitor commands had once the
// QEMU monitor glue (do_win_*) is factored out per the collapsed
// host/monitor boundary.
package hostagent

import (
	"net"
	"time"

	"github.com/glacierw/mba-toolkit"
	"github.com/glacierw/mba-toolkit/protocol"
)

// DefaultTimeout bounds how long Client waits for a guest reply before
// treating the command as failed.
const DefaultTimeout = 5 * time.Second

// Client owns one UDP connection to a guest agent.
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to a guest agent listening at addr (host:port).
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, mba.NewAgentError("hostagent.Dial", mba.ErrTransport, err)
	}

	return &Client{conn: conn, timeout: DefaultTimeout}, nil
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SetTimeout overrides DefaultTimeout for subsequent commands.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// sendCommand encodes and writes tag/arg, returning the encoded datagram
// so the caller can match it against the guest's ack-echo.
func (c *Client) sendCommand(tag, arg string) ([]byte, error) {
	datagram, err := protocol.EncodeCommand(tag, arg)
	if err != nil {
		return nil, mba.NewAgentError("hostagent.sendCommand", mba.ErrProtocol, err)
	}

	if _, err := c.conn.Write(datagram); err != nil {
		return nil, mba.NewAgentError("hostagent.sendCommand", mba.ErrTransport, err)
	}

	return datagram, nil
}

// awaitAck reads the guest's immediate "System Receive : <original>"
// reply and verifies it echoes the datagram just sent, per the closed
// ack-echo framing element. Every command gets this reply first, before
// whatever the command itself produces (a token, EXEC_READY, a stream).
func (c *Client) awaitAck(datagram []byte) error {
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	buf := make([]byte, protocol.MaxDatagramSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return mba.NewAgentError("hostagent.awaitAck", mba.ErrTransport, err)
	}

	want := protocol.EchoAck(datagram)
	if string(buf[:n]) != string(want) {
		return mba.NewAgentError("hostagent.awaitAck", mba.ErrProtocol, nil)
	}

	return nil
}

// sendAndAck is the common case: encode, send, wait for the ack-echo.
func (c *Client) sendAndAck(tag, arg string) error {
	datagram, err := c.sendCommand(tag, arg)
	if err != nil {
		return err
	}

	return c.awaitAck(datagram)
}

// recvToken reads one fixed-length status token (SUCCESS/CMDFAIL are
// both len(protocol.TokenSuccess) bytes) sent after a command or chunk
// handshake step finishes.
func (c *Client) recvToken() (string, error) {
	data, err := c.recvExactly(len(protocol.TokenSuccess))
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// recvExactly reads exactly n bytes, looping over successive datagrams
// if the peer split them across more than one.
func (c *Client) recvExactly(n int) ([]byte, error) {
	buf := make([]byte, n)
	received := 0

	for received < n {
		c.conn.SetReadDeadline(time.Now().Add(c.timeout))

		m, err := c.conn.Read(buf[received:])
		if err != nil {
			return nil, mba.NewAgentError("hostagent.recvExactly", mba.ErrTransport, err)
		}

		received += m
	}

	return buf, nil
}
