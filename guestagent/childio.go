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
	"encoding/binary"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/glacierw/mba-toolkit"
	"github.com/glacierw/mba-toolkit/protocol"
)

// ChildIO runs one child process and relays its stdio over the session's
// datagram connection: stdout/stderr as length-prefixed frames (4-byte
// little-endian length + payload, a zero-length frame marks EOF), and a
// concurrent goroutine forwarding host-sent bytes into the child's stdin.
type ChildIO struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	wg     sync.WaitGroup
}

// handleExec runs arg as a command, streaming its combined output back
// framed: EXEC_READY once the child is spawned, then a concurrent
// goroutine forwarding host-sent stdin bytes to it until the host signals
// end-of-input, and the framed stdout/stderr until the child exits.
func (srv *Server) handleExec(arg string) error {
	cmd := exec.Command(shellFor(arg), shellArgsFor(arg)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return mba.NewAgentError("handleExec", mba.ErrLocalIO, err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return mba.NewAgentError("handleExec", mba.ErrLocalIO, err)
	}

	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return mba.NewAgentError("handleExec", mba.ErrLocalIO, err)
	}

	srv.session.notify(mba.NewEventFromString(mba.EvtChildSpawned, -1, arg, time.Time{}))

	if _, err := srv.session.conn.WriteTo([]byte(protocol.TokenExecReady), srv.session.peer); err != nil {
		return mba.NewAgentError("handleExec", mba.ErrTransport, err)
	}

	child := &ChildIO{cmd: cmd, stdin: stdin, stdout: stdout}

	child.wg.Add(1)
	go child.forwardStdin(srv)

	frameErr := child.streamStdout(srv)
	waitErr := cmd.Wait()
	stdin.Close()
	child.wg.Wait()

	srv.session.notify(mba.NewEventFromString(mba.EvtChildExited, -1, arg, time.Time{}))

	if frameErr != nil {
		return mba.NewAgentError("handleExec", mba.ErrTransport, frameErr)
	}

	if waitErr != nil {
		return mba.NewAgentError("handleExec", mba.ErrLocalIO, waitErr)
	}

	return nil
}

// handleInvoke is exec's fire-and-forget counterpart: the process is
// spawned detached, "SUCCESS"/"CMDFAIL" is sent immediately, and neither
// EXEC_READY nor any stdio streaming or wait for exit occurs. The child
// is reaped by an unjoined goroutine once it eventually exits.
func (srv *Server) handleInvoke(arg string) error {
	cmd := exec.Command(shellFor(arg), shellArgsFor(arg)...)

	if err := cmd.Start(); err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return mba.NewAgentError("handleInvoke", mba.ErrLocalIO, err)
	}

	srv.session.notify(mba.NewEventFromString(mba.EvtChildSpawned, -1, arg, time.Time{}))

	go func() {
		err := cmd.Wait()
		if err != nil {
			srv.session.notify(mba.NewEventFromString(mba.EvtChildExited, -1, arg+": "+err.Error(), time.Time{}))
			return
		}

		srv.session.notify(mba.NewEventFromString(mba.EvtChildExited, -1, arg, time.Time{}))
	}()

	return srv.sendToken(protocol.TokenSuccess)
}

// streamStdout reads the child's combined output and relays each read as
// a length-prefixed frame, finishing with a zero-length EOF frame.
func (c *ChildIO) streamStdout(srv *Server) error {
	buf := make([]byte, protocol.ChunkSize)

	for {
		n, err := c.stdout.Read(buf)
		if n > 0 {
			if werr := writeFrame(srv, buf[:n]); werr != nil {
				return werr
			}
		}

		if err == io.EOF {
			return writeFrame(srv, nil)
		}

		if err != nil {
			return err
		}
	}
}

// forwardStdin relays host-sent datagrams into the child's stdin until a
// zero-length datagram arrives or the connection errors.
func (c *ChildIO) forwardStdin(srv *Server) {
	defer c.wg.Done()
	defer c.stdin.Close()

	buf := make([]byte, protocol.MaxDatagramSize)

	for {
		n, _, err := srv.session.conn.ReadFrom(buf)
		if err != nil || n == 0 {
			return
		}

		if _, err := c.stdin.Write(buf[:n]); err != nil {
			return
		}
	}
}

func writeFrame(srv *Server, payload []byte) error {
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(payload)))

	if _, err := srv.session.conn.WriteTo(header, srv.session.peer); err != nil {
		return err
	}

	if len(payload) == 0 {
		return nil
	}

	_, err := srv.session.conn.WriteTo(payload, srv.session.peer)
	return err
}

// shellFor and shellArgsFor split a host-supplied command line into the
// interpreter invocation the guest actually execs. The original agent
// always handed the whole line to cmd.exe /c; this keeps that shape.
func shellFor(string) string {
	return "cmd.exe"
}

func shellArgsFor(commandLine string) []string {
	return []string{"/c", commandLine}
}
