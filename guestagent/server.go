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
	"time"

	"github.com/glacierw/mba-toolkit"
	"github.com/glacierw/mba-toolkit/protocol"
)

// Server binds one Session to a request/dispatch loop. Only one action is
// ever in flight: a handler runs to completion, including joining exec's
// stdin-forwarder goroutine, before the next datagram is read. The
// goroutine invo starts to reap its child is not joined and may outlive
// the handler.
type Server struct {
	session *Session
}

// NewServer constructs a Server around an opened Session.
func NewServer(session *Session) *Server {
	return &Server{session: session}
}

// Run reads datagrams until the session goes Fatal or the connection is
// closed. Each iteration: receive, identify, echo the original datagram
// back as an acknowledgement, then dispatch. Unknown tags are logged and do not
// advance the state machine past Ready.
func (srv *Server) Run() error {
	buf := make([]byte, protocol.MaxDatagramSize)

	for {
		if srv.session.State() == StateFatal {
			return nil
		}

		n, addr, err := srv.session.conn.ReadFrom(buf)
		if err != nil {
			srv.session.Fatal(mba.NewAgentError("server.Run", mba.ErrTransport, err))
			return err
		}

		datagram := append([]byte(nil), buf[:n]...)
		srv.session.peer = addr

		cmd, err := protocol.ParseCommand(datagram)
		if err != nil {
			srv.session.notify(mba.NewEventFromString(mba.EvtCommandReceived, -1, err.Error(), time.Time{}))
			continue
		}

		srv.session.notify(mba.NewEventFromString(mba.EvtCommandReceived, -1, "command: "+cmd.Tag+" "+cmd.Arg, time.Time{}))

		if _, err := srv.session.conn.WriteTo(protocol.EchoAck(datagram), addr); err != nil {
			srv.session.Fatal(mba.NewAgentError("server.Run", mba.ErrTransport, err))
			return err
		}

		srv.session.setState(StateBusy)

		if herr := srv.dispatch(cmd); herr != nil {
			srv.session.notify(mba.NewEventFromString(mba.EvtCommandResult, -1, herr.Error(), time.Time{}))
		} else {
			srv.session.notify(mba.NewEventFromString(mba.EvtCommandResult, -1, "command ok: "+cmd.Tag, time.Time{}))
		}

		srv.session.setState(StateReady)
	}
}

// dispatch routes a parsed command to its handler. All handlers are
// non-fatal: a handler failure is logged and answered with CMDFAIL on the
// wire (where the protocol defines one), but the server loop continues.
func (srv *Server) dispatch(cmd protocol.Command) error {
	switch cmd.Tag {
	case protocol.TagExec:
		return srv.handleExec(cmd.Arg)
	case protocol.TagInvo:
		return srv.handleInvoke(cmd.Arg)
	case protocol.TagImpo:
		return srv.handleImport(cmd.Arg)
	case protocol.TagExpo:
		return srv.handleExport(cmd.Arg)
	case protocol.TagLogf:
		return srv.handleLogExport(cmd.Arg)
	case protocol.TagSync:
		return srv.handleSync()
	default:
		return mba.NewAgentError("dispatch", mba.ErrProtocol, nil)
	}
}

func (srv *Server) sendToken(token string) error {
	_, err := srv.session.conn.WriteTo([]byte(token), srv.session.peer)
	return err
}

func (srv *Server) recvExactly(n int) ([]byte, error) {
	buf := make([]byte, n)
	received := 0

	for received < n {
		m, _, err := srv.session.conn.ReadFrom(buf[received:])
		if err != nil {
			return nil, err
		}

		received += m
	}

	return buf, nil
}

// recvAck reads one fixed-length ack token (SUCCESS/CMDFAIL are both
// len(protocol.TokenSuccess) bytes) and reports whether it was SUCCESS.
// A CMDFAIL is the peer aborting the transfer, not a protocol violation.
func (srv *Server) recvAck() (bool, error) {
	data, err := srv.recvExactly(len(protocol.TokenSuccess))
	if err != nil {
		return false, err
	}

	switch string(data) {
	case protocol.TokenSuccess:
		return true, nil
	case protocol.TokenCmdFail:
		return false, nil
	default:
		return false, mba.NewAgentError("recvAck", mba.ErrProtocol, nil)
	}
}
