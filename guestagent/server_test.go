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
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glacierw/mba-toolkit/protocol"
)

// newRunningServer binds a guest session on loopback, opens it and starts
// its Run loop in a goroutine. The caller gets back the guest address to
// send commands to and a teardown func.
func newRunningServer(t *testing.T) (guestAddr net.Addr, peer *net.UDPConn, teardown func()) {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := NewSession(conn, filepath.Join(t.TempDir(), "agent.log"))
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	srv := NewServer(s)
	go srv.Run()

	peerConn, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	return conn.LocalAddr(), peerConn, func() {
		peerConn.Close()
		s.Close()
	}
}

func TestServerEchoesAckOnSync(t *testing.T) {
	_, peer, teardown := newRunningServer(t)
	defer teardown()

	datagram, err := protocol.EncodeCommand(protocol.TagSync, "")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := peer.Write(datagram); err != nil {
		t.Fatalf("write: %v", err)
	}

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, protocol.MaxDatagramSize)

	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}

	if !strings.HasPrefix(string(buf[:n]), protocol.AckEchoPrefix) {
		t.Fatalf("reply %q missing ack-echo prefix", buf[:n])
	}

	n, err = peer.Read(buf)
	if err != nil {
		t.Fatalf("read token: %v", err)
	}

	if string(buf[:n]) != protocol.TokenSuccess {
		t.Fatalf("token = %q, want %q", buf[:n], protocol.TokenSuccess)
	}
}

func TestServerRejectsUnknownTag(t *testing.T) {
	_, peer, teardown := newRunningServer(t)
	defer teardown()

	if _, err := peer.Write([]byte("xxxx arg")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Malformed datagrams are logged and skipped, not acked; a
	// follow-up valid command must still get a normal reply.
	datagram, _ := protocol.EncodeCommand(protocol.TagSync, "")
	peer.Write(datagram)

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, protocol.MaxDatagramSize)

	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}

	if !strings.HasPrefix(string(buf[:n]), protocol.AckEchoPrefix+protocol.TagSync) {
		t.Fatalf("reply %q is not the sync ack, unknown tag broke the loop", buf[:n])
	}
}
