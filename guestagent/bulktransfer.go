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
	"os"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/glacierw/mba-toolkit"
	"github.com/glacierw/mba-toolkit/protocol"
)

// handleImport receives a chunked file from the host and writes it to
// arg's destination path: an open ack, then the host's 8-byte size
// datagram, then one source-read-ack/payload/destination-write-ack
// handshake per chunk (full chunks, then a possibly-short tail).
func (srv *Server) handleImport(arg string) error {
	destPath := arg

	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return mba.NewAgentError("handleImport", mba.ErrLocalIO, err)
	}
	defer f.Close()

	if err := srv.sendToken(protocol.TokenSuccess); err != nil {
		return mba.NewAgentError("handleImport", mba.ErrTransport, err)
	}

	sizeBuf, err := srv.recvExactly(8)
	if err != nil {
		return mba.NewAgentError("handleImport", mba.ErrTransport, err)
	}

	desc, err := protocol.NewTransferDescriptor("", destPath, int64(binary.LittleEndian.Uint64(sizeBuf)))
	if err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return mba.NewAgentError("handleImport", mba.ErrPolicy, err)
	}

	digest := xxhash.New()
	var received int64

	for chunk := int64(0); chunk < desc.FullChunks(); chunk++ {
		n, err := srv.recvChunk(f, digest, protocol.ChunkSize)
		if err != nil {
			return err
		}

		if n < 0 {
			return mba.NewAgentError("handleImport", mba.ErrProtocol, nil)
		}

		received += int64(n)

		srv.session.notify(mba.NewEventFromString(mba.EvtTransferChunk, -1,
			"import chunk "+strconv.FormatInt(chunk, 10), time.Time{}))
	}

	if tail := desc.TailSize(); tail > 0 {
		n, err := srv.recvChunk(f, digest, int(tail))
		if err != nil {
			return err
		}

		if n < 0 {
			return mba.NewAgentError("handleImport", mba.ErrProtocol, nil)
		}

		received += int64(n)
	}

	srv.session.notify(mba.NewEvent(mba.EvtTransferDone, -1, received, digest.Sum64(), mba.Hash64Bits, time.Time{}))
	return nil
}

// recvChunk runs one import chunk's handshake: wait for the host's
// source-read ack, receive exactly n bytes, write and hash them, then
// reply with a destination-write ack. Returns a negative count, with no
// error, if the host aborted by sending CMDFAIL instead of its
// source-read ack.
func (srv *Server) recvChunk(f *os.File, digest *xxhash.Digest, n int) (int, error) {
	ok, err := srv.recvAck()
	if err != nil {
		return 0, mba.NewAgentError("recvChunk", mba.ErrTransport, err)
	}

	if !ok {
		return -1, nil
	}

	data, err := srv.recvExactly(n)
	if err != nil {
		return 0, mba.NewAgentError("recvChunk", mba.ErrTransport, err)
	}

	if _, err := f.Write(data); err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return 0, mba.NewAgentError("recvChunk", mba.ErrLocalIO, err)
	}

	digest.Write(data)

	if err := srv.sendToken(protocol.TokenSuccess); err != nil {
		return 0, mba.NewAgentError("recvChunk", mba.ErrTransport, err)
	}

	return len(data), nil
}

// handleExport streams a local file back to the host: an open ack, an
// 8-byte size datagram, then one source-read-ack/payload/
// destination-write-ack handshake per chunk, mirroring handleImport with
// the send/receive roles swapped.
func (srv *Server) handleExport(arg string) error {
	f, err := os.Open(arg)
	if err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return mba.NewAgentError("handleExport", mba.ErrLocalIO, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return mba.NewAgentError("handleExport", mba.ErrLocalIO, err)
	}

	desc, err := protocol.NewTransferDescriptor(arg, "", info.Size())
	if err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return mba.NewAgentError("handleExport", mba.ErrPolicy, err)
	}

	if err := srv.sendToken(protocol.TokenSuccess); err != nil {
		return mba.NewAgentError("handleExport", mba.ErrTransport, err)
	}

	sizeBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(sizeBuf, uint64(desc.Size))

	if _, err := srv.session.conn.WriteTo(sizeBuf, srv.session.peer); err != nil {
		return mba.NewAgentError("handleExport", mba.ErrTransport, err)
	}

	digest := xxhash.New()
	buf := make([]byte, protocol.ChunkSize)
	var sent int64

	for sent < desc.Size {
		want := protocol.ChunkSize
		if remaining := desc.Size - sent; remaining < int64(want) {
			want = int(remaining)
		}

		n, err := srv.sendChunk(f, digest, buf[:want])
		if err != nil {
			return err
		}

		if n < 0 {
			return mba.NewAgentError("handleExport", mba.ErrProtocol, nil)
		}

		sent += int64(n)
	}

	srv.session.notify(mba.NewEvent(mba.EvtTransferDone, -1, desc.Size, digest.Sum64(), mba.Hash64Bits, time.Time{}))
	return nil
}

// sendChunk runs one export chunk's handshake: read len(chunk) bytes
// from f, send a source-read ack, send the payload, then wait for the
// host's destination-write ack. Returns a negative count, with no error,
// if the host aborted with CMDFAIL instead of SUCCESS.
func (srv *Server) sendChunk(f *os.File, digest *xxhash.Digest, chunk []byte) (int, error) {
	n, err := io.ReadFull(f, chunk)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		srv.sendToken(protocol.TokenCmdFail)
		return 0, mba.NewAgentError("sendChunk", mba.ErrLocalIO, err)
	}

	if err := srv.sendToken(protocol.TokenSuccess); err != nil {
		return 0, mba.NewAgentError("sendChunk", mba.ErrTransport, err)
	}

	if _, err := srv.session.conn.WriteTo(chunk[:n], srv.session.peer); err != nil {
		return 0, mba.NewAgentError("sendChunk", mba.ErrTransport, err)
	}

	digest.Write(chunk[:n])

	ok, err := srv.recvAck()
	if err != nil {
		return 0, mba.NewAgentError("sendChunk", mba.ErrTransport, err)
	}

	if !ok {
		return -1, nil
	}

	return n, nil
}

// handleLogExport streams the session's own log file back to the host
// using the same open-ack/size/per-chunk handshake as handleExport. The
// log is opened O_RDONLY so this can run concurrently with the writer's
// append mode.
func (srv *Server) handleLogExport(arg string) error {
	f, err := os.Open(srv.session.logPath)
	if err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return mba.NewAgentError("handleLogExport", mba.ErrLocalIO, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		srv.sendToken(protocol.TokenCmdFail)
		return mba.NewAgentError("handleLogExport", mba.ErrLocalIO, err)
	}

	if err := srv.sendToken(protocol.TokenSuccess); err != nil {
		return mba.NewAgentError("handleLogExport", mba.ErrTransport, err)
	}

	sizeBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(sizeBuf, uint64(info.Size()))

	if _, err := srv.session.conn.WriteTo(sizeBuf, srv.session.peer); err != nil {
		return mba.NewAgentError("handleLogExport", mba.ErrTransport, err)
	}

	digest := xxhash.New()
	buf := make([]byte, protocol.ChunkSize)
	var sent int64

	for sent < info.Size() {
		want := protocol.ChunkSize
		if remaining := info.Size() - sent; remaining < int64(want) {
			want = int(remaining)
		}

		n, err := srv.sendChunk(f, digest, buf[:want])
		if err != nil {
			return err
		}

		if n < 0 {
			return mba.NewAgentError("handleLogExport", mba.ErrProtocol, nil)
		}

		sent += int64(n)
	}

	return nil
}

// handleSync flushes the session's log file to disk, so the tail of the
// log survives an ungraceful guest shutdown, and answers SUCCESS (CMDFAIL
// if the flush fails). No other file and no system-wide cache is flushed.
func (srv *Server) handleSync() error {
	if srv.session.logFile != nil {
		if err := srv.session.logFile.Sync(); err != nil {
			srv.sendToken(protocol.TokenCmdFail)
			return mba.NewAgentError("handleSync", mba.ErrLocalIO, err)
		}
	}

	return srv.sendToken(protocol.TokenSuccess)
}
