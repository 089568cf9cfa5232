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
	"os"
	"time"

	"github.com/glacierw/mba-toolkit"
	"github.com/glacierw/mba-toolkit/protocol"
)

func deadline(d time.Duration) time.Time {
	return time.Now().Add(d)
}

// Import pushes localPath to destPath on the guest: an impo command, the
// guest's open ack, an 8-byte size datagram, then one source-read-ack/
// payload/destination-write-ack handshake per chunk.
func (c *Client) Import(localPath, destPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return mba.NewAgentError("hostagent.Import", mba.ErrLocalIO, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return mba.NewAgentError("hostagent.Import", mba.ErrLocalIO, err)
	}

	desc, err := protocol.NewTransferDescriptor(localPath, destPath, info.Size())
	if err != nil {
		return mba.NewAgentError("hostagent.Import", mba.ErrPolicy, err)
	}

	datagram, err := c.sendCommand(protocol.TagImpo, destPath)
	if err != nil {
		return err
	}

	if err := c.awaitAck(datagram); err != nil {
		return err
	}

	openToken, err := c.recvToken()
	if err != nil {
		return err
	}

	if openToken != protocol.TokenSuccess {
		return mba.NewAgentError("hostagent.Import", mba.ErrLocalIO, nil)
	}

	sizeBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(sizeBuf, uint64(desc.Size))

	if _, err := c.conn.Write(sizeBuf); err != nil {
		return mba.NewAgentError("hostagent.Import", mba.ErrTransport, err)
	}

	buf := make([]byte, protocol.ChunkSize)

	for sent := int64(0); sent < desc.Size; {
		want := protocol.ChunkSize
		if remaining := desc.Size - sent; remaining < int64(want) {
			want = int(remaining)
		}

		n, err := io.ReadFull(f, buf[:want])
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			c.conn.Write([]byte(protocol.TokenCmdFail))
			return mba.NewAgentError("hostagent.Import", mba.ErrLocalIO, err)
		}

		if err := c.sendChunk(buf[:n]); err != nil {
			return err
		}

		sent += int64(n)
	}

	return nil
}

// sendChunk runs one chunk's handshake from the sending side: a
// source-read ack, the payload, then the peer's destination-write ack.
func (c *Client) sendChunk(payload []byte) error {
	if _, err := c.conn.Write([]byte(protocol.TokenSuccess)); err != nil {
		return mba.NewAgentError("hostagent.sendChunk", mba.ErrTransport, err)
	}

	if _, err := c.conn.Write(payload); err != nil {
		return mba.NewAgentError("hostagent.sendChunk", mba.ErrTransport, err)
	}

	token, err := c.recvToken()
	if err != nil {
		return err
	}

	if token != protocol.TokenSuccess {
		return mba.NewAgentError("hostagent.sendChunk", mba.ErrLocalIO, nil)
	}

	return nil
}

// Export pulls srcPath from the guest and writes it to localPath: an
// expo command, the guest's open ack, an 8-byte size datagram, then one
// source-read-ack/payload/destination-write-ack handshake per chunk.
func (c *Client) Export(srcPath, localPath string) error {
	out, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return mba.NewAgentError("hostagent.Export", mba.ErrLocalIO, err)
	}
	defer out.Close()

	datagram, err := c.sendCommand(protocol.TagExpo, srcPath)
	if err != nil {
		return err
	}

	if err := c.awaitAck(datagram); err != nil {
		return err
	}

	openToken, err := c.recvToken()
	if err != nil {
		return err
	}

	if openToken != protocol.TokenSuccess {
		return mba.NewAgentError("hostagent.Export", mba.ErrLocalIO, nil)
	}

	sizeBuf, err := c.recvExactly(8)
	if err != nil {
		return err
	}

	desc, err := protocol.NewTransferDescriptor(srcPath, localPath, int64(binary.LittleEndian.Uint64(sizeBuf)))
	if err != nil {
		return mba.NewAgentError("hostagent.Export", mba.ErrPolicy, err)
	}

	for chunk := int64(0); chunk < desc.FullChunks(); chunk++ {
		if err := c.recvChunk(out, protocol.ChunkSize); err != nil {
			return err
		}
	}

	if tail := desc.TailSize(); tail > 0 {
		if err := c.recvChunk(out, int(tail)); err != nil {
			return err
		}
	}

	return nil
}

// recvChunk runs one chunk's handshake from the receiving side: wait for
// the peer's source-read ack, read exactly n bytes, write them to out,
// then reply with a destination-write ack.
func (c *Client) recvChunk(out io.Writer, n int) error {
	token, err := c.recvToken()
	if err != nil {
		return err
	}

	if token != protocol.TokenSuccess {
		return mba.NewAgentError("hostagent.recvChunk", mba.ErrProtocol, nil)
	}

	payload, err := c.recvExactly(n)
	if err != nil {
		return err
	}

	if _, err := out.Write(payload); err != nil {
		c.conn.Write([]byte(protocol.TokenCmdFail))
		return mba.NewAgentError("hostagent.recvChunk", mba.ErrLocalIO, err)
	}

	if _, err := c.conn.Write([]byte(protocol.TokenSuccess)); err != nil {
		return mba.NewAgentError("hostagent.recvChunk", mba.ErrTransport, err)
	}

	return nil
}

// ExportLog pulls the guest's own log file, using the same open-ack/
// size/per-chunk handshake as Export.
func (c *Client) ExportLog(localPath string) error {
	out, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return mba.NewAgentError("hostagent.ExportLog", mba.ErrLocalIO, err)
	}
	defer out.Close()

	datagram, err := c.sendCommand(protocol.TagLogf, "")
	if err != nil {
		return err
	}

	if err := c.awaitAck(datagram); err != nil {
		return err
	}

	openToken, err := c.recvToken()
	if err != nil {
		return err
	}

	if openToken != protocol.TokenSuccess {
		return mba.NewAgentError("hostagent.ExportLog", mba.ErrLocalIO, nil)
	}

	sizeBuf, err := c.recvExactly(8)
	if err != nil {
		return err
	}

	size := int64(binary.LittleEndian.Uint64(sizeBuf))
	full := size / protocol.ChunkSize
	tail := size % protocol.ChunkSize

	for chunk := int64(0); chunk < full; chunk++ {
		if err := c.recvChunk(out, protocol.ChunkSize); err != nil {
			return err
		}
	}

	if tail > 0 {
		if err := c.recvChunk(out, int(tail)); err != nil {
			return err
		}
	}

	return nil
}
