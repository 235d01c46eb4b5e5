package wsproto

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpgrade_HandshakeOverPipe(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	// net.Pipe is unbuffered: Upgrade's response write blocks until the
	// client side reads it, so the client goroutine reads it too.
	resp := make([]byte, 256)
	var n int
	var readErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = client.Write([]byte(
			"GET /ws HTTP/1.1\r\n" +
				"Host: localhost\r\n" +
				"Upgrade: websocket\r\n" +
				"Connection: Upgrade\r\n" +
				"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
				"Sec-WebSocket-Version: 13\r\n\r\n"))
		n, readErr = client.Read(resp)
	}()

	conn, err := Upgrade(server)
	<-done
	require.NoError(t, err)
	require.NotNil(t, conn)

	require.NoError(t, readErr)
	assert.Contains(t, string(resp[:n]), "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")
}

func TestConn_WriteCloseThenWriteFails(t *testing.T) {
	c := &Conn{r: bufio.NewReader(nil), nc: noopConn{}}
	require.NoError(t, c.WriteClose(1000, "bye"))
	err := c.WriteText([]byte("too late"))
	assert.ErrorIs(t, err, errClosed)
}

func TestConn_ReadMessage_CloseEchoesCode(t *testing.T) {
	var out []byte
	closePayload := []byte{0x03, 0xE8} // code 1000
	wire := maskedFrame(OpClose, closePayload, true)

	rec := &recordingConn{}
	c := &Conn{r: bufio.NewReader(sliceReader(wire)), nc: rec}
	_, _, err := c.ReadMessage()
	assert.ErrorIs(t, err, ErrConnectionBroken)
	out = rec.written
	require.NotEmpty(t, out)
	assert.Equal(t, byte(0x80|byte(OpClose)), out[0])
}

type recordingConn struct {
	noopConn
	written []byte
}

func (r *recordingConn) Write(b []byte) (int, error) {
	r.written = append(r.written, b...)
	return len(b), nil
}

func sliceReader(b []byte) *sliceReaderT { return &sliceReaderT{b: b} }

type sliceReaderT struct {
	b   []byte
	pos int
}

func (s *sliceReaderT) Read(p []byte) (int, error) {
	if s.pos >= len(s.b) {
		return 0, net.ErrClosed
	}
	n := copy(p, s.b[s.pos:])
	s.pos += n
	return n, nil
}
