package wire

import (
	"bufio"
	"bytes"
	"io"
	"net"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WebSocket adapts a WebSocket connection to the Wire interface using
// gobwas/ws. Incoming binary messages are buffered so that Read(n) can
// span message boundaries; Send emits all staged bytes as one binary
// message.
type WebSocket struct {
	conn net.Conn
	rw   io.ReadWriter
	in   []byte
	out  bytes.Buffer
}

// NewWebSocket wraps an already-upgraded connection.
func NewWebSocket(conn net.Conn) *WebSocket {
	return &WebSocket{conn: conn, rw: conn}
}

// UpgradeWebSocket answers the HTTP upgrade on conn and returns a
// WebSocket wire. reader holds bytes already peeked off the connection
// during protocol detection.
func UpgradeWebSocket(conn net.Conn, reader *bufio.Reader) (*WebSocket, error) {
	rw := struct {
		io.Reader
		io.Writer
	}{reader, conn}
	if _, err := ws.Upgrade(rw); err != nil {
		return nil, err
	}
	return &WebSocket{conn: conn, rw: rw}, nil
}

// Read implements Wire. Reads whole binary messages off the connection
// until n bytes are buffered.
func (w *WebSocket) Read(n int) ([]byte, error) {
	for len(w.in) < n {
		data, err := wsutil.ReadClientBinary(w.rw)
		if err != nil {
			return nil, err
		}
		w.in = append(w.in, data...)
	}
	buf := make([]byte, n)
	copy(buf, w.in[:n])
	w.in = w.in[n:]
	return buf, nil
}

// Write implements Wire. Bytes are held back until Send.
func (w *WebSocket) Write(p []byte) error {
	_, err := w.out.Write(p)
	return err
}

// Send implements Wire.
func (w *WebSocket) Send() error {
	if w.out.Len() == 0 {
		return nil
	}
	err := wsutil.WriteServerBinary(w.conn, w.out.Bytes())
	w.out.Reset()
	return err
}

// Close implements Wire.
func (w *WebSocket) Close() error {
	// Send close frame
	_ = wsutil.WriteServerMessage(w.conn, ws.OpClose, nil)
	return w.conn.Close()
}

// RemoteAddr implements Wire.
func (w *WebSocket) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}
