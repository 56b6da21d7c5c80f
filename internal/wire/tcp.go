package wire

import (
	"bufio"
	"bytes"
	"io"
	"net"
)

// TCP adapts a net.Conn to the Wire interface.
type TCP struct {
	conn   net.Conn
	reader io.Reader
	out    bytes.Buffer
}

// NewTCP wraps a net.Conn.
func NewTCP(conn net.Conn) *TCP {
	return &TCP{
		conn:   conn,
		reader: conn,
	}
}

// NewTCPWithReader wraps a net.Conn together with a buffered reader.
// This is used when the connection has already been peeked at for
// protocol detection.
func NewTCPWithReader(conn net.Conn, reader *bufio.Reader) *TCP {
	return &TCP{
		conn:   conn,
		reader: reader,
	}
}

// Read implements Wire.
func (t *TCP) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Write implements Wire. Bytes are held back until Send.
func (t *TCP) Write(p []byte) error {
	_, err := t.out.Write(p)
	return err
}

// Send implements Wire.
func (t *TCP) Send() error {
	if t.out.Len() == 0 {
		return nil
	}
	_, err := t.conn.Write(t.out.Bytes())
	t.out.Reset()
	return err
}

// Close implements Wire.
func (t *TCP) Close() error {
	return t.conn.Close()
}

// RemoteAddr implements Wire.
func (t *TCP) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
