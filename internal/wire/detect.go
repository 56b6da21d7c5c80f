package wire

import (
	"bufio"
	"bytes"
	"net"
)

// Kind identifies the transport a connecting client speaks.
type Kind int

const (
	KindBolt Kind = iota
	KindWebSocket
)

// Detect peeks at the first bytes of conn to tell a WebSocket upgrade
// request from a raw protocol connection. Raw clients open with the
// binary magic preamble; WebSocket clients open with an HTTP request
// line. The returned reader holds the peeked bytes and must be used for
// all subsequent reads.
func Detect(conn net.Conn) (Kind, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)

	peek, err := reader.Peek(4)
	if err != nil {
		return KindBolt, reader, err
	}

	// A WebSocket upgrade is always a GET, but accept any HTTP method
	// so that misdirected requests still get an HTTP-level answer.
	if bytes.HasPrefix(peek, []byte("GET ")) ||
		bytes.HasPrefix(peek, []byte("POST")) ||
		bytes.HasPrefix(peek, []byte("PUT ")) ||
		bytes.HasPrefix(peek, []byte("HEAD")) {
		return KindWebSocket, reader, nil
	}

	return KindBolt, reader, nil
}
