// Package wire provides byte-oriented transports for stub connections.
// All implementations stage outbound bytes until Send so that the order of
// bytes on the wire matches the order of calls exactly.
package wire

// Wire abstracts a bidirectional byte stream with explicit send boundaries.
// This interface isolates transport details from protocol logic.
type Wire interface {
	// Read blocks until exactly n bytes are available and returns them.
	// A short read is a transport error, never a partial result.
	Read(n int) ([]byte, error)

	// Write stages bytes for the next Send.
	Write(p []byte) error

	// Send flushes all staged bytes to the peer.
	Send() error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
