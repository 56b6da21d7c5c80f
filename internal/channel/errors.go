package channel

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/boltkit/stubserver/internal/bolt"
)

// ProtocolMismatchError reports that the peer did not open with the
// magic preamble and is therefore not speaking this protocol family.
type ProtocolMismatchError struct {
	Expected []byte
	Actual   []byte
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("protocol mismatch: expected magic header %s, received %s",
		hexRepr(e.Expected), hexRepr(e.Actual))
}

// HandshakeRejectedError reports that none of the versions the client
// proposed match the one version this stub serves. The all-zero
// rejection response has already been sent when this error is returned.
type HandshakeRejectedError struct {
	Version bolt.Version
	Request []byte
}

func (e *HandshakeRejectedError) Error() string {
	return fmt.Sprintf("failed handshake, stub server talks protocol %s, client sent handshake: %s",
		e.Version, hexRepr(e.Request))
}

// hexRepr formats raw wire bytes for diagnostics.
func hexRepr(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}
