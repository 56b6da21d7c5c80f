// Package channel implements the per-connection protocol channel: the
// handshake negotiation, the framed send paths, and the single-message
// lookahead used to drive scripted interactions.
package channel

import (
	"bytes"

	"github.com/boltkit/stubserver/internal/bolt"
	"github.com/boltkit/stubserver/internal/packstream"
	"github.com/boltkit/stubserver/internal/wire"
)

// magic is the fixed preamble identifying the protocol family.
var magic = []byte{0x60, 0x60, 0xB0, 0x17}

// LogFunc receives one conversation log line. A nil LogFunc disables
// logging.
type LogFunc func(format string, args ...any)

// Channel owns one connection: one wire, one frame stream and one
// dialect binding. It is driven by a single goroutine; reads block and
// writes are flushed before the call returns.
type Channel struct {
	wire     wire.Wire
	stream   *packstream.Stream
	protocol bolt.Protocol
	logf     LogFunc

	// handshake, when non-nil, is sent verbatim as the handshake
	// response instead of negotiating.
	handshake []byte

	// buffered holds at most one message that has been peeked but not
	// yet consumed. It is always the next message the wire would yield.
	buffered *bolt.Message
}

// New creates a channel over w speaking the given dialect. logf may be
// nil. handshakeOverride, when non-nil, replaces the negotiated
// handshake response byte-for-byte.
func New(w wire.Wire, protocol bolt.Protocol, logf LogFunc, handshakeOverride []byte) *Channel {
	return &Channel{
		wire:      w,
		stream:    packstream.NewStream(w),
		protocol:  protocol,
		logf:      logf,
		handshake: handshakeOverride,
	}
}

func (c *Channel) log(format string, args ...any) {
	if c.logf != nil {
		c.logf(format, args...)
	}
}

// Handshake performs the version negotiation that precedes all framed
// traffic. It must be called exactly once, before any other method. Any
// returned error is fatal for the connection.
func (c *Channel) Handshake() error {
	request, err := c.wire.Read(4)
	if err != nil {
		return err
	}
	c.log("C: <MAGIC> %s", hexRepr(request))
	if !bytes.Equal(request, magic) {
		return &ProtocolMismatchError{Expected: magic, Actual: request}
	}

	request, err = c.wire.Read(16)
	if err != nil {
		return err
	}
	c.log("C: <HANDSHAKE> %s", hexRepr(request))

	var response []byte
	if c.handshake != nil {
		response = c.handshake
	} else {
		// Check that the version this stub serves is among the ones
		// proposed by the client.
		supported := c.protocol.ProtocolVersion()
		requested, err := c.protocol.DecodeVersions(request)
		if err != nil {
			return err
		}
		agreed := false
		for _, v := range requested {
			if v == supported {
				agreed = true
				break
			}
		}
		if !agreed {
			if err := c.wire.Write([]byte{0x00, 0x00, 0x00, 0x00}); err != nil {
				return err
			}
			if err := c.wire.Send(); err != nil {
				return err
			}
			return &HandshakeRejectedError{Version: supported, Request: request}
		}
		response = []byte{0x00, 0x00, byte(supported.Minor), byte(supported.Major)}
	}

	if err := c.wire.Write(response); err != nil {
		return err
	}
	if err := c.wire.Send(); err != nil {
		return err
	}
	c.log("S: <HANDSHAKE> %s", hexRepr(response))
	return nil
}

// SendRaw writes b directly to the wire, bypassing framing. Used for
// protocol-breaking test scenarios.
func (c *Channel) SendRaw(b []byte) error {
	c.log("S: <RAW> %s", hexRepr(b))
	if err := c.wire.Write(b); err != nil {
		return err
	}
	return c.wire.Send()
}

// SendStruct writes one structure as a frame and flushes it.
func (c *Channel) SendStruct(st *packstream.Structure) error {
	c.log("S: %s", st)
	if err := c.stream.WriteMessage(st); err != nil {
		return err
	}
	return c.stream.Drain()
}

// SendServerLine translates a scripted server line through the dialect
// and sends it as a frame.
func (c *Channel) SendServerLine(line string) error {
	c.log("S: %s", line)
	st, err := c.protocol.TranslateServerLine(line)
	if err != nil {
		return err
	}
	if err := c.stream.WriteMessage(st); err != nil {
		return err
	}
	return c.stream.Drain()
}

// read pulls one frame off the wire and translates it.
func (c *Channel) read() (*bolt.Message, error) {
	st, err := c.stream.ReadMessage()
	if err != nil {
		return nil, err
	}
	return c.protocol.TranslateStructure(st)
}

// Consume returns the next client message and commits it: the buffered
// message if one is pending, otherwise a fresh frame. The buffer is
// always empty afterwards.
func (c *Channel) Consume() (*bolt.Message, error) {
	if c.buffered != nil {
		msg := c.buffered
		c.buffered = nil
		c.log("C: %s", msg)
		return msg, nil
	}
	return c.read()
}

// Peek returns the next client message without consuming it. Repeated
// calls return the same message and read the wire only once.
func (c *Channel) Peek() (*bolt.Message, error) {
	if c.buffered == nil {
		msg, err := c.read()
		if err != nil {
			return nil, err
		}
		c.buffered = msg
	}
	return c.buffered, nil
}

// TryAutoConsume inspects the next message and, if its name is in
// whitelist, consumes it and sends the dialect's default reply,
// returning true. Otherwise the message stays pending and false is
// returned.
func (c *Channel) TryAutoConsume(whitelist map[string]bool) (bool, error) {
	next, err := c.Peek()
	if err != nil {
		return false, err
	}
	if !whitelist[next.Name] {
		return false, nil
	}
	c.buffered = nil // consume the message for real
	c.log("C: %s", next)
	c.log("AUTO response:")
	if response := c.protocol.AutoResponse(next); response != nil {
		if err := c.SendStruct(response); err != nil {
			return false, err
		}
	}
	return true, nil
}
