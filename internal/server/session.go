package server

import (
	"errors"
	"fmt"
	"io"

	"github.com/boltkit/stubserver/internal/channel"
)

// runSession drives one connection through the configured exchanges:
// handshake first, then for each exchange skip whitelisted chatter,
// match the next significant message and reply with the scripted
// server lines. After the script is exhausted, remaining whitelisted
// messages are still answered until the client hangs up.
func (s *Server) runSession(ch *channel.Channel) error {
	if err := ch.Handshake(); err != nil {
		return err
	}

	whitelist := s.cfg.Whitelist()

	for _, exchange := range s.cfg.Exchanges {
		for {
			ok, err := ch.TryAutoConsume(whitelist)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
		}

		msg, err := ch.Consume()
		if err != nil {
			return err
		}
		if msg.Name != exchange.Expect {
			failure := fmt.Sprintf(
				`FAILURE {"code": "Neo.ClientError.Request.Invalid", "message": "expected %s"}`,
				exchange.Expect)
			if err := ch.SendServerLine(failure); err != nil {
				return err
			}
			return fmt.Errorf("expected %s, client sent %s", exchange.Expect, msg.Name)
		}
		for _, line := range exchange.Respond {
			if err := ch.SendServerLine(line); err != nil {
				return err
			}
		}
	}

	// Script done; keep answering chatter until the peer disconnects or
	// sends something the script did not anticipate.
	for {
		ok, err := ch.TryAutoConsume(whitelist)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		if !ok {
			msg, err := ch.Consume()
			if err != nil {
				return err
			}
			return fmt.Errorf("unexpected message %s after script end", msg.Name)
		}
	}
}
