// Package server accepts stub connections and drives one scripted
// session per connection.
package server

import (
	"fmt"
	"net"
	"sync"

	"github.com/boltkit/stubserver/internal/bolt"
	"github.com/boltkit/stubserver/internal/channel"
	"github.com/boltkit/stubserver/internal/config"
	"github.com/boltkit/stubserver/internal/logging"
	"github.com/boltkit/stubserver/internal/wire"
)

// Server listens on one port and serves both raw and WebSocket
// connections, detected by their opening bytes. Every accepted
// connection gets its own independent channel.
type Server struct {
	cfg      config.Config
	protocol bolt.Protocol
	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup

	mu     sync.RWMutex
	active int
}

// New creates a server for cfg. The protocol version is resolved once,
// up front.
func New(cfg config.Config) (*Server, error) {
	version, err := bolt.ParseVersion(cfg.Version)
	if err != nil {
		return nil, err
	}
	protocol, err := bolt.ForVersion(version)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		protocol: protocol,
		quit:     make(chan struct{}),
	}, nil
}

// Start starts accepting connections. It blocks until Stop is called or
// the listener fails.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	logging.Infof("Stub server listening on %s (protocol %s)",
		listener.Addr().String(), s.protocol.ProtocolVersion())

	for {
		select {
		case <-s.quit:
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.quit:
					return nil
				default:
					logging.Warnf("Failed to accept connection: %v", err)
					continue
				}
			}

			s.wg.Add(1)
			go s.handleConn(conn)
		}
	}
}

// Stop stops the server and waits for in-flight sessions.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ConnCount returns the number of live connections.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()

	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	kind, reader, err := wire.Detect(conn)
	if err != nil {
		logging.Warnf("Failed to detect protocol for %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	var w wire.Wire
	switch kind {
	case wire.KindWebSocket:
		ws, err := wire.UpgradeWebSocket(conn, reader)
		if err != nil {
			logging.Warnf("WebSocket upgrade failed for %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			return
		}
		w = ws
	default:
		w = wire.NewTCPWithReader(conn, reader)
	}
	defer w.Close()

	logging.Infof("Connection from %s", w.RemoteAddr())
	ch := channel.New(w, s.protocol, logging.Infof, s.cfg.Override)
	if err := s.runSession(ch); err != nil {
		logging.Errorf("Session with %s ended: %v", w.RemoteAddr(), err)
		return
	}
	logging.Infof("Session with %s completed", w.RemoteAddr())
}
