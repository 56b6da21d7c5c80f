// Package config loads the stub server configuration from TOML.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/boltkit/stubserver/internal/bolt"
)

// Exchange is one scripted request/response pair: the client message
// name the stub expects next, and the server lines to send back.
type Exchange struct {
	Expect  string   `toml:"expect"`
	Respond []string `toml:"respond"`
}

// Config holds everything the stub server needs for one run.
type Config struct {
	Addr    string `toml:"addr"`
	Version string `toml:"version"`

	// HandshakeResponse is a hex string sent verbatim as the handshake
	// response instead of negotiating. Empty means negotiate normally.
	HandshakeResponse string `toml:"handshake_response"`

	// AutoConsume lists message names answered automatically with the
	// dialect's default reply.
	AutoConsume []string `toml:"auto_consume"`

	Exchanges []Exchange `toml:"exchange"`

	// Override is the decoded HandshakeResponse payload, nil when
	// negotiating normally.
	Override []byte `toml:"-"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Addr:        ":7687",
		Version:     "4.4",
		AutoConsume: []string{"HELLO", "RESET", "GOODBYE"},
	}
}

// Load reads and validates a TOML config file. Absent keys keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// finish validates the loaded values and decodes derived fields.
func (c *Config) finish() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("config missing addr")
	}
	if _, err := bolt.ParseVersion(c.Version); err != nil {
		return err
	}
	if s := strings.TrimSpace(c.HandshakeResponse); s != "" {
		payload, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
		if err != nil {
			return fmt.Errorf("parse handshake_response: %w", err)
		}
		c.Override = payload
	}
	for i, ex := range c.Exchanges {
		if strings.TrimSpace(ex.Expect) == "" {
			return fmt.Errorf("exchange[%d] missing expect", i)
		}
	}
	return nil
}

// Whitelist returns the auto-consume names as a set.
func (c *Config) Whitelist() map[string]bool {
	wl := make(map[string]bool, len(c.AutoConsume))
	for _, name := range c.AutoConsume {
		wl[name] = true
	}
	return wl
}
