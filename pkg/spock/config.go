// Package spock provides an asynchronous client engine for the
// length-prefixed, optionally compressed and encrypted game wire protocol:
// a single-threaded event loop driving a non-blocking socket, incremental
// frame reassembly, and the handshake/login/play state machine.
package spock

import (
	"io"
	"log"
	"time"
)

// Config holds the client engine configuration.
type Config struct {
	Host         string        // Server host to connect to
	Port         int           // Server port to connect to
	BufSize      int           // Receive buffer size per socket read
	SockQuit     bool          // Kill the event loop on socket failure
	IdleInterval time.Duration // Fallback sleep while disconnected with no timer pending
	Logger       *log.Logger   // Logger for engine events
}

// newSilentLogger creates a silent logger that discards all output
func newSilentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         25565,
		BufSize:      4096,
		SockQuit:     true,
		IdleInterval: time.Second,
		Logger:       newSilentLogger(),
	}
}

// Validate checks and normalizes the configuration values.
func (c *Config) Validate() error {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = 25565
	}
	if c.BufSize <= 0 {
		c.BufSize = 4096
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return nil
}
