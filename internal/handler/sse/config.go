package sse

import "time"

// Config holds configuration for SSE connections.
type Config struct {
	// KeepAliveInterval is how often to send keep-alive comments so
	// proxies don't time the stream out during long model calls.
	KeepAliveInterval time.Duration
}

// DefaultConfig returns the default SSE configuration.
// 10 seconds is safe for most reverse proxies.
func DefaultConfig() *Config {
	return &Config{
		KeepAliveInterval: 10 * time.Second,
	}
}
