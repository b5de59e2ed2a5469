// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package eventbus

import (
	"fmt"
	"strings"
	"time"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Config selects and tunes the bus backend.
type Config struct {
	Enabled bool   `koanf:"enabled"`
	Backend string `koanf:"backend"`

	// BufferSize is the per-subscriber channel buffer of the memory backend.
	BufferSize int64 `koanf:"buffer_size"`

	// FailureThreshold consecutive publish failures open the breaker for
	// BreakerTimeout.
	FailureThreshold uint32        `koanf:"failure_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`

	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig holds the JetStream connection settings.
type NATSConfig struct {
	URL              string        `koanf:"url"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
	ReconnectBuffer  int           `koanf:"reconnect_buffer"`
	EnableTrackMsgID bool          `koanf:"track_msg_id"` // nolint:revive // ID is correct per Go conventions

	// StreamName is the JetStream stream holding every security.> subject.
	// It is created or updated at startup.
	StreamName      string        `koanf:"stream_name"`
	StreamMaxAge    time.Duration `koanf:"stream_max_age"`
	DuplicateWindow time.Duration `koanf:"duplicate_window"`
}

// DefaultConfig returns an enabled in-process bus.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Backend:          BackendMemory,
		BufferSize:       256,
		FailureThreshold: 5,
		BreakerTimeout:   30 * time.Second,
		NATS: NATSConfig{
			URL:              "nats://127.0.0.1:4222",
			MaxReconnects:    -1, // Unlimited
			ReconnectWait:    2 * time.Second,
			ReconnectBuffer:  8 * 1024 * 1024, // 8MB
			EnableTrackMsgID: true,
			StreamName:       "CHECKPOINT_SECURITY",
			StreamMaxAge:     7 * 24 * time.Hour,
			DuplicateWindow:  2 * time.Minute,
		},
	}
}

// Validate checks the backend selection.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		if c.BufferSize < 0 {
			return fmt.Errorf("eventbus buffer_size cannot be negative")
		}
	case BackendNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("eventbus nats.url is required for the nats backend")
		}
		if c.NATS.StreamName == "" || strings.ContainsAny(c.NATS.StreamName, ".*> ") {
			return fmt.Errorf("eventbus nats.stream_name %q is not a valid JetStream stream name", c.NATS.StreamName)
		}
	default:
		return fmt.Errorf("unknown eventbus backend %q (want %s or %s)", c.Backend, BackendMemory, BackendNATS)
	}
	return nil
}
