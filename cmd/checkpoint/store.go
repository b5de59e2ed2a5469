// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/checkpoint/internal/config"
	"github.com/tomtom215/checkpoint/internal/logging"
	"github.com/tomtom215/checkpoint/internal/monitor"
	"github.com/tomtom215/checkpoint/internal/supervisor/services"
)

// securityStore is the opened store plus its maintenance worker, if any.
type securityStore struct {
	store monitor.Store
	gc    services.Runner
}

// openStore opens the configured security store.
func openStore(ctx context.Context, cfg *config.StorageConfig) (*securityStore, error) {
	switch cfg.Backend {
	case config.StorageMemory, "":
		logging.Info().Int("max_events", cfg.MaxEvents).Msg("Using in-memory security store")
		return &securityStore{store: monitor.NewMemoryStore(cfg.MaxEvents)}, nil

	case config.StorageBadger:
		s, err := monitor.OpenBadgerStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		logging.Info().Str("path", cfg.Path).Msg("Using badger security store")
		return &securityStore{store: s, gc: s}, nil

	case config.StorageDuckDB:
		s, err := monitor.OpenDuckDBStore(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open duckdb store: %w", err)
		}
		logging.Info().Str("path", cfg.Path).Msg("Using duckdb security store")
		return &securityStore{store: s}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
