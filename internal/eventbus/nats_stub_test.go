// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

//go:build !nats

package eventbus

import "testing"

func TestNew_NATSRequiresBuildTag(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendNATS
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for the nats backend without -tags=nats")
	}
}
