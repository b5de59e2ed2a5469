// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open BadgerDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewBadgerStore(db)
}

func TestBadgerStore_Contract(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return newTestBadgerStore(t)
	})
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadgerStore(dir)
	if err != nil {
		t.Fatalf("OpenBadgerStore() error = %v", err)
	}
	if err := s.AppendEvent(ctx, suiteEvent("e1", "u1", EventGPSSpoofing, SeverityHigh, suiteBase)); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = OpenBadgerStore(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, err := s.GetEvent(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEvent() after reopen error = %v", err)
	}
	if got.Type != EventGPSSpoofing {
		t.Errorf("Type = %q, want gps_spoofing", got.Type)
	}
}

func TestBadgerStore_RunGC(t *testing.T) {
	if err := newTestBadgerStore(t).RunGC(); err != nil {
		t.Errorf("RunGC() in memory error = %v", err)
	}

	s, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadgerStore() error = %v", err)
	}
	defer s.Close()
	if err := s.RunGC(); err != nil {
		t.Errorf("RunGC() on disk error = %v", err)
	}
}

func TestBadgerStore_RunWithContextStops(t *testing.T) {
	s := newTestBadgerStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunWithContext(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunWithContext did not stop")
	}
}
