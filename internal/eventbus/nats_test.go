// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

//go:build nats

package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/checkpoint/internal/monitor"
)

// startEmbeddedNATS runs a JetStream-enabled server on a random port.
func startEmbeddedNATS(t *testing.T) string {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		ServerName: "checkpoint-test",
		Host:       "127.0.0.1",
		Port:       -1,
		JetStream:  true,
		StoreDir:   t.TempDir(),
		NoLog:      true,
	})
	if err != nil {
		t.Fatalf("create NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestNATSPublisher_PublishesToStream(t *testing.T) {
	url := startEmbeddedNATS(t)

	cfg := DefaultConfig()
	cfg.Backend = BackendNATS
	cfg.NATS.URL = url
	cfg.NATS.MaxReconnects = 0

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event := &monitor.SecurityEvent{
		ID:          "evt-nats-1",
		Type:        monitor.EventGPSSpoofing,
		Severity:    monitor.SeverityHigh,
		UserID:      "user-1",
		Description: "emulator coordinates",
		Timestamp:   time.Now().UTC(),
	}
	if err := p.PublishEvent(ctx, event); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}
	// Same message ID is deduplicated by the stream.
	if err := p.PublishEvent(ctx, event); err != nil {
		t.Fatalf("second PublishEvent() error = %v", err)
	}

	nc, err := natsgo.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	stream, err := js.Stream(ctx, cfg.NATS.StreamName)
	if err != nil {
		t.Fatalf("stream lookup: %v", err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		t.Fatalf("stream info: %v", err)
	}
	if info.State.Msgs != 1 {
		t.Errorf("stream messages = %d, want 1", info.State.Msgs)
	}
}

func TestProvisionStream_Idempotent(t *testing.T) {
	url := startEmbeddedNATS(t)

	cfg := DefaultConfig().NATS
	cfg.URL = url
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := provisionStream(ctx, cfg); err != nil {
			t.Fatalf("provisionStream() call %d error = %v", i+1, err)
		}
	}
}
