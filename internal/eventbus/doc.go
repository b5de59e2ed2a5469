// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

// Package eventbus publishes security events and alerts to a Watermill
// message bus so downstream consumers (dashboards, SIEM forwarders, the
// moderation bot) can react without polling the monitor.
//
// Two backends are available:
//
//   - memory: an in-process Watermill gochannel. Messages are delivered to
//     local subscribers only and are dropped when nobody listens.
//   - nats: NATS JetStream through watermill-nats. Build with -tags=nats.
//
// Topics:
//
//	security.events  one message per SecurityEvent, UUID = event id
//	security.alerts  one message per SecurityAlert, UUID = alert id
//
// Every publish goes through a circuit breaker so a broken bus is skipped
// quickly instead of stalling the monitor's dispatch goroutines.
package eventbus
