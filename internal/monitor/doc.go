// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

/*
Package monitor records security events, maintains the human review queue and
raises alerts when abuse crosses configured thresholds.

The Service is the only write path. It persists through a Store (memory,
BadgerDB or DuckDB), evaluates alert thresholds after every logged event and
fans events and alerts out to an EventPublisher and Notifiers without blocking
the caller.

Logging operations never fail the caller. A store error is logged, counted in
checkpoint_monitor_store_errors_total and otherwise swallowed:

	id := svc.LogSecurityEvent(ctx, monitor.EventInput{
		Type:     monitor.EventGPSSpoofing,
		Severity: monitor.SeverityHigh,
		UserID:   "u-123",
	})

State machines:

	FlaggedSubmission: pending -> approved | rejected | escalated
	SecurityEvent:     open -> resolved
	SecurityAlert:     triggered -> acknowledged

Each transition happens at most once. A second attempt returns
ErrAlreadyReviewed, ErrAlreadyResolved or ErrAlreadyAcknowledged.
*/
package monitor
