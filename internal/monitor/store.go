// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package monitor

import (
	"context"
	"time"
)

// Store persists the three security tables. Implementations serialize writes
// per table and return copies from reads, so callers see a consistent
// snapshot and can never mutate stored records.
type Store interface {
	// AppendEvent stores a new event. Events are immutable except for the
	// resolution fields.
	AppendEvent(ctx context.Context, event *SecurityEvent) error
	GetEvent(ctx context.Context, id string) (*SecurityEvent, error)
	// ResolveEvent marks an open event resolved. It returns ErrNotFound or
	// ErrAlreadyResolved.
	ResolveEvent(ctx context.Context, id, resolver, notes string, at time.Time) (*SecurityEvent, error)
	// QueryEvents returns matching events, newest first.
	QueryEvents(ctx context.Context, filter EventFilter) ([]SecurityEvent, error)

	// CreateFlag inserts a pending flag. When the submission is already
	// flagged it returns the stored record and created=false.
	CreateFlag(ctx context.Context, flag *FlaggedSubmission) (stored *FlaggedSubmission, created bool, err error)
	// ReviewFlag moves a pending flag to a terminal status. It returns
	// ErrNotFound or ErrAlreadyReviewed.
	ReviewFlag(ctx context.Context, submissionID string, status ReviewStatus, reviewer, notes string, at time.Time) (*FlaggedSubmission, error)
	// QueryFlags returns matching flags, oldest first.
	QueryFlags(ctx context.Context, filter FlagFilter) ([]FlaggedSubmission, error)

	SaveAlert(ctx context.Context, alert *SecurityAlert) error
	// AcknowledgeAlert returns ErrNotFound or ErrAlreadyAcknowledged.
	AcknowledgeAlert(ctx context.Context, id, who string, at time.Time) (*SecurityAlert, error)
	// QueryAlerts returns matching alerts, newest first.
	QueryAlerts(ctx context.Context, filter AlertFilter) ([]SecurityAlert, error)

	// Prune removes events, reviewed flags and acknowledged alerts older
	// than the cutoff. Pending flags and open alerts are kept.
	Prune(ctx context.Context, olderThan time.Time) (PruneResult, error)

	Close() error
}

// EventFilter selects events. Zero values match everything.
type EventFilter struct {
	Since  time.Time
	Until  time.Time
	UserID string
	Types  []EventType
	Limit  int
}

// Matches reports whether the event passes the filter. Since is inclusive,
// Until is inclusive.
func (f *EventFilter) Matches(e *SecurityEvent) bool {
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FlagFilter selects flagged submissions.
type FlagFilter struct {
	Status ReviewStatus
	UserID string
	Limit  int
}

// Matches reports whether the flag passes the filter.
func (f *FlagFilter) Matches(flag *FlaggedSubmission) bool {
	if f.Status != "" && flag.ReviewStatus != f.Status {
		return false
	}
	if f.UserID != "" && flag.UserID != f.UserID {
		return false
	}
	return true
}

// AlertFilter selects alerts.
type AlertFilter struct {
	ActiveOnly bool
	Condition  string
	Since      time.Time
	Limit      int
}

// Matches reports whether the alert passes the filter.
func (f *AlertFilter) Matches(a *SecurityAlert) bool {
	if f.ActiveOnly && a.Acknowledged {
		return false
	}
	if f.Condition != "" && a.Condition != f.Condition {
		return false
	}
	if !f.Since.IsZero() && a.TriggeredAt.Before(f.Since) {
		return false
	}
	return true
}

// PruneResult counts the rows removed by Prune.
type PruneResult struct {
	Events int64
	Flags  int64
	Alerts int64
}

// Total is the number of removed rows across all tables.
func (r PruneResult) Total() int64 {
	return r.Events + r.Flags + r.Alerts
}
