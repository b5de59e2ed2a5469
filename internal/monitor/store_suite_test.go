// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var suiteBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func suiteEvent(id, user string, typ EventType, sev Severity, at time.Time) *SecurityEvent {
	return &SecurityEvent{
		ID:           id,
		Type:         typ,
		Severity:     sev,
		UserID:       user,
		SubmissionID: "sub-" + id,
		Description:  "event " + id,
		Metadata:     map[string]any{"signal": "EXACT_TARGET_MATCH"},
		Timestamp:    at,
	}
}

// runStoreSuite exercises the Store contract. Every implementation must pass.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("AppendAndGetEvent", func(t *testing.T) {
		s := newStore(t)
		e := suiteEvent("e1", "u1", EventGPSSpoofing, SeverityHigh, suiteBase)
		if err := s.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent() error = %v", err)
		}

		got, err := s.GetEvent(ctx, "e1")
		if err != nil {
			t.Fatalf("GetEvent() error = %v", err)
		}
		if got.Type != EventGPSSpoofing || got.UserID != "u1" || !got.Timestamp.Equal(suiteBase) {
			t.Errorf("GetEvent() = %+v", got)
		}
		if got.Metadata["signal"] != "EXACT_TARGET_MATCH" {
			t.Errorf("metadata signal = %v", got.Metadata["signal"])
		}

		if _, err := s.GetEvent(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetEvent(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("QueryEventsNewestFirstWithFilters", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 5; i++ {
			user := "u1"
			if i%2 == 1 {
				user = "u2"
			}
			typ := EventGPSSpoofing
			if i == 4 {
				typ = EventRateLimitExceeded
			}
			e := suiteEvent(fmt.Sprintf("e%d", i), user, typ, SeverityMedium, suiteBase.Add(time.Duration(i)*time.Minute))
			if err := s.AppendEvent(ctx, e); err != nil {
				t.Fatalf("AppendEvent() error = %v", err)
			}
		}

		all, err := s.QueryEvents(ctx, EventFilter{})
		if err != nil {
			t.Fatalf("QueryEvents() error = %v", err)
		}
		if len(all) != 5 || all[0].ID != "e4" || all[4].ID != "e0" {
			t.Fatalf("QueryEvents() order = %v", eventIDs(all))
		}

		u1, _ := s.QueryEvents(ctx, EventFilter{UserID: "u1"})
		if len(u1) != 3 {
			t.Errorf("UserID filter returned %d events, want 3", len(u1))
		}

		window, _ := s.QueryEvents(ctx, EventFilter{Since: suiteBase.Add(time.Minute), Until: suiteBase.Add(3 * time.Minute)})
		if got := eventIDs(window); len(got) != 3 || got[0] != "e3" || got[2] != "e1" {
			t.Errorf("window filter = %v, want [e3 e2 e1]", got)
		}

		typed, _ := s.QueryEvents(ctx, EventFilter{Types: []EventType{EventRateLimitExceeded}})
		if len(typed) != 1 || typed[0].ID != "e4" {
			t.Errorf("Types filter = %v", eventIDs(typed))
		}

		limited, _ := s.QueryEvents(ctx, EventFilter{Limit: 2})
		if got := eventIDs(limited); len(got) != 2 || got[0] != "e4" || got[1] != "e3" {
			t.Errorf("Limit filter = %v", got)
		}
	})

	t.Run("ResolveEventOnce", func(t *testing.T) {
		s := newStore(t)
		_ = s.AppendEvent(ctx, suiteEvent("e1", "u1", EventFraudDetected, SeverityHigh, suiteBase))

		at := suiteBase.Add(time.Hour)
		got, err := s.ResolveEvent(ctx, "e1", "alice", "false positive", at)
		if err != nil {
			t.Fatalf("ResolveEvent() error = %v", err)
		}
		if !got.Resolved || got.ResolvedBy != "alice" || got.ResolvedAt == nil || !got.ResolvedAt.Equal(at) {
			t.Errorf("ResolveEvent() = %+v", got)
		}
		if got.Type != EventFraudDetected || got.Description != "event e1" {
			t.Error("resolution must not change immutable fields")
		}

		if _, err := s.ResolveEvent(ctx, "e1", "bob", "", at); !errors.Is(err, ErrAlreadyResolved) {
			t.Errorf("second ResolveEvent() error = %v, want ErrAlreadyResolved", err)
		}
		if _, err := s.ResolveEvent(ctx, "missing", "bob", "", at); !errors.Is(err, ErrNotFound) {
			t.Errorf("ResolveEvent(missing) error = %v, want ErrNotFound", err)
		}

		stored, _ := s.GetEvent(ctx, "e1")
		if stored.ResolvedBy != "alice" {
			t.Errorf("stored resolver = %q, want alice", stored.ResolvedBy)
		}
	})

	t.Run("FlagLifecycle", func(t *testing.T) {
		s := newStore(t)
		flag := &FlaggedSubmission{
			SubmissionID: "s1",
			UserID:       "u1",
			ChallengeID:  "c1",
			FlaggedAt:    suiteBase,
			Reason:       "poor accuracy",
			Severity:     SeverityMedium,
			ReviewStatus: ReviewPending,
			AutoFlags:    []string{"POOR_GPS_ACCURACY"},
			FraudScore:   0.4,
		}
		stored, created, err := s.CreateFlag(ctx, flag)
		if err != nil || !created {
			t.Fatalf("CreateFlag() = %v, %v", created, err)
		}
		if stored.AutoFlags[0] != "POOR_GPS_ACCURACY" {
			t.Errorf("AutoFlags = %v", stored.AutoFlags)
		}

		again := *flag
		again.Reason = "changed"
		stored, created, err = s.CreateFlag(ctx, &again)
		if err != nil || created {
			t.Fatalf("second CreateFlag() = %v, %v, want existing", created, err)
		}
		if stored.Reason != "poor accuracy" {
			t.Errorf("existing flag overwritten: reason = %q", stored.Reason)
		}

		reviewed, err := s.ReviewFlag(ctx, "s1", ReviewApproved, "alice", "looks fine", suiteBase.Add(time.Hour))
		if err != nil {
			t.Fatalf("ReviewFlag() error = %v", err)
		}
		if reviewed.ReviewStatus != ReviewApproved || reviewed.ReviewedBy != "alice" || reviewed.ReviewedAt == nil {
			t.Errorf("ReviewFlag() = %+v", reviewed)
		}

		if _, err := s.ReviewFlag(ctx, "s1", ReviewRejected, "bob", "", suiteBase); !errors.Is(err, ErrAlreadyReviewed) {
			t.Errorf("second ReviewFlag() error = %v, want ErrAlreadyReviewed", err)
		}
		if _, err := s.ReviewFlag(ctx, "missing", ReviewRejected, "bob", "", suiteBase); !errors.Is(err, ErrNotFound) {
			t.Errorf("ReviewFlag(missing) error = %v, want ErrNotFound", err)
		}
		if _, err := s.ReviewFlag(ctx, "s1", ReviewPending, "bob", "", suiteBase); !errors.Is(err, ErrInvalidReviewDecision) {
			t.Errorf("ReviewFlag(pending) error = %v, want ErrInvalidReviewDecision", err)
		}
	})

	t.Run("QueryFlagsOldestFirst", func(t *testing.T) {
		s := newStore(t)
		for i, id := range []string{"s3", "s1", "s2"} {
			_, _, err := s.CreateFlag(ctx, &FlaggedSubmission{
				SubmissionID: id,
				UserID:       "u1",
				FlaggedAt:    suiteBase.Add(time.Duration(2-i) * time.Minute),
				Reason:       "r",
				Severity:     SeverityLow,
				ReviewStatus: ReviewPending,
			})
			if err != nil {
				t.Fatalf("CreateFlag(%s) error = %v", id, err)
			}
		}
		_, _ = s.ReviewFlag(ctx, "s2", ReviewRejected, "alice", "", suiteBase)

		all, err := s.QueryFlags(ctx, FlagFilter{})
		if err != nil {
			t.Fatalf("QueryFlags() error = %v", err)
		}
		if len(all) != 3 || all[0].SubmissionID != "s2" || all[2].SubmissionID != "s3" {
			t.Errorf("QueryFlags() order = %+v", all)
		}

		pending, _ := s.QueryFlags(ctx, FlagFilter{Status: ReviewPending})
		if len(pending) != 2 {
			t.Errorf("pending flags = %d, want 2", len(pending))
		}
	})

	t.Run("AlertLifecycle", func(t *testing.T) {
		s := newStore(t)
		for i, sev := range []Severity{SeverityHigh, SeverityCritical} {
			err := s.SaveAlert(ctx, &SecurityAlert{
				ID:               fmt.Sprintf("a%d", i),
				Trigger:          TriggerThresholdExceeded,
				Condition:        ConditionFraudEventsHourly,
				Title:            "t",
				Description:      "d",
				Severity:         sev,
				TriggeredAt:      suiteBase.Add(time.Duration(i) * time.Minute),
				EventIDs:         []string{"e1", "e2"},
				SuggestedActions: []string{"look"},
			})
			if err != nil {
				t.Fatalf("SaveAlert() error = %v", err)
			}
		}

		active, err := s.QueryAlerts(ctx, AlertFilter{ActiveOnly: true})
		if err != nil {
			t.Fatalf("QueryAlerts() error = %v", err)
		}
		if len(active) != 2 || active[0].ID != "a1" {
			t.Fatalf("QueryAlerts() = %+v, want newest first", active)
		}
		if len(active[1].EventIDs) != 2 {
			t.Errorf("EventIDs = %v", active[1].EventIDs)
		}

		acked, err := s.AcknowledgeAlert(ctx, "a0", "alice", suiteBase.Add(time.Hour))
		if err != nil {
			t.Fatalf("AcknowledgeAlert() error = %v", err)
		}
		if !acked.Acknowledged || acked.AcknowledgedBy != "alice" {
			t.Errorf("AcknowledgeAlert() = %+v", acked)
		}
		if _, err := s.AcknowledgeAlert(ctx, "a0", "bob", suiteBase); !errors.Is(err, ErrAlreadyAcknowledged) {
			t.Errorf("second AcknowledgeAlert() error = %v, want ErrAlreadyAcknowledged", err)
		}
		if _, err := s.AcknowledgeAlert(ctx, "missing", "bob", suiteBase); !errors.Is(err, ErrNotFound) {
			t.Errorf("AcknowledgeAlert(missing) error = %v, want ErrNotFound", err)
		}

		active, _ = s.QueryAlerts(ctx, AlertFilter{ActiveOnly: true})
		if len(active) != 1 || active[0].ID != "a1" {
			t.Errorf("active after ack = %+v", active)
		}
		byCondition, _ := s.QueryAlerts(ctx, AlertFilter{Condition: ConditionFraudEventsHourly, Since: suiteBase.Add(30 * time.Second)})
		if len(byCondition) != 1 {
			t.Errorf("condition+since filter = %d alerts, want 1", len(byCondition))
		}
	})

	t.Run("Prune", func(t *testing.T) {
		s := newStore(t)
		cutoff := suiteBase
		_ = s.AppendEvent(ctx, suiteEvent("old", "u1", EventFraudDetected, SeverityLow, cutoff.Add(-time.Hour)))
		_ = s.AppendEvent(ctx, suiteEvent("new", "u1", EventFraudDetected, SeverityLow, cutoff.Add(time.Hour)))

		for _, id := range []string{"reviewed", "pending"} {
			_, _, _ = s.CreateFlag(ctx, &FlaggedSubmission{
				SubmissionID: id, UserID: "u1", FlaggedAt: cutoff.Add(-time.Hour),
				Reason: "r", Severity: SeverityLow, ReviewStatus: ReviewPending,
			})
		}
		_, _ = s.ReviewFlag(ctx, "reviewed", ReviewApproved, "alice", "", cutoff)

		for _, id := range []string{"acked", "open"} {
			_ = s.SaveAlert(ctx, &SecurityAlert{
				ID: id, Trigger: TriggerCriticalEvent, Condition: ConditionCriticalEvent,
				Title: "t", Description: "d", Severity: SeverityCritical, TriggeredAt: cutoff.Add(-time.Hour),
			})
		}
		_, _ = s.AcknowledgeAlert(ctx, "acked", "alice", cutoff)

		res, err := s.Prune(ctx, cutoff)
		if err != nil {
			t.Fatalf("Prune() error = %v", err)
		}
		if res.Events != 1 || res.Flags != 1 || res.Alerts != 1 {
			t.Errorf("Prune() = %+v, want 1/1/1", res)
		}

		if _, err := s.GetEvent(ctx, "old"); !errors.Is(err, ErrNotFound) {
			t.Errorf("old event still present: %v", err)
		}
		if _, err := s.GetEvent(ctx, "new"); err != nil {
			t.Errorf("new event pruned: %v", err)
		}
		flags, _ := s.QueryFlags(ctx, FlagFilter{})
		if len(flags) != 1 || flags[0].SubmissionID != "pending" {
			t.Errorf("flags after prune = %+v", flags)
		}
		alerts, _ := s.QueryAlerts(ctx, AlertFilter{})
		if len(alerts) != 1 || alerts[0].ID != "open" {
			t.Errorf("alerts after prune = %+v", alerts)
		}
	})

	t.Run("ReadsReturnCopies", func(t *testing.T) {
		s := newStore(t)
		_ = s.AppendEvent(ctx, suiteEvent("e1", "u1", EventFraudDetected, SeverityLow, suiteBase))

		got, _ := s.GetEvent(ctx, "e1")
		got.Description = "mutated"
		got.Metadata["signal"] = "mutated"

		again, _ := s.GetEvent(ctx, "e1")
		if again.Description != "event e1" || again.Metadata["signal"] != "EXACT_TARGET_MATCH" {
			t.Errorf("store exposed internal state: %+v", again)
		}
	})
}

func eventIDs(events []SecurityEvent) []string {
	ids := make([]string, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}
	return ids
}
