// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package monitor

import (
	"fmt"
	"time"
)

// Threshold keys.
const (
	ConditionFraudEventsHourly  = "fraud_events_hourly"
	ConditionGPSSpoofingHourly  = "gps_spoofing_hourly"
	ConditionHighSeverityHourly = "high_severity_hourly"
	ConditionFraudUsersDaily    = "fraud_users_daily"
	ConditionCriticalEvent      = "critical_event"
)

// ThresholdConfig holds the alert threshold limits. A zero limit disables
// the threshold.
type ThresholdConfig struct {
	FraudEventsPerHour  int  `koanf:"fraud_events_per_hour"`
	GPSSpoofingPerHour  int  `koanf:"gps_spoofing_per_hour"`
	HighSeverityPerHour int  `koanf:"high_severity_per_hour"`
	FraudUsersPerDay    int  `koanf:"fraud_users_per_day"`
	AlertOnCritical     bool `koanf:"alert_on_critical"`
}

// DefaultThresholdConfig returns the production limits.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		FraudEventsPerHour:  10,
		GPSSpoofingPerHour:  5,
		HighSeverityPerHour: 3,
		FraudUsersPerDay:    5,
		AlertOnCritical:     true,
	}
}

// Threshold is one sliding-window alert rule.
type Threshold struct {
	Condition string
	Window    time.Duration
	Limit     int
	// CountUsers counts distinct users instead of events.
	CountUsers       bool
	Severity         Severity
	Trigger          AlertTrigger
	Title            string
	SuggestedActions []string
	Match            func(e *SecurityEvent) bool
}

func isFraudEvent(e *SecurityEvent) bool { return e.Type.IsFraudClass() }

func isSpoofingEvent(e *SecurityEvent) bool { return e.Type == EventGPSSpoofing }

func isHighSeverityEvent(e *SecurityEvent) bool {
	return !e.Type.IsInformational() && e.Severity.AtLeast(SeverityHigh)
}

// BuildThresholds turns the config into threshold rules. Disabled
// thresholds are omitted.
func BuildThresholds(cfg ThresholdConfig) []Threshold {
	all := []Threshold{
		{
			Condition: ConditionFraudEventsHourly,
			Window:    time.Hour,
			Limit:     cfg.FraudEventsPerHour,
			Severity:  SeverityHigh,
			Trigger:   TriggerThresholdExceeded,
			Title:     "High fraud activity",
			SuggestedActions: []string{
				"Review recent fraud events for a common source",
				"Consider tightening submission rate limits",
			},
			Match: isFraudEvent,
		},
		{
			Condition: ConditionGPSSpoofingHourly,
			Window:    time.Hour,
			Limit:     cfg.GPSSpoofingPerHour,
			Severity:  SeverityCritical,
			Trigger:   TriggerPatternDetected,
			Title:     "GPS spoofing spike",
			SuggestedActions: []string{
				"Inspect spoofed coordinates for new emulator defaults",
				"Temporarily require photo proof for affected challenges",
			},
			Match: isSpoofingEvent,
		},
		{
			Condition: ConditionHighSeverityHourly,
			Window:    time.Hour,
			Limit:     cfg.HighSeverityPerHour,
			Severity:  SeverityHigh,
			Trigger:   TriggerThresholdExceeded,
			Title:     "Multiple high-severity security events",
			SuggestedActions: []string{
				"Triage high-severity events in the security dashboard",
			},
			Match: isHighSeverityEvent,
		},
		{
			Condition:  ConditionFraudUsersDaily,
			Window:     24 * time.Hour,
			Limit:      cfg.FraudUsersPerDay,
			CountUsers: true,
			Severity:   SeverityHigh,
			Trigger:    TriggerPatternDetected,
			Title:      "Fraud spreading across users",
			SuggestedActions: []string{
				"Check flagged users for shared devices or coordinated timing",
				"Review the flagged submission queue",
			},
			Match: isFraudEvent,
		},
	}

	out := make([]Threshold, 0, len(all))
	for _, t := range all {
		if t.Limit > 0 {
			out = append(out, t)
		}
	}
	return out
}

// MaxWindow returns the longest threshold window.
func MaxWindow(thresholds []Threshold) time.Duration {
	var w time.Duration
	for _, t := range thresholds {
		if t.Window > w {
			w = t.Window
		}
	}
	return w
}

// AlertCandidate is a threshold crossing found by EvaluateThresholds.
type AlertCandidate struct {
	Condition        string
	Trigger          AlertTrigger
	Severity         Severity
	Title            string
	Description      string
	Observed         int
	Limit            int
	EventIDs         []string
	SuggestedActions []string
}

// EvaluateThresholds checks the thresholds that the latest event
// participates in against the events in their windows ending at now. A
// critical latest event always yields a critical_event candidate when
// alertOnCritical is set. The function is pure.
func EvaluateThresholds(events []SecurityEvent, latest *SecurityEvent, thresholds []Threshold, alertOnCritical bool, now time.Time) []AlertCandidate {
	if latest == nil {
		return nil
	}

	var out []AlertCandidate
	for i := range thresholds {
		t := &thresholds[i]
		if t.Match == nil || !t.Match(latest) {
			continue
		}

		start := now.Add(-t.Window)
		var ids []string
		users := make(map[string]struct{})
		for j := range events {
			e := &events[j]
			if !e.Timestamp.After(start) || e.Timestamp.After(now) || !t.Match(e) {
				continue
			}
			ids = append(ids, e.ID)
			if e.UserID != "" {
				users[e.UserID] = struct{}{}
			}
		}

		observed := len(ids)
		unit := "events"
		if t.CountUsers {
			observed = len(users)
			unit = "users"
		}
		if observed < t.Limit {
			continue
		}

		out = append(out, AlertCandidate{
			Condition: t.Condition,
			Trigger:   t.Trigger,
			Severity:  t.Severity,
			Title:     t.Title,
			Description: fmt.Sprintf("%d %s matched %s in the last %s (threshold %d)",
				observed, unit, t.Condition, t.Window, t.Limit),
			Observed:         observed,
			Limit:            t.Limit,
			EventIDs:         ids,
			SuggestedActions: append([]string(nil), t.SuggestedActions...),
		})
	}

	if alertOnCritical && latest.Severity == SeverityCritical && !latest.Type.IsInformational() {
		out = append(out, AlertCandidate{
			Condition:   ConditionCriticalEvent,
			Trigger:     TriggerCriticalEvent,
			Severity:    SeverityCritical,
			Title:       "Critical security event",
			Description: fmt.Sprintf("Critical %s event for user %s: %s", latest.Type, latest.UserID, latest.Description),
			Observed:    1,
			Limit:       1,
			EventIDs:    []string{latest.ID},
			SuggestedActions: []string{
				"Investigate the event and the affected user immediately",
				"Resolve the event once handled",
			},
		})
	}
	return out
}
