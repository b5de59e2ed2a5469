// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package monitor

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by stores and the service.
var (
	ErrNotFound              = errors.New("monitor: record not found")
	ErrAlreadyReviewed       = errors.New("monitor: submission already reviewed")
	ErrAlreadyAcknowledged   = errors.New("monitor: alert already acknowledged")
	ErrAlreadyResolved       = errors.New("monitor: event already resolved")
	ErrInvalidReviewDecision = errors.New("monitor: review decision must be approved, rejected or escalated")
)

// EventType is the closed set of security event kinds.
type EventType string

const (
	EventFraudDetected       EventType = "fraud_detected"
	EventGPSSpoofing         EventType = "gps_spoofing"
	EventRateLimitExceeded   EventType = "rate_limit_exceeded"
	EventDuplicateSubmission EventType = "duplicate_submission"
	EventImpossibleTravel    EventType = "impossible_travel"
	EventPoorGPSAccuracy     EventType = "poor_gps_accuracy"
	EventAutomatedBehavior   EventType = "automated_behavior"
	EventValidationFailure   EventType = "validation_failure"
	EventLocationMismatch    EventType = "location_mismatch"
	EventSuspiciousPattern   EventType = "suspicious_pattern"
	EventSubmissionFlagged   EventType = "submission_flagged"
	EventReviewDecision      EventType = "review_decision"
	EventSystemError         EventType = "system_error"
)

// AllEventTypes lists every EventType in declaration order.
func AllEventTypes() []EventType {
	return []EventType{
		EventFraudDetected, EventGPSSpoofing, EventRateLimitExceeded,
		EventDuplicateSubmission, EventImpossibleTravel, EventPoorGPSAccuracy,
		EventAutomatedBehavior, EventValidationFailure, EventLocationMismatch,
		EventSuspiciousPattern, EventSubmissionFlagged, EventReviewDecision,
		EventSystemError,
	}
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range AllEventTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// IsFraudClass reports whether events of this type count as fraud attempts
// in metrics trends and the fraud thresholds.
func (t EventType) IsFraudClass() bool {
	switch t {
	case EventFraudDetected, EventGPSSpoofing, EventImpossibleTravel,
		EventAutomatedBehavior, EventSuspiciousPattern, EventDuplicateSubmission:
		return true
	default:
		return false
	}
}

// IsInformational reports whether the type records workflow activity rather
// than an abuse signal.
func (t EventType) IsInformational() bool {
	return t == EventSubmissionFlagged || t == EventReviewDecision
}

// Severity ranks security events and alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// SecurityEvent is one entry in the append-only security log. Only the
// resolution fields change after creation, through ResolveSecurityEvent.
type SecurityEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Severity     Severity       `json:"severity"`
	UserID       string         `json:"user_id"`
	ChallengeID  string         `json:"challenge_id,omitempty"`
	SubmissionID string         `json:"submission_id,omitempty"`
	Description  string         `json:"description"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`

	Resolved        bool       `json:"resolved"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
}

// clone returns a copy that shares no mutable state with e.
func (e *SecurityEvent) clone() SecurityEvent {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}

// EventInput describes an event to log. ID and Timestamp are assigned by the
// service when empty.
type EventInput struct {
	Type         EventType
	Severity     Severity
	UserID       string
	ChallengeID  string
	SubmissionID string
	Description  string
	Metadata     map[string]any
	Timestamp    time.Time
}

// ReviewStatus is the state of a flagged submission.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewApproved  ReviewStatus = "approved"
	ReviewRejected  ReviewStatus = "rejected"
	ReviewEscalated ReviewStatus = "escalated"
)

// IsTerminal reports whether no further transition is allowed.
func (s ReviewStatus) IsTerminal() bool {
	return s == ReviewApproved || s == ReviewRejected || s == ReviewEscalated
}

// Valid reports whether s is a known status.
func (s ReviewStatus) Valid() bool {
	return s == ReviewPending || s.IsTerminal()
}

// FlaggedSubmission is an entry in the human review queue.
type FlaggedSubmission struct {
	SubmissionID string       `json:"submission_id"`
	UserID       string       `json:"user_id"`
	ChallengeID  string       `json:"challenge_id"`
	FlaggedAt    time.Time    `json:"flagged_at"`
	Reason       string       `json:"reason"`
	Severity     Severity     `json:"severity"`
	ReviewStatus ReviewStatus `json:"review_status"`
	ReviewedBy   string       `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time   `json:"reviewed_at,omitempty"`
	ReviewNotes  string       `json:"review_notes,omitempty"`
	AutoFlags    []string     `json:"auto_flags"`
	FraudScore   float64      `json:"fraud_score"`
}

func (f *FlaggedSubmission) clone() FlaggedSubmission {
	c := *f
	c.AutoFlags = append([]string(nil), f.AutoFlags...)
	if f.ReviewedAt != nil {
		t := *f.ReviewedAt
		c.ReviewedAt = &t
	}
	return c
}

// FlagInput describes a submission to place in the review queue.
type FlagInput struct {
	SubmissionID string
	UserID       string
	ChallengeID  string
	Reason       string
	Severity     Severity
	AutoFlags    []string
	FraudScore   float64
}

// AlertTrigger classifies what raised an alert.
type AlertTrigger string

const (
	TriggerThresholdExceeded AlertTrigger = "threshold_exceeded"
	TriggerPatternDetected   AlertTrigger = "pattern_detected"
	TriggerCriticalEvent     AlertTrigger = "critical_event"
)

// SecurityAlert is raised by the threshold engine and acknowledged once.
type SecurityAlert struct {
	ID               string       `json:"id"`
	Trigger          AlertTrigger `json:"trigger"`
	Condition        string       `json:"condition"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Severity         Severity     `json:"severity"`
	TriggeredAt      time.Time    `json:"triggered_at"`
	Acknowledged     bool         `json:"acknowledged"`
	AcknowledgedBy   string       `json:"acknowledged_by,omitempty"`
	AcknowledgedAt   *time.Time   `json:"acknowledged_at,omitempty"`
	EventIDs         []string     `json:"event_ids"`
	SuggestedActions []string     `json:"suggested_actions"`
}

func (a *SecurityAlert) clone() SecurityAlert {
	c := *a
	c.EventIDs = append([]string(nil), a.EventIDs...)
	c.SuggestedActions = append([]string(nil), a.SuggestedActions...)
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	return c
}

// Timeframe is a trailing metrics window.
type Timeframe string

const (
	TimeframeHour  Timeframe = "hour"
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// ParseTimeframe accepts hour, day, week or month. Empty means day.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case "":
		return TimeframeDay, nil
	case TimeframeHour, TimeframeDay, TimeframeWeek, TimeframeMonth:
		return Timeframe(s), nil
	default:
		return "", fmt.Errorf("invalid timeframe %q (want hour, day, week or month)", s)
	}
}

// Duration is the length of the window.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case TimeframeHour:
		return time.Hour
	case TimeframeWeek:
		return 7 * 24 * time.Hour
	case TimeframeMonth:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Days is the number of trend buckets for the window.
func (t Timeframe) Days() int {
	switch t {
	case TimeframeWeek:
		return 7
	case TimeframeMonth:
		return 30
	default:
		return 1
	}
}

// UserEventCount pairs a user with their event count.
type UserEventCount struct {
	UserID string `json:"user_id"`
	Events int    `json:"events"`
}

// TrendBucket is one day of the metrics trend.
type TrendBucket struct {
	Date          time.Time `json:"date"`
	Events        int       `json:"events"`
	FraudAttempts int       `json:"fraud_attempts"`
}

// SecurityMetrics summarises the event log over a trailing window.
type SecurityMetrics struct {
	Timeframe             Timeframe         `json:"timeframe"`
	WindowStart           time.Time         `json:"window_start"`
	WindowEnd             time.Time         `json:"window_end"`
	TotalEvents           int               `json:"total_events"`
	EventsByType          map[EventType]int `json:"events_by_type"`
	EventsBySeverity      map[Severity]int  `json:"events_by_severity"`
	UniqueUsers           int               `json:"unique_users"`
	ResolvedEvents        int               `json:"resolved_events"`
	ResolutionRate        float64           `json:"resolution_rate"`
	MeanResolutionSeconds float64           `json:"mean_resolution_seconds"`
	PendingReviews        int               `json:"pending_reviews"`
	ActiveAlerts          int               `json:"active_alerts"`
	TopFlaggedUsers       []UserEventCount  `json:"top_flagged_users"`
	Trend                 []TrendBucket     `json:"trend"`
}
