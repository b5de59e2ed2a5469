// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultMaxEvents bounds the in-memory event log.
const DefaultMaxEvents = 100000

// MemoryStore implements Store in process memory. Each table has its own
// lock. Data is lost on restart.
type MemoryStore struct {
	eventsMu  sync.RWMutex
	events    []SecurityEvent
	maxEvents int

	flagsMu sync.RWMutex
	flags   map[string]*FlaggedSubmission

	alertsMu sync.RWMutex
	alerts   []SecurityAlert
}

// NewMemoryStore creates an in-memory store holding at most maxEvents
// events. When full, the oldest 10% are dropped.
func NewMemoryStore(maxEvents int) *MemoryStore {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &MemoryStore{
		events:    make([]SecurityEvent, 0, min(maxEvents, 1024)),
		maxEvents: maxEvents,
		flags:     make(map[string]*FlaggedSubmission),
	}
}

// AppendEvent stores a copy of the event.
func (s *MemoryStore) AppendEvent(ctx context.Context, event *SecurityEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("append event: missing id")
	}

	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	if len(s.events) >= s.maxEvents {
		removeCount := max(s.maxEvents/10, 1)
		s.events = append(s.events[:0:0], s.events[removeCount:]...)
	}

	s.events = append(s.events, event.clone())
	return nil
}

// GetEvent returns a copy of the event with the given id.
func (s *MemoryStore) GetEvent(ctx context.Context, id string) (*SecurityEvent, error) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()

	if i := s.indexOfEvent(id); i >= 0 {
		e := s.events[i].clone()
		return &e, nil
	}
	return nil, ErrNotFound
}

// ResolveEvent marks an open event resolved.
func (s *MemoryStore) ResolveEvent(ctx context.Context, id, resolver, notes string, at time.Time) (*SecurityEvent, error) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	i := s.indexOfEvent(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	e := &s.events[i]
	if e.Resolved {
		return nil, ErrAlreadyResolved
	}
	resolvedAt := at
	e.Resolved = true
	e.ResolvedBy = resolver
	e.ResolvedAt = &resolvedAt
	e.ResolutionNotes = notes

	out := e.clone()
	return &out, nil
}

// indexOfEvent searches from the newest end. Caller holds eventsMu.
func (s *MemoryStore) indexOfEvent(id string) int {
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

// QueryEvents returns matching events, newest first.
func (s *MemoryStore) QueryEvents(ctx context.Context, filter EventFilter) ([]SecurityEvent, error) {
	s.eventsMu.RLock()
	results := make([]SecurityEvent, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		if filter.Matches(&s.events[i]) {
			results = append(results, s.events[i].clone())
		}
	}
	s.eventsMu.RUnlock()

	sortEventsNewestFirst(results)
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// CreateFlag inserts a pending flag unless the submission is already queued.
func (s *MemoryStore) CreateFlag(ctx context.Context, flag *FlaggedSubmission) (*FlaggedSubmission, bool, error) {
	if flag == nil || flag.SubmissionID == "" {
		return nil, false, fmt.Errorf("create flag: missing submission id")
	}

	s.flagsMu.Lock()
	defer s.flagsMu.Unlock()

	if existing, ok := s.flags[flag.SubmissionID]; ok {
		out := existing.clone()
		return &out, false, nil
	}
	stored := flag.clone()
	s.flags[flag.SubmissionID] = &stored

	out := stored.clone()
	return &out, true, nil
}

// ReviewFlag moves a pending flag to a terminal status.
func (s *MemoryStore) ReviewFlag(ctx context.Context, submissionID string, status ReviewStatus, reviewer, notes string, at time.Time) (*FlaggedSubmission, error) {
	if !status.IsTerminal() {
		return nil, ErrInvalidReviewDecision
	}

	s.flagsMu.Lock()
	defer s.flagsMu.Unlock()

	flag, ok := s.flags[submissionID]
	if !ok {
		return nil, ErrNotFound
	}
	if flag.ReviewStatus.IsTerminal() {
		return nil, ErrAlreadyReviewed
	}
	reviewedAt := at
	flag.ReviewStatus = status
	flag.ReviewedBy = reviewer
	flag.ReviewedAt = &reviewedAt
	flag.ReviewNotes = notes

	out := flag.clone()
	return &out, nil
}

// QueryFlags returns matching flags, oldest first.
func (s *MemoryStore) QueryFlags(ctx context.Context, filter FlagFilter) ([]FlaggedSubmission, error) {
	s.flagsMu.RLock()
	results := make([]FlaggedSubmission, 0)
	for _, flag := range s.flags {
		if filter.Matches(flag) {
			results = append(results, flag.clone())
		}
	}
	s.flagsMu.RUnlock()

	sortFlagsOldestFirst(results)
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// SaveAlert stores a copy of the alert.
func (s *MemoryStore) SaveAlert(ctx context.Context, alert *SecurityAlert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("save alert: missing id")
	}

	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()
	s.alerts = append(s.alerts, alert.clone())
	return nil
}

// AcknowledgeAlert marks an alert acknowledged.
func (s *MemoryStore) AcknowledgeAlert(ctx context.Context, id, who string, at time.Time) (*SecurityAlert, error) {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()

	for i := range s.alerts {
		a := &s.alerts[i]
		if a.ID != id {
			continue
		}
		if a.Acknowledged {
			return nil, ErrAlreadyAcknowledged
		}
		ackAt := at
		a.Acknowledged = true
		a.AcknowledgedBy = who
		a.AcknowledgedAt = &ackAt
		out := a.clone()
		return &out, nil
	}
	return nil, ErrNotFound
}

// QueryAlerts returns matching alerts, newest first.
func (s *MemoryStore) QueryAlerts(ctx context.Context, filter AlertFilter) ([]SecurityAlert, error) {
	s.alertsMu.RLock()
	results := make([]SecurityAlert, 0)
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if filter.Matches(&s.alerts[i]) {
			results = append(results, s.alerts[i].clone())
		}
	}
	s.alertsMu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TriggeredAt.After(results[j].TriggeredAt)
	})
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// Prune removes old events, reviewed flags and acknowledged alerts.
func (s *MemoryStore) Prune(ctx context.Context, olderThan time.Time) (PruneResult, error) {
	var res PruneResult

	s.eventsMu.Lock()
	kept := s.events[:0]
	for i := range s.events {
		if s.events[i].Timestamp.Before(olderThan) {
			res.Events++
			continue
		}
		kept = append(kept, s.events[i])
	}
	clear(s.events[len(kept):])
	s.events = kept
	s.eventsMu.Unlock()

	s.flagsMu.Lock()
	for id, flag := range s.flags {
		if flag.ReviewStatus.IsTerminal() && flag.FlaggedAt.Before(olderThan) {
			delete(s.flags, id)
			res.Flags++
		}
	}
	s.flagsMu.Unlock()

	s.alertsMu.Lock()
	keptAlerts := s.alerts[:0]
	for i := range s.alerts {
		if s.alerts[i].Acknowledged && s.alerts[i].TriggeredAt.Before(olderThan) {
			res.Alerts++
			continue
		}
		keptAlerts = append(keptAlerts, s.alerts[i])
	}
	clear(s.alerts[len(keptAlerts):])
	s.alerts = keptAlerts
	s.alertsMu.Unlock()

	return res, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return len(s.events)
}

func sortEventsNewestFirst(events []SecurityEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}

func sortFlagsOldestFirst(flags []FlaggedSubmission) {
	sort.Slice(flags, func(i, j int) bool {
		if !flags[i].FlaggedAt.Equal(flags[j].FlaggedAt) {
			return flags[i].FlaggedAt.Before(flags[j].FlaggedAt)
		}
		return flags[i].SubmissionID < flags[j].SubmissionID
	})
}
