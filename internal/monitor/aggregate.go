// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package monitor

import (
	"sort"
	"time"
)

const dayDuration = 24 * time.Hour

// ComputeMetrics aggregates events over the trailing window ending at now.
// It reads events only and never mutates them. Trend buckets are rolling
// 24-hour slices ending at now, oldest first; the last bucket includes now.
// PendingReviews and ActiveAlerts are left for the caller.
func ComputeMetrics(events []SecurityEvent, tf Timeframe, now time.Time, topN int) *SecurityMetrics {
	windowStart := now.Add(-tf.Duration())
	days := tf.Days()

	m := &SecurityMetrics{
		Timeframe:        tf,
		WindowStart:      windowStart,
		WindowEnd:        now,
		EventsByType:     make(map[EventType]int),
		EventsBySeverity: make(map[Severity]int),
		TopFlaggedUsers:  []UserEventCount{},
		Trend:            make([]TrendBucket, days),
	}
	for i := range m.Trend {
		start := now.Add(-time.Duration(days-i) * dayDuration)
		if start.Before(windowStart) {
			start = windowStart
		}
		m.Trend[i].Date = start
	}

	users := make(map[string]struct{})
	flaggedUsers := make(map[string]int)
	var resolutionTotal time.Duration
	var resolutionCount int

	for i := range events {
		e := &events[i]
		if e.Timestamp.Before(windowStart) || e.Timestamp.After(now) {
			continue
		}

		m.TotalEvents++
		m.EventsByType[e.Type]++
		m.EventsBySeverity[e.Severity]++
		if e.UserID != "" {
			users[e.UserID] = struct{}{}
			if !e.Type.IsInformational() {
				flaggedUsers[e.UserID]++
			}
		}
		if e.Resolved {
			m.ResolvedEvents++
			if e.ResolvedAt != nil && !e.ResolvedAt.Before(e.Timestamp) {
				resolutionTotal += e.ResolvedAt.Sub(e.Timestamp)
				resolutionCount++
			}
		}

		idx := days - 1 - int(now.Sub(e.Timestamp)/dayDuration)
		if idx < 0 {
			idx = 0
		}
		m.Trend[idx].Events++
		if e.Type.IsFraudClass() {
			m.Trend[idx].FraudAttempts++
		}
	}

	m.UniqueUsers = len(users)
	if m.TotalEvents > 0 {
		m.ResolutionRate = float64(m.ResolvedEvents) / float64(m.TotalEvents)
	}
	if resolutionCount > 0 {
		m.MeanResolutionSeconds = resolutionTotal.Seconds() / float64(resolutionCount)
	}
	m.TopFlaggedUsers = topUsers(flaggedUsers, topN)
	return m
}

// topUsers ranks users by event count, ties broken by user id.
func topUsers(counts map[string]int, n int) []UserEventCount {
	out := make([]UserEventCount, 0, len(counts))
	for user, c := range counts {
		out = append(out, UserEventCount{UserID: user, Events: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Events != out[j].Events {
			return out[i].Events > out[j].Events
		}
		return out[i].UserID < out[j].UserID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// SortAlerts orders alerts by severity, most severe first, then newest first.
func SortAlerts(alerts []SecurityAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return alerts[i].TriggeredAt.After(alerts[j].TriggeredAt)
	})
}
