// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

import (
	"fmt"
	"math"
	"time"
)

const dailyWindow = 24 * time.Hour

// CadenceRule enforces submission rate limits and flags machine-like timing.
type CadenceRule struct{}

// Type returns the rule type.
func (CadenceRule) Type() RuleType { return RuleTypeCadence }

// Check evaluates the user's submission timing.
func (CadenceRule) Check(a *Assessment) []Signal {
	if !a.Config.CadenceEnabled || a.At.IsZero() {
		return nil
	}

	times := priorTimes(a)
	var signals []Signal

	// Windows are symmetric around the reference time so a prior recorded
	// slightly later (clock drift between intake nodes) still counts.
	inWindow := countWithin(a.At, times, dailyWindow)
	if inWindow >= a.Config.MaxDailySubmissions {
		signals = append(signals, Signal{
			Code:    SignalDailyLimitExceeded,
			Rule:    RuleTypeCadence,
			Risk:    RiskHigh,
			Message: fmt.Sprintf("Daily submission limit of %d reached", a.Config.MaxDailySubmissions),
			Metrics: map[string]float64{"submissions_24h": float64(inWindow), "limit": float64(a.Config.MaxDailySubmissions)},
		})
	}

	if gap, ok := nearestGap(a.At, times); ok && gap < a.Config.MinSubmissionInterval {
		signals = append(signals, Signal{
			Code: SignalSubmissionTooFrequent,
			Rule: RuleTypeCadence,
			Risk: RiskHigh,
			Message: fmt.Sprintf("Submitted %.0f seconds from another submission (minimum %.0f)",
				gap.Seconds(), a.Config.MinSubmissionInterval.Seconds()),
			Metrics: map[string]float64{"gap_s": gap.Seconds(), "min_interval_s": a.Config.MinSubmissionInterval.Seconds()},
		})
	}

	earlier := make([]time.Time, 0, len(times)+1)
	for _, t := range times {
		if !t.After(a.At) {
			earlier = append(earlier, t)
		}
	}
	if cv, ok := intervalVariation(append(earlier, a.At), a.Config.RegularityMinIntervals); ok && cv < a.Config.RegularityMaxVariation {
		signals = append(signals, Signal{
			Code:    SignalRegularIntervals,
			Rule:    RuleTypeCadence,
			Risk:    RiskMedium,
			Message: "Submissions arrive at suspiciously regular intervals",
			Metrics: map[string]float64{"coefficient_of_variation": roundTo2Decimals(cv)},
		})
	}
	return signals
}

// priorTimes returns the recorded times of prior submissions, oldest first.
// Priors without any timestamp are skipped.
func priorTimes(a *Assessment) []time.Time {
	times := make([]time.Time, 0, len(a.Prior))
	for i := range a.Prior {
		if t := a.Prior[i].RecordedTime(); !t.IsZero() {
			times = append(times, t)
		}
	}
	return times
}

// countWithin counts the times strictly less than window away from at.
func countWithin(at time.Time, times []time.Time, window time.Duration) int {
	n := 0
	for _, t := range times {
		if absDuration(at.Sub(t)) < window {
			n++
		}
	}
	return n
}

// nearestGap returns the smallest distance between at and any of times.
func nearestGap(at time.Time, times []time.Time) (time.Duration, bool) {
	if len(times) == 0 {
		return 0, false
	}
	best := absDuration(at.Sub(times[0]))
	for _, t := range times[1:] {
		if d := absDuration(at.Sub(t)); d < best {
			best = d
		}
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// intervalVariation returns the coefficient of variation of the last
// minIntervals gaps between consecutive times. ok is false when there are
// too few samples or the gaps average to zero.
func intervalVariation(times []time.Time, minIntervals int) (cv float64, ok bool) {
	if minIntervals < 1 || len(times) < minIntervals+1 {
		return 0, false
	}
	recent := times[len(times)-minIntervals-1:]

	gaps := make([]float64, 0, minIntervals)
	var sum float64
	for i := 1; i < len(recent); i++ {
		g := recent[i].Sub(recent[i-1]).Seconds()
		gaps = append(gaps, g)
		sum += g
	}
	mean := sum / float64(len(gaps))
	if mean <= 0 {
		return 0, false
	}

	var sq float64
	for _, g := range gaps {
		sq += (g - mean) * (g - mean)
	}
	return math.Sqrt(sq/float64(len(gaps))) / mean, true
}
