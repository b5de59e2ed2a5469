// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

import "fmt"

// minSuspiciousSample is the history size below which the suspicious ratio
// is not meaningful.
const minSuspiciousSample = 3

// PatternRule raises secondary, behaviour-level signals. None of them is
// high risk on its own.
type PatternRule struct{}

// Type returns the rule type.
func (PatternRule) Type() RuleType { return RuleTypePatterns }

// Check evaluates the user's history as a whole.
func (PatternRule) Check(a *Assessment) []Signal {
	var signals []Signal
	cfg := a.Config

	if len(a.Prior) >= cfg.HomogeneityMinSamples {
		same := true
		for i := range a.Prior {
			if a.Prior[i].ProofType != a.Submission.ProofType {
				same = false
				break
			}
		}
		if same {
			signals = append(signals, Signal{
				Code:    SignalProofTypeHomogeneity,
				Rule:    RuleTypePatterns,
				Risk:    RiskMedium,
				Message: fmt.Sprintf("All %d prior submissions used the same proof type", len(a.Prior)),
				Metrics: map[string]float64{"samples": float64(len(a.Prior))},
			})
		}
	}

	if !a.At.IsZero() {
		recent := countWithin(a.At, priorTimes(a), cfg.RapidCompletionWindow)
		if recent >= cfg.RapidCompletionCount {
			signals = append(signals, Signal{
				Code:    SignalRapidCompletions,
				Rule:    RuleTypePatterns,
				Risk:    RiskMedium,
				Message: fmt.Sprintf("%d challenges completed within %s", recent+1, cfg.RapidCompletionWindow),
				Metrics: map[string]float64{"completions": float64(recent + 1), "window_s": cfg.RapidCompletionWindow.Seconds()},
			})
		}
	}

	if a.HistoryTotal >= minSuspiciousSample && a.SuspiciousTotal > 0 {
		ratio := float64(a.SuspiciousTotal) / float64(a.HistoryTotal)
		if ratio >= cfg.SuspiciousRatioThreshold {
			signals = append(signals, Signal{
				Code:    SignalSuspiciousHistory,
				Rule:    RuleTypePatterns,
				Risk:    RiskMedium,
				Message: fmt.Sprintf("%.0f%% of the user's previous submissions were suspicious", ratio*100),
				Metrics: map[string]float64{"suspicious_ratio": roundTo2Decimals(ratio)},
			})
		}
	}
	return signals
}
