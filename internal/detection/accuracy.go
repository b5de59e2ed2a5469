// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

import "fmt"

// AccuracyRule judges the device-reported accuracy radius.
// A missing accuracy produces no signal; it only limits how low the final
// risk may go.
type AccuracyRule struct{}

// Type returns the rule type.
func (AccuracyRule) Type() RuleType { return RuleTypeAccuracy }

// Check evaluates the reported accuracy.
func (AccuracyRule) Check(a *Assessment) []Signal {
	acc, ok := a.Submission.Location.AccuracyMeters()
	if !ok {
		return nil
	}

	switch {
	case acc < a.Config.MinAccuracyMeters:
		return []Signal{{
			Code:    SignalUnrealisticAccuracy,
			Rule:    RuleTypeAccuracy,
			Risk:    RiskHigh,
			Message: fmt.Sprintf("GPS accuracy of %.2fm is unrealistically precise", acc),
			Metrics: map[string]float64{"accuracy_m": acc, "min_accuracy_m": a.Config.MinAccuracyMeters},
		}}
	case acc > a.Config.MaxAccuracyMeters:
		return []Signal{{
			Code:    SignalPoorAccuracy,
			Rule:    RuleTypeAccuracy,
			Risk:    RiskMedium,
			Message: fmt.Sprintf("GPS accuracy of %.0fm is too poor to confirm the visit", acc),
			Metrics: map[string]float64{"accuracy_m": acc, "max_accuracy_m": a.Config.MaxAccuracyMeters},
		}}
	}
	return nil
}
