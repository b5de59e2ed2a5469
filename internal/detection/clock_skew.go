// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

import (
	"fmt"
	"time"
)

// ClockSkewRule compares the device capture timestamp with server time.
// Mock-location tools and replayed fixes commonly carry a timestamp far in
// the past or future.
type ClockSkewRule struct{}

// Type returns the rule type.
func (ClockSkewRule) Type() RuleType { return RuleTypeClockSkew }

// Check flags a device timestamp outside MaxClockSkew of the reference time.
func (ClockSkewRule) Check(a *Assessment) []Signal {
	device := a.Submission.DeviceTime()
	if a.Config.MaxClockSkew <= 0 || device.IsZero() || a.At.IsZero() {
		return nil
	}

	skew := device.Sub(a.At)
	abs := absDuration(skew)
	if abs <= a.Config.MaxClockSkew {
		return nil
	}

	direction := "ahead of"
	if skew < 0 {
		direction = "behind"
	}
	return []Signal{{
		Code: SignalTimestampSkew,
		Rule: RuleTypeClockSkew,
		Risk: RiskHigh,
		Message: fmt.Sprintf("Device timestamp is %s %s server time (maximum %s)",
			abs.Round(time.Second), direction, a.Config.MaxClockSkew),
		Metrics: map[string]float64{"skew_s": skew.Seconds(), "max_skew_s": a.Config.MaxClockSkew.Seconds()},
	}}
}
