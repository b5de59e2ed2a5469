// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

import "fmt"

// SpoofingRule flags coordinates no real device would report: a bit-exact
// copy of the challenge location, or a known emulator default.
type SpoofingRule struct{}

// Type returns the rule type.
func (SpoofingRule) Type() RuleType { return RuleTypeSpoofing }

// Check evaluates the submission location.
func (SpoofingRule) Check(a *Assessment) []Signal {
	var signals []Signal
	loc := a.Submission.Location
	target := a.ChallengeLocation

	if ValidateCoordinate(target.Latitude, target.Longitude) == nil &&
		loc.Latitude == target.Latitude && loc.Longitude == target.Longitude {
		signals = append(signals, Signal{
			Code:    SignalExactTargetMatch,
			Rule:    RuleTypeSpoofing,
			Risk:    RiskHigh,
			Message: "GPS coordinates exactly match the challenge location",
		})
	}

	for _, spoof := range a.Config.KnownSpoofLocations {
		d := HaversineMeters(loc.Latitude, loc.Longitude, spoof.Latitude, spoof.Longitude)
		if d <= a.Config.SpoofMatchRadiusMeters {
			signals = append(signals, Signal{
				Code:    SignalKnownSpoofLocation,
				Rule:    RuleTypeSpoofing,
				Risk:    RiskHigh,
				Message: fmt.Sprintf("GPS coordinates match a known spoofing location (%s)", spoof.Name),
				Metrics: map[string]float64{"distance_m": roundTo2Decimals(d)},
			})
			break
		}
	}
	return signals
}
