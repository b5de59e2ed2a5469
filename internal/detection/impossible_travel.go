// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

import (
	"fmt"
	"math"

	"github.com/tomtom215/checkpoint/internal/models"
)

// ImpossibleTravelRule detects movement between the previous and current
// submission that would require travelling faster than MaxTravelSpeedMps
// (e.g., Paris to Berlin in ten minutes). Elapsed time comes from server
// timestamps; a prior recorded after the reference time counts as zero
// elapsed time.
type ImpossibleTravelRule struct{}

// Type returns the rule type.
func (ImpossibleTravelRule) Type() RuleType { return RuleTypeImpossibleTravel }

// Check compares the submission with the user's most recent usable submission.
func (ImpossibleTravelRule) Check(a *Assessment) []Signal {
	last := lastLocated(a.Prior)
	if last == nil {
		return nil
	}

	loc := a.Submission.Location
	distance := HaversineMeters(last.Location.Latitude, last.Location.Longitude, loc.Latitude, loc.Longitude)
	if distance < a.Config.MinTravelDistanceMeters {
		return nil
	}

	lastAt := last.RecordedTime()
	if lastAt.IsZero() || a.At.IsZero() {
		return []Signal{{
			Code:    SignalTravelUnverifiable,
			Rule:    RuleTypeImpossibleTravel,
			Risk:    RiskLow,
			Message: "Travel speed cannot be verified because a timestamp is missing",
			Metrics: map[string]float64{"distance_m": roundTo2Decimals(distance)},
		}}
	}

	elapsed := a.At.Sub(lastAt).Seconds()
	speed := math.Inf(1)
	if elapsed > 0 {
		speed = distance / elapsed
	}
	if speed <= a.Config.MaxTravelSpeedMps {
		return nil
	}

	metrics := map[string]float64{
		"distance_m":    roundTo2Decimals(distance),
		"elapsed_s":     roundTo2Decimals(elapsed),
		"max_speed_mps": a.Config.MaxTravelSpeedMps,
	}
	if !math.IsInf(speed, 1) {
		metrics["speed_mps"] = roundTo2Decimals(speed)
	}

	return []Signal{{
		Code: SignalImpossibleTravel,
		Rule: RuleTypeImpossibleTravel,
		Risk: RiskHigh,
		Message: fmt.Sprintf(
			"Impossible travel: %.1f km in %.0f seconds since the previous submission",
			distance/1000, math.Max(elapsed, 0),
		),
		Metrics: metrics,
	}}
}

// lastLocated returns the most recent prior submission with usable coordinates.
func lastLocated(prior []models.Submission) *models.Submission {
	for i := len(prior) - 1; i >= 0; i-- {
		loc := prior[i].Location
		if ValidateCoordinate(loc.Latitude, loc.Longitude) != nil || IsUnknownLocation(loc.Latitude, loc.Longitude) {
			continue
		}
		return &prior[i]
	}
	return nil
}
