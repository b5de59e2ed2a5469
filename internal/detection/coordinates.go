// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

import "fmt"

// checkInput rejects submissions that cannot be reasoned about at all.
// It runs before every rule so no distance math ever sees bad coordinates.
func checkInput(in *Input) []Signal {
	sub := in.Submission
	if sub == nil {
		return []Signal{{
			Code:    SignalMissingRequiredFields,
			Risk:    RiskHigh,
			Message: "Submission is missing",
		}}
	}

	var signals []Signal
	if sub.UserID == "" || sub.ChallengeID == "" {
		signals = append(signals, Signal{
			Code:    SignalMissingRequiredFields,
			Risk:    RiskHigh,
			Message: "Submission is missing its user or challenge identifier",
		})
	}

	loc := sub.Location
	if err := ValidateCoordinate(loc.Latitude, loc.Longitude); err != nil {
		signals = append(signals, Signal{
			Code:    SignalInvalidCoordinates,
			Risk:    RiskHigh,
			Message: fmt.Sprintf("Invalid GPS coordinates: %v", err),
		})
	} else if err := ValidateAccuracy(loc.Accuracy); err != nil {
		signals = append(signals, Signal{
			Code:    SignalInvalidCoordinates,
			Risk:    RiskHigh,
			Message: fmt.Sprintf("Invalid GPS coordinates: %v", err),
		})
	}
	return signals
}
