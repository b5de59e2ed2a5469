// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package monitor

import (
	"github.com/tomtom215/checkpoint/internal/detection"
	"github.com/tomtom215/checkpoint/internal/models"
)

func isSpoofingSignal(code detection.SignalCode) bool {
	switch code {
	case detection.SignalExactTargetMatch, detection.SignalUnrealisticAccuracy, detection.SignalKnownSpoofLocation,
		detection.SignalTimestampSkew:
		return true
	}
	return false
}

// severityForRisk maps detector risk onto event severity.
func severityForRisk(r detection.Risk) Severity {
	switch r {
	case detection.RiskHigh:
		return SeverityHigh
	case detection.RiskMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// classifySignal maps a detector signal to the event it is logged as.
// spoofingSignals is the number of distinct spoofing signals on the same
// result; two or more corroborating spoofing signals escalate to critical.
func classifySignal(sig *detection.Signal, spoofingSignals int) (EventType, Severity) {
	switch sig.Code {
	case detection.SignalExactTargetMatch, detection.SignalUnrealisticAccuracy, detection.SignalKnownSpoofLocation,
		detection.SignalTimestampSkew:
		if spoofingSignals >= 2 {
			return EventGPSSpoofing, SeverityCritical
		}
		return EventGPSSpoofing, SeverityHigh
	case detection.SignalImpossibleTravel:
		return EventImpossibleTravel, SeverityHigh
	case detection.SignalDailyLimitExceeded, detection.SignalSubmissionTooFrequent:
		return EventRateLimitExceeded, SeverityMedium
	case detection.SignalDuplicateChallenge:
		return EventDuplicateSubmission, SeverityMedium
	case detection.SignalPoorAccuracy:
		return EventPoorGPSAccuracy, SeverityLow
	case detection.SignalRegularIntervals, detection.SignalRapidCompletions:
		return EventAutomatedBehavior, severityForRisk(sig.Risk)
	case detection.SignalProofTypeHomogeneity, detection.SignalSuspiciousHistory:
		return EventSuspiciousPattern, SeverityLow
	case detection.SignalInvalidCoordinates, detection.SignalMissingRequiredFields:
		return EventValidationFailure, SeverityMedium
	default:
		return EventFraudDetected, severityForRisk(sig.Risk)
	}
}

// classifyIssue maps a non-fraud validation error to an event.
func classifyIssue(issue *models.ValidationIssue) (EventType, Severity) {
	switch {
	case issue.Code == models.CodeValidationSystemError || issue.Source == models.SourceSystem:
		return EventSystemError, SeverityHigh
	case issue.Code == models.CodeLocationTooFar:
		return EventLocationMismatch, SeverityMedium
	case issue.Code == models.CodeInvalidGPSCoordinates:
		return EventValidationFailure, SeverityMedium
	default:
		return EventValidationFailure, SeverityLow
	}
}
