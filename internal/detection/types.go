// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

import (
	"time"

	"github.com/tomtom215/checkpoint/internal/models"
)

// RuleType identifies a detection rule.
type RuleType string

const (
	RuleTypeSpoofing         RuleType = "spoofing"
	RuleTypeAccuracy         RuleType = "accuracy"
	RuleTypeImpossibleTravel RuleType = "impossible_travel"
	RuleTypeCadence          RuleType = "cadence"
	RuleTypeDuplicate        RuleType = "duplicate"
	RuleTypePatterns         RuleType = "patterns"
	RuleTypeClockSkew        RuleType = "clock_skew"
)

// Risk is a coarse fraud risk level.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Rank orders risk levels so they can be compared.
func (r Risk) Rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// Action is the recommended handling of a submission.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReview  Action = "review"
	ActionReject  Action = "reject"
)

// SignalCode is the machine-stable identifier of a heuristic finding.
type SignalCode string

const (
	SignalInvalidCoordinates    SignalCode = "INVALID_COORDINATES"
	SignalMissingRequiredFields SignalCode = "MISSING_REQUIRED_FIELDS"
	SignalExactTargetMatch      SignalCode = "EXACT_TARGET_MATCH"
	SignalUnrealisticAccuracy   SignalCode = "UNREALISTIC_ACCURACY"
	SignalKnownSpoofLocation    SignalCode = "KNOWN_SPOOF_LOCATION"
	SignalPoorAccuracy          SignalCode = "POOR_ACCURACY"
	SignalImpossibleTravel      SignalCode = "IMPOSSIBLE_TRAVEL"
	SignalTravelUnverifiable    SignalCode = "TRAVEL_UNVERIFIABLE"
	SignalDailyLimitExceeded    SignalCode = "DAILY_LIMIT_EXCEEDED"
	SignalSubmissionTooFrequent SignalCode = "SUBMISSION_TOO_FREQUENT"
	SignalRegularIntervals      SignalCode = "REGULAR_INTERVALS"
	SignalDuplicateChallenge    SignalCode = "DUPLICATE_CHALLENGE"
	SignalProofTypeHomogeneity  SignalCode = "PROOF_TYPE_HOMOGENEITY"
	SignalRapidCompletions      SignalCode = "RAPID_COMPLETIONS"
	SignalSuspiciousHistory     SignalCode = "SUSPICIOUS_HISTORY"
	SignalLimitedEvidence       SignalCode = "LIMITED_EVIDENCE"
	SignalTimestampSkew         SignalCode = "TIMESTAMP_SKEW"
)

// Signal is one heuristic finding. Message is human-readable and becomes a
// reason on the Result; Metrics holds the numbers that produced it.
type Signal struct {
	Code    SignalCode         `json:"code"`
	Rule    RuleType           `json:"rule,omitempty"`
	Risk    Risk               `json:"risk"`
	Message string             `json:"message"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Result is the outcome of assessing one submission.
type Result struct {
	IsValid           bool     `json:"is_valid"`
	FraudRisk         Risk     `json:"fraud_risk"`
	Confidence        float64  `json:"confidence"`
	Reasons           []string `json:"reasons"`
	Signals           []Signal `json:"signals"`
	RecommendedAction Action   `json:"recommended_action"`
}

// Has reports whether the result carries a signal with the given code.
func (r *Result) Has(code SignalCode) bool {
	for i := range r.Signals {
		if r.Signals[i].Code == code {
			return true
		}
	}
	return false
}

// Input is everything the detector needs for one assessment.
type Input struct {
	Submission        *models.Submission
	History           *models.UserSubmissionHistory
	ChallengeLocation models.GPSCoordinate

	// Now is the server-side reference time. When zero the submission's
	// SubmittedAt is used, then the wall clock. The device capture
	// timestamp never sets it.
	Now time.Time
}

// Assessment is the prepared view of an Input that rules evaluate.
type Assessment struct {
	Submission        *models.Submission
	ChallengeLocation models.GPSCoordinate
	// Prior holds the user's earlier submissions, oldest first, excluding
	// the submission under assessment.
	Prior []models.Submission
	// HistoryTotal and SuspiciousTotal come from the history aggregate.
	HistoryTotal    int
	SuspiciousTotal int
	// At is the server-side reference time of the submission. Every window
	// and elapsed time is measured from it.
	At     time.Time
	Config *Config
}

// Rule is a single fraud heuristic.
type Rule interface {
	Type() RuleType
	Check(a *Assessment) []Signal
}
