// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package models

// ErrorCode is a stable, machine-readable validation outcome code.
// Clients and the security monitor branch on these values; never rename them.
type ErrorCode string

const (
	// Fraud-derived codes.
	CodeFraudDetected       ErrorCode = "FRAUD_DETECTED"
	CodeGPSSpoofingDetected ErrorCode = "GPS_SPOOFING_DETECTED"
	CodeImpossibleTravel    ErrorCode = "IMPOSSIBLE_TRAVEL"
	CodeRateLimitExceeded   ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeDuplicateSubmission ErrorCode = "DUPLICATE_SUBMISSION"
	CodePoorGPSAccuracy     ErrorCode = "POOR_GPS_ACCURACY"
	CodeSuspiciousPattern   ErrorCode = "SUSPICIOUS_PATTERN"

	// Location policy codes.
	CodeInvalidGPSCoordinates ErrorCode = "INVALID_GPS_COORDINATES"
	CodeLocationTooFar        ErrorCode = "LOCATION_TOO_FAR"

	// Structural proof codes.
	CodeMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"
	CodeInvalidProofData     ErrorCode = "INVALID_PROOF_DATA"
	CodeMissingPhoto         ErrorCode = "MISSING_PHOTO"
	CodeInvalidReceipt       ErrorCode = "INVALID_RECEIPT"
	CodeAnswerTooShort       ErrorCode = "ANSWER_TOO_SHORT"
	CodeProofTypeNotAllowed  ErrorCode = "PROOF_TYPE_NOT_ALLOWED"
	CodeChallengeInactive    ErrorCode = "CHALLENGE_INACTIVE"

	// CodeValidationSystemError means validation could not complete; the
	// submission is rejected.
	CodeValidationSystemError ErrorCode = "VALIDATION_SYSTEM_ERROR"
)

// IssueSource records which validation stage produced an issue.
type IssueSource string

const (
	SourceProof    IssueSource = "proof"
	SourceLocation IssueSource = "location"
	SourceFraud    IssueSource = "fraud"
	SourceSystem   IssueSource = "system"
)

// ValidationIssue is one error or warning on a validation result.
type ValidationIssue struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
	Source  IssueSource `json:"source"`
	// Signal is the detector signal code for fraud-derived issues.
	Signal string `json:"signal,omitempty"`
}
