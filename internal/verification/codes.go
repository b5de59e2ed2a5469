// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package verification

import (
	"github.com/tomtom215/checkpoint/internal/detection"
	"github.com/tomtom215/checkpoint/internal/models"
)

// signalCodes maps detector signals to the error codes callers see.
// Signals not listed here surface as FRAUD_DETECTED.
var signalCodes = map[detection.SignalCode]models.ErrorCode{
	detection.SignalInvalidCoordinates:    models.CodeInvalidGPSCoordinates,
	detection.SignalMissingRequiredFields: models.CodeMissingRequiredField,
	detection.SignalExactTargetMatch:      models.CodeGPSSpoofingDetected,
	detection.SignalUnrealisticAccuracy:   models.CodeGPSSpoofingDetected,
	detection.SignalKnownSpoofLocation:    models.CodeGPSSpoofingDetected,
	detection.SignalTimestampSkew:         models.CodeGPSSpoofingDetected,
	detection.SignalImpossibleTravel:      models.CodeImpossibleTravel,
	detection.SignalDailyLimitExceeded:    models.CodeRateLimitExceeded,
	detection.SignalSubmissionTooFrequent: models.CodeRateLimitExceeded,
	detection.SignalDuplicateChallenge:    models.CodeDuplicateSubmission,
	detection.SignalPoorAccuracy:          models.CodePoorGPSAccuracy,
	detection.SignalRegularIntervals:      models.CodeSuspiciousPattern,
	detection.SignalRapidCompletions:      models.CodeSuspiciousPattern,
	detection.SignalProofTypeHomogeneity:  models.CodeSuspiciousPattern,
}

// CodeForSignal returns the ErrorCode reported for a detector signal.
func CodeForSignal(code detection.SignalCode) models.ErrorCode {
	if c, ok := signalCodes[code]; ok {
		return c
	}
	return models.CodeFraudDetected
}

// fieldForCode names the submission field an error code refers to, if any.
func fieldForCode(code models.ErrorCode) string {
	switch code {
	case models.CodeInvalidGPSCoordinates, models.CodePoorGPSAccuracy,
		models.CodeLocationTooFar, models.CodeGPSSpoofingDetected:
		return "location"
	case models.CodeMissingPhoto:
		return "photo.image_url"
	case models.CodeInvalidReceipt:
		return "receipt"
	case models.CodeAnswerTooShort:
		return "question.answer"
	case models.CodeProofTypeNotAllowed:
		return "proof_type"
	}
	return ""
}
