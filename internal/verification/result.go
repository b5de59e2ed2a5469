// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package verification

import (
	"time"

	"github.com/tomtom215/checkpoint/internal/detection"
	"github.com/tomtom215/checkpoint/internal/models"
)

// Issue is one itemized error or warning.
type Issue = models.ValidationIssue

// Decision is the final verdict on a submission.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReview  Decision = "review"
	DecisionReject  Decision = "reject"
)

// Result is the outcome of one Validate call. It is not modified after
// Validate returns.
type Result struct {
	IsValid    bool              `json:"is_valid"`
	Errors     []Issue           `json:"errors"`
	Warnings   []Issue           `json:"warnings"`
	Decision   Decision          `json:"decision"`
	FraudRisk  detection.Risk    `json:"fraud_risk"`
	Confidence float64           `json:"confidence"`
	Fraud      *detection.Result `json:"fraud,omitempty"`

	// EventIDs are the security events logged while reporting the result.
	EventIDs []string `json:"event_ids,omitempty"`
	// Flagged is set when the submission was queued for human review.
	Flagged bool `json:"flagged"`

	ConfigVersion uint64    `json:"config_version"`
	ValidatedAt   time.Time `json:"validated_at"`
}

// HasError reports whether the result carries an error with the code.
func (r *Result) HasError(code models.ErrorCode) bool {
	return hasCode(r.Errors, code)
}

// HasWarning reports whether the result carries a warning with the code.
func (r *Result) HasWarning(code models.ErrorCode) bool {
	return hasCode(r.Warnings, code)
}

// Messages returns the error messages in order, for user-facing output.
func (r *Result) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for i := range r.Errors {
		out = append(out, r.Errors[i].Message)
	}
	return out
}

func (r *Result) addError(issue Issue) {
	if issue.Field == "" {
		issue.Field = fieldForCode(issue.Code)
	}
	if containsIssue(r.Errors, issue) {
		return
	}
	r.Errors = append(r.Errors, issue)
}

func (r *Result) addWarning(issue Issue) {
	if issue.Field == "" {
		issue.Field = fieldForCode(issue.Code)
	}
	if containsIssue(r.Warnings, issue) || containsIssue(r.Errors, issue) {
		return
	}
	r.Warnings = append(r.Warnings, issue)
}

// finalize derives IsValid and Decision from the collected issues.
func (r *Result) finalize() {
	r.IsValid = len(r.Errors) == 0
	switch {
	case len(r.Errors) > 0:
		r.Decision = DecisionReject
	case len(r.Warnings) > 0:
		r.Decision = DecisionReview
	default:
		r.Decision = DecisionApprove
	}
	if r.Errors == nil {
		r.Errors = []Issue{}
	}
	if r.Warnings == nil {
		r.Warnings = []Issue{}
	}
}

func hasCode(issues []Issue, code models.ErrorCode) bool {
	for i := range issues {
		if issues[i].Code == code {
			return true
		}
	}
	return false
}

// containsIssue treats two issues with the same code and field as the same
// finding, so the location pass and the detector never double-report.
func containsIssue(issues []Issue, issue Issue) bool {
	for i := range issues {
		if issues[i].Code == issue.Code && issues[i].Field == issue.Field {
			return true
		}
	}
	return false
}
