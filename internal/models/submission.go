// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package models

import (
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// ProofType identifies the kind of evidence attached to a submission.
type ProofType string

const (
	ProofTypePhoto      ProofType = "photo"
	ProofTypeReceipt    ProofType = "receipt"
	ProofTypeGPSCheckin ProofType = "gps_checkin"
	ProofTypeQuestion   ProofType = "question"
)

// Valid reports whether p is one of the known proof types.
func (p ProofType) Valid() bool {
	switch p {
	case ProofTypePhoto, ProofTypeReceipt, ProofTypeGPSCheckin, ProofTypeQuestion:
		return true
	}
	return false
}

// VerificationStatus is the lifecycle state of a submission.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusApproved VerificationStatus = "approved"
	StatusRejected VerificationStatus = "rejected"
)

// Submission is a user's claim of having completed a challenge.
// It is read-only after intake except for status transitions made by review.
type Submission struct {
	ID                string             `json:"id" validate:"required"`
	ChallengeID       string             `json:"challenge_id" validate:"required"`
	UserID            string             `json:"user_id" validate:"required"`
	ProofType         ProofType          `json:"proof_type" validate:"required,oneof=photo receipt gps_checkin question"`
	ProofData         json.RawMessage    `json:"proof_data,omitempty"`
	Location          GPSCoordinate      `json:"location"`
	SubmittedAt       time.Time          `json:"submitted_at"`
	Status            VerificationStatus `json:"status"`
	FraudRiskScore    float64            `json:"fraud_risk_score"`
	ExternalPostID    string             `json:"external_post_id,omitempty"`
	ExternalCommentID string             `json:"external_comment_id,omitempty"`
}

// RecordedTime returns the server-side submission time. The device capture
// timestamp is only used for records that predate server timestamps. The
// zero time means neither is known.
func (s *Submission) RecordedTime() time.Time {
	if !s.SubmittedAt.IsZero() {
		return s.SubmittedAt
	}
	return s.DeviceTime()
}

// DeviceTime returns the client-reported capture timestamp, or the zero time.
func (s *Submission) DeviceTime() time.Time {
	if s.Location.Timestamp == nil {
		return time.Time{}
	}
	return *s.Location.Timestamp
}

// UserSubmissionHistory is the prior activity of one user, supplied fresh on
// every validation call.
type UserSubmissionHistory struct {
	UserID                string       `json:"user_id"`
	Submissions           []Submission `json:"submissions"`
	LastSubmissionAt      time.Time    `json:"last_submission_at"`
	TotalSubmissions      int          `json:"total_submissions"`
	SuspiciousSubmissions int          `json:"suspicious_submissions"`
}

// Prior returns the history's submissions excluding the one with excludeID,
// ordered oldest first. The returned slice is a copy.
func (h *UserSubmissionHistory) Prior(excludeID string) []Submission {
	if h == nil {
		return nil
	}
	out := make([]Submission, 0, len(h.Submissions))
	for i := range h.Submissions {
		if excludeID != "" && h.Submissions[i].ID == excludeID {
			continue
		}
		out = append(out, h.Submissions[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedTime().Before(out[j].RecordedTime())
	})
	return out
}

// Total returns the larger of the declared total and the number of
// submissions actually supplied.
func (h *UserSubmissionHistory) Total() int {
	if h == nil {
		return 0
	}
	if h.TotalSubmissions > len(h.Submissions) {
		return h.TotalSubmissions
	}
	return len(h.Submissions)
}
