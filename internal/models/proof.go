// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package models

import "time"

// ProofSubmission is the type-specific evidence attached to a submission.
// Exactly the member matching Type is expected to be set.
type ProofSubmission struct {
	Type     ProofType      `json:"type" validate:"required,oneof=photo receipt gps_checkin question"`
	Photo    *PhotoProof    `json:"photo,omitempty"`
	Receipt  *ReceiptProof  `json:"receipt,omitempty"`
	Question *QuestionProof `json:"question,omitempty"`
	Checkin  *CheckinProof  `json:"checkin,omitempty"`
}

// PhotoProof references an uploaded photo. Image content is not analysed.
type PhotoProof struct {
	ImageURL   string     `json:"image_url" validate:"required,url"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// ReceiptProof is a purchase receipt from the partner business.
type ReceiptProof struct {
	BusinessName string     `json:"business_name" validate:"required,max=200"`
	Timestamp    *time.Time `json:"timestamp" validate:"required"`
	Total        float64    `json:"total" validate:"gte=0"`
	ImageURL     string     `json:"image_url,omitempty" validate:"omitempty,url"`
}

// QuestionProof answers a location-specific question.
type QuestionProof struct {
	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer" validate:"max=2000"`
}

// CheckinProof is a plain GPS check-in with the time spent on site.
type CheckinProof struct {
	DwellSeconds int `json:"dwell_seconds" validate:"gte=0"`
}
