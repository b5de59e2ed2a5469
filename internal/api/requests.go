// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/checkpoint/internal/models"
	"github.com/tomtom215/checkpoint/internal/verification"
)

// ValidateSubmissionRequest is the body of POST /api/v1/submissions/validate.
// Missing pieces are not rejected here: the validator reports them as
// issues in the result.
type ValidateSubmissionRequest struct {
	Submission *models.Submission            `json:"submission"`
	Challenge  *models.Challenge             `json:"challenge"`
	History    *models.UserSubmissionHistory `json:"history,omitempty"`
	Proof      *models.ProofSubmission       `json:"proof,omitempty"`
}

// AcknowledgeAlertRequest is the body of POST .../alerts/{id}/acknowledge.
type AcknowledgeAlertRequest struct {
	AcknowledgedBy string `json:"acknowledged_by" validate:"required,max=100"`
}

// ReviewFlaggedRequest is the body of POST .../flagged/{id}/review.
type ReviewFlaggedRequest struct {
	Reviewer string `json:"reviewer" validate:"required,max=100"`
	Decision string `json:"decision" validate:"required,oneof=approved rejected escalated"`
	Notes    string `json:"notes,omitempty" validate:"max=2000"`
}

// ResolveEventRequest is the body of POST .../events/{id}/resolve.
type ResolveEventRequest struct {
	ResolvedBy string `json:"resolved_by" validate:"required,max=100"`
	Notes      string `json:"notes,omitempty" validate:"max=2000"`
}

// FlaggedQuery holds the query parameters of GET .../flagged.
type FlaggedQuery struct {
	Status string `json:"status" validate:"omitempty,oneof=pending approved rejected escalated"`
	UserID string `json:"user_id" validate:"max=200"`
	Limit  int    `json:"limit" validate:"gte=0,lte=1000"`
}

// UserEventsQuery holds the query parameters of GET .../users/{id}/events.
type UserEventsQuery struct {
	UserID string `json:"user_id" validate:"required,max=200"`
	Limit  int    `json:"limit" validate:"gte=1,lte=1000"`
}

// ValidatorConfigPatchRequest is the body of PATCH /api/v1/validator/config.
// Omitted fields keep their current value. Durations use Go syntax ("2m").
type ValidatorConfigPatchRequest struct {
	RateLimitingEnabled        *bool    `json:"rate_limiting_enabled,omitempty"`
	DuplicatePreventionEnabled *bool    `json:"duplicate_prevention_enabled,omitempty"`
	PhotoValidationEnabled     *bool    `json:"photo_validation_enabled,omitempty"`
	LocationValidationEnabled  *bool    `json:"location_validation_enabled,omitempty"`
	FraudDetectionEnabled      *bool    `json:"fraud_detection_enabled,omitempty"`
	MaxDailySubmissions        *int     `json:"max_daily_submissions,omitempty" validate:"omitempty,gte=1"`
	MinSubmissionInterval      *string  `json:"min_submission_interval,omitempty"`
	MaxGPSAccuracyMeters       *float64 `json:"max_gps_accuracy_meters,omitempty" validate:"omitempty,gt=0"`
	MinGPSAccuracyMeters       *float64 `json:"min_gps_accuracy_meters,omitempty" validate:"omitempty,gte=0"`
	MaxTravelSpeedMps          *float64 `json:"max_travel_speed_mps,omitempty" validate:"omitempty,gt=0"`
	DefaultVerificationRadius  *float64 `json:"default_verification_radius,omitempty" validate:"omitempty,gt=0"`
	MinAnswerLength            *int     `json:"min_answer_length,omitempty" validate:"omitempty,gte=0"`
}

// ToPatch converts the request into a validator patch.
func (r *ValidatorConfigPatchRequest) ToPatch() (verification.ConfigPatch, error) {
	patch := verification.ConfigPatch{
		RateLimitingEnabled:        r.RateLimitingEnabled,
		DuplicatePreventionEnabled: r.DuplicatePreventionEnabled,
		PhotoValidationEnabled:     r.PhotoValidationEnabled,
		LocationValidationEnabled:  r.LocationValidationEnabled,
		FraudDetectionEnabled:      r.FraudDetectionEnabled,
		MaxDailySubmissions:        r.MaxDailySubmissions,
		MaxGPSAccuracyMeters:       r.MaxGPSAccuracyMeters,
		MinGPSAccuracyMeters:       r.MinGPSAccuracyMeters,
		MaxTravelSpeedMps:          r.MaxTravelSpeedMps,
		DefaultVerificationRadius:  r.DefaultVerificationRadius,
		MinAnswerLength:            r.MinAnswerLength,
	}
	if r.MinSubmissionInterval != nil {
		d, err := time.ParseDuration(*r.MinSubmissionInterval)
		if err != nil {
			return verification.ConfigPatch{}, fmt.Errorf("min_submission_interval: %w", err)
		}
		if d < 0 {
			return verification.ConfigPatch{}, errors.New("min_submission_interval cannot be negative")
		}
		patch.MinSubmissionInterval = &d
	}
	return patch, nil
}

// ValidatorConfigView is the JSON form of a validator snapshot.
type ValidatorConfigView struct {
	Version                    uint64    `json:"version"`
	UpdatedAt                  time.Time `json:"updated_at"`
	RateLimitingEnabled        bool      `json:"rate_limiting_enabled"`
	DuplicatePreventionEnabled bool      `json:"duplicate_prevention_enabled"`
	PhotoValidationEnabled     bool      `json:"photo_validation_enabled"`
	LocationValidationEnabled  bool      `json:"location_validation_enabled"`
	FraudDetectionEnabled      bool      `json:"fraud_detection_enabled"`
	MaxDailySubmissions        int       `json:"max_daily_submissions"`
	MinSubmissionInterval      string    `json:"min_submission_interval"`
	MaxGPSAccuracyMeters       float64   `json:"max_gps_accuracy_meters"`
	MinGPSAccuracyMeters       float64   `json:"min_gps_accuracy_meters"`
	MaxTravelSpeedMps          float64   `json:"max_travel_speed_mps"`
	DefaultVerificationRadius  float64   `json:"default_verification_radius"`
	MinAnswerLength            int       `json:"min_answer_length"`
}

func newValidatorConfigView(s verification.Snapshot) ValidatorConfigView {
	c := s.Config
	return ValidatorConfigView{
		Version:                    s.Version,
		UpdatedAt:                  s.UpdatedAt,
		RateLimitingEnabled:        c.RateLimitingEnabled,
		DuplicatePreventionEnabled: c.DuplicatePreventionEnabled,
		PhotoValidationEnabled:     c.PhotoValidationEnabled,
		LocationValidationEnabled:  c.LocationValidationEnabled,
		FraudDetectionEnabled:      c.FraudDetectionEnabled,
		MaxDailySubmissions:        c.MaxDailySubmissions,
		MinSubmissionInterval:      c.MinSubmissionInterval.String(),
		MaxGPSAccuracyMeters:       c.MaxGPSAccuracyMeters,
		MinGPSAccuracyMeters:       c.MinGPSAccuracyMeters,
		MaxTravelSpeedMps:          c.MaxTravelSpeedMps,
		DefaultVerificationRadius:  c.DefaultVerificationRadius,
		MinAnswerLength:            c.MinAnswerLength,
	}
}
