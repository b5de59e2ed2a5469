// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package verification

import (
	"errors"
	"time"

	"github.com/tomtom215/checkpoint/internal/detection"
)

// Config is the validator policy. Toggles switch whole check families on
// or off; the numeric fields are forwarded to the fraud detector.
type Config struct {
	RateLimitingEnabled        bool `koanf:"rate_limiting_enabled" json:"rate_limiting_enabled"`
	DuplicatePreventionEnabled bool `koanf:"duplicate_prevention_enabled" json:"duplicate_prevention_enabled"`
	PhotoValidationEnabled     bool `koanf:"photo_validation_enabled" json:"photo_validation_enabled"`
	LocationValidationEnabled  bool `koanf:"location_validation_enabled" json:"location_validation_enabled"`
	FraudDetectionEnabled      bool `koanf:"fraud_detection_enabled" json:"fraud_detection_enabled"`

	// MaxDailySubmissions caps submissions per user in a trailing 24h window.
	MaxDailySubmissions int `koanf:"max_daily_submissions" json:"max_daily_submissions"`

	// MinSubmissionInterval is the shortest allowed gap between two
	// submissions from the same user.
	MinSubmissionInterval time.Duration `koanf:"min_submission_interval" json:"min_submission_interval"`

	// MaxGPSAccuracyMeters and MinGPSAccuracyMeters bound a plausible
	// reported accuracy. Above the max is poor accuracy, below the min is
	// treated as a spoofing indicator.
	MaxGPSAccuracyMeters float64 `koanf:"max_gps_accuracy_meters" json:"max_gps_accuracy_meters"`
	MinGPSAccuracyMeters float64 `koanf:"min_gps_accuracy_meters" json:"min_gps_accuracy_meters"`

	MaxTravelSpeedMps float64 `koanf:"max_travel_speed_mps" json:"max_travel_speed_mps"`

	// DefaultVerificationRadius applies when a challenge sets no radius.
	DefaultVerificationRadius float64 `koanf:"default_verification_radius" json:"default_verification_radius"`

	// MinAnswerLength applies when a challenge sets no minimum.
	MinAnswerLength int `koanf:"min_answer_length" json:"min_answer_length"`
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	d := detection.DefaultConfig()
	return Config{
		RateLimitingEnabled:        true,
		DuplicatePreventionEnabled: true,
		PhotoValidationEnabled:     true,
		LocationValidationEnabled:  true,
		FraudDetectionEnabled:      true,
		MaxDailySubmissions:        d.MaxDailySubmissions,
		MinSubmissionInterval:      d.MinSubmissionInterval,
		MaxGPSAccuracyMeters:       d.MaxAccuracyMeters,
		MinGPSAccuracyMeters:       d.MinAccuracyMeters,
		MaxTravelSpeedMps:          d.MaxTravelSpeedMps,
		DefaultVerificationRadius:  100,
		MinAnswerLength:            3,
	}
}

// Validate checks the policy on its own and as a detector configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.DefaultVerificationRadius <= 0 {
		errs = append(errs, errors.New("default_verification_radius must be positive"))
	}
	if c.MinAnswerLength < 0 {
		errs = append(errs, errors.New("min_answer_length cannot be negative"))
	}
	dc := c.DetectorConfig()
	if err := dc.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DetectorConfig derives the fraud detector configuration. Thresholds the
// validator does not expose keep the detector defaults.
func (c *Config) DetectorConfig() detection.Config {
	d := detection.DefaultConfig()
	d.CadenceEnabled = c.RateLimitingEnabled
	d.DuplicateCheckEnabled = c.DuplicatePreventionEnabled
	d.MaxDailySubmissions = c.MaxDailySubmissions
	d.MinSubmissionInterval = c.MinSubmissionInterval
	d.MaxAccuracyMeters = c.MaxGPSAccuracyMeters
	d.MinAccuracyMeters = c.MinGPSAccuracyMeters
	d.MaxTravelSpeedMps = c.MaxTravelSpeedMps

	// Keep the low-risk accuracy bar inside the configured bounds.
	d.GoodAccuracyMeters = min(max(d.GoodAccuracyMeters, d.MinAccuracyMeters), d.MaxAccuracyMeters)
	return d
}

// ConfigPatch is a partial update. Nil fields leave the current value.
type ConfigPatch struct {
	RateLimitingEnabled        *bool
	DuplicatePreventionEnabled *bool
	PhotoValidationEnabled     *bool
	LocationValidationEnabled  *bool
	FraudDetectionEnabled      *bool
	MaxDailySubmissions        *int
	MinSubmissionInterval      *time.Duration
	MaxGPSAccuracyMeters       *float64
	MinGPSAccuracyMeters       *float64
	MaxTravelSpeedMps          *float64
	DefaultVerificationRadius  *float64
	MinAnswerLength            *int
}

// IsEmpty reports whether the patch changes nothing.
func (p ConfigPatch) IsEmpty() bool {
	return p == ConfigPatch{}
}

// Apply returns a copy of c with the patch applied.
func (p ConfigPatch) Apply(c Config) Config {
	setIf(&c.RateLimitingEnabled, p.RateLimitingEnabled)
	setIf(&c.DuplicatePreventionEnabled, p.DuplicatePreventionEnabled)
	setIf(&c.PhotoValidationEnabled, p.PhotoValidationEnabled)
	setIf(&c.LocationValidationEnabled, p.LocationValidationEnabled)
	setIf(&c.FraudDetectionEnabled, p.FraudDetectionEnabled)
	setIf(&c.MaxDailySubmissions, p.MaxDailySubmissions)
	setIf(&c.MinSubmissionInterval, p.MinSubmissionInterval)
	setIf(&c.MaxGPSAccuracyMeters, p.MaxGPSAccuracyMeters)
	setIf(&c.MinGPSAccuracyMeters, p.MinGPSAccuracyMeters)
	setIf(&c.MaxTravelSpeedMps, p.MaxTravelSpeedMps)
	setIf(&c.DefaultVerificationRadius, p.DefaultVerificationRadius)
	setIf(&c.MinAnswerLength, p.MinAnswerLength)
	return c
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Snapshot is one published version of the policy.
type Snapshot struct {
	Version   uint64    `json:"version"`
	Config    Config    `json:"config"`
	UpdatedAt time.Time `json:"updated_at"`
}
