// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// SpoofLocation is a coordinate commonly produced by emulators,
// simulators or mock-location apps.
type SpoofLocation struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Config holds every tunable threshold of the detector. A Config is treated
// as immutable once handed to NewDetector.
type Config struct {
	// MaxTravelSpeedMps is the fastest plausible movement between two
	// submissions (default: 200 m/s, roughly a commercial flight).
	MaxTravelSpeedMps float64 `json:"max_travel_speed_mps"`

	// MinTravelDistanceMeters ignores GPS jitter between nearby submissions.
	MinTravelDistanceMeters float64 `json:"min_travel_distance_meters"`

	// MinAccuracyMeters is the floor below which a reported accuracy is
	// implausible for consumer hardware.
	MinAccuracyMeters float64 `json:"min_accuracy_meters"`

	// MaxAccuracyMeters is the ceiling above which a fix is too poor to trust.
	MaxAccuracyMeters float64 `json:"max_accuracy_meters"`

	// GoodAccuracyMeters is the accuracy needed before a result may be low risk.
	GoodAccuracyMeters float64 `json:"good_accuracy_meters"`

	// KnownSpoofLocations is the denylist and SpoofMatchRadiusMeters the
	// distance within which a submission matches an entry.
	KnownSpoofLocations    []SpoofLocation `json:"known_spoof_locations"`
	SpoofMatchRadiusMeters float64         `json:"spoof_match_radius_meters"`

	// CadenceEnabled turns the rate limiting heuristics on or off.
	CadenceEnabled        bool          `json:"cadence_enabled"`
	MaxDailySubmissions   int           `json:"max_daily_submissions"`
	MinSubmissionInterval time.Duration `json:"min_submission_interval"`

	// RegularityMinIntervals is how many consecutive intervals are needed
	// before interval regularity is judged; RegularityMaxVariation is the
	// coefficient of variation below which they look automated.
	RegularityMinIntervals int     `json:"regularity_min_intervals"`
	RegularityMaxVariation float64 `json:"regularity_max_variation"`

	// DuplicateCheckEnabled turns duplicate challenge detection on or off.
	DuplicateCheckEnabled bool `json:"duplicate_check_enabled"`

	HomogeneityMinSamples    int           `json:"homogeneity_min_samples"`
	RapidCompletionCount     int           `json:"rapid_completion_count"`
	RapidCompletionWindow    time.Duration `json:"rapid_completion_window"`
	SuspiciousRatioThreshold float64       `json:"suspicious_ratio_threshold"`

	// MaxClockSkew is how far the device capture timestamp may drift from
	// server time in either direction. Zero disables the check.
	MaxClockSkew time.Duration `json:"max_clock_skew"`

	// EstablishedHistoryMin is the number of prior submissions a user needs
	// before a clean result can be low risk.
	EstablishedHistoryMin int `json:"established_history_min"`
}

// DefaultSpoofLocations returns the built-in spoofing denylist.
func DefaultSpoofLocations() []SpoofLocation {
	return []SpoofLocation{
		{Name: "null island", Latitude: 0, Longitude: 0},
		{Name: "android emulator default", Latitude: 37.4220, Longitude: -122.0841},
		{Name: "ios simulator default", Latitude: 37.785834, Longitude: -122.406417},
		{Name: "ios simulator apple park", Latitude: 37.33233, Longitude: -122.03121},
	}
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTravelSpeedMps:        200,
		MinTravelDistanceMeters:  1000,
		MinAccuracyMeters:        0.5,
		MaxAccuracyMeters:        100,
		GoodAccuracyMeters:       25,
		KnownSpoofLocations:      DefaultSpoofLocations(),
		SpoofMatchRadiusMeters:   10,
		CadenceEnabled:           true,
		MaxDailySubmissions:      50,
		MinSubmissionInterval:    2 * time.Minute,
		RegularityMinIntervals:   5,
		RegularityMaxVariation:   0.05,
		DuplicateCheckEnabled:    true,
		HomogeneityMinSamples:    10,
		RapidCompletionCount:     5,
		RapidCompletionWindow:    time.Hour,
		SuspiciousRatioThreshold: 0.3,
		MaxClockSkew:             10 * time.Minute,
		EstablishedHistoryMin:    10,
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxTravelSpeedMps <= 0 {
		errs = append(errs, errors.New("max_travel_speed_mps must be positive"))
	}
	if c.MinTravelDistanceMeters < 0 {
		errs = append(errs, errors.New("min_travel_distance_meters cannot be negative"))
	}
	if c.MinAccuracyMeters < 0 {
		errs = append(errs, errors.New("min_accuracy_meters cannot be negative"))
	}
	if c.MaxAccuracyMeters <= c.MinAccuracyMeters {
		errs = append(errs, errors.New("max_accuracy_meters must exceed min_accuracy_meters"))
	}
	if c.GoodAccuracyMeters < c.MinAccuracyMeters || c.GoodAccuracyMeters > c.MaxAccuracyMeters {
		errs = append(errs, errors.New("good_accuracy_meters must lie between min and max accuracy"))
	}
	if c.SpoofMatchRadiusMeters < 0 {
		errs = append(errs, errors.New("spoof_match_radius_meters cannot be negative"))
	}
	for _, loc := range c.KnownSpoofLocations {
		if err := ValidateCoordinate(loc.Latitude, loc.Longitude); err != nil {
			errs = append(errs, fmt.Errorf("known spoof location %q: %w", loc.Name, err))
		}
	}
	if c.MaxDailySubmissions <= 0 {
		errs = append(errs, errors.New("max_daily_submissions must be positive"))
	}
	if c.MinSubmissionInterval < 0 {
		errs = append(errs, errors.New("min_submission_interval cannot be negative"))
	}
	if c.RegularityMinIntervals < 2 {
		errs = append(errs, errors.New("regularity_min_intervals must be at least 2"))
	}
	if c.RegularityMaxVariation < 0 {
		errs = append(errs, errors.New("regularity_max_variation cannot be negative"))
	}
	if c.HomogeneityMinSamples < 1 || c.RapidCompletionCount < 1 {
		errs = append(errs, errors.New("homogeneity_min_samples and rapid_completion_count must be positive"))
	}
	if c.RapidCompletionWindow <= 0 {
		errs = append(errs, errors.New("rapid_completion_window must be positive"))
	}
	if c.SuspiciousRatioThreshold <= 0 || c.SuspiciousRatioThreshold > 1 {
		errs = append(errs, errors.New("suspicious_ratio_threshold must be in (0, 1]"))
	}
	if c.MaxClockSkew < 0 {
		errs = append(errs, errors.New("max_clock_skew cannot be negative"))
	}
	if c.EstablishedHistoryMin < 0 {
		errs = append(errs, errors.New("established_history_min cannot be negative"))
	}
	return errors.Join(errs...)
}

// ParseConfig decodes a JSON document on top of DefaultConfig and validates it.
func ParseConfig(raw json.RawMessage) (Config, error) {
	cfg := DefaultConfig()
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
