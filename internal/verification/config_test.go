// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package verification

import (
	"testing"
	"time"

	"github.com/tomtom215/checkpoint/internal/detection"
	"github.com/tomtom215/checkpoint/internal/models"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if !cfg.RateLimitingEnabled || !cfg.DuplicatePreventionEnabled || !cfg.FraudDetectionEnabled {
		t.Error("checks must be enabled by default")
	}
	if cfg.DefaultVerificationRadius != 100 || cfg.MinAnswerLength != 3 {
		t.Errorf("unexpected defaults: radius=%v answer=%d", cfg.DefaultVerificationRadius, cfg.MinAnswerLength)
	}
}

func TestConfig_DetectorConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitingEnabled = false
	cfg.DuplicatePreventionEnabled = false
	cfg.MaxDailySubmissions = 20
	cfg.MinSubmissionInterval = 5 * time.Minute
	cfg.MaxTravelSpeedMps = 90
	cfg.MaxGPSAccuracyMeters = 15

	d := cfg.DetectorConfig()
	if d.CadenceEnabled || d.DuplicateCheckEnabled {
		t.Error("toggles were not forwarded")
	}
	if d.MaxDailySubmissions != 20 || d.MinSubmissionInterval != 5*time.Minute || d.MaxTravelSpeedMps != 90 {
		t.Errorf("numeric policy not forwarded: %+v", d)
	}
	if d.GoodAccuracyMeters != 15 {
		t.Errorf("GoodAccuracyMeters = %v, want it clamped to the max of 15", d.GoodAccuracyMeters)
	}
	if d.RegularityMinIntervals != detection.DefaultConfig().RegularityMinIntervals {
		t.Error("unexposed thresholds must keep detector defaults")
	}
	if err := d.Validate(); err != nil {
		t.Errorf("derived detector config invalid: %v", err)
	}
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero radius", func(c *Config) { c.DefaultVerificationRadius = 0 }},
		{"negative answer length", func(c *Config) { c.MinAnswerLength = -1 }},
		{"zero daily cap", func(c *Config) { c.MaxDailySubmissions = 0 }},
		{"inverted accuracy bounds", func(c *Config) {
			c.MinGPSAccuracyMeters = 50
			c.MaxGPSAccuracyMeters = 10
		}},
		{"zero speed", func(c *Config) { c.MaxTravelSpeedMps = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigPatch_Apply(t *testing.T) {
	base := DefaultConfig()
	off := false
	limit := 10
	interval := time.Minute

	patch := ConfigPatch{PhotoValidationEnabled: &off, MaxDailySubmissions: &limit, MinSubmissionInterval: &interval}
	got := patch.Apply(base)

	if got.PhotoValidationEnabled || got.MaxDailySubmissions != 10 || got.MinSubmissionInterval != time.Minute {
		t.Errorf("patch not applied: %+v", got)
	}
	if got.MaxTravelSpeedMps != base.MaxTravelSpeedMps || !got.RateLimitingEnabled {
		t.Error("unset fields must keep their value")
	}
	if !base.PhotoValidationEnabled {
		t.Error("Apply modified its input")
	}
	if !(ConfigPatch{}).IsEmpty() || patch.IsEmpty() {
		t.Error("IsEmpty() mismatch")
	}
}

func TestUpdateConfig_Versioning(t *testing.T) {
	v := newTestValidator(t, DefaultConfig())

	if got := v.Config(); got.Version != 1 {
		t.Fatalf("initial version = %d, want 1", got.Version)
	}

	snap, err := v.UpdateConfig(ConfigPatch{})
	if err != nil || snap.Version != 1 {
		t.Fatalf("empty patch: version=%d err=%v", snap.Version, err)
	}

	limit := 5
	snap, err = v.UpdateConfig(ConfigPatch{MaxDailySubmissions: &limit})
	if err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if snap.Version != 2 || snap.Config.MaxDailySubmissions != 5 {
		t.Errorf("snapshot = %+v", snap)
	}

	zero := 0
	if _, err := v.UpdateConfig(ConfigPatch{MaxDailySubmissions: &zero}); err == nil {
		t.Fatal("expected error for invalid patch")
	}
	if got := v.Config(); got.Version != 2 || got.Config.MaxDailySubmissions != 5 {
		t.Errorf("invalid patch changed policy: %+v", got)
	}
}

func TestUpdateConfig_RebuildsDetector(t *testing.T) {
	var built []detection.Config
	v := newTestValidator(t, DefaultConfig(), WithDetectorFactory(func(c detection.Config) FraudDetector {
		built = append(built, c)
		return detection.NewDetector(c)
	}))

	speed := 50.0
	if _, err := v.UpdateConfig(ConfigPatch{MaxTravelSpeedMps: &speed}); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if len(built) != 2 || built[1].MaxTravelSpeedMps != 50 {
		t.Errorf("detector not rebuilt for new policy: %+v", built)
	}
}

func TestCodeForSignal(t *testing.T) {
	tests := []struct {
		signal detection.SignalCode
		want   models.ErrorCode
	}{
		{detection.SignalInvalidCoordinates, models.CodeInvalidGPSCoordinates},
		{detection.SignalExactTargetMatch, models.CodeGPSSpoofingDetected},
		{detection.SignalUnrealisticAccuracy, models.CodeGPSSpoofingDetected},
		{detection.SignalKnownSpoofLocation, models.CodeGPSSpoofingDetected},
		{detection.SignalTimestampSkew, models.CodeGPSSpoofingDetected},
		{detection.SignalImpossibleTravel, models.CodeImpossibleTravel},
		{detection.SignalDailyLimitExceeded, models.CodeRateLimitExceeded},
		{detection.SignalSubmissionTooFrequent, models.CodeRateLimitExceeded},
		{detection.SignalDuplicateChallenge, models.CodeDuplicateSubmission},
		{detection.SignalPoorAccuracy, models.CodePoorGPSAccuracy},
		{detection.SignalRegularIntervals, models.CodeSuspiciousPattern},
		{detection.SignalSuspiciousHistory, models.CodeFraudDetected},
		{detection.SignalCode("SOMETHING_NEW"), models.CodeFraudDetected},
	}
	for _, tt := range tests {
		if got := CodeForSignal(tt.signal); got != tt.want {
			t.Errorf("CodeForSignal(%s) = %s, want %s", tt.signal, got, tt.want)
		}
	}
}
