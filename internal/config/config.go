// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package config

import (
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/checkpoint/internal/eventbus"
	"github.com/tomtom215/checkpoint/internal/logging"
	"github.com/tomtom215/checkpoint/internal/monitor"
	"github.com/tomtom215/checkpoint/internal/verification"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageBadger = "badger"
	StorageDuckDB = "duckdb"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig          `koanf:"server"`
	Security   SecurityConfig        `koanf:"security"`
	Logging    LoggingConfig         `koanf:"logging"`
	Storage    StorageConfig         `koanf:"storage"`
	Validator  verification.Config   `koanf:"validator"`
	Monitor    monitor.Config        `koanf:"monitor"`
	EventBus   eventbus.Config       `koanf:"eventbus"`
	Webhook    monitor.WebhookConfig `koanf:"webhook"`
	Supervisor SupervisorConfig      `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SecurityConfig holds API access settings.
type SecurityConfig struct {
	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken          string        `koanf:"api_token"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	Caller bool `koanf:"caller"`
}

// StorageConfig selects where security records are kept.
type StorageConfig struct {
	Backend string `koanf:"backend"`
	// Path is the badger directory or duckdb file. Empty keeps the
	// database in memory.
	Path string `koanf:"path"`
	// MaxEvents bounds the memory backend's event log.
	MaxEvents int `koanf:"max_events"`
}

// SupervisorConfig holds the suture restart policy.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingOptions converts the logging section for logging.Init.
func (c *Config) LoggingOptions() logging.Config {
	opts := logging.DefaultConfig()
	opts.Level = c.Logging.Level
	if c.Logging.Format != "" {
		opts.Format = c.Logging.Format
	}
	opts.Caller = c.Logging.Caller
	return opts
}

// ValidatorPatch returns a patch that sets every validator field to the
// loaded value. It is used to apply a reloaded file to a running validator.
func (c *Config) ValidatorPatch() verification.ConfigPatch {
	v := c.Validator
	return verification.ConfigPatch{
		RateLimitingEnabled:        &v.RateLimitingEnabled,
		DuplicatePreventionEnabled: &v.DuplicatePreventionEnabled,
		PhotoValidationEnabled:     &v.PhotoValidationEnabled,
		LocationValidationEnabled:  &v.LocationValidationEnabled,
		FraudDetectionEnabled:      &v.FraudDetectionEnabled,
		MaxDailySubmissions:        &v.MaxDailySubmissions,
		MinSubmissionInterval:      &v.MinSubmissionInterval,
		MaxGPSAccuracyMeters:       &v.MaxGPSAccuracyMeters,
		MinGPSAccuracyMeters:       &v.MinGPSAccuracyMeters,
		MaxTravelSpeedMps:          &v.MaxTravelSpeedMps,
		DefaultVerificationRadius:  &v.DefaultVerificationRadius,
		MinAnswerLength:            &v.MinAnswerLength,
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "" || c.Server.Environment == "development"
}

// Load reads configuration in priority order:
//  1. Built-in defaults
//  2. Config file (CONFIG_PATH or config.yaml)
//  3. CHECKPOINT_* environment variables
func Load() (*Config, error) {
	return LoadWithKoanf()
}
