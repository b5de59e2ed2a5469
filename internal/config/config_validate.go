// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/checkpoint/internal/eventbus"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.Validator.Validate(); err != nil {
		return fmt.Errorf("validator: %w", err)
	}

	if err := c.validateMonitor(); err != nil {
		return err
	}

	if err := c.validateEventBus(); err != nil {
		return err
	}

	if err := c.validateWebhook(); err != nil {
		return err
	}

	return c.validateSupervisor()
}

var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("HTTP_MAX_BODY_BYTES must be positive")
	}
	if !validEnvironments[c.Server.Environment] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, staging, production")
	}
	return nil
}

// validateSecurity validates API access settings.
func (c *Config) validateSecurity() error {
	// The review and alert endpoints change state, so production requires a token.
	if c.IsProduction() && c.Security.APIToken == "" {
		return fmt.Errorf("API_TOKEN is required when ENVIRONMENT=production")
	}
	if c.Security.APIToken != "" && len(c.Security.APIToken) < minAPITokenLength {
		return fmt.Errorf("API_TOKEN must be at least %d characters", minAPITokenLength)
	}
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production. " +
			"Set specific origins: CORS_ORIGINS=https://ops.example.com")
	}
	return c.validateRateLimits()
}

const minAPITokenLength = 16

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration has security concerns
// that should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.APIToken != "" && c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageMemory:
		if c.Storage.MaxEvents < 0 {
			return fmt.Errorf("STORAGE_MAX_EVENTS must not be negative")
		}
	case StorageBadger, StorageDuckDB:
		if c.Storage.Path == "" && c.IsProduction() {
			return fmt.Errorf("STORAGE_PATH is required for the %s backend in production", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: memory, badger, duckdb")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	t := c.Monitor.Thresholds
	if t.FraudEventsPerHour < 0 || t.GPSSpoofingPerHour < 0 || t.HighSeverityPerHour < 0 || t.FraudUsersPerDay < 0 {
		return fmt.Errorf("monitor thresholds must not be negative (0 disables a threshold)")
	}
	if c.Monitor.Retention < 0 {
		return fmt.Errorf("MONITOR_RETENTION must not be negative")
	}
	if c.Monitor.AlertCooldown < 0 {
		return fmt.Errorf("MONITOR_ALERT_COOLDOWN must not be negative")
	}
	return nil
}

func (c *Config) validateEventBus() error {
	if !c.EventBus.Enabled {
		return nil
	}
	if err := c.EventBus.Validate(); err != nil {
		return err
	}
	if c.EventBus.Backend == eventbus.BackendNATS {
		if err := validateNATSURL(c.EventBus.NATS.URL); err != nil {
			return fmt.Errorf("NATS_URL: %w", err)
		}
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if !c.Webhook.Enabled {
		return nil
	}
	if c.Webhook.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_ENABLED=true")
	}
	if containsPlaceholder(c.Webhook.WebhookURL) {
		return fmt.Errorf("WEBHOOK_URL looks like a placeholder: %s", c.Webhook.WebhookURL)
	}
	return validateWebhookURL(c.Webhook.WebhookURL, "WEBHOOK_URL")
}

func (c *Config) validateSupervisor() error {
	if c.Supervisor.FailureThreshold < 0 || c.Supervisor.FailureDecay < 0 {
		return fmt.Errorf("supervisor failure threshold and decay must not be negative")
	}
	return nil
}
