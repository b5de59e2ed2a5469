// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/checkpoint/internal/eventbus"
	"github.com/tomtom215/checkpoint/internal/monitor"
	"github.com/tomtom215/checkpoint/internal/verification"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/checkpoint/config.yaml",
	"/etc/checkpoint/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix prefixes every mapped environment variable.
const EnvPrefix = "CHECKPOINT_"

// defaultConfig returns a Config with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
			Environment:     "development",
		},
		Security: SecurityConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Backend:   StorageMemory,
			MaxEvents: 100000,
		},
		Validator: verification.DefaultConfig(),
		Monitor:   monitor.DefaultConfig(),
		EventBus:  eventbus.DefaultConfig(),
		Webhook: monitor.WebhookConfig{
			MinInterval:      time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources:
//  1. Built-in defaults
//  2. Config file (optional)
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment
	// CHECKPOINT_HTTP_PORT -> server.port
	// CHECKPOINT_VALIDATOR_MAX_DAILY_SUBMISSIONS -> validator.max_daily_submissions
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processMapFields(k); err != nil {
		return nil, fmt.Errorf("failed to process map fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH when it exists, else the first
// existing default path, else "".
// ConfigFile returns the config file Load would read, or "" when none exists.
func ConfigFile() string {
	return findConfigFile()
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := splitList(strVal)
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// mapConfigPaths are parsed from "key=value,key2=value2" strings.
var mapConfigPaths = []string{
	"webhook.headers",
}

// processMapFields converts key=value lists to maps for known map fields.
func processMapFields(k *koanf.Koanf) error {
	for _, path := range mapConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		m := make(map[string]any)
		for _, pair := range splitList(strVal) {
			key, value, found := strings.Cut(pair, "=")
			key = strings.TrimSpace(key)
			if !found || key == "" {
				return fmt.Errorf("%s: entry %q is not key=value", path, pair)
			}
			m[key] = strings.TrimSpace(value)
		}
		k.Delete(path)
		if len(m) == 0 {
			continue
		}
		if err := k.Set(path, m); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envMappings maps lower-cased variable names, without the prefix, to
// config paths.
var envMappings = map[string]string{
	// Server
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"http_max_body_bytes": "server.max_body_bytes",
	"shutdown_timeout":    "server.shutdown_timeout",
	"environment":         "server.environment",

	// Security
	"api_token":           "security.api_token",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Storage
	"storage_backend":    "storage.backend",
	"storage_path":       "storage.path",
	"storage_max_events": "storage.max_events",

	// Validator policy
	"validator_rate_limiting_enabled":        "validator.rate_limiting_enabled",
	"validator_duplicate_prevention_enabled": "validator.duplicate_prevention_enabled",
	"validator_photo_validation_enabled":     "validator.photo_validation_enabled",
	"validator_location_validation_enabled":  "validator.location_validation_enabled",
	"validator_fraud_detection_enabled":      "validator.fraud_detection_enabled",
	"validator_max_daily_submissions":        "validator.max_daily_submissions",
	"validator_min_submission_interval":      "validator.min_submission_interval",
	"validator_max_gps_accuracy":             "validator.max_gps_accuracy_meters",
	"validator_min_gps_accuracy":             "validator.min_gps_accuracy_meters",
	"validator_max_travel_speed":             "validator.max_travel_speed_mps",
	"validator_verification_radius":          "validator.default_verification_radius",
	"validator_min_answer_length":            "validator.min_answer_length",

	// Monitor
	"monitor_alert_cooldown":        "monitor.alert_cooldown",
	"monitor_retention":             "monitor.retention",
	"monitor_cleanup_interval":      "monitor.cleanup_interval",
	"monitor_top_flagged_users":     "monitor.top_flagged_users",
	"monitor_dispatch_timeout":      "monitor.dispatch_timeout",
	"threshold_fraud_per_hour":      "monitor.thresholds.fraud_events_per_hour",
	"threshold_spoofing_per_hour":   "monitor.thresholds.gps_spoofing_per_hour",
	"threshold_high_per_hour":       "monitor.thresholds.high_severity_per_hour",
	"threshold_fraud_users_per_day": "monitor.thresholds.fraud_users_per_day",
	"threshold_alert_on_critical":   "monitor.thresholds.alert_on_critical",

	// Event bus
	"eventbus_enabled":           "eventbus.enabled",
	"eventbus_backend":           "eventbus.backend",
	"eventbus_buffer_size":       "eventbus.buffer_size",
	"eventbus_failure_threshold": "eventbus.failure_threshold",
	"eventbus_breaker_timeout":   "eventbus.breaker_timeout",
	"nats_url":                   "eventbus.nats.url",
	"nats_max_reconnects":        "eventbus.nats.max_reconnects",
	"nats_reconnect_wait":        "eventbus.nats.reconnect_wait",
	"nats_stream_name":           "eventbus.nats.stream_name",
	"nats_stream_max_age":        "eventbus.nats.stream_max_age",

	// Webhook notifier
	"webhook_enabled":           "webhook.enabled",
	"webhook_url":               "webhook.url",
	"webhook_headers":           "webhook.headers",
	"webhook_min_interval":      "webhook.min_interval",
	"webhook_timeout":           "webhook.timeout",
	"webhook_failure_threshold": "webhook.failure_threshold",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc maps a CHECKPOINT_* variable to its config path.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envMappings[key]
}

// WatchConfigFile calls callback whenever the file at path changes.
// Callers reload with Load and apply what can change at runtime.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
