// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

/*
Package config loads and validates the Checkpoint service configuration.

Configuration is layered with Koanf v2. Later layers override earlier ones:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file (CONFIG_PATH, or config.yaml / /etc/checkpoint/config.yaml)
 3. CHECKPOINT_* environment variables

Only environment variables listed in the explicit mapping are read, so
unrelated variables never leak into the configuration.

# Sections

  - server: HTTP listener, timeouts and environment
  - security: API token, CORS and request rate limiting
  - logging: zerolog level, format and caller info
  - storage: security record backend (memory, badger or duckdb)
  - validator: submission validation policy (verification.Config)
  - monitor: alert thresholds, retention and dispatch (monitor.Config)
  - eventbus: Watermill publisher backend (eventbus.Config)
  - webhook: alert webhook notifier (monitor.WebhookConfig)
  - supervisor: suture restart policy

# Example

	server:
	  port: 8080
	storage:
	  backend: badger
	  path: /data/checkpoint
	validator:
	  max_daily_submissions: 30
	  min_submission_interval: 90s
	webhook:
	  enabled: true
	  url: https://hooks.example.com/checkpoint

Equivalent environment overrides:

	CHECKPOINT_HTTP_PORT=8080
	CHECKPOINT_STORAGE_BACKEND=badger
	CHECKPOINT_VALIDATOR_MAX_DAILY_SUBMISSIONS=30
	CHECKPOINT_WEBHOOK_HEADERS="Authorization=Bearer abc,X-Source=checkpoint"
*/
package config
