// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package main

import (
	"github.com/tomtom215/checkpoint/internal/config"
	"github.com/tomtom215/checkpoint/internal/logging"
	"github.com/tomtom215/checkpoint/internal/metrics"
	"github.com/tomtom215/checkpoint/internal/verification"
)

// policyUpdater is the part of *verification.Validator the reloader uses.
type policyUpdater interface {
	UpdateConfig(patch verification.ConfigPatch) (verification.Snapshot, error)
}

// notifierToggle is satisfied by *monitor.WebhookNotifier.
type notifierToggle interface {
	SetEnabled(enabled bool)
}

// reloadTargets are the components that pick up config file changes. The
// validator policy, the log level and the webhook switch reload; every other
// section needs a restart.
type reloadTargets struct {
	validator policyUpdater
	webhook   notifierToggle
}

// watchConfig re-applies the reloadable sections when the config file
// changes.
func watchConfig(path string, targets reloadTargets) {
	err := config.WatchConfigFile(path, func() {
		reloadConfig(targets, config.Load)
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable; settings will not hot-reload")
		return
	}
	logging.Info().Str("path", path).Msg("Watching config file for changes")
}

func reloadConfig(targets reloadTargets, load func() (*config.Config, error)) {
	cfg, err := load()
	if err != nil {
		logging.Warn().Err(err).Msg("Ignoring config reload: file is invalid")
		return
	}

	if cfg.Logging.Level != "" {
		if err := logging.SetLevel(cfg.Logging.Level); err != nil {
			logging.Warn().Err(err).Msg("Keeping current log level")
		}
	}
	if targets.webhook != nil {
		targets.webhook.SetEnabled(cfg.Webhook.Enabled)
	}

	snap, err := targets.validator.UpdateConfig(cfg.ValidatorPatch())
	if err != nil {
		logging.Warn().Err(err).Msg("Ignoring config reload: validator policy rejected")
		return
	}
	metrics.SetValidatorConfigVersion(snap.Version)
}
