// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of GET /healthz.
type HealthStatus struct {
	Status                 string  `json:"status"`
	Version                string  `json:"version"`
	UptimeSeconds          float64 `json:"uptime_seconds"`
	ValidatorConfigVersion uint64  `json:"validator_config_version"`
}

// Health reports liveness and the active validator policy version.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, http.StatusOK, HealthStatus{
		Status:                 "healthy",
		Version:                h.version,
		UptimeSeconds:          time.Since(h.startTime).Seconds(),
		ValidatorConfigVersion: h.validator.Config().Version,
	}, start)
}
