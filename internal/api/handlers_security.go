// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/checkpoint/internal/monitor"
)

const (
	defaultUserEventsLimit = 100
	defaultFlaggedLimit    = 100
)

// ActionResult is returned by the acknowledge, review and resolve endpoints.
type ActionResult struct {
	ID      string `json:"id"`
	Updated bool   `json:"updated"`
}

// GetSecurityMetrics returns the aggregated security metrics for the
// requested trailing window (default day).
func (h *Handler) GetSecurityMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	tf, err := monitor.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidationError, err.Error(), nil)
		return
	}

	m, err := h.monitor.GetSecurityMetrics(r.Context(), tf)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternalError, "Failed to compute security metrics", err)
		return
	}
	respondSuccess(w, http.StatusOK, m, start)
}

// GetActiveAlerts lists unacknowledged alerts.
func (h *Handler) GetActiveAlerts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	alerts, err := h.monitor.GetActiveAlerts(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternalError, "Failed to load alerts", err)
		return
	}
	if alerts == nil {
		alerts = []monitor.SecurityAlert{}
	}
	respondSuccess(w, http.StatusOK, alerts, start)
}

// AcknowledgeAlert acknowledges one alert.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	var req AcknowledgeAlertRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ok, err := h.monitor.AcknowledgeAlert(r.Context(), id, req.AcknowledgedBy)
	switch {
	case errors.Is(err, monitor.ErrAlreadyAcknowledged):
		respondError(w, r, http.StatusConflict, CodeConflict, "Alert already acknowledged", nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeInternalError, "Failed to acknowledge alert", err)
		return
	case !ok:
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Alert not found", nil)
		return
	}
	respondSuccess(w, http.StatusOK, ActionResult{ID: id, Updated: true}, start)
}

// GetFlaggedSubmissions lists the review queue, optionally filtered by
// status and user.
func (h *Handler) GetFlaggedSubmissions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	q := FlaggedQuery{
		Status: r.URL.Query().Get("status"),
		UserID: r.URL.Query().Get("user_id"),
		Limit:  getIntParam(r, "limit", defaultFlaggedLimit),
	}
	if apiErr := validateRequest(&q); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	flags, err := h.monitor.GetFlaggedSubmissions(r.Context(), monitor.FlagFilter{
		Status: monitor.ReviewStatus(q.Status),
		UserID: q.UserID,
		Limit:  q.Limit,
	})
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternalError, "Failed to load flagged submissions", err)
		return
	}
	if flags == nil {
		flags = []monitor.FlaggedSubmission{}
	}
	respondSuccess(w, http.StatusOK, flags, start)
}

// ReviewFlaggedSubmission records a reviewer's decision.
func (h *Handler) ReviewFlaggedSubmission(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	var req ReviewFlaggedRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ok, err := h.monitor.ReviewFlaggedSubmission(r.Context(), id, req.Reviewer, monitor.ReviewStatus(req.Decision), req.Notes)
	switch {
	case errors.Is(err, monitor.ErrInvalidReviewDecision):
		respondError(w, r, http.StatusBadRequest, CodeValidationError, err.Error(), nil)
		return
	case errors.Is(err, monitor.ErrAlreadyReviewed):
		respondError(w, r, http.StatusConflict, CodeConflict, "Submission already reviewed", nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeInternalError, "Failed to record review", err)
		return
	case !ok:
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Flagged submission not found", nil)
		return
	}
	respondSuccess(w, http.StatusOK, ActionResult{ID: id, Updated: true}, start)
}

// GetUserSecurityEvents lists a user's security events, newest first.
func (h *Handler) GetUserSecurityEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	q := UserEventsQuery{
		UserID: chi.URLParam(r, "id"),
		Limit:  getIntParam(r, "limit", defaultUserEventsLimit),
	}
	if apiErr := validateRequest(&q); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	events, err := h.monitor.GetUserSecurityEvents(r.Context(), q.UserID, q.Limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternalError, "Failed to load security events", err)
		return
	}
	if events == nil {
		events = []monitor.SecurityEvent{}
	}
	respondSuccess(w, http.StatusOK, events, start)
}

// ResolveSecurityEvent marks an event resolved.
func (h *Handler) ResolveSecurityEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	var req ResolveEventRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ok, err := h.monitor.ResolveSecurityEvent(r.Context(), id, req.ResolvedBy, req.Notes)
	switch {
	case errors.Is(err, monitor.ErrAlreadyResolved):
		respondError(w, r, http.StatusConflict, CodeConflict, "Event already resolved", nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeInternalError, "Failed to resolve event", err)
		return
	case !ok:
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Security event not found", nil)
		return
	}
	respondSuccess(w, http.StatusOK, ActionResult{ID: id, Updated: true}, start)
}
