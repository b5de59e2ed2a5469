// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/checkpoint/internal/models"
)

// ValidateSubmission runs a submission through the validator and returns
// the full result. The verdict is in the body; the status is 200 for any
// well-formed request.
func (h *Handler) ValidateSubmission(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ValidateSubmissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	history := req.History
	if history == nil && req.Submission != nil {
		history = &models.UserSubmissionHistory{UserID: req.Submission.UserID}
	}

	result := h.validator.Validate(r.Context(), req.Submission, req.Challenge, history, req.Proof)
	respondSuccess(w, http.StatusOK, result, start)
}

// GetValidatorConfig returns the active validator policy.
func (h *Handler) GetValidatorConfig(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, http.StatusOK, newValidatorConfigView(h.validator.Config()), start)
}

// PatchValidatorConfig applies a partial policy update and returns the new
// snapshot. An invalid result leaves the current policy in place.
func (h *Handler) PatchValidatorConfig(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ValidatorConfigPatchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	patch, err := req.ToPatch()
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidationError, err.Error(), nil)
		return
	}

	snap, err := h.validator.UpdateConfig(patch)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidConfig, err.Error(), nil)
		return
	}
	respondSuccess(w, http.StatusOK, newValidatorConfigView(snap), start)
}
