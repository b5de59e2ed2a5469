// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package api

import (
	"context"
	"time"

	"github.com/tomtom215/checkpoint/internal/models"
	"github.com/tomtom215/checkpoint/internal/monitor"
	"github.com/tomtom215/checkpoint/internal/verification"
)

// SubmissionValidator is the part of *verification.Validator the API uses.
type SubmissionValidator interface {
	Validate(ctx context.Context, sub *models.Submission, challenge *models.Challenge,
		history *models.UserSubmissionHistory, proof *models.ProofSubmission) *verification.Result
	Config() verification.Snapshot
	UpdateConfig(patch verification.ConfigPatch) (verification.Snapshot, error)
}

// SecurityMonitor is the part of *monitor.Service the API uses.
type SecurityMonitor interface {
	GetSecurityMetrics(ctx context.Context, tf monitor.Timeframe) (*monitor.SecurityMetrics, error)
	GetActiveAlerts(ctx context.Context) ([]monitor.SecurityAlert, error)
	AcknowledgeAlert(ctx context.Context, id, who string) (bool, error)
	GetFlaggedSubmissions(ctx context.Context, filter monitor.FlagFilter) ([]monitor.FlaggedSubmission, error)
	ReviewFlaggedSubmission(ctx context.Context, submissionID, reviewer string, decision monitor.ReviewStatus, notes string) (bool, error)
	GetUserSecurityEvents(ctx context.Context, userID string, limit int) ([]monitor.SecurityEvent, error)
	ResolveSecurityEvent(ctx context.Context, id, resolver, notes string) (bool, error)
}

// Compile-time checks against the concrete services.
var (
	_ SubmissionValidator = (*verification.Validator)(nil)
	_ SecurityMonitor     = (*monitor.Service)(nil)
)

// Handler serves the ops API.
type Handler struct {
	validator SubmissionValidator
	monitor   SecurityMonitor
	version   string
	startTime time.Time
}

// NewHandler creates the API handlers.
func NewHandler(validator SubmissionValidator, mon SecurityMonitor, version string) *Handler {
	return &Handler{
		validator: validator,
		monitor:   mon,
		version:   version,
		startTime: time.Now(),
	}
}
