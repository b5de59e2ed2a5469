// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package services

import (
	"context"
)

// Runner is a background loop that returns when ctx is canceled.
//
// Satisfied by *monitor.Service (retention) and *monitor.BadgerStore
// (value log GC).
type Runner interface {
	RunWithContext(ctx context.Context) error
}

// WorkerService wraps a Runner as a supervised service. A Runner that
// returns early with an error is restarted by the supervisor.
//
//	tree.AddMonitoringService(services.NewWorkerService("security-retention", monitorSvc))
type WorkerService struct {
	runner Runner
	name   string
}

// NewWorkerService creates a worker service named name.
func NewWorkerService(name string, runner Runner) *WorkerService {
	return &WorkerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (w *WorkerService) Serve(ctx context.Context) error {
	return w.runner.RunWithContext(ctx)
}

// String implements fmt.Stringer.
func (w *WorkerService) String() string {
	return w.name
}
