// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Collectors are process-global, so every test asserts deltas.

func TestRecordValidation(t *testing.T) {
	before := testutil.ToFloat64(ValidationsTotal.WithLabelValues("reject"))
	RecordValidation("reject", 2*time.Millisecond)
	if got := testutil.ToFloat64(ValidationsTotal.WithLabelValues("reject")) - before; got != 1 {
		t.Errorf("reject delta = %v, want 1", got)
	}
}

func TestRecordValidationIssue(t *testing.T) {
	tests := []struct {
		code    string
		isError bool
		kind    string
	}{
		{"LOCATION_TOO_FAR", true, "error"},
		{"POOR_GPS_ACCURACY", false, "warning"},
	}
	for _, tt := range tests {
		before := testutil.ToFloat64(ValidationIssues.WithLabelValues(tt.code, tt.kind))
		RecordValidationIssue(tt.code, tt.isError)
		if got := testutil.ToFloat64(ValidationIssues.WithLabelValues(tt.code, tt.kind)) - before; got != 1 {
			t.Errorf("%s/%s delta = %v, want 1", tt.code, tt.kind, got)
		}
	}
}

func TestRecordFraudSignal(t *testing.T) {
	before := testutil.ToFloat64(FraudSignals.WithLabelValues("IMPOSSIBLE_TRAVEL", "high"))
	RecordFraudSignal("IMPOSSIBLE_TRAVEL", "high")
	RecordFraudSignal("IMPOSSIBLE_TRAVEL", "high")
	if got := testutil.ToFloat64(FraudSignals.WithLabelValues("IMPOSSIBLE_TRAVEL", "high")) - before; got != 2 {
		t.Errorf("delta = %v, want 2", got)
	}
}

func TestRecordEventBusPublish(t *testing.T) {
	okBefore := testutil.ToFloat64(EventBusPublished.WithLabelValues("security.events", "success"))
	errBefore := testutil.ToFloat64(EventBusPublished.WithLabelValues("security.events", "error"))

	RecordEventBusPublish("security.events", nil)
	RecordEventBusPublish("security.events", errors.New("circuit open"))

	if got := testutil.ToFloat64(EventBusPublished.WithLabelValues("security.events", "success")) - okBefore; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(EventBusPublished.WithLabelValues("security.events", "error")) - errBefore; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestRecordRetentionPrunedIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(RetentionPruned.WithLabelValues("security_events"))
	RecordRetentionPruned("security_events", 0)
	RecordRetentionPruned("security_events", 7)
	if got := testutil.ToFloat64(RetentionPruned.WithLabelValues("security_events")) - before; got != 7 {
		t.Errorf("delta = %v, want 7", got)
	}
}

func TestGauges(t *testing.T) {
	SetActiveAlerts(4)
	if got := testutil.ToFloat64(SecurityAlertsActive); got != 4 {
		t.Errorf("active alerts = %v, want 4", got)
	}
	SetValidatorConfigVersion(9)
	if got := testutil.ToFloat64(ValidatorConfigVersion); got != 9 {
		t.Errorf("config version = %v, want 9", got)
	}
}

func TestMetricGathering(t *testing.T) {
	RecordAPIRequest("GET", "/healthz", "200", time.Millisecond)
	SetAppInfo("test", "go1.24")

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("GatherAndLint() error = %v", err)
	}
	for _, p := range problems {
		if len(p.Metric) >= len("checkpoint_") && p.Metric[:len("checkpoint_")] == "checkpoint_" {
			t.Errorf("lint problem in %s: %s", p.Metric, p.Text)
		}
	}
}
