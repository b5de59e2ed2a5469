// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

// Package metrics exposes Prometheus instrumentation for Checkpoint.
//
// Collectors are registered on the default registry via promauto and are
// updated through the Record* helpers so call sites stay one line long.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Validation Metrics
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_validations_total",
			Help: "Total number of submission validations by decision",
		},
		[]string{"decision"}, // "approve", "review", "reject"
	)

	ValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkpoint_validation_duration_seconds",
			Help:    "Duration of submission validations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	ValidationIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_validation_issues_total",
			Help: "Total number of validation errors and warnings by code",
		},
		[]string{"code", "kind"}, // kind: "error", "warning"
	)

	ValidatorConfigVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkpoint_validator_config_version",
			Help: "Version of the active validator configuration snapshot",
		},
	)

	// Fraud Detection Metrics
	FraudAssessments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_fraud_assessments_total",
			Help: "Total number of fraud assessments by resulting risk",
		},
		[]string{"risk"},
	)

	FraudSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_fraud_signals_total",
			Help: "Total number of fraud heuristic signals by code",
		},
		[]string{"code", "risk"},
	)

	DetectorFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkpoint_detector_failures_total",
			Help: "Total number of fraud detector failures handled as system errors",
		},
	)

	// Security Monitor Metrics
	SecurityEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_security_events_total",
			Help: "Total number of security events logged",
		},
		[]string{"type", "severity"},
	)

	SecurityAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_security_alerts_total",
			Help: "Total number of security alerts raised",
		},
		[]string{"condition", "severity"},
	)

	SecurityAlertsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkpoint_security_alerts_active",
			Help: "Number of unacknowledged security alerts",
		},
	)

	FlaggedSubmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkpoint_flagged_submissions_total",
			Help: "Total number of submissions flagged for manual review",
		},
	)

	ReviewDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_review_decisions_total",
			Help: "Total number of manual review decisions",
		},
		[]string{"decision"},
	)

	MonitorStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_monitor_store_errors_total",
			Help: "Total number of security store operations that failed",
		},
		[]string{"operation"},
	)

	RetentionPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_retention_pruned_total",
			Help: "Total number of records removed by retention cleanup",
		},
		[]string{"table"},
	)

	// Delivery Metrics
	EventBusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_eventbus_published_total",
			Help: "Total number of messages published to the event bus",
		},
		[]string{"topic", "result"}, // result: "success", "error"
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_notifications_total",
			Help: "Total number of alert notifications by notifier and result",
		},
		[]string{"notifier", "result"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "checkpoint_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breakers by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkpoint_api_requests_total",
			Help: "Total number of ops API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkpoint_api_request_duration_seconds",
			Help:    "Duration of ops API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkpoint_api_active_requests",
			Help: "Number of ops API requests in flight",
		},
	)

	// Application Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "checkpoint_app_info",
			Help: "Application version information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordValidation records the outcome of one submission validation.
func RecordValidation(decision string, duration time.Duration) {
	ValidationsTotal.WithLabelValues(decision).Inc()
	ValidationDuration.Observe(duration.Seconds())
}

// RecordValidationIssue records a single error or warning code.
func RecordValidationIssue(code string, isError bool) {
	kind := "warning"
	if isError {
		kind = "error"
	}
	ValidationIssues.WithLabelValues(code, kind).Inc()
}

// RecordFraudAssessment records the resulting risk of one assessment.
func RecordFraudAssessment(risk string) {
	FraudAssessments.WithLabelValues(risk).Inc()
}

// RecordFraudSignal records one heuristic signal.
func RecordFraudSignal(code, risk string) {
	FraudSignals.WithLabelValues(code, risk).Inc()
}

// RecordDetectorFailure records a detector failure that was turned into a system error.
func RecordDetectorFailure() {
	DetectorFailures.Inc()
}

// RecordSecurityEvent records a logged security event.
func RecordSecurityEvent(eventType, severity string) {
	SecurityEventsTotal.WithLabelValues(eventType, severity).Inc()
}

// RecordSecurityAlert records a raised alert.
func RecordSecurityAlert(condition, severity string) {
	SecurityAlertsTotal.WithLabelValues(condition, severity).Inc()
}

// SetActiveAlerts updates the unacknowledged alert gauge.
func SetActiveAlerts(n int) {
	SecurityAlertsActive.Set(float64(n))
}

// RecordFlaggedSubmission records a submission entering the review queue.
func RecordFlaggedSubmission() {
	FlaggedSubmissionsTotal.Inc()
}

// RecordReviewDecision records a manual review outcome.
func RecordReviewDecision(decision string) {
	ReviewDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordStoreError records a failed security store operation.
func RecordStoreError(operation string) {
	MonitorStoreErrors.WithLabelValues(operation).Inc()
}

// RecordRetentionPruned records records removed by retention cleanup.
func RecordRetentionPruned(table string, n int) {
	if n <= 0 {
		return
	}
	RetentionPruned.WithLabelValues(table).Add(float64(n))
}

// RecordEventBusPublish records a publish attempt on the event bus.
func RecordEventBusPublish(topic string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	EventBusPublished.WithLabelValues(topic, result).Inc()
}

// RecordNotification records an alert notification attempt.
func RecordNotification(notifier string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	NotificationsTotal.WithLabelValues(notifier, result).Inc()
}

// RecordBreakerTransition records a circuit breaker state change.
func RecordBreakerTransition(name, from, to string, toValue float64) {
	CircuitBreakerState.WithLabelValues(name).Set(toValue)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordBreakerRequest records one request through a circuit breaker.
func RecordBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordAPIRequest records an ops API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetValidatorConfigVersion records the active validator config version.
func SetValidatorConfigVersion(version uint64) {
	ValidatorConfigVersion.Set(float64(version))
}

// SetAppInfo publishes build information.
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}
