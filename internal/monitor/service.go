// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/checkpoint/internal/detection"
	"github.com/tomtom215/checkpoint/internal/logging"
	"github.com/tomtom215/checkpoint/internal/metrics"
	"github.com/tomtom215/checkpoint/internal/models"
)

// Config controls the service.
type Config struct {
	Thresholds ThresholdConfig `koanf:"thresholds"`
	// AlertCooldown suppresses a new alert for a condition while an
	// unacknowledged alert for it is younger than the cooldown. Zero
	// disables suppression.
	AlertCooldown   time.Duration `koanf:"alert_cooldown"`
	Retention       time.Duration `koanf:"retention"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	TopFlaggedUsers int           `koanf:"top_flagged_users"`
	// DispatchTimeout bounds each asynchronous publish or notification.
	DispatchTimeout time.Duration `koanf:"dispatch_timeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Thresholds:      DefaultThresholdConfig(),
		Retention:       90 * 24 * time.Hour,
		CleanupInterval: 24 * time.Hour,
		TopFlaggedUsers: 10,
		DispatchTimeout: 10 * time.Second,
	}
}

// EventPublisher forwards events and alerts to an event bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *SecurityEvent) error
	PublishAlert(ctx context.Context, alert *SecurityAlert) error
}

// Notifier delivers alerts to operators.
type Notifier interface {
	Send(ctx context.Context, alert *SecurityAlert) error
	Name() string
	Enabled() bool
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event bus publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithNotifier adds an alert notifier. Disabled notifiers are ignored.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil && n.Enabled() {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the security monitor.
type Service struct {
	store      Store
	cfg        Config
	thresholds []Threshold
	publisher  EventPublisher
	notifiers  []Notifier
	now        func() time.Time

	wg sync.WaitGroup
}

// NewService creates a monitor over store.
func NewService(store Store, cfg Config, opts ...Option) *Service {
	if cfg.TopFlaggedUsers <= 0 {
		cfg.TopFlaggedUsers = 10
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	s := &Service{
		store:      store,
		cfg:        cfg,
		thresholds: BuildThresholds(cfg.Thresholds),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close waits for in-flight publishes and notifications.
func (s *Service) Close() {
	s.wg.Wait()
}

// dispatch runs fn in the background with a context that survives the
// caller's cancellation but keeps its values.
func (s *Service) dispatch(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// LogSecurityEvent appends an event and returns its id. It never fails: a
// store error is logged and counted, and the id is still returned.
func (s *Service) LogSecurityEvent(ctx context.Context, in EventInput) string {
	ctx = context.WithoutCancel(ctx)
	event := s.newEvent(ctx, in)

	if err := s.store.AppendEvent(ctx, event); err != nil {
		metrics.RecordStoreError("append_event")
		logging.Ctx(ctx).Error().Err(err).
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Msg("Failed to persist security event")
		return event.ID
	}

	metrics.RecordSecurityEvent(string(event.Type), string(event.Severity))
	logEvent(ctx, event)

	if s.publisher != nil {
		published := event.clone()
		s.dispatch(ctx, func(ctx context.Context) {
			if err := s.publisher.PublishEvent(ctx, &published); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("event_id", published.ID).Msg("Failed to publish security event")
			}
		})
	}

	s.evaluateThresholds(ctx, event)
	return event.ID
}

func (s *Service) newEvent(ctx context.Context, in EventInput) *SecurityEvent {
	now := s.now()
	event := &SecurityEvent{
		ID:           uuid.New().String(),
		Type:         in.Type,
		Severity:     in.Severity,
		UserID:       in.UserID,
		ChallengeID:  in.ChallengeID,
		SubmissionID: in.SubmissionID,
		Description:  logging.SanitizeText(in.Description, 1000),
		Timestamp:    in.Timestamp,
	}
	if len(in.Metadata) > 0 {
		event.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			event.Metadata[k] = v
		}
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	if !event.Severity.Valid() {
		event.Severity = SeverityLow
	}
	if !event.Type.Valid() {
		logging.Ctx(ctx).Warn().Str("type", string(in.Type)).Msg("Unknown security event type, recording as system_error")
		if event.Metadata == nil {
			event.Metadata = make(map[string]any, 1)
		}
		event.Metadata["original_type"] = string(in.Type)
		event.Type = EventSystemError
	}
	return event
}

func logEvent(ctx context.Context, e *SecurityEvent) {
	l := logging.Ctx(ctx)
	entry := l.Info()
	switch e.Severity {
	case SeverityCritical:
		entry = l.Error()
	case SeverityHigh, SeverityMedium:
		entry = l.Warn()
	}
	entry.
		Str("event_id", e.ID).
		Str("type", string(e.Type)).
		Str("severity", string(e.Severity)).
		Str("user_id", logging.SanitizeUserID(e.UserID)).
		Str("submission_id", e.SubmissionID).
		Msg("Security event")
}

// evaluateThresholds reads a snapshot of the longest window, then writes any
// alerts. No lock is held across the read and the writes, so concurrent
// events may both raise an alert for the same condition.
func (s *Service) evaluateThresholds(ctx context.Context, latest *SecurityEvent) {
	now := s.now()
	var events []SecurityEvent
	if window := MaxWindow(s.thresholds); window > 0 {
		var err error
		events, err = s.store.QueryEvents(ctx, EventFilter{Since: now.Add(-window), Until: now})
		if err != nil {
			metrics.RecordStoreError("query_events")
			logging.Ctx(ctx).Error().Err(err).Msg("Failed to read events for threshold evaluation")
			return
		}
	}

	candidates := EvaluateThresholds(events, latest, s.thresholds, s.cfg.Thresholds.AlertOnCritical, now)
	for i := range candidates {
		s.raiseAlert(ctx, &candidates[i], now)
	}
}

func (s *Service) raiseAlert(ctx context.Context, c *AlertCandidate, now time.Time) {
	if s.cfg.AlertCooldown > 0 {
		recent, err := s.store.QueryAlerts(ctx, AlertFilter{
			ActiveOnly: true,
			Condition:  c.Condition,
			Since:      now.Add(-s.cfg.AlertCooldown),
			Limit:      1,
		})
		if err != nil {
			metrics.RecordStoreError("query_alerts")
		} else if len(recent) > 0 {
			logging.Ctx(ctx).Debug().Str("condition", c.Condition).Msg("Alert suppressed by cooldown")
			return
		}
	}

	alert := &SecurityAlert{
		ID:               uuid.New().String(),
		Trigger:          c.Trigger,
		Condition:        c.Condition,
		Title:            c.Title,
		Description:      c.Description,
		Severity:         c.Severity,
		TriggeredAt:      now,
		EventIDs:         append([]string(nil), c.EventIDs...),
		SuggestedActions: append([]string(nil), c.SuggestedActions...),
	}
	if err := s.store.SaveAlert(ctx, alert); err != nil {
		metrics.RecordStoreError("save_alert")
		logging.Ctx(ctx).Error().Err(err).Str("condition", c.Condition).Msg("Failed to persist security alert")
		return
	}

	metrics.RecordSecurityAlert(alert.Condition, string(alert.Severity))
	s.refreshActiveAlerts(ctx)
	logging.Ctx(ctx).Warn().
		Str("alert_id", alert.ID).
		Str("condition", alert.Condition).
		Str("severity", string(alert.Severity)).
		Int("events", len(alert.EventIDs)).
		Msg("Security alert triggered")

	if s.publisher == nil && len(s.notifiers) == 0 {
		return
	}
	published := alert.clone()
	s.dispatch(ctx, func(ctx context.Context) {
		if s.publisher != nil {
			if err := s.publisher.PublishAlert(ctx, &published); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("alert_id", published.ID).Msg("Failed to publish security alert")
			}
		}
		for _, n := range s.notifiers {
			err := n.Send(ctx, &published)
			metrics.RecordNotification(n.Name(), err)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("notifier", n.Name()).Str("alert_id", published.ID).Msg("Failed to deliver alert notification")
			}
		}
	})
}

func (s *Service) refreshActiveAlerts(ctx context.Context) {
	active, err := s.store.QueryAlerts(ctx, AlertFilter{ActiveOnly: true})
	if err != nil {
		metrics.RecordStoreError("query_alerts")
		return
	}
	metrics.SetActiveAlerts(len(active))
}

// LogFraudDetection logs one event per distinct non-low-risk signal on the
// result and returns the event ids. Low-risk signals only annotate missing
// evidence and are not logged.
func (s *Service) LogFraudDetection(ctx context.Context, sub *models.Submission, res *detection.Result) []string {
	if sub == nil || res == nil {
		return nil
	}

	spoofing := make(map[detection.SignalCode]struct{})
	for i := range res.Signals {
		if isSpoofingSignal(res.Signals[i].Code) {
			spoofing[res.Signals[i].Code] = struct{}{}
		}
	}

	seen := make(map[detection.SignalCode]struct{}, len(res.Signals))
	var ids []string
	for i := range res.Signals {
		sig := &res.Signals[i]
		if sig.Risk == detection.RiskLow {
			continue
		}
		if _, dup := seen[sig.Code]; dup {
			continue
		}
		seen[sig.Code] = struct{}{}

		eventType, severity := classifySignal(sig, len(spoofing))
		metadata := map[string]any{
			"signal":             string(sig.Code),
			"rule":               string(sig.Rule),
			"signal_risk":        string(sig.Risk),
			"fraud_risk":         string(res.FraudRisk),
			"confidence":         res.Confidence,
			"recommended_action": string(res.RecommendedAction),
			"latitude":           logging.CoarseCoordinate(sub.Location.Latitude),
			"longitude":          logging.CoarseCoordinate(sub.Location.Longitude),
		}
		for k, v := range sig.Metrics {
			metadata["metric_"+k] = v
		}

		ids = append(ids, s.LogSecurityEvent(ctx, EventInput{
			Type:         eventType,
			Severity:     severity,
			UserID:       sub.UserID,
			ChallengeID:  sub.ChallengeID,
			SubmissionID: sub.ID,
			Description:  sig.Message,
			Metadata:     metadata,
		}))
	}
	return ids
}

// LogValidationFailure logs one event per distinct error code. Fraud-derived
// issues are skipped; LogFraudDetection records them.
func (s *Service) LogValidationFailure(ctx context.Context, sub *models.Submission, issues []models.ValidationIssue) []string {
	if sub == nil {
		return nil
	}

	seen := make(map[models.ErrorCode]struct{}, len(issues))
	var ids []string
	for i := range issues {
		issue := &issues[i]
		if issue.Source == models.SourceFraud {
			continue
		}
		if _, dup := seen[issue.Code]; dup {
			continue
		}
		seen[issue.Code] = struct{}{}

		eventType, severity := classifyIssue(issue)
		metadata := map[string]any{
			"code":   string(issue.Code),
			"source": string(issue.Source),
		}
		if issue.Field != "" {
			metadata["field"] = issue.Field
		}

		ids = append(ids, s.LogSecurityEvent(ctx, EventInput{
			Type:         eventType,
			Severity:     severity,
			UserID:       sub.UserID,
			ChallengeID:  sub.ChallengeID,
			SubmissionID: sub.ID,
			Description:  issue.Message,
			Metadata:     metadata,
		}))
	}
	return ids
}

// FlagSubmissionForReview places a submission in the review queue. Flagging
// the same submission again returns the existing record unchanged.
func (s *Service) FlagSubmissionForReview(ctx context.Context, in FlagInput) (*FlaggedSubmission, error) {
	if in.SubmissionID == "" {
		return nil, fmt.Errorf("flag submission: missing submission id")
	}
	severity := in.Severity
	if !severity.Valid() {
		severity = SeverityMedium
	}

	flag := &FlaggedSubmission{
		SubmissionID: in.SubmissionID,
		UserID:       in.UserID,
		ChallengeID:  in.ChallengeID,
		FlaggedAt:    s.now(),
		Reason:       logging.SanitizeText(in.Reason, 1000),
		Severity:     severity,
		ReviewStatus: ReviewPending,
		AutoFlags:    append([]string{}, in.AutoFlags...),
		FraudScore:   in.FraudScore,
	}

	stored, created, err := s.store.CreateFlag(ctx, flag)
	if err != nil {
		metrics.RecordStoreError("create_flag")
		return nil, fmt.Errorf("flag submission: %w", err)
	}
	if !created {
		return stored, nil
	}

	metrics.RecordFlaggedSubmission()
	s.LogSecurityEvent(ctx, EventInput{
		Type:         EventSubmissionFlagged,
		Severity:     severity,
		UserID:       stored.UserID,
		ChallengeID:  stored.ChallengeID,
		SubmissionID: stored.SubmissionID,
		Description:  "Submission flagged for review: " + stored.Reason,
		Metadata: map[string]any{
			"auto_flags":  stored.AutoFlags,
			"fraud_score": stored.FraudScore,
		},
	})
	return stored, nil
}

// ReviewFlaggedSubmission records a terminal review decision. It returns
// false with a nil error when the submission was never flagged, and
// ErrAlreadyReviewed when it has already been decided.
func (s *Service) ReviewFlaggedSubmission(ctx context.Context, submissionID, reviewer string, decision ReviewStatus, notes string) (bool, error) {
	if !decision.IsTerminal() {
		return false, ErrInvalidReviewDecision
	}

	flag, err := s.store.ReviewFlag(ctx, submissionID, decision, reviewer, notes, s.now())
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case errors.Is(err, ErrAlreadyReviewed):
		return false, err
	case err != nil:
		metrics.RecordStoreError("review_flag")
		return false, fmt.Errorf("review submission: %w", err)
	}

	metrics.RecordReviewDecision(string(decision))
	s.LogSecurityEvent(ctx, EventInput{
		Type:         EventReviewDecision,
		Severity:     SeverityLow,
		UserID:       flag.UserID,
		ChallengeID:  flag.ChallengeID,
		SubmissionID: flag.SubmissionID,
		Description:  fmt.Sprintf("Submission %s by %s", decision, reviewer),
		Metadata: map[string]any{
			"decision": string(decision),
			"reviewer": reviewer,
			"notes":    logging.SanitizeText(notes, 500),
		},
	})
	return true, nil
}

// GetSecurityMetrics aggregates the trailing window. It only reads.
func (s *Service) GetSecurityMetrics(ctx context.Context, tf Timeframe) (*SecurityMetrics, error) {
	now := s.now()
	events, err := s.store.QueryEvents(ctx, EventFilter{Since: now.Add(-tf.Duration()), Until: now})
	if err != nil {
		return nil, fmt.Errorf("security metrics: %w", err)
	}
	m := ComputeMetrics(events, tf, now, s.cfg.TopFlaggedUsers)

	pending, err := s.store.QueryFlags(ctx, FlagFilter{Status: ReviewPending})
	if err != nil {
		return nil, fmt.Errorf("security metrics: %w", err)
	}
	m.PendingReviews = len(pending)

	active, err := s.store.QueryAlerts(ctx, AlertFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("security metrics: %w", err)
	}
	m.ActiveAlerts = len(active)
	return m, nil
}

// GetFlaggedSubmissions lists the review queue, oldest first.
func (s *Service) GetFlaggedSubmissions(ctx context.Context, filter FlagFilter) ([]FlaggedSubmission, error) {
	flags, err := s.store.QueryFlags(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("flagged submissions: %w", err)
	}
	return flags, nil
}

// GetUserSecurityEvents returns a user's events, newest first.
func (s *Service) GetUserSecurityEvents(ctx context.Context, userID string, limit int) ([]SecurityEvent, error) {
	events, err := s.store.QueryEvents(ctx, EventFilter{UserID: userID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("user security events: %w", err)
	}
	return events, nil
}

// GetActiveAlerts returns unacknowledged alerts, most severe then newest
// first.
func (s *Service) GetActiveAlerts(ctx context.Context) ([]SecurityAlert, error) {
	alerts, err := s.store.QueryAlerts(ctx, AlertFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("active alerts: %w", err)
	}
	SortAlerts(alerts)
	return alerts, nil
}

// AcknowledgeAlert acknowledges an alert once. Unknown ids return false with
// a nil error.
func (s *Service) AcknowledgeAlert(ctx context.Context, id, who string) (bool, error) {
	alert, err := s.store.AcknowledgeAlert(ctx, id, who, s.now())
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case errors.Is(err, ErrAlreadyAcknowledged):
		return false, err
	case err != nil:
		metrics.RecordStoreError("acknowledge_alert")
		return false, fmt.Errorf("acknowledge alert: %w", err)
	}

	s.refreshActiveAlerts(ctx)
	logging.Ctx(ctx).Info().Str("alert_id", alert.ID).Str("acknowledged_by", who).Msg("Security alert acknowledged")
	return true, nil
}

// ResolveSecurityEvent resolves an open event once. Unknown ids return
// false with a nil error.
func (s *Service) ResolveSecurityEvent(ctx context.Context, id, resolver, notes string) (bool, error) {
	event, err := s.store.ResolveEvent(ctx, id, resolver, logging.SanitizeText(notes, 1000), s.now())
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case errors.Is(err, ErrAlreadyResolved):
		return false, err
	case err != nil:
		metrics.RecordStoreError("resolve_event")
		return false, fmt.Errorf("resolve event: %w", err)
	}

	logging.Ctx(ctx).Info().Str("event_id", event.ID).Str("resolved_by", resolver).Msg("Security event resolved")
	return true, nil
}

// Prune applies the retention policy once.
func (s *Service) Prune(ctx context.Context) (PruneResult, error) {
	if s.cfg.Retention <= 0 {
		return PruneResult{}, nil
	}
	res, err := s.store.Prune(ctx, s.now().Add(-s.cfg.Retention))
	if err != nil {
		metrics.RecordStoreError("prune")
		return res, fmt.Errorf("prune: %w", err)
	}
	metrics.RecordRetentionPruned("security_events", int(res.Events))
	metrics.RecordRetentionPruned("flagged_submissions", int(res.Flags))
	metrics.RecordRetentionPruned("security_alerts", int(res.Alerts))
	return res, nil
}

// RunWithContext applies retention every CleanupInterval until ctx is done.
func (s *Service) RunWithContext(ctx context.Context) error {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", interval).Dur("retention", s.cfg.Retention).Msg("Security retention worker started")
	s.refreshActiveAlerts(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Security retention worker stopped")
			return ctx.Err()
		case <-ticker.C:
			res, err := s.Prune(ctx)
			if err != nil {
				logging.Error().Err(err).Msg("Security retention pass failed")
				continue
			}
			if res.Total() > 0 {
				logging.Info().
					Int64("events", res.Events).
					Int64("flags", res.Flags).
					Int64("alerts", res.Alerts).
					Msg("Security retention pass complete")
			}
		}
	}
}
