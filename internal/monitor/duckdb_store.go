// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package monitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver
	"github.com/goccy/go-json"

	"github.com/tomtom215/checkpoint/internal/logging"
)

// DuckDBStore implements Store on DuckDB for durable, queryable security
// records.
type DuckDBStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	ownsDB bool
}

// NewDuckDBStore wraps an open database. Call CreateTables before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// OpenDuckDBStore opens the database file at path (":memory:" when empty)
// and creates the tables.
func OpenDuckDBStore(ctx context.Context, path string) (*DuckDBStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	s := &DuckDBStore{db: db, ownsDB: true}
	if err := s.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// CreateTables creates the security tables if they don't exist.
func (s *DuckDBStore) CreateTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS security_events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			user_id TEXT NOT NULL,
			challenge_id TEXT,
			submission_id TEXT,
			description TEXT NOT NULL,
			metadata JSON,
			timestamp TIMESTAMPTZ NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT false,
			resolved_by TEXT,
			resolved_at TIMESTAMPTZ,
			resolution_notes TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_security_events_timestamp ON security_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_security_events_user_id ON security_events(user_id);
		CREATE INDEX IF NOT EXISTS idx_security_events_type ON security_events(type);

		CREATE TABLE IF NOT EXISTS flagged_submissions (
			submission_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			challenge_id TEXT,
			flagged_at TIMESTAMPTZ NOT NULL,
			reason TEXT NOT NULL,
			severity TEXT NOT NULL,
			review_status TEXT NOT NULL,
			reviewed_by TEXT,
			reviewed_at TIMESTAMPTZ,
			review_notes TEXT,
			auto_flags JSON,
			fraud_score DOUBLE NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_flagged_status ON flagged_submissions(review_status);

		CREATE TABLE IF NOT EXISTS security_alerts (
			id TEXT PRIMARY KEY,
			trigger_type TEXT NOT NULL,
			condition_key TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			severity TEXT NOT NULL,
			triggered_at TIMESTAMPTZ NOT NULL,
			acknowledged BOOLEAN NOT NULL DEFAULT false,
			acknowledged_by TEXT,
			acknowledged_at TIMESTAMPTZ,
			event_ids JSON,
			suggested_actions JSON
		);

		CREATE INDEX IF NOT EXISTS idx_security_alerts_triggered ON security_alerts(triggered_at DESC)
	`

	statements := strings.Split(query, ";")
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Security monitor tables created/verified")
	return nil
}

// buildSliceCondition creates a SQL IN condition for a slice of string values.
func buildSliceCondition[T ~string](column string, values []T, args *[]interface{}) string {
	if len(values) == 0 {
		return ""
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		*args = append(*args, string(v))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

func marshalStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	if data, err := json.Marshal(values); err == nil {
		return string(data)
	}
	return "[]"
}

func unmarshalStrings(raw sql.NullString) []string {
	out := []string{}
	if raw.Valid && raw.String != "" {
		_ = json.Unmarshal([]byte(raw.String), &out)
	}
	return out
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

const eventColumns = `
	id, type, severity, user_id, challenge_id, submission_id, description,
	CAST(metadata AS VARCHAR) AS metadata,
	timestamp, resolved, resolved_by, resolved_at, resolution_notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSecurityEvent(row rowScanner) (*SecurityEvent, error) {
	var (
		e                                  SecurityEvent
		typ, severity                      string
		challengeID, submissionID          sql.NullString
		metadata, resolvedBy, resolveNotes sql.NullString
		resolvedAt                         sql.NullTime
	)
	if err := row.Scan(&e.ID, &typ, &severity, &e.UserID, &challengeID, &submissionID,
		&e.Description, &metadata, &e.Timestamp, &e.Resolved, &resolvedBy, &resolvedAt, &resolveNotes); err != nil {
		return nil, err
	}
	e.Type = EventType(typ)
	e.Severity = Severity(severity)
	e.ChallengeID = challengeID.String
	e.SubmissionID = submissionID.String
	e.ResolvedBy = resolvedBy.String
	e.ResolvedAt = nullTimePtr(resolvedAt)
	e.ResolutionNotes = resolveNotes.String
	if metadata.Valid && metadata.String != "" && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &e, nil
}

// AppendEvent inserts an event row.
func (s *DuckDBStore) AppendEvent(ctx context.Context, event *SecurityEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("append event: missing id")
	}

	var metadata *string
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		m := string(data)
		metadata = &m
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO security_events (
			id, type, severity, user_id, challenge_id, submission_id,
			description, metadata, timestamp, resolved
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, false)`,
		event.ID, string(event.Type), string(event.Severity), event.UserID,
		nullString(event.ChallengeID), nullString(event.SubmissionID),
		event.Description, metadata, event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save security event: %w", err)
	}
	return nil
}

// GetEvent returns the event with the given id.
func (s *DuckDBStore) GetEvent(ctx context.Context, id string) (*SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEvent(ctx, id)
}

func (s *DuckDBStore) getEvent(ctx context.Context, id string) (*SecurityEvent, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM security_events WHERE id = ?", id)
	event, err := scanSecurityEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security event: %w", err)
	}
	return event, nil
}

// ResolveEvent marks an open event resolved.
func (s *DuckDBStore) ResolveEvent(ctx context.Context, id, resolver, notes string, at time.Time) (*SecurityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE security_events
		SET resolved = true, resolved_by = ?, resolved_at = ?, resolution_notes = ?
		WHERE id = ? AND resolved = false`,
		resolver, at.UTC(), nullString(notes), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve security event: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to get resolved count: %w", err)
	} else if n == 0 {
		if _, err := s.getEvent(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyResolved
	}
	return s.getEvent(ctx, id)
}

// QueryEvents returns matching events, newest first.
func (s *DuckDBStore) QueryEvents(ctx context.Context, filter EventFilter) ([]SecurityEvent, error) {
	var conditions []string
	var args []interface{}

	if !filter.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.Until.UTC())
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if cond := buildSliceCondition("type", filter.Types, &args); cond != "" {
		conditions = append(conditions, cond)
	}

	query := "SELECT " + eventColumns + " FROM security_events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	events := make([]SecurityEvent, 0)
	for rows.Next() {
		event, err := scanSecurityEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security events: %w", err)
	}
	return events, nil
}

const flagColumns = `
	submission_id, user_id, challenge_id, flagged_at, reason, severity,
	review_status, reviewed_by, reviewed_at, review_notes,
	CAST(auto_flags AS VARCHAR) AS auto_flags, fraud_score`

func scanFlag(row rowScanner) (*FlaggedSubmission, error) {
	var (
		f                              FlaggedSubmission
		severity, status               string
		challengeID, reviewedBy, notes sql.NullString
		autoFlags                      sql.NullString
		reviewedAt                     sql.NullTime
	)
	if err := row.Scan(&f.SubmissionID, &f.UserID, &challengeID, &f.FlaggedAt, &f.Reason, &severity,
		&status, &reviewedBy, &reviewedAt, &notes, &autoFlags, &f.FraudScore); err != nil {
		return nil, err
	}
	f.ChallengeID = challengeID.String
	f.Severity = Severity(severity)
	f.ReviewStatus = ReviewStatus(status)
	f.ReviewedBy = reviewedBy.String
	f.ReviewedAt = nullTimePtr(reviewedAt)
	f.ReviewNotes = notes.String
	f.AutoFlags = unmarshalStrings(autoFlags)
	return &f, nil
}

func (s *DuckDBStore) getFlag(ctx context.Context, submissionID string) (*FlaggedSubmission, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+flagColumns+" FROM flagged_submissions WHERE submission_id = ?", submissionID)
	flag, err := scanFlag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flagged submission: %w", err)
	}
	return flag, nil
}

// CreateFlag inserts a pending flag unless the submission is already queued.
func (s *DuckDBStore) CreateFlag(ctx context.Context, flag *FlaggedSubmission) (*FlaggedSubmission, bool, error) {
	if flag == nil || flag.SubmissionID == "" {
		return nil, false, fmt.Errorf("create flag: missing submission id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getFlag(ctx, flag.SubmissionID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flagged_submissions (
			submission_id, user_id, challenge_id, flagged_at, reason, severity,
			review_status, auto_flags, fraud_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		flag.SubmissionID, flag.UserID, nullString(flag.ChallengeID), flag.FlaggedAt.UTC(),
		flag.Reason, string(flag.Severity), string(flag.ReviewStatus),
		marshalStrings(flag.AutoFlags), flag.FraudScore,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to save flagged submission: %w", err)
	}
	stored, err := s.getFlag(ctx, flag.SubmissionID)
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

// ReviewFlag moves a pending flag to a terminal status.
func (s *DuckDBStore) ReviewFlag(ctx context.Context, submissionID string, status ReviewStatus, reviewer, notes string, at time.Time) (*FlaggedSubmission, error) {
	if !status.IsTerminal() {
		return nil, ErrInvalidReviewDecision
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE flagged_submissions
		SET review_status = ?, reviewed_by = ?, reviewed_at = ?, review_notes = ?
		WHERE submission_id = ? AND review_status = ?`,
		string(status), reviewer, at.UTC(), nullString(notes), submissionID, string(ReviewPending),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to review flagged submission: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to get reviewed count: %w", err)
	} else if n == 0 {
		if _, err := s.getFlag(ctx, submissionID); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyReviewed
	}
	return s.getFlag(ctx, submissionID)
}

// QueryFlags returns matching flags, oldest first.
func (s *DuckDBStore) QueryFlags(ctx context.Context, filter FlagFilter) ([]FlaggedSubmission, error) {
	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		conditions = append(conditions, "review_status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}

	query := "SELECT " + flagColumns + " FROM flagged_submissions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY flagged_at ASC, submission_id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flagged submissions: %w", err)
	}
	defer rows.Close()

	flags := make([]FlaggedSubmission, 0)
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flagged submission: %w", err)
		}
		flags = append(flags, *flag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flagged submissions: %w", err)
	}
	return flags, nil
}

const alertColumns = `
	id, trigger_type, condition_key, title, description, severity, triggered_at,
	acknowledged, acknowledged_by, acknowledged_at,
	CAST(event_ids AS VARCHAR) AS event_ids,
	CAST(suggested_actions AS VARCHAR) AS suggested_actions`

func scanAlert(row rowScanner) (*SecurityAlert, error) {
	var (
		a                          SecurityAlert
		trigger, severity          string
		ackBy, eventIDs, suggested sql.NullString
		ackAt                      sql.NullTime
	)
	if err := row.Scan(&a.ID, &trigger, &a.Condition, &a.Title, &a.Description, &severity, &a.TriggeredAt,
		&a.Acknowledged, &ackBy, &ackAt, &eventIDs, &suggested); err != nil {
		return nil, err
	}
	a.Trigger = AlertTrigger(trigger)
	a.Severity = Severity(severity)
	a.AcknowledgedBy = ackBy.String
	a.AcknowledgedAt = nullTimePtr(ackAt)
	a.EventIDs = unmarshalStrings(eventIDs)
	a.SuggestedActions = unmarshalStrings(suggested)
	return &a, nil
}

// SaveAlert inserts an alert row.
func (s *DuckDBStore) SaveAlert(ctx context.Context, alert *SecurityAlert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("save alert: missing id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO security_alerts (
			id, trigger_type, condition_key, title, description, severity, triggered_at,
			acknowledged, event_ids, suggested_actions
		) VALUES (?, ?, ?, ?, ?, ?, ?, false, ?, ?)`,
		alert.ID, string(alert.Trigger), alert.Condition, alert.Title, alert.Description,
		string(alert.Severity), alert.TriggeredAt.UTC(),
		marshalStrings(alert.EventIDs), marshalStrings(alert.SuggestedActions),
	)
	if err != nil {
		return fmt.Errorf("failed to save security alert: %w", err)
	}
	return nil
}

func (s *DuckDBStore) getAlert(ctx context.Context, id string) (*SecurityAlert, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+alertColumns+" FROM security_alerts WHERE id = ?", id)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security alert: %w", err)
	}
	return alert, nil
}

// AcknowledgeAlert marks an alert acknowledged.
func (s *DuckDBStore) AcknowledgeAlert(ctx context.Context, id, who string, at time.Time) (*SecurityAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE security_alerts
		SET acknowledged = true, acknowledged_by = ?, acknowledged_at = ?
		WHERE id = ? AND acknowledged = false`,
		who, at.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge security alert: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to get acknowledged count: %w", err)
	} else if n == 0 {
		if _, err := s.getAlert(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyAcknowledged
	}
	return s.getAlert(ctx, id)
}

// QueryAlerts returns matching alerts, newest first.
func (s *DuckDBStore) QueryAlerts(ctx context.Context, filter AlertFilter) ([]SecurityAlert, error) {
	var conditions []string
	var args []interface{}
	if filter.ActiveOnly {
		conditions = append(conditions, "acknowledged = false")
	}
	if filter.Condition != "" {
		conditions = append(conditions, "condition_key = ?")
		args = append(args, filter.Condition)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "triggered_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT " + alertColumns + " FROM security_alerts"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY triggered_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query security alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]SecurityAlert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security alerts: %w", err)
	}
	return alerts, nil
}

// Prune deletes expired rows from all three tables.
func (s *DuckDBStore) Prune(ctx context.Context, olderThan time.Time) (PruneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := olderThan.UTC()
	var res PruneResult
	statements := []struct {
		query string
		count *int64
	}{
		{`DELETE FROM security_events WHERE timestamp < ?`, &res.Events},
		{`DELETE FROM flagged_submissions WHERE review_status <> 'pending' AND flagged_at < ?`, &res.Flags},
		{`DELETE FROM security_alerts WHERE acknowledged = true AND triggered_at < ?`, &res.Alerts},
	}

	for _, st := range statements {
		result, err := s.db.ExecContext(ctx, st.query, cutoff)
		if err != nil {
			return res, fmt.Errorf("failed to prune security tables: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return res, fmt.Errorf("failed to get pruned count: %w", err)
		}
		*st.count = n
	}

	if res.Total() > 0 {
		logging.Info().
			Int64("events", res.Events).
			Int64("flags", res.Flags).
			Int64("alerts", res.Alerts).
			Time("older_than", olderThan).
			Msg("Pruned security records")
	}
	return res, nil
}

// Close closes the database when the store opened it.
func (s *DuckDBStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
