// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/checkpoint/internal/logging"
	"github.com/tomtom215/checkpoint/internal/metrics"
)

// Key prefixes for BadgerDB storage
const (
	eventKeyPrefix   = "event:"
	eventIDKeyPrefix = "event_id:"
	flagKeyPrefix    = "flag:"
	alertKeyPrefix   = "alert:"
)

// BadgerStore implements Store on BadgerDB. Events are keyed by timestamp so
// a prefix scan walks them in time order; an id index points at the event
// key. State transitions run read-modify-write inside one transaction.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
}

// NewBadgerStore wraps an open database. The caller keeps ownership.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadgerStore opens (or creates) a database at path. An empty path opens
// an in-memory database.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, ownsDB: true}, nil
}

func eventKey(e *SecurityEvent) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", eventKeyPrefix, e.Timestamp.UnixNano(), e.ID))
}

// AppendEvent stores the event and its id index.
func (s *BadgerStore) AppendEvent(ctx context.Context, event *SecurityEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("append event: missing id")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := eventKey(event)
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set event: %w", err)
		}
		if err := txn.Set([]byte(eventIDKeyPrefix+event.ID), key); err != nil {
			return fmt.Errorf("set event index: %w", err)
		}
		return nil
	})
}

// loadEvent resolves the id index and decodes the event.
func loadEvent(txn *badger.Txn, id string) ([]byte, *SecurityEvent, error) {
	idx, err := txn.Get([]byte(eventIDKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get event index: %w", err)
	}
	key, err := idx.ValueCopy(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("read event index: %w", err)
	}

	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get event: %w", err)
	}

	var event SecurityEvent
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &event)
	}); err != nil {
		return nil, nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return key, &event, nil
}

// GetEvent returns the event with the given id.
func (s *BadgerStore) GetEvent(ctx context.Context, id string) (*SecurityEvent, error) {
	var event *SecurityEvent
	err := s.db.View(func(txn *badger.Txn) error {
		_, e, err := loadEvent(txn, id)
		event = e
		return err
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// ResolveEvent marks an open event resolved.
func (s *BadgerStore) ResolveEvent(ctx context.Context, id, resolver, notes string, at time.Time) (*SecurityEvent, error) {
	var event *SecurityEvent
	err := s.db.Update(func(txn *badger.Txn) error {
		key, e, err := loadEvent(txn, id)
		if err != nil {
			return err
		}
		if e.Resolved {
			return ErrAlreadyResolved
		}
		resolvedAt := at
		e.Resolved = true
		e.ResolvedBy = resolver
		e.ResolvedAt = &resolvedAt
		e.ResolutionNotes = notes

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		event = e
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// QueryEvents walks the event keys from newest to oldest.
func (s *BadgerStore) QueryEvents(ctx context.Context, filter EventFilter) ([]SecurityEvent, error) {
	results := make([]SecurityEvent, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(eventKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the last key <= the seek key.
		seek := []byte(eventKeyPrefix + "~")
		if !filter.Until.IsZero() {
			seek = []byte(fmt.Sprintf("%s%020d:~", eventKeyPrefix, filter.Until.UnixNano()))
		}

		for it.Seek(seek); it.Valid(); it.Next() {
			var event SecurityEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}
			if !filter.Since.IsZero() && event.Timestamp.Before(filter.Since) {
				break
			}
			if !filter.Matches(&event) {
				continue
			}
			results = append(results, event)
			if filter.Limit > 0 && len(results) >= filter.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return results, nil
}

// CreateFlag inserts a pending flag unless the submission is already queued.
func (s *BadgerStore) CreateFlag(ctx context.Context, flag *FlaggedSubmission) (*FlaggedSubmission, bool, error) {
	if flag == nil || flag.SubmissionID == "" {
		return nil, false, fmt.Errorf("create flag: missing submission id")
	}

	var stored *FlaggedSubmission
	created := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(flagKeyPrefix + flag.SubmissionID)
		existing, err := getJSON[FlaggedSubmission](txn, key)
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		data, err := json.Marshal(flag)
		if err != nil {
			return fmt.Errorf("marshal flag: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set flag: %w", err)
		}
		c := flag.clone()
		stored = &c
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// ReviewFlag moves a pending flag to a terminal status.
func (s *BadgerStore) ReviewFlag(ctx context.Context, submissionID string, status ReviewStatus, reviewer, notes string, at time.Time) (*FlaggedSubmission, error) {
	if !status.IsTerminal() {
		return nil, ErrInvalidReviewDecision
	}

	var flag *FlaggedSubmission
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(flagKeyPrefix + submissionID)
		f, err := getJSON[FlaggedSubmission](txn, key)
		if err != nil {
			return err
		}
		if f.ReviewStatus.IsTerminal() {
			return ErrAlreadyReviewed
		}
		reviewedAt := at
		f.ReviewStatus = status
		f.ReviewedBy = reviewer
		f.ReviewedAt = &reviewedAt
		f.ReviewNotes = notes

		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("marshal flag: %w", err)
		}
		flag = f
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}
	return flag, nil
}

// QueryFlags returns matching flags, oldest first.
func (s *BadgerStore) QueryFlags(ctx context.Context, filter FlagFilter) ([]FlaggedSubmission, error) {
	results := make([]FlaggedSubmission, 0)
	err := scanPrefix(s.db, flagKeyPrefix, func(val []byte) error {
		var flag FlaggedSubmission
		if err := json.Unmarshal(val, &flag); err != nil {
			return fmt.Errorf("unmarshal flag: %w", err)
		}
		if filter.Matches(&flag) {
			results = append(results, flag)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}

	sortFlagsOldestFirst(results)
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// SaveAlert stores the alert.
func (s *BadgerStore) SaveAlert(ctx context.Context, alert *SecurityAlert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("save alert: missing id")
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(alertKeyPrefix+alert.ID), data)
	})
}

// AcknowledgeAlert marks an alert acknowledged.
func (s *BadgerStore) AcknowledgeAlert(ctx context.Context, id, who string, at time.Time) (*SecurityAlert, error) {
	var alert *SecurityAlert
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(alertKeyPrefix + id)
		a, err := getJSON[SecurityAlert](txn, key)
		if err != nil {
			return err
		}
		if a.Acknowledged {
			return ErrAlreadyAcknowledged
		}
		ackAt := at
		a.Acknowledged = true
		a.AcknowledgedBy = who
		a.AcknowledgedAt = &ackAt

		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal alert: %w", err)
		}
		alert = a
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// QueryAlerts returns matching alerts, newest first.
func (s *BadgerStore) QueryAlerts(ctx context.Context, filter AlertFilter) ([]SecurityAlert, error) {
	results := make([]SecurityAlert, 0)
	err := scanPrefix(s.db, alertKeyPrefix, func(val []byte) error {
		var alert SecurityAlert
		if err := json.Unmarshal(val, &alert); err != nil {
			return fmt.Errorf("unmarshal alert: %w", err)
		}
		if filter.Matches(&alert) {
			results = append(results, alert)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TriggeredAt.After(results[j].TriggeredAt)
	})
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// Prune deletes expired rows. Events older than the cutoff sort before it,
// so the scan stops at the first newer key.
func (s *BadgerStore) Prune(ctx context.Context, olderThan time.Time) (PruneResult, error) {
	var res PruneResult
	var deleteKeys [][]byte

	cutoff := []byte(fmt.Sprintf("%s%020d", eventKeyPrefix, olderThan.UnixNano()))
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if string(item.Key()) >= string(cutoff) {
				break
			}
			var event SecurityEvent
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				return err
			}
			deleteKeys = append(deleteKeys, item.KeyCopy(nil), []byte(eventIDKeyPrefix+event.ID))
			res.Events++
		}

		for _, p := range []string{flagKeyPrefix, alertKeyPrefix} {
			prefix := []byte(p)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				var expired bool
				if err := item.Value(func(val []byte) error {
					var err error
					expired, err = prunable(p, val, olderThan)
					return err
				}); err != nil {
					return err
				}
				if !expired {
					continue
				}
				deleteKeys = append(deleteKeys, item.KeyCopy(nil))
				if p == flagKeyPrefix {
					res.Flags++
				} else {
					res.Alerts++
				}
			}
		}
		return nil
	})
	if err != nil {
		return PruneResult{}, fmt.Errorf("scan expired: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range deleteKeys {
		if err := wb.Delete(key); err != nil {
			return PruneResult{}, fmt.Errorf("delete expired: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return PruneResult{}, fmt.Errorf("flush prune: %w", err)
	}
	return res, nil
}

func prunable(prefix string, val []byte, olderThan time.Time) (bool, error) {
	switch prefix {
	case flagKeyPrefix:
		var flag FlaggedSubmission
		if err := json.Unmarshal(val, &flag); err != nil {
			return false, err
		}
		return flag.ReviewStatus.IsTerminal() && flag.FlaggedAt.Before(olderThan), nil
	default:
		var alert SecurityAlert
		if err := json.Unmarshal(val, &alert); err != nil {
			return false, err
		}
		return alert.Acknowledged && alert.TriggeredAt.Before(olderThan), nil
	}
}

// gcInterval is how often RunWithContext reclaims value log space.
const gcInterval = 10 * time.Minute

// RunGC rewrites value log files until BadgerDB reports nothing left to
// reclaim. In-memory databases have no value log and return nil.
func (s *BadgerStore) RunGC() error {
	for {
		err := s.db.RunValueLogGC(0.5)
		switch {
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return nil
		case err != nil:
			return fmt.Errorf("run value log gc: %w", err)
		}
	}
}

// RunWithContext runs RunGC every gcInterval until ctx is done.
func (s *BadgerStore) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunGC(); err != nil {
				metrics.RecordStoreError("value_log_gc")
				logging.Warn().Err(err).Msg("Badger value log GC failed")
			}
		}
	}
}

// Close closes the database when the store opened it.
func (s *BadgerStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func getJSON[T any](txn *badger.Txn, key []byte) (*T, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var v T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return &v, nil
}

func scanPrefix(db *badger.DB, prefix string, fn func(val []byte) error) error {
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}
