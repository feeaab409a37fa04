// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// PersistentStore wraps a Store and mirrors every session into a RecordStore.
// The durable record is authoritative: sessions survive a restart of the
// in-memory layer, and a session missing from the records is absent even if
// the wrapped store still knows it.
//
// Durable failures surface as STORAGE_FAILURE and are never retried here.
type PersistentStore struct {
	inner   Store
	records RecordStore
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewPersistentStore wraps inner. The TTL comes from WithTTL, else from inner
// when it implements Expirer, else expiry is disabled.
func NewPersistentStore(inner Store, records RecordStore, opts ...Option) *PersistentStore {
	o := buildOptions(opts)

	var ttl time.Duration
	switch {
	case o.ttl != nil:
		ttl = *o.ttl
	case inner != nil:
		if e, ok := inner.(Expirer); ok {
			ttl = e.TTL()
		}
	}
	if ttl < 0 {
		ttl = 0
	}

	return &PersistentStore{
		inner:   inner,
		records: records,
		ttl:     ttl,
		now:     o.now,
		logger:  o.logger,
	}
}

// TTL returns the time-to-live applied to durable records.
func (s *PersistentStore) TTL() time.Duration { return s.ttl }

// Create creates the session in the wrapped store, then persists it. When
// the write fails the in-memory session is rolled back.
func (s *PersistentStore) Create(ctx context.Context, subjectID string) (string, error) {
	id, err := s.inner.Create(ctx, subjectID)
	if err != nil {
		return "", err
	}

	rec := Record{ID: id, SubjectID: subjectID, CreatedAt: s.now().UTC()}
	if err := s.records.Put(ctx, rec); err != nil {
		recordStorageFailure("put")
		if _, rbErr := s.inner.Destroy(ctx, id); rbErr != nil {
			errutil.LogErrorContext(ctx, s.logger, "session rollback failed", rbErr)
		}
		return "", oops.With("subject_id", subjectID).Wrap(auth.StorageError("put session record", err))
	}
	return id, nil
}

// Lookup reads the durable record and applies the TTL to its creation time.
func (s *PersistentStore) Lookup(ctx context.Context, sessionID string) (string, bool, error) {
	if sessionID == "" {
		return "", false, nil
	}

	rec, ok, err := s.records.Get(ctx, sessionID)
	if err != nil {
		recordStorageFailure("get")
		return "", false, auth.StorageError("get session record", err)
	}
	if !ok {
		return "", false, nil
	}
	if expired(s.now(), rec.CreatedAt, s.ttl) {
		recordExpired()
		return "", false, nil
	}
	return rec.SubjectID, true, nil
}

// Destroy deletes the durable record, then the in-memory session. It
// reports whether the durable record existed.
func (s *PersistentStore) Destroy(ctx context.Context, sessionID string) (bool, error) {
	existed, err := s.records.Delete(ctx, sessionID)
	if err != nil {
		recordStorageFailure("delete")
		return false, auth.StorageError("delete session record", err)
	}
	if _, err := s.inner.Destroy(ctx, sessionID); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "in-memory session destroy failed", err)
	}
	return existed, nil
}

var (
	_ Store   = (*PersistentStore)(nil)
	_ Expirer = (*PersistentStore)(nil)
)
