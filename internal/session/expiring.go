// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package session

import (
	"context"
	"sync"
	"time"
)

// ExpiringStore wraps a Store and hides sessions older than a fixed TTL.
// Expired sessions are not removed; Destroy still reports them as existing.
type ExpiringStore struct {
	inner Store
	ttl   time.Duration
	now   func() time.Time

	mu        sync.RWMutex
	createdAt map[string]time.Time
}

// NewExpiringStore wraps inner. A ttl <= 0 disables expiry.
func NewExpiringStore(inner Store, ttl time.Duration, opts ...Option) *ExpiringStore {
	o := buildOptions(opts)
	if ttl < 0 {
		ttl = 0
	}
	return &ExpiringStore{
		inner:     inner,
		ttl:       ttl,
		now:       o.now,
		createdAt: make(map[string]time.Time),
	}
}

// TTL returns the configured time-to-live. Zero means disabled.
func (s *ExpiringStore) TTL() time.Duration { return s.ttl }

// Create creates the session in the wrapped store and stamps its creation time.
func (s *ExpiringStore) Create(ctx context.Context, subjectID string) (string, error) {
	id, err := s.inner.Create(ctx, subjectID)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.createdAt[id] = s.now()
	s.mu.Unlock()
	return id, nil
}

// Lookup returns the subject unless the session has expired. A session
// without a creation time is treated as absent.
func (s *ExpiringStore) Lookup(ctx context.Context, sessionID string) (string, bool, error) {
	if s.ttl <= 0 {
		return s.inner.Lookup(ctx, sessionID)
	}

	s.mu.RLock()
	created, ok := s.createdAt[sessionID]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if expired(s.now(), created, s.ttl) {
		recordExpired()
		return "", false, nil
	}
	return s.inner.Lookup(ctx, sessionID)
}

// Destroy removes the session and its creation time.
func (s *ExpiringStore) Destroy(ctx context.Context, sessionID string) (bool, error) {
	existed, err := s.inner.Destroy(ctx, sessionID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	delete(s.createdAt, sessionID)
	s.mu.Unlock()
	return existed, nil
}

var (
	_ Store   = (*ExpiringStore)(nil)
	_ Expirer = (*ExpiringStore)(nil)
)
