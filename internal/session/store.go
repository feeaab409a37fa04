// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package session maps opaque session ids to subject ids.
//
// MemoryStore is the base store. ExpiringStore adds a fixed time-to-live and
// PersistentStore mirrors every session into a durable RecordStore. Both
// decorate any Store, so persistence with or without expiry is a matter of
// composition:
//
//	s := session.NewPersistentStore(session.NewExpiringStore(session.NewMemoryStore(), ttl), records)
//
// Expiry is lazy: an expired session reads as absent but stays stored until
// it is destroyed.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// Store creates, resolves and destroys sessions.
// Implementations are safe for concurrent use.
type Store interface {
	// Create binds a new random session id to subjectID.
	// Returns INVALID_SUBJECT when subjectID is empty.
	Create(ctx context.Context, subjectID string) (string, error)

	// Lookup returns the subject bound to sessionID. An unknown or expired
	// session reports ok == false with a nil error.
	Lookup(ctx context.Context, sessionID string) (subjectID string, ok bool, err error)

	// Destroy removes sessionID and reports whether it existed.
	Destroy(ctx context.Context, sessionID string) (bool, error)
}

// Expirer is implemented by stores with a time-to-live.
// A zero TTL means sessions never expire.
type Expirer interface {
	TTL() time.Duration
}

// Record is the durable form of a session.
type Record struct {
	ID        string
	SubjectID string
	CreatedAt time.Time
}

// RecordStore persists session records keyed by Record.ID.
type RecordStore interface {
	Put(ctx context.Context, rec Record) error
	// Get returns ok == false when no record has the id.
	Get(ctx context.Context, id string) (rec Record, ok bool, err error)
	// Delete reports whether a record was removed. Concurrent deletes of the
	// same id report true at most once.
	Delete(ctx context.Context, id string) (bool, error)
}

// expired reports whether a session created at createdAt has outlived ttl.
// A session exactly ttl old is still valid.
func expired(now, createdAt time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(createdAt) > ttl
}

type options struct {
	now      func() time.Time
	ttl      *time.Duration
	newToken func() (string, error)
	logger   *slog.Logger
}

// Option configures a store.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithTTL sets the time-to-live of a PersistentStore. Without it the TTL of
// the wrapped store is used.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = &ttl }
}

// WithTokenGenerator replaces the random session id source of a MemoryStore.
func WithTokenGenerator(fn func() (string, error)) Option {
	return func(o *options) { o.newToken = fn }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	o := options{
		now:      time.Now,
		newToken: auth.GenerateToken,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
