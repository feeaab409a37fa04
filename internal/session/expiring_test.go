// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/session"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func TestExpiringStore_TTLBoundary(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := session.NewExpiringStore(session.NewMemoryStore(), time.Minute, session.WithClock(clock.Now))

	id, err := s.Create(ctx, "user-1")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	subject, ok, err := s.Lookup(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "a session exactly ttl old is valid")
	assert.Equal(t, "user-1", subject)

	clock.Advance(time.Nanosecond)
	_, ok, err = s.Lookup(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "a session older than ttl is absent")
}

func TestExpiringStore_DisabledTTLNeverExpires(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		t.Run(ttl.String(), func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := session.NewExpiringStore(session.NewMemoryStore(), ttl, session.WithClock(clock.Now))
			assert.Zero(t, s.TTL())

			id, err := s.Create(ctx, "user-1")
			require.NoError(t, err)

			clock.Advance(100 * 365 * 24 * time.Hour)
			_, ok, err := s.Lookup(ctx, id)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestExpiringStore_ExpiredSessionIsNotDeleted(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	inner := session.NewMemoryStore()
	s := session.NewExpiringStore(inner, time.Second, session.WithClock(clock.Now))

	id, err := s.Create(ctx, "user-1")
	require.NoError(t, err)
	clock.Advance(time.Hour)

	_, ok, err := s.Lookup(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, inner.Len())

	existed, err := s.Destroy(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Zero(t, inner.Len())
}

func TestExpiringStore_MissingTimestampIsAbsent(t *testing.T) {
	ctx := context.Background()
	inner := session.NewMemoryStore()
	id, err := inner.Create(ctx, "user-1")
	require.NoError(t, err)

	s := session.NewExpiringStore(inner, time.Hour)
	_, ok, err := s.Lookup(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpiringStore_PropagatesInvalidSubject(t *testing.T) {
	s := session.NewExpiringStore(session.NewMemoryStore(), time.Hour)
	_, err := s.Create(context.Background(), "")
	errutil.AssertErrorCode(t, err, auth.CodeInvalidSubject)
}

func TestExpiringStore_DestroyThenLookup(t *testing.T) {
	ctx := context.Background()
	s := session.NewExpiringStore(session.NewMemoryStore(), time.Hour)

	id, err := s.Create(ctx, "user-1")
	require.NoError(t, err)
	existed, err := s.Destroy(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)

	_, ok, err := s.Lookup(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}
