// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/session"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := session.NewMemoryStore()

	id, err := s.Create(ctx, "user-1")
	require.NoError(t, err)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())

	subject, ok, err := s.Lookup(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-1", subject)

	existed, err := s.Destroy(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)

	_, ok, err = s.Lookup(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	existed, err = s.Destroy(ctx, id)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestMemoryStore_EmptySubject(t *testing.T) {
	_, err := session.NewMemoryStore().Create(context.Background(), "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidSubject)
}

func TestMemoryStore_LookupUnknownIsAbsent(t *testing.T) {
	s := session.NewMemoryStore()
	for _, id := range []string{"", "nope", "0f8fad5b-d9cb-469f-a165-70867728950e"} {
		subject, ok, err := s.Lookup(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, subject)
	}
}

func TestMemoryStore_DistinctIDsPerCreate(t *testing.T) {
	ctx := context.Background()
	s := session.NewMemoryStore()
	seen := make(map[string]bool)
	for range 100 {
		id, err := s.Create(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate session id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 100, s.Len())
}

func TestMemoryStore_RegeneratesOnCollision(t *testing.T) {
	ctx := context.Background()
	ids := []string{"a", "a", "b"}
	next := 0
	s := session.NewMemoryStore(session.WithTokenGenerator(func() (string, error) {
		id := ids[next]
		next++
		return id, nil
	}))

	first, err := s.Create(ctx, "user-1")
	require.NoError(t, err)
	second, err := s.Create(ctx, "user-2")
	require.NoError(t, err)

	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)
	subject, _, _ := s.Lookup(ctx, "a")
	assert.Equal(t, "user-1", subject)
}

func TestMemoryStore_TokenSourceFailure(t *testing.T) {
	boom := errors.New("entropy exhausted")
	s := session.NewMemoryStore(session.WithTokenGenerator(func() (string, error) { return "", boom }))
	_, err := s.Create(context.Background(), "user-1")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.Len())
}

func TestMemoryStore_ExhaustedIDs(t *testing.T) {
	ctx := context.Background()
	s := session.NewMemoryStore(session.WithTokenGenerator(func() (string, error) { return "same", nil }))
	_, err := s.Create(ctx, "user-1")
	require.NoError(t, err)

	_, err = s.Create(ctx, "user-2")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_ID_EXHAUSTED")
}
