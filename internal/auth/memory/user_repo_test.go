// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package memory_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/auth/memory"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func TestUserRepository_AddAndFind(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()

	user, err := repo.Add(ctx, "a@b.com", "digest")
	require.NoError(t, err)
	assert.False(t, user.CreatedAt.IsZero())

	byEmail, err := repo.Find(ctx, auth.ByEmail("a@b.com"))
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byID, err := repo.Find(ctx, auth.ByID(user.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", byID.Email)

	_, err = repo.Add(ctx, "a@b.com", "other")
	errutil.AssertErrorCode(t, err, auth.CodeDuplicateIdentity)
}

func TestUserRepository_FindMissing(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()

	for name, criteria := range map[string]auth.Criteria{
		"email":       auth.ByEmail("c@d.com"),
		"id":          auth.ByID(ulid.Make().String()),
		"malformed":   auth.ByID("not-a-ulid"),
		"session":     auth.BySessionID("sid"),
		"reset token": auth.ByResetToken("tok"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Find(ctx, criteria)
			assert.True(t, auth.IsNotFound(err))
		})
	}

	_, err := repo.Find(ctx, auth.Criteria{})
	errutil.AssertErrorCode(t, err, auth.CodeAmbiguousQuery)
}

func TestUserRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	user, err := repo.Add(ctx, "a@b.com", "digest")
	require.NoError(t, err)

	updated, err := repo.Update(ctx, user.ID, auth.Changes{
		auth.FieldSessionID:  auth.Set("sid"),
		auth.FieldResetToken: auth.Set("tok"),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.SessionID)
	assert.Equal(t, "sid", *updated.SessionID)

	found, err := repo.Find(ctx, auth.BySessionID("sid"))
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	found, err = repo.Find(ctx, auth.ByResetToken("tok"))
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	t.Run("clearing a nullable field", func(t *testing.T) {
		updated, err := repo.Update(ctx, user.ID, auth.Changes{auth.FieldSessionID: nil})
		require.NoError(t, err)
		assert.Nil(t, updated.SessionID)

		_, err = repo.Find(ctx, auth.BySessionID("sid"))
		assert.True(t, auth.IsNotFound(err))
	})

	t.Run("changing email re-indexes", func(t *testing.T) {
		_, err := repo.Update(ctx, user.ID, auth.Changes{auth.FieldEmail: auth.Set("c@d.com")})
		require.NoError(t, err)

		_, err = repo.Find(ctx, auth.ByEmail("a@b.com"))
		assert.True(t, auth.IsNotFound(err))
		_, err = repo.Find(ctx, auth.ByEmail("c@d.com"))
		require.NoError(t, err)
	})

	t.Run("email taken by another user", func(t *testing.T) {
		_, err := repo.Add(ctx, "e@f.com", "digest")
		require.NoError(t, err)
		_, err = repo.Update(ctx, user.ID, auth.Changes{auth.FieldEmail: auth.Set("e@f.com")})
		errutil.AssertErrorCode(t, err, auth.CodeDuplicateIdentity)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := repo.Update(ctx, user.ID, auth.Changes{"nickname": auth.Set("x")})
		errutil.AssertErrorCode(t, err, auth.CodeUnknownField)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := repo.Update(ctx, ulid.Make(), auth.Changes{auth.FieldSessionID: nil})
		assert.True(t, auth.IsNotFound(err))
	})
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	user, err := repo.Add(ctx, "a@b.com", "digest")
	require.NoError(t, err)

	user.Email = "mutated"
	found, err := repo.Find(ctx, auth.ByID(user.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", found.Email)
}

func TestUserRepository_ConcurrentAdd(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Add(ctx, fmt.Sprintf("user%d@b.com", i), "digest")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for i := range 50 {
		_, err := repo.Find(ctx, auth.ByEmail(fmt.Sprintf("user%d@b.com", i)))
		assert.NoError(t, err)
	}
}

func TestUserRepository_RedeemResetToken(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	user, err := repo.Add(ctx, "a@b.com", "digest")
	require.NoError(t, err)
	_, err = repo.Update(ctx, user.ID, auth.Changes{auth.FieldResetToken: auth.Set("tok")})
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		redeemed atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.RedeemResetToken(ctx, "tok", "new-digest")
			if err == nil {
				redeemed.Add(1)
				return
			}
			assert.True(t, auth.IsNotFound(err))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), redeemed.Load())

	found, err := repo.Find(ctx, auth.ByID(user.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, "new-digest", found.HashedPassword)
	assert.Nil(t, found.ResetToken)
}
