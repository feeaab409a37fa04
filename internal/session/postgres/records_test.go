// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/session"
	"github.com/gatekeep/gatekeep/internal/session/postgres"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestRecordStore_Put(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := session.Record{ID: "sid-1", SubjectID: "user-1", CreatedAt: created}

	mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO user_sessions`)).
		WithArgs("sid-1", "user-1", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, postgres.NewRecordStore(mock).Put(ctx, rec))

	failing := newMock(t)
	failing.ExpectExec(regexp.QuoteMeta(`INSERT INTO user_sessions`)).
		WithArgs("sid-1", "user-1", created).
		WillReturnError(errors.New("connection refused"))
	err := postgres.NewRecordStore(failing).Put(ctx, rec)
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "operation", "insert session")
}

func TestRecordStore_Get(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id, created_at FROM user_sessions WHERE session_id = $1`)).
			WithArgs("sid-1").
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "created_at"}).AddRow("user-1", created))

		rec, ok, err := postgres.NewRecordStore(mock).Get(ctx, "sid-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, session.Record{ID: "sid-1", SubjectID: "user-1", CreatedAt: created}, rec)
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM user_sessions`)).
			WithArgs("sid-2").
			WillReturnError(pgx.ErrNoRows)

		_, ok, err := postgres.NewRecordStore(mock).Get(ctx, "sid-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM user_sessions`)).
			WithArgs("sid-3").
			WillReturnError(errors.New("timeout"))

		_, ok, err := postgres.NewRecordStore(mock).Get(ctx, "sid-3")
		require.Error(t, err)
		assert.False(t, ok)
	})
}

func TestRecordStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("existing", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM user_sessions WHERE session_id = $1 RETURNING session_id`)).
			WithArgs("sid-1").
			WillReturnRows(pgxmock.NewRows([]string{"session_id"}).AddRow("sid-1"))

		existed, err := postgres.NewRecordStore(mock).Delete(ctx, "sid-1")
		require.NoError(t, err)
		assert.True(t, existed)
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM user_sessions`)).
			WithArgs("sid-2").
			WillReturnError(pgx.ErrNoRows)

		existed, err := postgres.NewRecordStore(mock).Delete(ctx, "sid-2")
		require.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestRecordStore_BehindPersistentStore(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO user_sessions`)).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	inner := session.NewMemoryStore()
	s := session.NewPersistentStore(inner, postgres.NewRecordStore(mock))
	_, err := s.Create(ctx, "user-1")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, auth.CodeStorageFailure)
	assert.Zero(t, inner.Len())
}
