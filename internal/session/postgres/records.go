// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package postgres stores session records in the user_sessions table.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/session"
	"github.com/gatekeep/gatekeep/internal/store"
)

// RecordStore implements session.RecordStore using PostgreSQL.
type RecordStore struct {
	db store.Querier
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(db store.Querier) *RecordStore {
	return &RecordStore{db: db}
}

// Put inserts rec.
func (r *RecordStore) Put(ctx context.Context, rec session.Record) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_sessions (session_id, user_id, created_at)
		VALUES ($1, $2, $3)
	`, rec.ID, rec.SubjectID, rec.CreatedAt)
	if err != nil {
		return oops.With("operation", "insert session").
			With("user_id", rec.SubjectID).
			Wrap(err)
	}
	return nil
}

// Get loads the record for id.
func (r *RecordStore) Get(ctx context.Context, id string) (session.Record, bool, error) {
	rec := session.Record{ID: id}
	err := r.db.QueryRow(ctx,
		`SELECT user_id, created_at FROM user_sessions WHERE session_id = $1`, id).
		Scan(&rec.SubjectID, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Record{}, false, nil
	}
	if err != nil {
		return session.Record{}, false, oops.With("operation", "select session").Wrap(err)
	}
	return rec, true, nil
}

// Delete removes the record for id. Postgres row locking makes concurrent
// deletes of one id return the row to exactly one caller.
func (r *RecordStore) Delete(ctx context.Context, id string) (bool, error) {
	var deleted string
	err := r.db.QueryRow(ctx,
		`DELETE FROM user_sessions WHERE session_id = $1 RETURNING session_id`, id).
		Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, oops.With("operation", "delete session").Wrap(err)
	}
	return true, nil
}

var _ session.RecordStore = (*RecordStore)(nil)
