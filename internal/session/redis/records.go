// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package redis stores session records as Redis hashes.
package redis

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/session"
)

// KeyPrefix namespaces session hashes.
const KeyPrefix = "session:"

const (
	fieldSubject   = "subject_id"
	fieldCreatedAt = "created_at"
)

// Client is the subset of goredis.Cmdable used by RecordStore.
type Client interface {
	HSet(ctx context.Context, key string, values ...any) *goredis.IntCmd
	HGetAll(ctx context.Context, key string) *goredis.MapStringStringCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// RecordStore implements session.RecordStore on Redis. Each record is a hash
// at KeyPrefix+id holding the subject and the creation time in unix nanoseconds.
type RecordStore struct {
	client Client
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(client Client) *RecordStore {
	return &RecordStore{client: client}
}

func key(id string) string { return KeyPrefix + id }

// Put writes rec.
func (r *RecordStore) Put(ctx context.Context, rec session.Record) error {
	err := r.client.HSet(ctx, key(rec.ID),
		fieldSubject, rec.SubjectID,
		fieldCreatedAt, strconv.FormatInt(rec.CreatedAt.UnixNano(), 10),
	).Err()
	if err != nil {
		return oops.With("operation", "hset session").With("user_id", rec.SubjectID).Wrap(err)
	}
	return nil
}

// Get reads the record for id. Redis returns an empty hash for a missing key.
func (r *RecordStore) Get(ctx context.Context, id string) (session.Record, bool, error) {
	fields, err := r.client.HGetAll(ctx, key(id)).Result()
	if err != nil {
		return session.Record{}, false, oops.With("operation", "hgetall session").Wrap(err)
	}
	if len(fields) == 0 {
		return session.Record{}, false, nil
	}

	nanos, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return session.Record{}, false, oops.With("operation", "parse session created_at").
			With("value", fields[fieldCreatedAt]).
			Wrap(err)
	}
	return session.Record{
		ID:        id,
		SubjectID: fields[fieldSubject],
		CreatedAt: time.Unix(0, nanos).UTC(),
	}, true, nil
}

// Delete removes the record for id. DEL is atomic, so concurrent deletes of
// one key count it once.
func (r *RecordStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Del(ctx, key(id)).Result()
	if err != nil {
		return false, oops.With("operation", "del session").Wrap(err)
	}
	return n > 0, nil
}

var (
	_ session.RecordStore = (*RecordStore)(nil)
	_ Client              = (*goredis.Client)(nil)
)
