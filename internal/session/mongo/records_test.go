// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/session"
	"github.com/gatekeep/gatekeep/internal/session/mongo"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func TestRecordStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("put", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := mongo.NewRecordStore(mt.Coll).Put(ctx, session.Record{ID: "sid-1", SubjectID: "user-1", CreatedAt: created})
		require.NoError(mt, err)
	})

	mt.Run("put failure rolls back the session", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		inner := session.NewMemoryStore()
		s := session.NewPersistentStore(inner, mongo.NewRecordStore(mt.Coll))
		_, err := s.Create(ctx, "user-1")
		require.Error(mt, err)
		errutil.AssertErrorCode(mt, err, auth.CodeStorageFailure)
		assert.Zero(mt, inner.Len())
	})

	mt.Run("get found", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "sid-1"},
				{Key: "subject_id", Value: "user-1"},
				{Key: "created_at", Value: created},
			}),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)

		rec, ok, err := mongo.NewRecordStore(mt.Coll).Get(ctx, "sid-1")
		require.NoError(mt, err)
		assert.True(mt, ok)
		assert.Equal(mt, "user-1", rec.SubjectID)
		assert.True(mt, created.Equal(rec.CreatedAt))
	})

	mt.Run("get missing", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, ok, err := mongo.NewRecordStore(mt.Coll).Get(ctx, "sid-2")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("delete reports the document once", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		store := mongo.NewRecordStore(mt.Coll)
		existed, err := store.Delete(ctx, "sid-1")
		require.NoError(mt, err)
		assert.True(mt, existed)

		existed, err = store.Delete(ctx, "sid-1")
		require.NoError(mt, err)
		assert.False(mt, existed)
	})

	mt.Run("command failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad value",
		}))

		_, err := mongo.NewRecordStore(mt.Coll).Delete(ctx, "sid-1")
		require.Error(mt, err)
	})
}
