// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package mongo stores session records in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gatekeep/gatekeep/internal/session"
)

// CollectionName is the default collection for session records.
const CollectionName = "user_sessions"

type document struct {
	ID        string    `bson:"_id"`
	SubjectID string    `bson:"subject_id"`
	CreatedAt time.Time `bson:"created_at"`
}

// RecordStore implements session.RecordStore on a MongoDB collection keyed
// by _id.
type RecordStore struct {
	coll *mongo.Collection
}

// NewRecordStore creates a RecordStore over coll.
func NewRecordStore(coll *mongo.Collection) *RecordStore {
	return &RecordStore{coll: coll}
}

// NewRecordStoreForDatabase uses CollectionName in db.
func NewRecordStoreForDatabase(db *mongo.Database) *RecordStore {
	return NewRecordStore(db.Collection(CollectionName))
}

// Put inserts rec.
func (r *RecordStore) Put(ctx context.Context, rec session.Record) error {
	_, err := r.coll.InsertOne(ctx, document{
		ID:        rec.ID,
		SubjectID: rec.SubjectID,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return oops.With("operation", "insert session").With("user_id", rec.SubjectID).Wrap(err)
	}
	return nil
}

// Get loads the record for id.
func (r *RecordStore) Get(ctx context.Context, id string) (session.Record, bool, error) {
	var doc document
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return session.Record{}, false, nil
	}
	if err != nil {
		return session.Record{}, false, oops.With("operation", "find session").Wrap(err)
	}
	return session.Record{
		ID:        doc.ID,
		SubjectID: doc.SubjectID,
		CreatedAt: doc.CreatedAt.UTC(),
	}, true, nil
}

// Delete removes the record for id. DeleteOne reports the document to one
// caller only.
func (r *RecordStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, oops.With("operation", "delete session").Wrap(err)
	}
	return res.DeletedCount > 0, nil
}

var _ session.RecordStore = (*RecordStore)(nil)
