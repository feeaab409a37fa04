// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/gatekeep/gatekeep/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errBackend = errors.New("backend unavailable")

// failingRecords fails the operations whose error is set.
type failingRecords struct {
	*session.MemoryRecords
	putErr, getErr, deleteErr error
}

func newFailingRecords() *failingRecords {
	return &failingRecords{MemoryRecords: session.NewMemoryRecords()}
}

func (f *failingRecords) Put(ctx context.Context, rec session.Record) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryRecords.Put(ctx, rec)
}

func (f *failingRecords) Get(ctx context.Context, id string) (session.Record, bool, error) {
	if f.getErr != nil {
		return session.Record{}, false, f.getErr
	}
	return f.MemoryRecords.Get(ctx, id)
}

func (f *failingRecords) Delete(ctx context.Context, id string) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return f.MemoryRecords.Delete(ctx, id)
}
