// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package session

import (
	"context"
	"sync"
)

// MemoryRecords is an in-process RecordStore. It lets a PersistentStore run
// without an external database, in tests and single-node development.
type MemoryRecords struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryRecords creates an empty MemoryRecords.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{records: make(map[string]Record)}
}

// Put stores rec, replacing any record with the same id.
func (m *MemoryRecords) Put(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

// Get returns the record with the given id.
func (m *MemoryRecords) Get(_ context.Context, id string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return rec, ok, nil
}

// Delete removes the record with the given id.
func (m *MemoryRecords) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return false, nil
	}
	delete(m.records, id)
	return true, nil
}

var _ RecordStore = (*MemoryRecords)(nil)
