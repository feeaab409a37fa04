// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package session

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// maxCollisions bounds id regeneration when the token source repeats.
const maxCollisions = 8

// MemoryStore keeps sessions in a map. Sessions never expire.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]string
	newToken func() (string, error)
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		sessions: make(map[string]string),
		newToken: o.newToken,
	}
}

// Create binds a fresh session id to subjectID.
func (s *MemoryStore) Create(_ context.Context, subjectID string) (string, error) {
	if subjectID == "" {
		return "", oops.Code(auth.CodeInvalidSubject).Errorf("subject id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for range maxCollisions {
		id, err := s.newToken()
		if err != nil {
			return "", err
		}
		if _, taken := s.sessions[id]; taken {
			continue
		}
		s.sessions[id] = subjectID
		recordCreated()
		return id, nil
	}
	return "", oops.Code("SESSION_ID_EXHAUSTED").
		With("attempts", maxCollisions).
		Errorf("could not generate an unused session id")
}

// Lookup returns the subject bound to sessionID.
func (s *MemoryStore) Lookup(_ context.Context, sessionID string) (string, bool, error) {
	if sessionID == "" {
		return "", false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	subjectID, ok := s.sessions[sessionID]
	return subjectID, ok, nil
}

// Destroy removes sessionID.
func (s *MemoryStore) Destroy(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ Store = (*MemoryStore)(nil)
