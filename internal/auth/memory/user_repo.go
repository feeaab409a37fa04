// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package memory provides an in-process auth.UserRepository.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// UserRepository implements auth.UserRepository with maps guarded by a mutex.
// It is safe for concurrent use.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.User
	byEmail map[string]ulid.ULID
	now     func() time.Time
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]ulid.ULID),
		now:     time.Now,
	}
}

// Find returns the single user matching criteria.
func (r *UserRepository) Find(_ context.Context, criteria auth.Criteria) (*auth.User, error) {
	field, value, err := criteria.Field()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var user *auth.User
	switch field {
	case auth.FieldID:
		id, parseErr := ulid.Parse(value)
		if parseErr == nil {
			user = r.byID[id]
		}
	case auth.FieldEmail:
		if id, ok := r.byEmail[value]; ok {
			user = r.byID[id]
		}
	case auth.FieldSessionID:
		user = r.scan(func(u *auth.User) bool { return u.SessionID != nil && *u.SessionID == value })
	case auth.FieldResetToken:
		user = r.scan(func(u *auth.User) bool { return u.ResetToken != nil && *u.ResetToken == value })
	}

	if user == nil {
		return nil, auth.NotFoundError(string(field), value)
	}
	return user.Clone(), nil
}

// scan returns the first user matching fn. Callers hold r.mu.
func (r *UserRepository) scan(fn func(*auth.User) bool) *auth.User {
	for _, u := range r.byID {
		if fn(u) {
			return u
		}
	}
	return nil
}

// Add stores a new user.
func (r *UserRepository) Add(_ context.Context, email, hashedPassword string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return nil, oops.Code(auth.CodeDuplicateIdentity).
			With("email", email).
			Errorf("user %s already exists", email)
	}

	now := r.now().UTC()
	user := &auth.User{
		ID:             ulid.Make(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.byID[user.ID] = user
	r.byEmail[email] = user.ID

	return user.Clone(), nil
}

// Update applies changes to the user with the given id.
func (r *UserRepository) Update(_ context.Context, id ulid.ULID, changes auth.Changes) (*auth.User, error) {
	if err := changes.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, auth.NotFoundError("id", id.String())
	}

	if email, ok := changes[auth.FieldEmail]; ok && *email != user.Email {
		if _, taken := r.byEmail[*email]; taken {
			return nil, oops.Code(auth.CodeDuplicateIdentity).
				With("email", *email).
				Errorf("user %s already exists", *email)
		}
		delete(r.byEmail, user.Email)
		r.byEmail[*email] = id
	}

	changes.Apply(user)
	user.UpdatedAt = r.now().UTC()

	return user.Clone(), nil
}

// RedeemResetToken replaces the password of the user holding token and
// clears the token under the write lock.
func (r *UserRepository) RedeemResetToken(_ context.Context, token, hashedPassword string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.scan(func(u *auth.User) bool { return u.ResetToken != nil && *u.ResetToken == token })
	if user == nil {
		return nil, auth.NotFoundError(string(auth.FieldResetToken), token)
	}
	user.HashedPassword = hashedPassword
	user.ResetToken = nil
	user.UpdatedAt = r.now().UTC()
	return user.Clone(), nil
}

// Compile-time interface checks.
var (
	_ auth.UserRepository     = (*UserRepository)(nil)
	_ auth.ResetTokenRedeemer = (*UserRepository)(nil)
)
