// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field names a User attribute in repository criteria and changes.
type Field string

// User attributes.
const (
	FieldID             Field = "id"
	FieldEmail          Field = "email"
	FieldHashedPassword Field = "hashed_password"
	FieldSessionID      Field = "session_id"
	FieldResetToken     Field = "reset_token"
)

// lookupFields identify at most one row each.
var lookupFields = map[Field]bool{
	FieldID:         true,
	FieldEmail:      true,
	FieldSessionID:  true,
	FieldResetToken: true,
}

// updatableFields may appear in Changes.
var updatableFields = map[Field]bool{
	FieldEmail:          true,
	FieldHashedPassword: true,
	FieldSessionID:      true,
	FieldResetToken:     true,
}

// nullableFields accept a nil value in Changes.
var nullableFields = map[Field]bool{
	FieldSessionID:  true,
	FieldResetToken: true,
}

// User is a stored account.
type User struct {
	ID             ulid.ULID
	Email          string
	HashedPassword string
	SessionID      *string
	ResetToken     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Identity is the resolved principal exposed to callers.
type Identity struct {
	ID    ulid.ULID `json:"id"`
	Email string    `json:"email"`
}

// Identity projects the user onto its public principal.
func (u *User) Identity() *Identity {
	return &Identity{ID: u.ID, Email: u.Email}
}

// Clone returns a deep copy so callers can't mutate repository state.
func (u *User) Clone() *User {
	c := *u
	if u.SessionID != nil {
		s := *u.SessionID
		c.SessionID = &s
	}
	if u.ResetToken != nil {
		t := *u.ResetToken
		c.ResetToken = &t
	}
	return &c
}

// Criteria selects a single user by one lookup field.
type Criteria map[Field]string

// ByEmail selects a user by email.
func ByEmail(email string) Criteria { return Criteria{FieldEmail: email} }

// ByID selects a user by id.
func ByID(id string) Criteria { return Criteria{FieldID: id} }

// BySessionID selects a user by the session id stored on the record.
func BySessionID(sessionID string) Criteria { return Criteria{FieldSessionID: sessionID} }

// ByResetToken selects a user by reset token.
func ByResetToken(token string) Criteria { return Criteria{FieldResetToken: token} }

// Field returns the single field and value of valid criteria.
// Criteria that are empty, name more than one field, or name a field that
// does not identify a row fail with AMBIGUOUS_QUERY.
func (c Criteria) Field() (Field, string, error) {
	if len(c) != 1 {
		return "", "", oops.Code(CodeAmbiguousQuery).
			With("fields", c.names()).
			Errorf("criteria must select exactly one field, got %d", len(c))
	}
	var (
		field Field
		value string
	)
	for field, value = range c {
	}
	if !lookupFields[field] {
		return "", "", oops.Code(CodeAmbiguousQuery).
			With("field", string(field)).
			Errorf("field %q does not identify a user", field)
	}
	return field, value, nil
}

func (c Criteria) names() []string {
	names := make([]string, 0, len(c))
	for f := range c {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// Changes lists attribute updates. A nil value clears a nullable attribute.
type Changes map[Field]*string

// Set returns a change value for v.
func Set(v string) *string { return &v }

// Validate rejects unknown fields and nil values for required attributes.
func (c Changes) Validate() error {
	for f, v := range c {
		if !updatableFields[f] {
			return oops.Code(CodeUnknownField).
				With("field", string(f)).
				Errorf("unknown user field %q", f)
		}
		if v == nil && !nullableFields[f] {
			return oops.Code(CodeUnknownField).
				With("field", string(f)).
				Errorf("user field %q cannot be cleared", f)
		}
	}
	return nil
}

// Apply writes validated changes onto u.
func (c Changes) Apply(u *User) {
	for f, v := range c {
		switch f {
		case FieldEmail:
			u.Email = *v
		case FieldHashedPassword:
			u.HashedPassword = *v
		case FieldSessionID:
			u.SessionID = copyPtr(v)
		case FieldResetToken:
			u.ResetToken = copyPtr(v)
		}
	}
}

func copyPtr(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Find returns the single user matching criteria.
	// Returns a NOT_FOUND error wrapping ErrNotFound when nothing matches and
	// AMBIGUOUS_QUERY when the criteria are structurally invalid.
	Find(ctx context.Context, criteria Criteria) (*User, error)

	// Add stores a new user. Returns DUPLICATE_IDENTITY if the email is taken.
	Add(ctx context.Context, email, hashedPassword string) (*User, error)

	// Update applies changes to the user with the given id and returns the
	// updated record. Returns UNKNOWN_FIELD or NOT_FOUND.
	Update(ctx context.Context, id ulid.ULID, changes Changes) (*User, error)
}

// ResetTokenRedeemer is implemented by repositories that can swap the
// password and clear a reset token in one conditional write, so a token
// stays single use across processes sharing the store.
type ResetTokenRedeemer interface {
	// RedeemResetToken sets hashedPassword on the user holding token and
	// clears the token. Returns NOT_FOUND when no user holds it.
	RedeemResetToken(ctx context.Context, token, hashedPassword string) (*User, error)
}
