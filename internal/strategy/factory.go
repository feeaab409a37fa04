// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package strategy

import (
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/session"
)

// Kind names a strategy variant, as configured by auth.type.
type Kind string

// Strategy variants.
const (
	KindBasic            Kind = "basic_auth"
	KindSession          Kind = "session_auth"
	KindExpiringSession  Kind = "session_exp_auth"
	KindPersistedSession Kind = "session_db_auth"
)

// Kinds lists every supported variant.
var Kinds = []Kind{KindBasic, KindSession, KindExpiringSession, KindPersistedSession}

// Valid reports whether k names a supported variant.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Deps are the collaborators a strategy may need.
type Deps struct {
	Users      auth.UserRepository
	Hasher     auth.PasswordHasher
	CookieName string
	// TTL of expiring and persisted sessions. Zero or negative disables expiry.
	TTL time.Duration
	// Records backs KindPersistedSession.
	Records session.RecordStore
	Clock   func() time.Time
	Logger  *slog.Logger
}

// New builds the strategy for kind.
func New(kind Kind, deps Deps) (Strategy, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	var opts []session.Option
	if deps.Clock != nil {
		opts = append(opts, session.WithClock(deps.Clock))
	}
	opts = append(opts, session.WithLogger(deps.Logger))

	var store session.Store
	switch kind {
	case KindBasic:
		return NewHeader(deps.Users, deps.Hasher, deps.Logger)
	case KindSession:
		store = session.NewMemoryStore(opts...)
	case KindExpiringSession:
		store = session.NewExpiringStore(session.NewMemoryStore(opts...), deps.TTL, opts...)
	case KindPersistedSession:
		if deps.Records == nil {
			return nil, oops.Code("STRATEGY_INVALID_CONFIG").
				With("kind", string(kind)).
				Errorf("a session record store is required")
		}
		store = session.NewPersistentStore(
			session.NewExpiringStore(session.NewMemoryStore(opts...), deps.TTL, opts...),
			deps.Records, opts...)
	default:
		return nil, oops.Code("STRATEGY_UNKNOWN").
			With("kind", string(kind)).
			Errorf("unknown auth type %q", kind)
	}

	s, err := NewSessionCookie(deps.CookieName, store, deps.Users, deps.Logger)
	if err != nil {
		return nil, err
	}
	s.kind = kind
	return s, nil
}
