// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package strategy

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/session"
)

// DefaultCookieName is used when no session name is configured.
const DefaultCookieName = "session_id"

// SessionCookie authenticates requests by the session id in a cookie. The
// session store decides whether sessions expire or persist.
type SessionCookie struct {
	base
	kind   Kind
	name   string
	store  session.Store
	users  auth.UserRepository
	logger *slog.Logger
}

// NewSessionCookie creates a SessionCookie strategy reading cookie name.
func NewSessionCookie(name string, store session.Store, users auth.UserRepository, logger *slog.Logger) (*SessionCookie, error) {
	if store == nil {
		return nil, oops.Code("STRATEGY_INVALID_CONFIG").Errorf("session store is required")
	}
	if users == nil {
		return nil, oops.Code("STRATEGY_INVALID_CONFIG").Errorf("user repository is required")
	}
	if name == "" {
		name = DefaultCookieName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCookie{
		kind:   KindSession,
		name:   name,
		store:  store,
		users:  users,
		logger: logger,
	}, nil
}

// CookieName returns the name of the session cookie.
func (s *SessionCookie) CookieName() string { return s.name }

// Store returns the backing session store.
func (s *SessionCookie) Store() session.Store { return s.store }

// SessionID returns the session cookie value, or "" when absent.
func (s *SessionCookie) SessionID(r *http.Request) string {
	if r == nil {
		return ""
	}
	c, err := r.Cookie(s.name)
	if err != nil {
		return ""
	}
	return c.Value
}

// ResolveIdentity loads the user bound to the request's session.
func (s *SessionCookie) ResolveIdentity(r *http.Request) (*auth.Identity, error) {
	sessionID := s.SessionID(r)
	if sessionID == "" {
		recordResolve(s.kind, resultAbsent)
		return nil, nil
	}

	ctx := r.Context()
	subjectID, ok, err := s.store.Lookup(ctx, sessionID)
	if err != nil {
		recordResolve(s.kind, resultError)
		return nil, err
	}
	if !ok {
		recordResolve(s.kind, resultAbsent)
		return nil, nil
	}

	user, err := s.users.Find(ctx, auth.ByID(subjectID))
	if err != nil {
		if auth.IsNotFound(err) {
			s.logger.DebugContext(ctx, "session refers to a deleted user", "user_id", subjectID)
			recordResolve(s.kind, resultAbsent)
			return nil, nil
		}
		recordResolve(s.kind, resultError)
		return nil, oops.With("operation", "find session user").Wrap(err)
	}

	recordResolve(s.kind, resultResolved)
	return user.Identity(), nil
}

// CreateSession starts a session for identity and returns its id.
func (s *SessionCookie) CreateSession(ctx context.Context, identity *auth.Identity) (string, error) {
	if identity == nil {
		return "", oops.Code(auth.CodeInvalidSubject).Errorf("identity is required")
	}
	return s.store.Create(ctx, identity.ID.String())
}

// DestroySession ends the request's session. It reports false when the
// request is nil, carries no cookie, or names an unknown or expired session.
// Expired sessions are still removed from the store. Of several concurrent
// calls for one session, at most one reports true.
func (s *SessionCookie) DestroySession(r *http.Request) (bool, error) {
	sessionID := s.SessionID(r)
	if sessionID == "" {
		return false, nil
	}
	ctx := r.Context()
	_, live, err := s.store.Lookup(ctx, sessionID)
	if err != nil {
		return false, err
	}
	existed, err := s.store.Destroy(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return live && existed, nil
}

// SetCookie writes the session cookie.
func (s *SessionCookie) SetCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on the client.
func (s *SessionCookie) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

var _ Strategy = (*SessionCookie)(nil)
