// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/strategy"
)

// sessionStrategy is a strategy that can start and end cookie sessions.
type sessionStrategy interface {
	strategy.Strategy
	CreateSession(ctx context.Context, identity *auth.Identity) (string, error)
	DestroySession(r *http.Request) (bool, error)
	SetCookie(w http.ResponseWriter, sessionID string)
	ClearCookie(w http.ResponseWriter)
}

func (s *Server) apiRoutes(r chi.Router) {
	r.Use(s.authenticate)

	r.Get("/status", s.status)
	r.Get("/unauthorized", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	})
	r.Get("/forbidden", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusForbidden, "Forbidden")
	})
	r.Get("/users/me", s.me)

	if sessions, ok := s.strategy.(sessionStrategy); ok {
		r.Post("/auth_session/login", s.sessionLogin(sessions))
		r.Delete("/auth_session/logout", s.sessionLogout(sessions))
	}
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	user, err := s.users.Find(r.Context(), auth.ByID(identity.ID.String()))
	if err != nil {
		if auth.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		s.internalError(w, r, "load current user failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}

func (s *Server) sessionLogin(sessions sessionStrategy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form credentialsForm
		msg, err := s.bindForm(r, &form)
		if err != nil {
			s.internalError(w, r, "validate login form failed", err)
			return
		}
		if msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		ctx := r.Context()
		user, err := s.users.Find(ctx, auth.ByEmail(form.Email))
		if err != nil {
			if auth.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "no user found for this email")
				return
			}
			s.internalError(w, r, "find user failed", err)
			return
		}

		identity, err := s.service.Authenticate(ctx, form.Email, form.Password)
		if err != nil {
			s.internalError(w, r, "verify password failed", err)
			return
		}
		if identity == nil {
			writeError(w, http.StatusUnauthorized, "wrong password")
			return
		}

		sessionID, err := sessions.CreateSession(ctx, identity)
		if err != nil {
			s.internalError(w, r, "create session failed", err)
			return
		}
		sessions.SetCookie(w, sessionID)
		writeJSON(w, http.StatusOK, newUserView(user))
	}
}

func (s *Server) sessionLogout(sessions sessionStrategy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		destroyed, err := sessions.DestroySession(r)
		if err != nil {
			s.internalError(w, r, "destroy session failed", err)
			return
		}
		if !destroyed {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		sessions.ClearCookie(w)
		writeJSON(w, http.StatusOK, struct{}{})
	}
}
