// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// accountRoutes serve registration, login and password reset. Sessions here
// are the session ids stored on the user record by auth.Service.
func (s *Server) accountRoutes(r chi.Router) {
	r.Get("/", s.home)
	r.Post("/users", s.register)
	r.Post("/sessions", s.login)
	r.Delete("/sessions", s.logout)
	r.Get("/profile", s.profile)
	r.Post("/reset_password", s.issueResetToken)
	r.Put("/reset_password", s.resetPassword)
	r.Put("/update_password", s.resetPassword)
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageBody{Message: "Bienvenue"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var form registerForm
	msg, err := s.bindForm(r, &form)
	if err != nil {
		s.internalError(w, r, "validate registration form failed", err)
		return
	}
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: msg})
		return
	}

	if _, err := s.service.Register(r.Context(), form.Email, form.Password); err != nil {
		if auth.HasCode(err, auth.CodeDuplicateIdentity) {
			writeJSON(w, http.StatusOK, messageBody{Message: "email already registered"})
			return
		}
		s.internalError(w, r, "register failed", err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Email: form.Email, Message: "user created"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var form credentialsForm
	msg, err := s.bindForm(r, &form)
	if err != nil {
		s.internalError(w, r, "validate login form failed", err)
		return
	}
	if msg != "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx := r.Context()
	ok, err := s.service.VerifyLogin(ctx, form.Email, form.Password)
	if err != nil {
		s.internalError(w, r, "verify login failed", err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sessionID, ok, err := s.service.CreateSession(ctx, form.Email)
	if err != nil {
		s.internalError(w, r, "create session failed", err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, messageBody{Email: form.Email, Message: "logged in"})
}

// sessionIdentity resolves the account cookie. A nil identity means the
// cookie is missing or unknown.
func (s *Server) sessionIdentity(r *http.Request) (*auth.Identity, error) {
	c, err := r.Cookie(s.cookieName)
	if err != nil || c.Value == "" {
		return nil, nil
	}
	return s.service.ResolveIdentityFromSession(r.Context(), c.Value)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	identity, err := s.sessionIdentity(r)
	if err != nil {
		s.internalError(w, r, "resolve session failed", err)
		return
	}
	if identity == nil {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err := s.service.DestroySession(r.Context(), identity.ID); err != nil {
		s.internalError(w, r, "destroy session failed", err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: s.cookieName, Path: "/", MaxAge: -1, HttpOnly: true})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	identity, err := s.sessionIdentity(r)
	if err != nil {
		s.internalError(w, r, "resolve session failed", err)
		return
	}
	if identity == nil {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": identity.Email})
}

func (s *Server) issueResetToken(w http.ResponseWriter, r *http.Request) {
	var form resetRequestForm
	msg, err := s.bindForm(r, &form)
	if err != nil {
		s.internalError(w, r, "validate reset form failed", err)
		return
	}
	if msg != "" {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	token, err := s.service.IssueResetToken(r.Context(), form.Email)
	if err != nil {
		if auth.HasCode(err, auth.CodeUnknownIdentity) {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		s.internalError(w, r, "issue reset token failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": form.Email, "reset_token": token})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var form resetForm
	msg, err := s.bindForm(r, &form)
	if err != nil {
		s.internalError(w, r, "validate reset form failed", err)
		return
	}
	if msg != "" {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	if err := s.service.ResetPassword(r.Context(), form.ResetToken, form.NewPassword); err != nil {
		if auth.HasCode(err, auth.CodeInvalidToken) {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		s.internalError(w, r, "reset password failed", err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Email: form.Email, Message: "Password updated"})
}
