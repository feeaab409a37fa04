// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package strategy resolves the identity behind an HTTP request, either from
// Basic credentials in the Authorization header or from a session cookie.
package strategy

import (
	"net/http"
	"strings"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// Strategy decides whether a path needs authentication and resolves the
// caller's identity. A nil identity with a nil error means unauthenticated.
type Strategy interface {
	RequiresAuth(path string, excluded []string) bool
	ResolveIdentity(r *http.Request) (*auth.Identity, error)
}

// RequiresAuth reports whether path needs authentication. Paths are compared
// with a trailing slash appended, so "/api/v1/status" matches the excluded
// entry "/api/v1/status/". An empty path or an empty exclusion list always
// requires authentication.
func RequiresAuth(path string, excluded []string) bool {
	if path == "" || len(excluded) == 0 {
		return true
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	for _, e := range excluded {
		if e == path {
			return false
		}
	}
	return true
}

// base provides the shared RequiresAuth.
type base struct{}

func (base) RequiresAuth(path string, excluded []string) bool {
	return RequiresAuth(path, excluded)
}

// AuthorizationHeader returns the raw Authorization header, or "" when the
// request is nil or has none.
func AuthorizationHeader(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.Header.Get("Authorization")
}
