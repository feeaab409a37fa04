// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package strategy

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// basicPrefix is matched exactly, including case and the single space.
const basicPrefix = "Basic "

// Header authenticates requests carrying
// "Authorization: Basic base64(email:password)".
type Header struct {
	base
	users  auth.UserRepository
	hasher auth.PasswordHasher
	logger *slog.Logger
}

// NewHeader creates a Header strategy.
func NewHeader(users auth.UserRepository, hasher auth.PasswordHasher, logger *slog.Logger) (*Header, error) {
	if users == nil {
		return nil, oops.Code("STRATEGY_INVALID_CONFIG").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("STRATEGY_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Header{users: users, hasher: hasher, logger: logger}, nil
}

// ExtractBase64 returns the encoded part of a Basic header.
func ExtractBase64(header string) (string, bool) {
	encoded, ok := strings.CutPrefix(header, basicPrefix)
	return encoded, ok
}

// DecodeBase64 decodes standard base64 into UTF-8 text.
func DecodeBase64(encoded string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// ExtractCredentials splits decoded text at the first ':'. The password may
// itself contain colons.
func ExtractCredentials(decoded string) (email, password string, ok bool) {
	return strings.Cut(decoded, ":")
}

// ResolveIdentity returns the identity whose credentials are in the header.
func (h *Header) ResolveIdentity(r *http.Request) (*auth.Identity, error) {
	encoded, ok := ExtractBase64(AuthorizationHeader(r))
	if !ok {
		recordResolve(KindBasic, resultAbsent)
		return nil, nil
	}
	decoded, ok := DecodeBase64(encoded)
	if !ok {
		recordResolve(KindBasic, resultAbsent)
		return nil, nil
	}
	email, password, ok := ExtractCredentials(decoded)
	if !ok {
		recordResolve(KindBasic, resultAbsent)
		return nil, nil
	}

	identity, err := h.UserFromCredentials(r.Context(), email, password)
	switch {
	case err != nil:
		recordResolve(KindBasic, resultError)
	case identity == nil:
		recordResolve(KindBasic, resultAbsent)
	default:
		recordResolve(KindBasic, resultResolved)
	}
	return identity, err
}

// UserFromCredentials returns the identity for email when password verifies.
// Unknown users and malformed stored digests yield nil; only storage
// failures are returned as errors.
func (h *Header) UserFromCredentials(ctx context.Context, email, password string) (*auth.Identity, error) {
	user, err := h.users.Find(ctx, auth.ByEmail(email))
	if err != nil {
		if auth.IsNotFound(err) || auth.HasCode(err, auth.CodeAmbiguousQuery) {
			return nil, nil
		}
		return nil, oops.With("operation", "find user by email").Wrap(err)
	}

	valid, err := h.hasher.Verify(password, user.HashedPassword)
	if err != nil {
		errutil.LogErrorContext(ctx, h.logger, "stored password digest is malformed",
			oops.With("user_id", user.ID.String()).Wrap(err))
		return nil, nil
	}
	if !valid {
		return nil, nil
	}
	return user.Identity(), nil
}

var _ Strategy = (*Header)(nil)
