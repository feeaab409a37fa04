// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service registers users, verifies credentials and manages the session id
// and reset token stored on each user record.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	logger   *slog.Logger
	newToken func() (string, error)

	// resetMu serializes token consumption for repositories that are not
	// ResetTokenRedeemers. It only holds within this process.
	resetMu sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithTokenGenerator replaces the random token source.
func WithTokenGenerator(fn func() (string, error)) ServiceOption {
	return func(s *Service) { s.newToken = fn }
}

// NewService creates a new Service.
func NewService(users UserRepository, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}

	s := &Service{
		users:    users,
		hasher:   hasher,
		logger:   slog.Default(),
		newToken: GenerateToken,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}
	if s.newToken == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token generator is required")
	}
	return s, nil
}

// Register creates a user with a freshly hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	_, err := s.users.Find(ctx, ByEmail(email))
	switch {
	case err == nil:
		recordRegistration(OutcomeDuplicate)
		return nil, oops.Code(CodeDuplicateIdentity).
			With("email", email).
			Errorf("user %s already exists", email)
	case !IsNotFound(err):
		recordRegistration(OutcomeError)
		return nil, oops.With("operation", "find user by email").Wrap(err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		recordRegistration(OutcomeError)
		return nil, oops.With("operation", "hash password").Wrap(err)
	}

	user, err := s.users.Add(ctx, email, hashed)
	if err != nil {
		if HasCode(err, CodeDuplicateIdentity) {
			recordRegistration(OutcomeDuplicate)
		} else {
			recordRegistration(OutcomeError)
		}
		return nil, oops.With("operation", "add user").Wrap(err)
	}

	recordRegistration(OutcomeSuccess)
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String(), "email", email)
	return user, nil
}

// VerifyLogin reports whether password matches the stored digest for email.
// An unknown email yields false, never an error.
func (s *Service) VerifyLogin(ctx context.Context, email, password string) (bool, error) {
	user, err := s.verify(ctx, email, password)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// Authenticate verifies the credentials and returns the matching identity,
// or nil when they don't match.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	user, err := s.verify(ctx, email, password)
	if err != nil || user == nil {
		return nil, err
	}
	return user.Identity(), nil
}

// verify returns the user on a positive match and nil otherwise.
// Uses constant-time operations to prevent timing-based email enumeration.
func (s *Service) verify(ctx context.Context, email, password string) (*User, error) {
	user, lookupErr := s.users.Find(ctx, ByEmail(email))

	targetHash := dummyPasswordHash
	if lookupErr != nil {
		if !IsNotFound(lookupErr) {
			recordLogin(OutcomeError)
			return nil, oops.With("operation", "find user by email").Wrap(lookupErr)
		}
	} else {
		targetHash = user.HashedPassword
	}

	// Always verify (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if lookupErr != nil {
		recordLogin(OutcomeUnknown)
		return nil, nil
	}
	if verifyErr != nil {
		recordLogin(OutcomeError)
		return nil, oops.With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}
	if !valid {
		recordLogin(OutcomeInvalid)
		return nil, nil
	}

	recordLogin(OutcomeSuccess)
	s.upgradeHash(ctx, user, password)
	return user, nil
}

// upgradeHash re-hashes a digest produced by another algorithm.
// Best effort: login succeeds regardless.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	if !s.hasher.NeedsUpgrade(user.HashedPassword) {
		return
	}
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogError(s.logger, "password rehash failed", err)
		return
	}
	if _, err := s.users.Update(ctx, user.ID, Changes{FieldHashedPassword: Set(newHash)}); err != nil {
		errutil.LogError(s.logger, "password rehash update failed", err)
		return
	}
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", user.ID.String())
}

// CreateSession stores a new session id on the user record and returns it.
// ok is false when the email is unknown.
func (s *Service) CreateSession(ctx context.Context, email string) (sessionID string, ok bool, err error) {
	user, err := s.users.Find(ctx, ByEmail(email))
	if err != nil {
		if IsNotFound(err) {
			return "", false, nil
		}
		return "", false, oops.With("operation", "find user by email").Wrap(err)
	}

	token, err := s.newToken()
	if err != nil {
		return "", false, err
	}

	if _, err := s.users.Update(ctx, user.ID, Changes{FieldSessionID: Set(token)}); err != nil {
		return "", false, oops.With("operation", "store session id").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.DebugContext(ctx, "session created", "user_id", user.ID.String())
	return token, true, nil
}

// ResolveIdentityFromSession returns the identity holding sessionID, or nil.
func (s *Service) ResolveIdentityFromSession(ctx context.Context, sessionID string) (*Identity, error) {
	if sessionID == "" {
		return nil, nil
	}
	user, err := s.users.Find(ctx, BySessionID(sessionID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, oops.With("operation", "find user by session id").Wrap(err)
	}
	return user.Identity(), nil
}

// IdentityByID returns the identity for a subject id, or nil when the id is
// malformed or unknown.
func (s *Service) IdentityByID(ctx context.Context, subjectID string) (*Identity, error) {
	if subjectID == "" {
		return nil, nil
	}
	user, err := s.users.Find(ctx, ByID(subjectID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, oops.With("operation", "find user by id").Wrap(err)
	}
	return user.Identity(), nil
}

// DestroySession clears the stored session id. Idempotent.
func (s *Service) DestroySession(ctx context.Context, subjectID ulid.ULID) error {
	_, err := s.users.Update(ctx, subjectID, Changes{FieldSessionID: nil})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return oops.With("operation", "clear session id").
			With("user_id", subjectID.String()).
			Wrap(err)
	}
	s.logger.DebugContext(ctx, "session destroyed", "user_id", subjectID.String())
	return nil
}

// IssueResetToken stores a fresh reset token for email, replacing any prior one.
// Returns UNKNOWN_IDENTITY if no user has the email.
func (s *Service) IssueResetToken(ctx context.Context, email string) (string, error) {
	user, err := s.users.Find(ctx, ByEmail(email))
	if err != nil {
		if IsNotFound(err) {
			recordReset("issue", OutcomeUnknown)
			return "", oops.Code(CodeUnknownIdentity).
				With("email", email).
				Errorf("no user registered with this email")
		}
		recordReset("issue", OutcomeError)
		return "", oops.With("operation", "find user by email").Wrap(err)
	}

	token, err := s.newToken()
	if err != nil {
		recordReset("issue", OutcomeError)
		return "", err
	}

	if _, err := s.users.Update(ctx, user.ID, Changes{FieldResetToken: Set(token)}); err != nil {
		recordReset("issue", OutcomeError)
		return "", oops.With("operation", "store reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	recordReset("issue", OutcomeSuccess)
	s.logger.InfoContext(ctx, "reset token issued", "user_id", user.ID.String())
	return token, nil
}

// ResetPassword replaces the password of the user holding token and clears
// the token. Returns INVALID_TOKEN if no user holds it.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		recordReset("consume", OutcomeInvalid)
		return oops.Code(CodeInvalidToken).Errorf("reset token cannot be empty")
	}
	if redeemer, ok := s.users.(ResetTokenRedeemer); ok {
		return s.redeemResetToken(ctx, redeemer, token, newPassword)
	}

	s.resetMu.Lock()
	defer s.resetMu.Unlock()

	user, err := s.users.Find(ctx, ByResetToken(token))
	if err != nil {
		if IsNotFound(err) {
			recordReset("consume", OutcomeInvalid)
			return oops.Code(CodeInvalidToken).Errorf("reset token is not valid")
		}
		recordReset("consume", OutcomeError)
		return oops.With("operation", "find user by reset token").Wrap(err)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		recordReset("consume", OutcomeError)
		return oops.With("operation", "hash password").Wrap(err)
	}

	changes := Changes{
		FieldHashedPassword: Set(hashed),
		FieldResetToken:     nil,
	}
	if _, err := s.users.Update(ctx, user.ID, changes); err != nil {
		recordReset("consume", OutcomeError)
		return oops.With("operation", "update password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	recordReset("consume", OutcomeSuccess)
	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID.String())
	return nil
}

// redeemResetToken hashes first, then lets the repository match and clear
// the token in one write.
func (s *Service) redeemResetToken(ctx context.Context, redeemer ResetTokenRedeemer, token, newPassword string) error {
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		recordReset("consume", OutcomeError)
		return oops.With("operation", "hash password").Wrap(err)
	}

	user, err := redeemer.RedeemResetToken(ctx, token, hashed)
	if err != nil {
		if IsNotFound(err) {
			recordReset("consume", OutcomeInvalid)
			return oops.Code(CodeInvalidToken).Errorf("reset token is not valid")
		}
		recordReset("consume", OutcomeError)
		return oops.With("operation", "redeem reset token").Wrap(err)
	}

	recordReset("consume", OutcomeSuccess)
	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID.String())
	return nil
}
