// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package postgres implements auth.UserRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/store"
)

const userColumns = `id, email, hashed_password, session_id, reset_token, created_at, updated_at`

// columns maps fields to their column. Only fields listed here ever reach SQL.
var columns = map[auth.Field]string{
	auth.FieldID:             "id",
	auth.FieldEmail:          "email",
	auth.FieldHashedPassword: "hashed_password",
	auth.FieldSessionID:      "session_id",
	auth.FieldResetToken:     "reset_token",
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db  store.Querier
	now func() time.Time
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db store.Querier) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// Find returns the single user matching criteria.
func (r *UserRepository) Find(ctx context.Context, criteria auth.Criteria) (*auth.User, error) {
	field, value, err := criteria.Field()
	if err != nil {
		return nil, err
	}

	if field == auth.FieldID {
		if _, parseErr := ulid.Parse(value); parseErr != nil {
			return nil, auth.NotFoundError(string(field), value)
		}
	}

	//nolint:gosec // column comes from the columns whitelist
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, columns[field]),
		value)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.NotFoundError(string(field), value)
	}
	if err != nil {
		return nil, oops.With("field", string(field)).Wrap(auth.StorageError("find user", err))
	}
	return user, nil
}

// Add inserts a new user. The unique email index reports duplicates.
func (r *UserRepository) Add(ctx context.Context, email, hashedPassword string) (*auth.User, error) {
	now := r.now().UTC()
	user := &auth.User{
		ID:             ulid.Make(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID.String(), user.Email, user.HashedPassword, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code(auth.CodeDuplicateIdentity).
				With("email", email).
				Errorf("user %s already exists", email)
		}
		return nil, oops.With("email", email).Wrap(auth.StorageError("insert user", err))
	}
	return user, nil
}

// Update applies changes to the user with the given id in one statement.
func (r *UserRepository) Update(ctx context.Context, id ulid.ULID, changes auth.Changes) (*auth.User, error) {
	if err := changes.Validate(); err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(changes))
	for f := range changes {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for _, f := range fields {
		args = append(args, nullable(changes[auth.Field(f)]))
		sets = append(sets, fmt.Sprintf("%s = $%d", columns[auth.Field(f)], len(args)))
	}
	args = append(args, r.now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id.String())

	//nolint:gosec // columns come from the columns whitelist
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.NotFoundError("id", id.String())
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code(auth.CodeDuplicateIdentity).
				With("id", id.String()).
				With("fields", fields).
				Errorf("update collides with another user")
		}
		return nil, oops.With("id", id.String()).Wrap(auth.StorageError("update user", err))
	}
	return user, nil
}

// RedeemResetToken replaces the password and clears the token in a single
// statement conditioned on the token, so only one caller can match it.
func (r *UserRepository) RedeemResetToken(ctx context.Context, token, hashedPassword string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE users SET hashed_password = $1, reset_token = NULL, updated_at = $2
		WHERE reset_token = $3
		RETURNING `+userColumns,
		hashedPassword, r.now().UTC(), token)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.NotFoundError(string(auth.FieldResetToken), token)
	}
	if err != nil {
		return nil, auth.StorageError("redeem reset token", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		user  auth.User
		idStr string
	)
	if err := row.Scan(&idStr, &user.Email, &user.HashedPassword,
		&user.SessionID, &user.ResetToken, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("id", idStr).Errorf("corrupt user id: %w", err)
	}
	user.ID = id
	return &user, nil
}

// nullable turns a cleared change into SQL NULL.
func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface checks.
var (
	_ auth.UserRepository     = (*UserRepository)(nil)
	_ auth.ResetTokenRedeemer = (*UserRepository)(nil)
)
