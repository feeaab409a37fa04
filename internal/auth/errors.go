// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes attached to oops errors returned by this package and its
// storage backends.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeDuplicateIdentity = "DUPLICATE_IDENTITY"
	CodeAmbiguousQuery    = "AMBIGUOUS_QUERY"
	CodeUnknownField      = "UNKNOWN_FIELD"
	CodeUnknownIdentity   = "UNKNOWN_IDENTITY"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeStorageFailure    = "STORAGE_FAILURE"
	CodeInvalidSubject    = "INVALID_SUBJECT"
)

// HasCode reports whether err is an oops error carrying code.
// oops reports the deepest non-empty code in the chain, so layers that
// re-wrap a coded error must not attach a code of their own.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}

// IsNotFound reports whether err signals a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || HasCode(err, CodeNotFound)
}

// notFound builds a NOT_FOUND error wrapping ErrNotFound.
func notFound(key string, value any) error {
	return oops.Code(CodeNotFound).With(key, value).Wrap(ErrNotFound)
}

// NotFoundError builds the NOT_FOUND error storage backends return for a
// missing user or session.
func NotFoundError(key string, value any) error {
	return notFound(key, value)
}

// StorageError wraps a backend failure with the STORAGE_FAILURE code.
func StorageError(operation string, err error) error {
	return oops.Code(CodeStorageFailure).With("operation", operation).Wrap(err)
}
