// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package auth provides the user model and credential primitives for Gatekeep.
//
// # Users
//
// A User is looked up through a UserRepository with Criteria naming exactly
// one identifying field (ByEmail, ByID, BySessionID, ByResetToken) and
// modified with Changes, where a nil value clears a nullable attribute.
// Implementations live in the memory and postgres subpackages.
//
// # Service
//
// Service coordinates the credential flows:
//   - Register and VerifyLogin hash and check passwords
//   - CreateSession and DestroySession manage the session id kept on the user record
//   - IssueResetToken and ResetPassword implement the single-use reset flow
//
// Errors carry samber/oops codes (see the Code* constants); use HasCode and
// IsNotFound to branch on them.
package auth
