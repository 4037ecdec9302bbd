// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth

import (
	"errors"
	"time"

	"github.com/samber/oops"
)

// ErrEmailTaken is wrapped by repositories when an email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// Error codes returned by this package.
const (
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked         = "AUTH_ACCOUNT_LOCKED"
	CodeAccountDeactivated    = "AUTH_ACCOUNT_DEACTIVATED"
	CodeAccountNotFound       = "AUTH_ACCOUNT_NOT_FOUND"
	CodeEmailTaken            = "AUTH_EMAIL_TAKEN"
	CodeInvalidEmail          = "AUTH_INVALID_EMAIL"
	CodeWeakPassword          = "AUTH_WEAK_PASSWORD"
	CodeInvalidRole           = "AUTH_INVALID_ROLE"
	CodeTokenInvalid          = "AUTH_TOKEN_INVALID"
	CodeTokenExpired          = "AUTH_TOKEN_EXPIRED"
	CodeTokenRevoked          = "AUTH_TOKEN_REVOKED"
	CodeTokenAlreadyRevoked   = "AUTH_TOKEN_ALREADY_REVOKED"
	CodeTokenAlreadyExpired   = "AUTH_TOKEN_ALREADY_EXPIRED"
	CodeNoActiveTokens        = "AUTH_NO_ACTIVE_TOKENS"
	CodeConcurrentModified    = "CONCURRENT_MODIFICATION"
	CodeInvalidAccessToken    = "AUTH_INVALID_ACCESS_TOKEN"
	CodeAccountAlreadyLocked  = "AUTH_ACCOUNT_ALREADY_LOCKED"
	CodeAccountNotLocked      = "AUTH_ACCOUNT_NOT_LOCKED"
	CodeAccountAlreadyActive  = "AUTH_ACCOUNT_ALREADY_ACTIVE"
	CodeAccountAlreadyDeleted = "AUTH_ACCOUNT_ALREADY_DELETED"
)

// errInvalidCredentials is deliberately vague: it never says whether the
// email exists.
func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func errAccountLocked(until time.Time) error {
	return oops.Code(CodeAccountLocked).
		With("locked_until", until.UTC()).
		Errorf("account is locked until %s", until.UTC().Format(time.RFC3339))
}

func errAccountDeactivated() error {
	return oops.Code(CodeAccountDeactivated).Errorf("account is deactivated")
}

// LockedUntil extracts the unlock time from an AUTH_ACCOUNT_LOCKED error.
func LockedUntil(err error) (time.Time, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Code() != CodeAccountLocked {
		return time.Time{}, false
	}
	until, ok := oopsErr.Context()["locked_until"].(time.Time)
	return until, ok
}
