// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Default security policy values.
const (
	// DefaultLockoutThreshold is the number of consecutive failures that locks an account.
	DefaultLockoutThreshold = 5

	// DefaultLockoutDuration is how long a lockout lasts.
	DefaultLockoutDuration = 15 * time.Minute

	// DefaultMaxActiveTokens caps concurrently valid refresh tokens per account.
	DefaultMaxActiveTokens = 5

	// DefaultAccessTokenTTL is the lifetime of an access token.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the lifetime of a refresh token.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Policy holds the tunable account-security rules.
type Policy struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	MaxActiveTokens  int
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	// RevokeChainOnReuse revokes every active token on an account when a
	// token that was already rotated is presented again.
	RevokeChainOnReuse bool
}

// DefaultPolicy returns the production policy.
func DefaultPolicy() Policy {
	return Policy{
		LockoutThreshold:   DefaultLockoutThreshold,
		LockoutDuration:    DefaultLockoutDuration,
		MaxActiveTokens:    DefaultMaxActiveTokens,
		AccessTokenTTL:     DefaultAccessTokenTTL,
		RefreshTokenTTL:    DefaultRefreshTokenTTL,
		RevokeChainOnReuse: true,
	}
}

// Validate checks that every limit is positive.
func (p Policy) Validate() error {
	switch {
	case p.LockoutThreshold <= 0:
		return oops.Code("AUTH_INVALID_POLICY").Errorf("lockout threshold must be positive")
	case p.LockoutDuration <= 0:
		return oops.Code("AUTH_INVALID_POLICY").Errorf("lockout duration must be positive")
	case p.MaxActiveTokens <= 0:
		return oops.Code("AUTH_INVALID_POLICY").Errorf("max active tokens must be positive")
	case p.AccessTokenTTL <= 0:
		return oops.Code("AUTH_INVALID_POLICY").Errorf("access token TTL must be positive")
	case p.RefreshTokenTTL <= 0:
		return oops.Code("AUTH_INVALID_POLICY").Errorf("refresh token TTL must be positive")
	}
	return nil
}

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}
