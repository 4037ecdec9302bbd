// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/core"
)

// RefreshTokenBytes is the entropy of a refresh token (64 hex chars).
const RefreshTokenBytes = 32

// Revocation reasons recorded on refresh tokens.
const (
	ReasonRotated         = "rotated"
	ReasonLogout          = "logout"
	ReasonLogoutAll       = "logout all sessions"
	ReasonTokenLimit      = "exceeded maximum active tokens"
	ReasonReuseDetected   = "reuse of rotated token detected"
	ReasonPasswordChanged = "password changed"
	ReasonDeactivated     = "account deactivated"
	ReasonDeleted         = "account deleted"
	ReasonRoleChanged     = "role changed"
)

// SystemActor is recorded as the revoking party when no client IP applies.
const SystemActor = "system"

// RefreshToken is a long-lived credential that can be exchanged exactly once
// for a new access token and a replacement refresh token. Only the SHA-256
// hash of the token value is kept; the plaintext is handed to the client once.
type RefreshToken struct {
	id               ulid.ULID
	accountID        ulid.ULID
	tokenHash        string
	expiresAt        time.Time
	createdAt        time.Time
	createdByIP      string
	revokedAt        *time.Time
	revokedByIP      string
	replacedByHash   string
	revocationReason string
}

// NewRefreshToken creates a validated refresh token for the given plaintext value.
func NewRefreshToken(accountID ulid.ULID, token string, expiresAt time.Time, createdByIP string, now time.Time) (*RefreshToken, error) {
	if core.IsZeroID(accountID) {
		return nil, oops.Code("AUTH_TOKEN_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if strings.TrimSpace(token) == "" {
		return nil, oops.Code("AUTH_TOKEN_EMPTY").Errorf("token cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("AUTH_TOKEN_INVALID_EXPIRY").
			With("expires_at", expiresAt).
			Errorf("expiry must be in the future")
	}
	if strings.TrimSpace(createdByIP) == "" {
		return nil, oops.Code("AUTH_TOKEN_INVALID_IP").Errorf("creating IP cannot be empty")
	}

	return &RefreshToken{
		id:          core.NewULIDAt(now),
		accountID:   accountID,
		tokenHash:   HashRefreshToken(token),
		expiresAt:   expiresAt,
		createdAt:   now,
		createdByIP: createdByIP,
	}, nil
}

// GenerateRefreshToken creates a secure random token value.
func GenerateRefreshToken() (string, error) {
	tokenBytes := make([]byte, RefreshTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", RefreshTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(tokenBytes), nil
}

// HashRefreshToken computes the SHA-256 hash under which a token is stored.
func HashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func (t *RefreshToken) ID() ulid.ULID            { return t.id }
func (t *RefreshToken) AccountID() ulid.ULID     { return t.accountID }
func (t *RefreshToken) TokenHash() string        { return t.tokenHash }
func (t *RefreshToken) ExpiresAt() time.Time     { return t.expiresAt }
func (t *RefreshToken) CreatedAt() time.Time     { return t.createdAt }
func (t *RefreshToken) CreatedByIP() string      { return t.createdByIP }
func (t *RefreshToken) RevokedByIP() string      { return t.revokedByIP }
func (t *RefreshToken) ReplacedByHash() string   { return t.replacedByHash }
func (t *RefreshToken) RevocationReason() string { return t.revocationReason }

// RevokedAt returns when the token was revoked, or nil.
func (t *RefreshToken) RevokedAt() *time.Time {
	if t.revokedAt == nil {
		return nil
	}
	at := *t.revokedAt
	return &at
}

// IsExpired reports whether the token is past its expiry at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.expiresAt)
}

// IsRevoked reports whether the token was revoked.
func (t *RefreshToken) IsRevoked() bool {
	return t.revokedAt != nil
}

// IsActive reports whether the token can still be exchanged at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsExpired(now) && !t.IsRevoked()
}

// WasRotated reports whether the token was revoked by being exchanged.
func (t *RefreshToken) WasRotated() bool {
	return t.replacedByHash != ""
}

// Matches compares a presented plaintext value in constant time.
func (t *RefreshToken) Matches(token string) bool {
	return subtle.ConstantTimeCompare([]byte(HashRefreshToken(token)), []byte(t.tokenHash)) == 1
}

// Revoke terminates the token. replacedByHash is the hash of the token that
// superseded this one, or empty when the token was not rotated.
func (t *RefreshToken) Revoke(byIP, replacedByHash, reason string, now time.Time) error {
	if t.IsRevoked() {
		return oops.Code(CodeTokenAlreadyRevoked).
			With("token_id", t.id.String()).
			Errorf("token is already revoked")
	}
	if t.IsExpired(now) {
		return oops.Code(CodeTokenAlreadyExpired).
			With("token_id", t.id.String()).
			Errorf("token is already expired")
	}
	if strings.TrimSpace(byIP) == "" {
		return oops.Code("AUTH_TOKEN_INVALID_IP").Errorf("revoking IP cannot be empty")
	}

	at := now
	t.revokedAt = &at
	t.revokedByIP = byIP
	t.replacedByHash = replacedByHash
	t.revocationReason = reason
	return nil
}

// RefreshTokenState is the persisted form of a RefreshToken.
type RefreshTokenState struct {
	ID               ulid.ULID
	AccountID        ulid.ULID
	TokenHash        string
	ExpiresAt        time.Time
	CreatedAt        time.Time
	CreatedByIP      string
	RevokedAt        *time.Time
	RevokedByIP      string
	ReplacedByHash   string
	RevocationReason string
}

// State snapshots the token for persistence.
func (t *RefreshToken) State() RefreshTokenState {
	return RefreshTokenState{
		ID:               t.id,
		AccountID:        t.accountID,
		TokenHash:        t.tokenHash,
		ExpiresAt:        t.expiresAt,
		CreatedAt:        t.createdAt,
		CreatedByIP:      t.createdByIP,
		RevokedAt:        t.RevokedAt(),
		RevokedByIP:      t.revokedByIP,
		ReplacedByHash:   t.replacedByHash,
		RevocationReason: t.revocationReason,
	}
}

// RestoreRefreshToken rebuilds a token loaded from storage. It performs no
// validation; stored rows were validated when first created.
func RestoreRefreshToken(s RefreshTokenState) *RefreshToken {
	t := &RefreshToken{
		id:               s.ID,
		accountID:        s.AccountID,
		tokenHash:        s.TokenHash,
		expiresAt:        s.ExpiresAt,
		createdAt:        s.CreatedAt,
		createdByIP:      s.CreatedByIP,
		revokedByIP:      s.RevokedByIP,
		replacedByHash:   s.ReplacedByHash,
		revocationReason: s.RevocationReason,
	}
	if s.RevokedAt != nil {
		at := *s.RevokedAt
		t.revokedAt = &at
	}
	return t
}
