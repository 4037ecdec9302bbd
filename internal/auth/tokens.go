// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/core"
)

// MinJWTSecretLength is the shortest accepted HMAC secret.
const MinJWTSecretLength = 32

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// AccountID parses the subject claim.
func (c *AccessClaims) AccountID() (ulid.ULID, error) {
	return core.ParseULID(c.Subject)
}

// AccessTokenIssuer mints short-lived access tokens.
type AccessTokenIssuer interface {
	Issue(account *Account, now time.Time) (token string, expiresAt time.Time, err error)
}

// AccessTokenVerifier validates access tokens presented by clients.
type AccessTokenVerifier interface {
	Verify(token string, now time.Time) (*AccessClaims, error)
}

// JWTIssuer issues and verifies HS256 access tokens.
type JWTIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewJWTIssuer creates a JWTIssuer.
func NewJWTIssuer(secret, issuer string, ttl time.Duration) (*JWTIssuer, error) {
	if len(secret) < MinJWTSecretLength {
		return nil, oops.Code("AUTH_WEAK_JWT_SECRET").
			With("min", MinJWTSecretLength).
			Errorf("jwt secret must be at least %d bytes", MinJWTSecretLength)
	}
	if issuer == "" {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("jwt issuer is required")
	}
	if ttl <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("access token TTL must be positive")
	}
	return &JWTIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// Issue creates a signed access token for the account.
func (j *JWTIssuer) Issue(account *Account, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(j.ttl)
	claims := &AccessClaims{
		Email: account.Email(),
		Role:  account.Role(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        core.NewULIDAt(now).String(),
			Subject:   account.ID().String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("AUTH_TOKEN_SIGN_FAILED").
			With("account_id", account.ID().String()).
			Wrap(err)
	}
	return signed, expiresAt, nil
}

// Verify parses a token and checks signature, issuer and expiry against now.
func (j *JWTIssuer) Verify(token string, now time.Time) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, oops.Code(CodeInvalidAccessToken).Wrap(err)
	}
	if !parsed.Valid {
		return nil, oops.Code(CodeInvalidAccessToken).Errorf("invalid access token")
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, oops.Code(CodeInvalidAccessToken).Wrap(err)
	}
	return claims, nil
}
