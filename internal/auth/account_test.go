// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/pkg/errutil"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAccount(t *testing.T) *auth.Account {
	t.Helper()
	a, err := auth.NewCustomer(auth.NewAccountParams{
		Email:        "  Jana.Novak@Example.com ",
		PasswordHash: "hash",
		FirstName:    "Jana",
		LastName:     "Novák",
	}, baseTime)
	require.NoError(t, err)
	return a
}

func issueToken(t *testing.T, a *auth.Account, now time.Time) (string, *auth.RefreshToken) {
	t.Helper()
	value, err := auth.GenerateRefreshToken()
	require.NoError(t, err)
	tok, err := auth.NewRefreshToken(a.ID(), value, now.Add(auth.DefaultRefreshTokenTTL), "10.0.0.1", now)
	require.NoError(t, err)
	require.NoError(t, a.AddRefreshToken(tok, auth.DefaultPolicy(), now))
	return value, tok
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    auth.Role
		wantErr bool
	}{
		{"customer", auth.RoleCustomer, false},
		{"Customer", auth.RoleCustomer, false},
		{"user", auth.RoleCustomer, false},
		{" CRAFTSMAN ", auth.RoleCraftsman, false},
		{"admin", auth.RoleAdmin, false},
		{"plumber", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := auth.ParseRole(tt.in)
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, auth.CodeInvalidRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewAccount(t *testing.T) {
	t.Run("normalizes email and records registration", func(t *testing.T) {
		a := newTestAccount(t)
		assert.Equal(t, "jana.novak@example.com", a.Email())
		assert.Equal(t, auth.RoleCustomer, a.Role())
		assert.Equal(t, "Jana Novák", a.FullName())
		assert.True(t, a.IsActive())
		assert.False(t, a.IsEmailVerified())
		assert.Zero(t, a.FailedLoginAttempts())

		events := a.PendingEvents()
		require.Len(t, events, 1)
		assert.Equal(t, core.EventAccountRegistered, events[0].Type)
		payload, ok := events[0].Payload.(auth.AccountRegistered)
		require.True(t, ok)
		assert.Equal(t, a.ID(), payload.AccountID)

		assert.Len(t, a.DrainEvents(), 1)
		assert.Empty(t, a.PendingEvents())
	})

	t.Run("craftsman factory", func(t *testing.T) {
		a, err := auth.NewAccountForRole(auth.RoleCraftsman, auth.NewAccountParams{
			Email: "petr@example.com", PasswordHash: "hash", FirstName: "Petr", LastName: "Dvořák",
		}, baseTime)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleCraftsman, a.Role())
	})

	t.Run("admin cannot self-register", func(t *testing.T) {
		_, err := auth.NewAccountForRole(auth.RoleAdmin, auth.NewAccountParams{
			Email: "root@example.com", PasswordHash: "hash",
		}, baseTime)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidRole)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		_, err := auth.NewCustomer(auth.NewAccountParams{Email: "nope", PasswordHash: "hash"}, baseTime)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidEmail)
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		_, err := auth.NewCustomer(auth.NewAccountParams{Email: "a@x.com"}, baseTime)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD_HASH")
	})

	names := []struct {
		name        string
		first, last string
		field       string
	}{
		{"empty first name", "", "Novák", "first_name"},
		{"blank last name", "Jana", " \t", "last_name"},
		{"long first name", strings.Repeat("a", auth.MaxNameLength+1), "Novák", "first_name"},
	}
	for _, tt := range names {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			_, err := auth.NewCustomer(auth.NewAccountParams{
				Email: "a@x.com", PasswordHash: "hash", FirstName: tt.first, LastName: tt.last,
			}, baseTime)
			errutil.AssertErrorCode(t, err, auth.CodeInvalidName)
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}

	t.Run("trims names", func(t *testing.T) {
		a, err := auth.NewCustomer(auth.NewAccountParams{
			Email: "a@x.com", PasswordHash: "hash", FirstName: "  Jana ", LastName: " Novák",
		}, baseTime)
		require.NoError(t, err)
		assert.Equal(t, "Jana", a.FirstName())
		assert.Equal(t, "Novák", a.LastName())
	})
}

func TestAccount_Lockout(t *testing.T) {
	policy := auth.DefaultPolicy()

	t.Run("five failures lock for fifteen minutes", func(t *testing.T) {
		a := newTestAccount(t)
		for i := 1; i < policy.LockoutThreshold; i++ {
			require.NoError(t, a.RecordFailedLogin("1.2.3.4", policy, baseTime))
			assert.False(t, a.IsLockedOut(baseTime))
		}

		err := a.RecordFailedLogin("1.2.3.4", policy, baseTime)
		errutil.AssertErrorCode(t, err, auth.CodeAccountLocked)
		until, ok := auth.LockedUntil(err)
		require.True(t, ok)
		assert.Equal(t, baseTime.Add(15*time.Minute), until)
		assert.Contains(t, err.Error(), "account is locked until 2026-03-01T12:15:00Z")
		assert.NotContains(t, err.Error(), "Z UTC")
		assert.True(t, a.IsLockedOut(baseTime))
		assert.Equal(t, 5, a.FailedLoginAttempts())
	})

	t.Run("sixth failure reports locked without counting", func(t *testing.T) {
		a := newTestAccount(t)
		for range policy.LockoutThreshold {
			_ = a.RecordFailedLogin("1.2.3.4", policy, baseTime)
		}
		before := a.UpdatedAt()

		err := a.RecordFailedLogin("1.2.3.4", policy, baseTime.Add(time.Minute))
		errutil.AssertErrorCode(t, err, auth.CodeAccountLocked)
		assert.Equal(t, 5, a.FailedLoginAttempts())
		assert.Equal(t, before, a.UpdatedAt())
	})

	t.Run("successful login while locked is rejected", func(t *testing.T) {
		a := newTestAccount(t)
		for range policy.LockoutThreshold {
			_ = a.RecordFailedLogin("1.2.3.4", policy, baseTime)
		}
		err := a.RecordSuccessfulLogin("1.2.3.4", baseTime.Add(14*time.Minute))
		errutil.AssertErrorCode(t, err, auth.CodeAccountLocked)
	})

	t.Run("success after window resets counter and clears lockout", func(t *testing.T) {
		a := newTestAccount(t)
		for range policy.LockoutThreshold {
			_ = a.RecordFailedLogin("1.2.3.4", policy, baseTime)
		}
		later := baseTime.Add(16 * time.Minute)
		assert.False(t, a.IsLockedOut(later))
		require.NotNil(t, a.LockedUntil(), "lockout is not cleared by time alone")

		require.NoError(t, a.RecordSuccessfulLogin("5.6.7.8", later))
		assert.Zero(t, a.FailedLoginAttempts())
		assert.Nil(t, a.LockedUntil())
		assert.Equal(t, "5.6.7.8", a.LastLoginIP())
		require.NotNil(t, a.LastLoginAt())
		assert.Equal(t, later, *a.LastLoginAt())
	})

	t.Run("deactivated account rejects attempts", func(t *testing.T) {
		a := newTestAccount(t)
		require.NoError(t, a.Deactivate("fraud", baseTime))
		errutil.AssertErrorCode(t, a.RecordFailedLogin("1.2.3.4", policy, baseTime), auth.CodeAccountDeactivated)
		errutil.AssertErrorCode(t, a.RecordSuccessfulLogin("1.2.3.4", baseTime), auth.CodeAccountDeactivated)
		assert.Zero(t, a.FailedLoginAttempts())
	})
}

func TestAccount_LockUnlock(t *testing.T) {
	a := newTestAccount(t)

	errutil.AssertErrorCode(t, a.Unlock(baseTime), auth.CodeAccountNotLocked)
	errutil.AssertErrorCode(t, a.Lock(baseTime, baseTime), "AUTH_INVALID_LOCK_TIME")

	require.NoError(t, a.Lock(baseTime.Add(time.Hour), baseTime))
	assert.True(t, a.IsLockedOut(baseTime))
	errutil.AssertErrorCode(t, a.Lock(baseTime.Add(2*time.Hour), baseTime), auth.CodeAccountAlreadyLocked)

	require.NoError(t, a.Unlock(baseTime))
	assert.False(t, a.IsLockedOut(baseTime))
}

func TestAccount_RefreshTokens(t *testing.T) {
	policy := auth.DefaultPolicy()

	t.Run("cap revokes the oldest active tokens", func(t *testing.T) {
		a := newTestAccount(t)
		var first *auth.RefreshToken
		for i := range policy.MaxActiveTokens + 1 {
			_, tok := issueToken(t, a, baseTime.Add(time.Duration(i)*time.Second))
			if i == 0 {
				first = tok
			}
		}
		now := baseTime.Add(time.Minute)
		assert.Len(t, a.RefreshTokens(), policy.MaxActiveTokens+1)
		assert.Len(t, a.ActiveRefreshTokens(now), policy.MaxActiveTokens)
		assert.True(t, first.IsRevoked())
		assert.Equal(t, auth.ReasonTokenLimit, first.RevocationReason())
	})

	t.Run("active tokens are newest first", func(t *testing.T) {
		a := newTestAccount(t)
		_, older := issueToken(t, a, baseTime)
		_, newer := issueToken(t, a, baseTime.Add(time.Second))
		active := a.ActiveRefreshTokens(baseTime.Add(time.Minute))
		require.Len(t, active, 2)
		assert.Equal(t, newer.ID(), active[0].ID())
		assert.Equal(t, older.ID(), active[1].ID())
	})

	t.Run("rotation links old token to its replacement", func(t *testing.T) {
		a := newTestAccount(t)
		value, old := issueToken(t, a, baseTime)

		nextValue, err := auth.GenerateRefreshToken()
		require.NoError(t, err)
		now := baseTime.Add(time.Minute)
		next, err := auth.NewRefreshToken(a.ID(), nextValue, now.Add(time.Hour), "10.0.0.2", now)
		require.NoError(t, err)

		require.NoError(t, a.RotateRefreshToken(value, next, policy, now))
		assert.True(t, old.IsRevoked())
		assert.True(t, old.WasRotated())
		assert.Equal(t, auth.HashRefreshToken(nextValue), old.ReplacedByHash())
		assert.Equal(t, auth.ReasonRotated, old.RevocationReason())
		assert.Equal(t, "10.0.0.2", old.RevokedByIP())

		found, ok := a.FindRefreshToken(nextValue)
		require.True(t, ok)
		assert.True(t, found.IsActive(now))
	})

	t.Run("rotating an unknown token fails", func(t *testing.T) {
		a := newTestAccount(t)
		next, err := auth.NewRefreshToken(a.ID(), "other", baseTime.Add(time.Hour), "10.0.0.2", baseTime)
		require.NoError(t, err)
		errutil.AssertErrorCode(t, a.RotateRefreshToken("missing", next, policy, baseTime), auth.CodeTokenInvalid)
	})

	t.Run("token from another account is refused", func(t *testing.T) {
		a := newTestAccount(t)
		tok, err := auth.NewRefreshToken(core.NewULID(), "value", baseTime.Add(time.Hour), "10.0.0.1", baseTime)
		require.NoError(t, err)
		errutil.AssertErrorCode(t, a.AddRefreshToken(tok, policy, baseTime), "AUTH_TOKEN_ACCOUNT_MISMATCH")
	})

	t.Run("revoke all", func(t *testing.T) {
		a := newTestAccount(t)
		_, err := a.RevokeAllRefreshTokens("10.0.0.1", auth.ReasonLogoutAll, baseTime)
		errutil.AssertErrorCode(t, err, auth.CodeNoActiveTokens)

		issueToken(t, a, baseTime)
		issueToken(t, a, baseTime.Add(time.Second))
		n, err := a.RevokeAllRefreshTokens("10.0.0.1", auth.ReasonLogoutAll, baseTime.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Empty(t, a.ActiveRefreshTokens(baseTime.Add(time.Minute)))
	})

	t.Run("revoke single twice", func(t *testing.T) {
		a := newTestAccount(t)
		value, _ := issueToken(t, a, baseTime)
		require.NoError(t, a.RevokeRefreshToken(value, "10.0.0.1", auth.ReasonLogout, baseTime))
		errutil.AssertErrorCode(t, a.RevokeRefreshToken(value, "10.0.0.1", auth.ReasonLogout, baseTime),
			auth.CodeTokenAlreadyRevoked)
	})
}

func TestAccount_Lifecycle(t *testing.T) {
	t.Run("deactivate ends sessions", func(t *testing.T) {
		a := newTestAccount(t)
		_, tok := issueToken(t, a, baseTime)

		errutil.AssertErrorCode(t, a.Deactivate("  ", baseTime), "AUTH_INVALID_REASON")
		require.NoError(t, a.Deactivate("requested by user", baseTime))
		assert.False(t, a.IsActive())
		assert.Equal(t, "requested by user", a.DeactivationReason())
		assert.True(t, tok.IsRevoked())
		assert.Equal(t, auth.ReasonDeactivated, tok.RevocationReason())
		errutil.AssertErrorCode(t, a.Deactivate("again", baseTime), "AUTH_ACCOUNT_ALREADY_DEACTIVATED")

		require.NoError(t, a.Activate(baseTime))
		assert.True(t, a.IsActive())
		errutil.AssertErrorCode(t, a.Activate(baseTime), auth.CodeAccountAlreadyActive)
	})

	t.Run("verify email once", func(t *testing.T) {
		a := newTestAccount(t)
		require.NoError(t, a.VerifyEmail(baseTime))
		assert.True(t, a.IsEmailVerified())
		errutil.AssertErrorCode(t, a.VerifyEmail(baseTime), "AUTH_EMAIL_ALREADY_VERIFIED")
	})

	t.Run("soft delete", func(t *testing.T) {
		a := newTestAccount(t)
		_, tok := issueToken(t, a, baseTime)
		require.NoError(t, a.MarkDeleted("", baseTime))
		assert.True(t, a.IsDeleted())
		assert.Equal(t, auth.SystemActor, a.DeletedBy())
		assert.Equal(t, auth.ReasonDeleted, tok.RevocationReason())
		errutil.AssertErrorCode(t, a.MarkDeleted("admin", baseTime), auth.CodeAccountAlreadyDeleted)
	})
}

func TestAccount_StateRoundTrip(t *testing.T) {
	a := newTestAccount(t)
	value, _ := issueToken(t, a, baseTime)
	_ = a.RecordFailedLogin("1.2.3.4", auth.DefaultPolicy(), baseTime)
	a.SetVersion(3)

	restored := auth.RestoreAccount(a.State())
	assert.Equal(t, a.State(), restored.State())
	assert.Empty(t, restored.PendingEvents())

	_, ok := restored.FindRefreshToken(value)
	assert.True(t, ok)
}
