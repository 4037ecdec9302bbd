// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/pkg/errutil"
)

// dummyPasswordHash is verified when no account matches the email so that
// response time does not reveal whether the email is registered.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// LoginRequest is the input to Login.
type LoginRequest struct {
	Email     string
	Password  string
	IPAddress string
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Email     string
	Password  string
	Role      string
	FirstName string
	LastName  string
	IPAddress string
}

// RefreshRequest is the input to Refresh.
type RefreshRequest struct {
	RefreshToken string
	IPAddress    string
}

// ChangePasswordRequest is the input to ChangePassword.
type ChangePasswordRequest struct {
	AccountID       ulid.ULID
	CurrentPassword string
	NewPassword     string
	IPAddress       string
}

// AuthResult is returned by operations that start or continue a session.
type AuthResult struct {
	AccountID             ulid.ULID
	Email                 string
	Role                  Role
	EmailVerified         bool
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// ServiceConfig wires a Service. Accounts, Hasher and Tokens are required.
type ServiceConfig struct {
	Accounts AccountRepository
	Hasher   PasswordHasher
	Tokens   AccessTokenIssuer
	Clock    core.Clock
	Policy   Policy
	Retry    core.RetryPolicy
	Logger   *slog.Logger
	Observer Observer
}

// Service provides login, registration and token refresh.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	tokens   AccessTokenIssuer
	clock    core.Clock
	policy   Policy
	retry    core.RetryPolicy
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// NewService creates a Service, applying defaults for optional fields.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Accounts == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("accounts repository is required")
	}
	if cfg.Hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if cfg.Tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("access token issuer is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock{}
	}
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.Retry == (core.RetryPolicy{}) {
		cfg.Retry = core.DefaultRetryPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	return &Service{
		accounts: cfg.Accounts,
		hasher:   cfg.Hasher,
		tokens:   cfg.Tokens,
		clock:    cfg.Clock,
		policy:   cfg.Policy,
		retry:    cfg.Retry,
		logger:   cfg.Logger.With("component", "auth"),
		observer: cfg.Observer,
		tracer:   otel.Tracer("github.com/craftsmenplatform/craftsmen/internal/auth"),
	}, nil
}

// Login authenticates by email and password and starts a session.
// Unknown emails and wrong passwords produce the same error; a locked
// account reports its unlock time once the password is proven.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	email, err := NormalizeEmail(req.Email)
	if err != nil {
		s.burnDummyVerify(req.Password)
		s.observer.LoginFailed("invalid_email")
		return nil, errInvalidCredentials()
	}

	var result *AuthResult
	err = core.RetryOnConflict(ctx, s.retry, func(ctx context.Context) error {
		var loginErr error
		result, loginErr = s.login(ctx, email, req)
		return loginErr
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("account.id", result.AccountID.String()))
	return result, nil
}

func (s *Service) login(ctx context.Context, email string, req LoginRequest) (*AuthResult, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		s.burnDummyVerify(req.Password)
		s.observer.LoginFailed("unknown_account")
		return nil, errInvalidCredentials()
	}
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(req.Password, account.PasswordHash())
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID().String()).
			Wrap(err)
	}

	now := s.clock.Now()
	if !valid {
		return nil, s.recordFailure(ctx, account, req.IPAddress, now)
	}

	if err := account.RecordSuccessfulLogin(req.IPAddress, now); err != nil {
		s.observer.LoginFailed(errutil.Code(err))
		s.logger.WarnContext(ctx, "login rejected",
			"account_id", account.ID().String(),
			"reason", errutil.Code(err),
			"ip", req.IPAddress)
		return nil, err
	}

	if s.hasher.NeedsUpgrade(account.PasswordHash()) {
		if hash, hashErr := s.hasher.Hash(req.Password); hashErr == nil {
			_ = account.ChangePasswordHash(hash, now) //nolint:errcheck // hash is non-empty
		} else {
			errutil.LogErrorContext(ctx, s.logger, "password hash upgrade failed", hashErr)
		}
	}

	refresh, value, err := s.newRefreshToken(account, req.IPAddress, now)
	if err != nil {
		return nil, err
	}
	if err := account.AddRefreshToken(refresh, s.policy, now); err != nil {
		return nil, err
	}
	result, err := s.result(account, refresh, value, now)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "save account").
			With("account_id", account.ID().String()).
			Wrap(err)
	}

	s.observer.LoginSucceeded()
	s.logger.InfoContext(ctx, "login succeeded",
		"account_id", account.ID().String(),
		"ip", req.IPAddress)
	return result, nil
}

// recordFailure counts the failed attempt and always returns the generic
// credentials error. Attempts against locked or deactivated accounts change
// nothing and are not persisted.
func (s *Service) recordFailure(ctx context.Context, account *Account, ip string, now time.Time) error {
	s.observer.LoginFailed("bad_password")
	if !account.IsActive() || account.IsLockedOut(now) {
		return errInvalidCredentials()
	}

	lockErr := account.RecordFailedLogin(ip, s.policy, now)
	if err := s.accounts.Save(ctx, account); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return oops.Wrap(err)
		}
		return oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "save failed attempt").
			With("account_id", account.ID().String()).
			Wrap(err)
	}

	if lockErr != nil {
		s.observer.AccountLocked()
		until, _ := LockedUntil(lockErr)
		s.logger.WarnContext(ctx, "account locked after failed logins",
			"account_id", account.ID().String(),
			"attempts", account.FailedLoginAttempts(),
			"locked_until", until,
			"ip", ip)
	} else {
		s.logger.InfoContext(ctx, "login failed",
			"account_id", account.ID().String(),
			"attempts", account.FailedLoginAttempts(),
			"ip", ip)
	}
	return errInvalidCredentials()
}

func (s *Service) burnDummyVerify(password string) {
	_, _ = s.hasher.Verify(password, dummyPasswordHash) //nolint:errcheck // result is irrelevant, only the time spent matters
}

// Register creates an account and starts its first session. The
// AccountRegistered event is dispatched by the repository after commit.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer span.End()

	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	role, err := ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	_, err = s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, errEmailTaken(email)
	case !errors.Is(err, core.ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check existing email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	now := s.clock.Now()
	account, err := NewAccountForRole(role, NewAccountParams{
		Email:        email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	}, now)
	if err != nil {
		return nil, err
	}

	refresh, value, err := s.newRefreshToken(account, req.IPAddress, now)
	if err != nil {
		return nil, err
	}
	if err := account.AddRefreshToken(refresh, s.policy, now); err != nil {
		return nil, err
	}
	result, err := s.result(account, refresh, value, now)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, errEmailTaken(email)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	span.SetAttributes(attribute.String("account.id", account.ID().String()))
	s.logger.InfoContext(ctx, "account registered",
		"account_id", account.ID().String(),
		"role", string(role))
	return result, nil
}

func errEmailTaken(email string) error {
	return oops.Code(CodeEmailTaken).
		With("email", email).
		Errorf("an account with this email already exists")
}

// Refresh exchanges a refresh token for a new access token and a new refresh
// token. Presenting a token that was already rotated revokes every session on
// the account when the policy asks for it. Version conflicts are not retried:
// two concurrent exchanges of one token must not both succeed.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	if req.RefreshToken == "" {
		return nil, oops.Code(CodeTokenInvalid).Errorf("invalid refresh token")
	}

	account, err := s.accounts.GetByRefreshToken(ctx, req.RefreshToken)
	if errors.Is(err, core.ErrNotFound) {
		return nil, oops.Code(CodeTokenInvalid).Errorf("invalid refresh token")
	}
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "get account by refresh token").
			Wrap(err)
	}

	token, ok := account.FindRefreshToken(req.RefreshToken)
	if !ok {
		return nil, oops.Code(CodeTokenInvalid).Errorf("invalid refresh token")
	}

	now := s.clock.Now()
	if token.IsRevoked() {
		s.handleReuse(ctx, account, token, req.IPAddress, now)
		return nil, oops.Code(CodeTokenRevoked).
			With("token_id", token.ID().String()).
			Errorf("refresh token has been revoked")
	}
	if token.IsExpired(now) {
		return nil, oops.Code(CodeTokenExpired).
			With("token_id", token.ID().String()).
			Errorf("refresh token has expired")
	}
	if !account.IsActive() {
		return nil, errAccountDeactivated()
	}
	if account.IsLockedOut(now) {
		return nil, errAccountLocked(*account.lockedUntil)
	}

	replacement, value, err := s.newRefreshToken(account, req.IPAddress, now)
	if err != nil {
		return nil, err
	}
	if err := account.RotateRefreshToken(req.RefreshToken, replacement, s.policy, now); err != nil {
		return nil, err
	}
	result, err := s.result(account, replacement, value, now)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, oops.Code(CodeConcurrentModified).
				With("account_id", account.ID().String()).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "save account").
			With("account_id", account.ID().String()).
			Wrap(err)
	}

	s.observer.TokenRefreshed()
	return result, nil
}

func (s *Service) handleReuse(ctx context.Context, account *Account, token *RefreshToken, ip string, now time.Time) {
	if !token.WasRotated() || !s.policy.RevokeChainOnReuse {
		return
	}
	n, err := account.RevokeAllRefreshTokens(actorIP(ip), ReasonReuseDetected, now)
	if err != nil {
		// Nothing left to revoke.
		return
	}
	s.observer.RefreshTokenReused()
	s.logger.WarnContext(ctx, "rotated refresh token presented again, revoking all sessions",
		"account_id", account.ID().String(),
		"token_id", token.ID().String(),
		"revoked", n,
		"ip", ip)
	if err := s.accounts.Save(ctx, account); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "failed to persist reuse revocation", err)
	}
}

// Logout revokes a single refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken, ip string) error {
	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer span.End()

	return core.RetryOnConflict(ctx, s.retry, func(ctx context.Context) error {
		account, err := s.accounts.GetByRefreshToken(ctx, refreshToken)
		if errors.Is(err, core.ErrNotFound) {
			return oops.Code(CodeTokenInvalid).Errorf("invalid refresh token")
		}
		if err != nil {
			return oops.Code("AUTH_LOGOUT_FAILED").With("operation", "get account by refresh token").Wrap(err)
		}
		if err := account.RevokeRefreshToken(refreshToken, actorIP(ip), ReasonLogout, s.clock.Now()); err != nil {
			return err
		}
		return s.save(ctx, account, "AUTH_LOGOUT_FAILED")
	})
}

// LogoutAll revokes every active refresh token of an account and returns how
// many were revoked.
func (s *Service) LogoutAll(ctx context.Context, accountID ulid.ULID, ip string) (int, error) {
	var revoked int
	err := s.mutate(ctx, "auth.LogoutAll", accountID, func(a *Account, now time.Time) error {
		n, err := a.RevokeAllRefreshTokens(actorIP(ip), ReasonLogoutAll, now)
		revoked = n
		return err
	})
	return revoked, err
}

// ChangePassword verifies the current password, stores the new one and ends
// every existing session.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if err := ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	return s.mutate(ctx, "auth.ChangePassword", req.AccountID, func(a *Account, now time.Time) error {
		valid, err := s.hasher.Verify(req.CurrentPassword, a.PasswordHash())
		if err != nil {
			return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "verify password").Wrap(err)
		}
		if !valid {
			return errInvalidCredentials()
		}
		hash, err := s.hasher.Hash(req.NewPassword)
		if err != nil {
			return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
		}
		if err := a.ChangePasswordHash(hash, now); err != nil {
			return err
		}
		a.revokeAllQuietly(actorIP(req.IPAddress), ReasonPasswordChanged, now)
		return nil
	})
}

// Deactivate disables an account.
func (s *Service) Deactivate(ctx context.Context, accountID ulid.ULID, reason string) error {
	return s.mutate(ctx, "auth.Deactivate", accountID, func(a *Account, now time.Time) error {
		return a.Deactivate(reason, now)
	})
}

// Activate re-enables an account.
func (s *Service) Activate(ctx context.Context, accountID ulid.ULID) error {
	return s.mutate(ctx, "auth.Activate", accountID, func(a *Account, now time.Time) error {
		return a.Activate(now)
	})
}

// Unlock clears a lockout.
func (s *Service) Unlock(ctx context.Context, accountID ulid.ULID) error {
	return s.mutate(ctx, "auth.Unlock", accountID, func(a *Account, now time.Time) error {
		return a.Unlock(now)
	})
}

// VerifyEmail marks an account's email as confirmed.
func (s *Service) VerifyEmail(ctx context.Context, accountID ulid.ULID) error {
	return s.mutate(ctx, "auth.VerifyEmail", accountID, func(a *Account, now time.Time) error {
		return a.VerifyEmail(now)
	})
}

// UpdateProfile changes the caller's own profile fields.
func (s *Service) UpdateProfile(ctx context.Context, accountID ulid.ULID, update ProfileUpdate) (*Account, error) {
	var updated *Account
	err := s.mutate(ctx, "auth.UpdateProfile", accountID, func(a *Account, now time.Time) error {
		updated = a
		return a.UpdateProfile(update, now)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangeRole moves an account to another role and ends its sessions. Setting
// the current role succeeds without writing.
func (s *Service) ChangeRole(ctx context.Context, accountID ulid.ULID, role Role) error {
	return s.mutate(ctx, "auth.ChangeRole", accountID, func(a *Account, now time.Time) error {
		changed, err := a.ChangeRole(role, now)
		if err != nil {
			return err
		}
		if !changed {
			return errUnchanged
		}
		s.logger.InfoContext(ctx, "account role changed",
			"account_id", a.ID().String(), "role", string(role))
		return nil
	})
}

// GetAccount loads an account by ID.
func (s *Service) GetAccount(ctx context.Context, accountID ulid.ULID) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, oops.Code(CodeAccountNotFound).With("account_id", accountID.String()).Wrap(err)
	}
	if err != nil {
		return nil, oops.Code("AUTH_GET_ACCOUNT_FAILED").With("account_id", accountID.String()).Wrap(err)
	}
	return account, nil
}

// errUnchanged lets a mutate callback skip the save.
var errUnchanged = errors.New("account unchanged")

// mutate runs a load-mutate-save cycle on one account, retrying on conflict.
func (s *Service) mutate(ctx context.Context, op string, accountID ulid.ULID, fn func(*Account, time.Time) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID.String()))

	return core.RetryOnConflict(ctx, s.retry, func(ctx context.Context) error {
		account, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if err := fn(account, s.clock.Now()); err != nil {
			if errors.Is(err, errUnchanged) {
				return nil
			}
			return err
		}
		return s.save(ctx, account, "AUTH_UPDATE_FAILED")
	})
}

func (s *Service) save(ctx context.Context, account *Account, code string) error {
	if err := s.accounts.Save(ctx, account); err != nil {
		return oops.Code(code).
			With("operation", "save account").
			With("account_id", account.ID().String()).
			Wrap(err)
	}
	return nil
}

func (s *Service) newRefreshToken(account *Account, ip string, now time.Time) (*RefreshToken, string, error) {
	value, err := GenerateRefreshToken()
	if err != nil {
		return nil, "", err
	}
	token, err := NewRefreshToken(account.ID(), value, now.Add(s.policy.RefreshTokenTTL), actorIP(ip), now)
	if err != nil {
		return nil, "", err
	}
	return token, value, nil
}

func (s *Service) result(account *Account, refresh *RefreshToken, value string, now time.Time) (*AuthResult, error) {
	access, accessExp, err := s.tokens.Issue(account, now)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_ISSUE_FAILED").
			With("account_id", account.ID().String()).
			Wrap(err)
	}
	return &AuthResult{
		AccountID:             account.ID(),
		Email:                 account.Email(),
		Role:                  account.Role(),
		EmailVerified:         account.IsEmailVerified(),
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          value,
		RefreshTokenExpiresAt: refresh.ExpiresAt(),
	}, nil
}

func actorIP(ip string) string {
	if ip == "" {
		return SystemActor
	}
	return ip
}
