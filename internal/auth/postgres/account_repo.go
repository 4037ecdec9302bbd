// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package postgres persists account aggregates in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/internal/store"
)

const emailConstraint = "accounts_email_key"

const accountColumns = `id, email, password_hash, first_name, last_name,
	phone, address_street, address_city, address_state, address_zip_code, address_country, avatar_url,
	role, email_verified_at, deactivated_at, deactivation_reason, failed_login_attempts,
	last_failed_login_at, last_failed_login_ip, locked_until, last_login_at, last_login_ip,
	deleted_at, deleted_by, created_at, updated_at, version`

const tokenColumns = `id, account_id, token_hash, expires_at, created_at, created_by_ip,
	revoked_at, revoked_by_ip, replaced_by_hash, revocation_reason`

// DefaultTokenRetention is how long a refresh token row is kept after it
// expired. Rotated tokens stay visible for reuse detection until then.
const DefaultTokenRetention = 30 * 24 * time.Hour

// AccountRepository implements auth.AccountRepository using PostgreSQL.
// An account and its refresh tokens are written in one transaction; buffered
// domain events are dispatched only after the commit succeeds.
type AccountRepository struct {
	db        store.DB
	publisher core.Publisher
	scope     store.Scope
	clock     core.Clock
	retention time.Duration
}

// AccountRepositoryOption configures an AccountRepository.
type AccountRepositoryOption func(*AccountRepository)

// WithTokenRetention overrides DefaultTokenRetention.
func WithTokenRetention(d time.Duration) AccountRepositoryOption {
	return func(r *AccountRepository) { r.retention = d }
}

// WithClock sets the clock used to compute the token retention cutoff.
func WithClock(c core.Clock) AccountRepositoryOption {
	return func(r *AccountRepository) { r.clock = c }
}

// NewAccountRepository creates a new AccountRepository. publisher may be nil.
func NewAccountRepository(db store.DB, publisher core.Publisher, opts ...AccountRepositoryOption) *AccountRepository {
	r := &AccountRepository{
		db:        db,
		publisher: publisher,
		scope:     store.Live,
		clock:     core.SystemClock{},
		retention: DefaultTokenRetention,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// tokenCutoff is the expiry before which refresh tokens are pruned.
func (r *AccountRepository) tokenCutoff() time.Time {
	return r.clock.Now().Add(-r.retention)
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND `+r.scope.Predicate(""),
		id.String())
	return r.load(ctx, row, "id", id.String())
}

// GetByEmail retrieves an account by its normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1 AND `+r.scope.Predicate(""),
		email)
	return r.load(ctx, row, "email", email)
}

// GetByRefreshToken retrieves the account owning a plaintext refresh token.
// Only the token hash is sent to the database.
func (r *AccountRepository) GetByRefreshToken(ctx context.Context, token string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE id = (SELECT account_id FROM refresh_tokens WHERE token_hash = $1) AND `+r.scope.Predicate(""),
		auth.HashRefreshToken(token))
	return r.load(ctx, row, "lookup", "refresh token")
}

func (r *AccountRepository) load(ctx context.Context, row pgx.Row, key, value string) (*auth.Account, error) {
	state, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With(key, value).Wrap(core.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account").
			With(key, value).
			Wrap(err)
	}

	tokens, err := r.loadTokens(ctx, state.ID)
	if err != nil {
		return nil, err
	}
	state.RefreshTokens = tokens
	return auth.RestoreAccount(state), nil
}

func (r *AccountRepository) loadTokens(ctx context.Context, accountID ulid.ULID) ([]auth.RefreshTokenState, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens
		 WHERE account_id = $1 AND expires_at >= $2 ORDER BY created_at, id`,
		accountID.String(), r.tokenCutoff())
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "query refresh tokens").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var tokens []auth.RefreshTokenState
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "iterate refresh tokens").
			Wrap(err)
	}
	return tokens, nil
}

// Create stores a new account with its tokens at version 1.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	s := account.State()
	err := store.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO accounts (`+accountColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			         $20, $21, $22, $23, $24, $25, $26, 1)`,
			s.ID.String(), s.Email, s.PasswordHash, s.FirstName, s.LastName,
			string(s.Phone), s.Address.Street, s.Address.City, s.Address.State, s.Address.ZipCode, s.Address.Country, s.AvatarURL,
			string(s.Role),
			s.EmailVerifiedAt, s.DeactivatedAt, s.DeactivationReason, s.FailedLoginAttempts,
			s.LastFailedLoginAt, s.LastFailedLoginIP, s.LockedUntil, s.LastLoginAt, s.LastLoginIP,
			s.DeletedAt, s.DeletedBy, s.CreatedAt, s.UpdatedAt,
		)
		if store.IsUniqueViolation(err, emailConstraint) {
			return oops.With("email", s.Email).Wrap(auth.ErrEmailTaken)
		}
		if err != nil {
			return oops.Code("ACCOUNT_CREATE_FAILED").
				With("operation", "insert account").
				With("account_id", s.ID.String()).
				Wrap(err)
		}
		return upsertTokens(ctx, tx, s.RefreshTokens)
	})
	if err != nil {
		return err
	}

	account.SetVersion(1)
	r.publish(ctx, account)
	return nil
}

// Save writes the account if it is still at the version it was loaded at.
// A stale version fails with core.ErrConflict and nothing is written.
func (r *AccountRepository) Save(ctx context.Context, account *auth.Account) error {
	s := account.State()
	err := store.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE accounts SET
				email = $3,
				password_hash = $4,
				first_name = $5,
				last_name = $6,
				phone = $7,
				address_street = $8,
				address_city = $9,
				address_state = $10,
				address_zip_code = $11,
				address_country = $12,
				avatar_url = $13,
				role = $14,
				email_verified_at = $15,
				deactivated_at = $16,
				deactivation_reason = $17,
				failed_login_attempts = $18,
				last_failed_login_at = $19,
				last_failed_login_ip = $20,
				locked_until = $21,
				last_login_at = $22,
				last_login_ip = $23,
				deleted_at = $24,
				deleted_by = $25,
				updated_at = $26,
				version = version + 1
			WHERE id = $1 AND version = $2`,
			s.ID.String(), s.Version,
			s.Email, s.PasswordHash, s.FirstName, s.LastName,
			string(s.Phone), s.Address.Street, s.Address.City, s.Address.State, s.Address.ZipCode, s.Address.Country, s.AvatarURL,
			string(s.Role),
			s.EmailVerifiedAt, s.DeactivatedAt, s.DeactivationReason, s.FailedLoginAttempts,
			s.LastFailedLoginAt, s.LastFailedLoginIP, s.LockedUntil, s.LastLoginAt, s.LastLoginIP,
			s.DeletedAt, s.DeletedBy, s.UpdatedAt,
		)
		if err != nil {
			return oops.Code("ACCOUNT_SAVE_FAILED").
				With("operation", "update account").
				With("account_id", s.ID.String()).
				Wrap(err)
		}
		if result.RowsAffected() == 0 {
			return oops.
				With("account_id", s.ID.String()).
				With("version", s.Version).
				Wrap(core.ErrConflict)
		}
		if err := upsertTokens(ctx, tx, s.RefreshTokens); err != nil {
			return err
		}
		return r.pruneTokens(ctx, tx, s.ID)
	})
	if err != nil {
		return err
	}

	account.SetVersion(s.Version + 1)
	r.publish(ctx, account)
	return nil
}

// pruneTokens deletes the account's tokens that expired before the retention
// cutoff.
func (r *AccountRepository) pruneTokens(ctx context.Context, tx pgx.Tx, accountID ulid.ULID) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE account_id = $1 AND expires_at < $2`,
		accountID.String(), r.tokenCutoff())
	if err != nil {
		return oops.Code("REFRESH_TOKEN_PRUNE_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return nil
}

// upsertTokens inserts new tokens and records revocations on existing ones.
// The other token columns never change after creation.
func upsertTokens(ctx context.Context, tx pgx.Tx, tokens []auth.RefreshTokenState) error {
	for _, t := range tokens {
		_, err := tx.Exec(ctx,
			`INSERT INTO refresh_tokens (`+tokenColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO UPDATE SET
				revoked_at = EXCLUDED.revoked_at,
				revoked_by_ip = EXCLUDED.revoked_by_ip,
				replaced_by_hash = EXCLUDED.replaced_by_hash,
				revocation_reason = EXCLUDED.revocation_reason`,
			t.ID.String(), t.AccountID.String(), t.TokenHash, t.ExpiresAt, t.CreatedAt, t.CreatedByIP,
			t.RevokedAt, t.RevokedByIP, t.ReplacedByHash, t.RevocationReason,
		)
		if err != nil {
			return oops.Code("REFRESH_TOKEN_SAVE_FAILED").
				With("operation", "upsert refresh token").
				With("token_id", t.ID.String()).
				Wrap(err)
		}
	}
	return nil
}

func (r *AccountRepository) publish(ctx context.Context, account *auth.Account) {
	events := account.DrainEvents()
	if r.publisher != nil && len(events) > 0 {
		r.publisher.Dispatch(ctx, events...)
	}
}

// scanAccount scans a single row. Callers handle pgx.ErrNoRows.
func scanAccount(row pgx.Row) (auth.AccountState, error) {
	var (
		s     auth.AccountState
		idStr string
		phone string
		role  string
	)
	err := row.Scan(
		&idStr, &s.Email, &s.PasswordHash, &s.FirstName, &s.LastName,
		&phone, &s.Address.Street, &s.Address.City, &s.Address.State, &s.Address.ZipCode, &s.Address.Country, &s.AvatarURL,
		&role,
		&s.EmailVerifiedAt, &s.DeactivatedAt, &s.DeactivationReason, &s.FailedLoginAttempts,
		&s.LastFailedLoginAt, &s.LastFailedLoginIP, &s.LockedUntil, &s.LastLoginAt, &s.LastLoginIP,
		&s.DeletedAt, &s.DeletedBy, &s.CreatedAt, &s.UpdatedAt, &s.Version,
	)
	if err != nil {
		return s, err //nolint:wrapcheck // callers wrap with lookup context
	}

	s.ID, err = ulid.Parse(idStr)
	if err != nil {
		return s, oops.Code("ACCOUNT_INVALID_ID").With("id", idStr).Wrap(err)
	}
	s.Role = auth.Role(role)
	s.Phone = auth.PhoneNumber(phone)
	s.EmailVerifiedAt = utc(s.EmailVerifiedAt)
	s.DeactivatedAt = utc(s.DeactivatedAt)
	s.LastFailedLoginAt = utc(s.LastFailedLoginAt)
	s.LockedUntil = utc(s.LockedUntil)
	s.LastLoginAt = utc(s.LastLoginAt)
	s.DeletedAt = utc(s.DeletedAt)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func scanToken(row pgx.Row) (auth.RefreshTokenState, error) {
	var (
		t                 auth.RefreshTokenState
		idStr, accountStr string
	)
	err := row.Scan(
		&idStr, &accountStr, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.CreatedByIP,
		&t.RevokedAt, &t.RevokedByIP, &t.ReplacedByHash, &t.RevocationReason,
	)
	if err != nil {
		return t, oops.Code("REFRESH_TOKEN_SCAN_FAILED").Wrap(err)
	}
	if t.ID, err = ulid.Parse(idStr); err != nil {
		return t, oops.Code("REFRESH_TOKEN_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if t.AccountID, err = ulid.Parse(accountStr); err != nil {
		return t, oops.Code("REFRESH_TOKEN_INVALID_ID").With("account_id", accountStr).Wrap(err)
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.RevokedAt = utc(t.RevokedAt)
	return t, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

var _ auth.AccountRepository = (*AccountRepository)(nil)
