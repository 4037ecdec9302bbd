// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// AccountRepository loads and saves account aggregates together with their
// refresh tokens. Save is all-or-nothing and fails with core.ErrConflict when
// the account changed since it was loaded. Deleted accounts are not returned.
type AccountRepository interface {
	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByRefreshToken retrieves the account owning a plaintext refresh token.
	GetByRefreshToken(ctx context.Context, token string) (*Account, error)

	// Create stores a new account. Wraps ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, account *Account) error

	// Save persists changes to an existing account.
	Save(ctx context.Context, account *Account) error
}
