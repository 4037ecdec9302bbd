// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package authtest provides an in-memory AccountRepository for tests.
package authtest

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/core"
)

// MemoryRepository stores account snapshots in memory and enforces the same
// optimistic version check as the postgres repository.
type MemoryRepository struct {
	mu        sync.Mutex
	accounts  map[ulid.ULID]auth.AccountState
	publisher core.Publisher

	// SaveHook, when set, runs before each Save and may return an error to
	// simulate storage failures.
	SaveHook func(account *auth.Account) error
}

// NewMemoryRepository creates an empty repository. publisher may be nil.
func NewMemoryRepository(publisher core.Publisher) *MemoryRepository {
	return &MemoryRepository{
		accounts:  make(map[ulid.ULID]auth.AccountState),
		publisher: publisher,
	}
}

// GetByID implements auth.AccountRepository.
func (r *MemoryRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.accounts[id]
	if !ok || s.DeletedAt != nil {
		return nil, oops.With("account_id", id.String()).Wrap(core.ErrNotFound)
	}
	return auth.RestoreAccount(s), nil
}

// GetByEmail implements auth.AccountRepository.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.accounts {
		if s.Email == email && s.DeletedAt == nil {
			return auth.RestoreAccount(s), nil
		}
	}
	return nil, oops.With("email", email).Wrap(core.ErrNotFound)
}

// GetByRefreshToken implements auth.AccountRepository.
func (r *MemoryRepository) GetByRefreshToken(_ context.Context, token string) (*auth.Account, error) {
	hash := auth.HashRefreshToken(token)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.accounts {
		if s.DeletedAt != nil {
			continue
		}
		for _, t := range s.RefreshTokens {
			if t.TokenHash == hash {
				return auth.RestoreAccount(s), nil
			}
		}
	}
	return nil, oops.Wrap(core.ErrNotFound)
}

// Create implements auth.AccountRepository.
func (r *MemoryRepository) Create(ctx context.Context, account *auth.Account) error {
	r.mu.Lock()
	for _, s := range r.accounts {
		if s.Email == account.Email() {
			r.mu.Unlock()
			return oops.With("email", account.Email()).Wrap(auth.ErrEmailTaken)
		}
	}
	state := account.State()
	state.Version = 1
	r.accounts[account.ID()] = state
	r.mu.Unlock()

	account.SetVersion(1)
	r.publish(ctx, account)
	return nil
}

// Save implements auth.AccountRepository.
func (r *MemoryRepository) Save(ctx context.Context, account *auth.Account) error {
	if r.SaveHook != nil {
		if err := r.SaveHook(account); err != nil {
			return err
		}
	}

	r.mu.Lock()
	stored, ok := r.accounts[account.ID()]
	if !ok {
		r.mu.Unlock()
		return oops.With("account_id", account.ID().String()).Wrap(core.ErrNotFound)
	}
	if stored.Version != account.Version() {
		r.mu.Unlock()
		return oops.
			With("account_id", account.ID().String()).
			With("expected_version", account.Version()).
			With("stored_version", stored.Version).
			Wrap(core.ErrConflict)
	}
	state := account.State()
	state.Version = stored.Version + 1
	r.accounts[account.ID()] = state
	r.mu.Unlock()

	account.SetVersion(state.Version)
	r.publish(ctx, account)
	return nil
}

// Len returns the number of stored accounts.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

// Stored returns the stored snapshot of an account.
func (r *MemoryRepository) Stored(id ulid.ULID) (auth.AccountState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.accounts[id]
	return s, ok
}

func (r *MemoryRepository) publish(ctx context.Context, account *auth.Account) {
	events := account.DrainEvents()
	if r.publisher != nil && len(events) > 0 {
		r.publisher.Dispatch(ctx, events...)
	}
}

var _ auth.AccountRepository = (*MemoryRepository)(nil)
