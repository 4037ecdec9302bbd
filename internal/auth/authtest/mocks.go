// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package authtest

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
)

// MockPasswordHasher is a testify mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockAccountRepository is a testify mock of auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock that asserts its expectations on cleanup.
func NewMockAccountRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*auth.Account)
	return a, args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	args := m.Called(ctx, email)
	a, _ := args.Get(0).(*auth.Account)
	return a, args.Error(1)
}

func (m *MockAccountRepository) GetByRefreshToken(ctx context.Context, token string) (*auth.Account, error) {
	args := m.Called(ctx, token)
	a, _ := args.Get(0).(*auth.Account)
	return a, args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) Save(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

// MockAccessTokenIssuer is a testify mock of auth.AccessTokenIssuer.
type MockAccessTokenIssuer struct {
	mock.Mock
}

func (m *MockAccessTokenIssuer) Issue(account *auth.Account, now time.Time) (string, time.Time, error) {
	args := m.Called(account, now)
	at, _ := args.Get(1).(time.Time)
	return args.String(0), at, args.Error(2)
}

var (
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
	_ auth.AccountRepository = (*MockAccountRepository)(nil)
	_ auth.AccessTokenIssuer = (*MockAccessTokenIssuer)(nil)
)
