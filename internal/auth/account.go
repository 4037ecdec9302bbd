// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/core"
)

// MaxNameLength bounds first and last names.
const MaxNameLength = 100

// Role determines what an account may do on the platform.
type Role string

// Account roles.
const (
	RoleCustomer  Role = "customer"
	RoleCraftsman Role = "craftsman"
	RoleAdmin     Role = "admin"
)

// ParseRole parses a role name case-insensitively. "user" is accepted as an
// alias for customer.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer", "user":
		return RoleCustomer, nil
	case "craftsman":
		return RoleCraftsman, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return "", oops.Code(CodeInvalidRole).With("role", s).Errorf("invalid role")
	}
}

// AccountRegistered is raised when a new account is created.
type AccountRegistered struct {
	AccountID ulid.ULID `json:"account_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Role      Role      `json:"role"`
}

// Account is the aggregate root for a user's identity and security state:
// credentials, failed-login counter, lockout window and refresh tokens.
// All mutation goes through its methods, which take the current time
// explicitly.
type Account struct {
	id                  ulid.ULID
	email               string
	passwordHash        string
	firstName           string
	lastName            string
	phone               PhoneNumber
	address             Address
	avatarURL           string
	role                Role
	emailVerifiedAt     *time.Time
	deactivatedAt       *time.Time
	deactivationReason  string
	failedLoginAttempts int
	lastFailedLoginAt   *time.Time
	lastFailedLoginIP   string
	lockedUntil         *time.Time
	lastLoginAt         *time.Time
	lastLoginIP         string
	refreshTokens       []*RefreshToken
	deletedAt           *time.Time
	deletedBy           string
	createdAt           time.Time
	updatedAt           time.Time
	version             int

	events core.Recorder
}

var _ core.Deletable = (*Account)(nil)

// NewAccountParams carries the registration input for an account.
type NewAccountParams struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
}

// NewCustomer creates a customer account.
func NewCustomer(p NewAccountParams, now time.Time) (*Account, error) {
	return newAccount(RoleCustomer, p, now)
}

// NewCraftsman creates a craftsman account.
func NewCraftsman(p NewAccountParams, now time.Time) (*Account, error) {
	return newAccount(RoleCraftsman, p, now)
}

// NewAccountForRole dispatches to the role-specific factory. Admin accounts
// cannot be self-registered.
func NewAccountForRole(role Role, p NewAccountParams, now time.Time) (*Account, error) {
	switch role {
	case RoleCustomer:
		return NewCustomer(p, now)
	case RoleCraftsman:
		return NewCraftsman(p, now)
	default:
		return nil, oops.Code(CodeInvalidRole).With("role", string(role)).Errorf("invalid role")
	}
}

func newAccount(role Role, p NewAccountParams, now time.Time) (*Account, error) {
	email, err := NormalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}
	if p.PasswordHash == "" {
		return nil, oops.Code("AUTH_INVALID_PASSWORD_HASH").Errorf("password hash cannot be empty")
	}
	first, err := validateName("first_name", p.FirstName)
	if err != nil {
		return nil, err
	}
	last, err := validateName("last_name", p.LastName)
	if err != nil {
		return nil, err
	}

	a := &Account{
		id:           core.NewULIDAt(now),
		email:        email,
		passwordHash: p.PasswordHash,
		firstName:    first,
		lastName:     last,
		role:         role,
		createdAt:    now,
		updatedAt:    now,
	}
	a.events.Record(core.NewEvent(core.EventAccountRegistered, core.AggregateAccount, a.id, AccountRegistered{
		AccountID: a.id,
		Email:     a.email,
		FirstName: a.firstName,
		LastName:  a.lastName,
		Role:      a.role,
	}, now))
	return a, nil
}

func (a *Account) ID() ulid.ULID              { return a.id }
func (a *Account) Email() string              { return a.email }
func (a *Account) PasswordHash() string       { return a.passwordHash }
func (a *Account) FirstName() string          { return a.firstName }
func (a *Account) LastName() string           { return a.lastName }
func (a *Account) Role() Role                 { return a.role }
func (a *Account) Phone() PhoneNumber         { return a.phone }
func (a *Account) Address() Address           { return a.address }
func (a *Account) AvatarURL() string          { return a.avatarURL }
func (a *Account) FailedLoginAttempts() int   { return a.failedLoginAttempts }
func (a *Account) LastLoginIP() string        { return a.lastLoginIP }
func (a *Account) DeactivationReason() string { return a.deactivationReason }
func (a *Account) DeletedBy() string          { return a.deletedBy }
func (a *Account) CreatedAt() time.Time       { return a.createdAt }
func (a *Account) UpdatedAt() time.Time       { return a.updatedAt }

// FullName joins first and last name.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.firstName + " " + a.lastName)
}

// IsEmailVerified reports whether the email address was confirmed.
func (a *Account) IsEmailVerified() bool { return a.emailVerifiedAt != nil }

// IsActive reports whether the account is not deactivated.
func (a *Account) IsActive() bool { return a.deactivatedAt == nil }

// IsDeleted reports whether the account was soft-deleted.
func (a *Account) IsDeleted() bool { return a.deletedAt != nil }

// DeletedAt returns the soft-delete time, or nil.
func (a *Account) DeletedAt() *time.Time { return copyTime(a.deletedAt) }

// LockedUntil returns the stored lockout time, or nil. The value may be in
// the past; use IsLockedOut to evaluate it.
func (a *Account) LockedUntil() *time.Time { return copyTime(a.lockedUntil) }

// LastLoginAt returns the time of the last successful login, or nil.
func (a *Account) LastLoginAt() *time.Time { return copyTime(a.lastLoginAt) }

// IsLockedOut reports whether the lockout window is still open at now.
func (a *Account) IsLockedOut(now time.Time) bool {
	return IsLockedOut(a.lockedUntil, now)
}

// Version is the persisted version the account was loaded at.
func (a *Account) Version() int { return a.version }

// SetVersion is called by repositories after a successful write.
func (a *Account) SetVersion(v int) { a.version = v }

// PendingEvents returns buffered domain events without draining them.
func (a *Account) PendingEvents() []core.Event { return a.events.Pending() }

// DrainEvents returns and clears buffered domain events. Repositories call it
// after the account has been committed.
func (a *Account) DrainEvents() []core.Event { return a.events.Drain() }

func (a *Account) touch(now time.Time) { a.updatedAt = now }

// RecordFailedLogin counts a failed password attempt. Reaching the policy
// threshold opens a lockout window and returns AUTH_ACCOUNT_LOCKED carrying
// the unlock time. While already locked, the attempt is rejected without
// being counted.
func (a *Account) RecordFailedLogin(ip string, policy Policy, now time.Time) error {
	if !a.IsActive() {
		return errAccountDeactivated()
	}
	if a.IsLockedOut(now) {
		return errAccountLocked(*a.lockedUntil)
	}

	a.failedLoginAttempts++
	at := now
	a.lastFailedLoginAt = &at
	a.lastFailedLoginIP = ip
	a.touch(now)

	if a.failedLoginAttempts >= policy.LockoutThreshold {
		until := now.Add(policy.LockoutDuration)
		a.lockedUntil = &until
		return errAccountLocked(until)
	}
	return nil
}

// RecordSuccessfulLogin resets the failure counter and clears any expired
// lockout. It is rejected for deactivated or currently locked accounts.
func (a *Account) RecordSuccessfulLogin(ip string, now time.Time) error {
	if !a.IsActive() {
		return errAccountDeactivated()
	}
	if a.IsLockedOut(now) {
		return errAccountLocked(*a.lockedUntil)
	}

	a.failedLoginAttempts = 0
	a.lockedUntil = nil
	at := now
	a.lastLoginAt = &at
	a.lastLoginIP = ip
	a.touch(now)
	return nil
}

// Lock opens an administrative lockout window until the given time.
func (a *Account) Lock(until, now time.Time) error {
	if !until.After(now) {
		return oops.Code("AUTH_INVALID_LOCK_TIME").
			With("until", until).
			Errorf("lock time must be in the future")
	}
	if a.IsLockedOut(now) {
		return oops.Code(CodeAccountAlreadyLocked).
			With("locked_until", *a.lockedUntil).
			Errorf("account is already locked")
	}
	u := until
	a.lockedUntil = &u
	a.touch(now)
	return nil
}

// Unlock clears the lockout and the failure counter.
func (a *Account) Unlock(now time.Time) error {
	if a.lockedUntil == nil {
		return oops.Code(CodeAccountNotLocked).Errorf("account is not locked")
	}
	a.lockedUntil = nil
	a.failedLoginAttempts = 0
	a.touch(now)
	return nil
}

// RefreshTokens returns all tokens owned by the account, oldest first.
func (a *Account) RefreshTokens() []*RefreshToken {
	return slices.Clone(a.refreshTokens)
}

// ActiveRefreshTokens returns tokens that are neither expired nor revoked at
// now, newest first.
func (a *Account) ActiveRefreshTokens(now time.Time) []*RefreshToken {
	var active []*RefreshToken
	for _, t := range a.refreshTokens {
		if t.IsActive(now) {
			active = append(active, t)
		}
	}
	slices.SortStableFunc(active, func(x, y *RefreshToken) int {
		if c := y.createdAt.Compare(x.createdAt); c != 0 {
			return c
		}
		return cmp.Compare(y.id.String(), x.id.String())
	})
	return active
}

// FindRefreshToken finds a token by its plaintext value.
func (a *Account) FindRefreshToken(token string) (*RefreshToken, bool) {
	for _, t := range a.refreshTokens {
		if t.Matches(token) {
			return t, true
		}
	}
	return nil, false
}

// AddRefreshToken attaches a newly issued token and revokes the oldest
// active tokens beyond the policy cap.
func (a *Account) AddRefreshToken(token *RefreshToken, policy Policy, now time.Time) error {
	if err := a.canIssue(token); err != nil {
		return err
	}
	a.refreshTokens = append(a.refreshTokens, token)
	a.enforceTokenCap(token.createdByIP, policy, now)
	a.touch(now)
	return nil
}

func (a *Account) canIssue(token *RefreshToken) error {
	if token == nil {
		return oops.Code("AUTH_TOKEN_INVALID").Errorf("token cannot be nil")
	}
	if token.accountID != a.id {
		return oops.Code("AUTH_TOKEN_ACCOUNT_MISMATCH").
			With("account_id", a.id.String()).
			With("token_account_id", token.accountID.String()).
			Errorf("token belongs to another account")
	}
	if !a.IsActive() {
		return errAccountDeactivated()
	}
	return nil
}

func (a *Account) enforceTokenCap(byIP string, policy Policy, now time.Time) {
	active := a.ActiveRefreshTokens(now)
	if len(active) <= policy.MaxActiveTokens {
		return
	}
	for _, t := range active[policy.MaxActiveTokens:] {
		// Active tokens are neither revoked nor expired and byIP came from a
		// validated token, so Revoke cannot fail here.
		_ = t.Revoke(byIP, "", ReasonTokenLimit, now) //nolint:errcheck // see above
	}
}

// RotateRefreshToken exchanges the presented token for replacement. The old
// token is revoked with a link to its successor.
func (a *Account) RotateRefreshToken(presented string, replacement *RefreshToken, policy Policy, now time.Time) error {
	current, ok := a.FindRefreshToken(presented)
	if !ok {
		return oops.Code(CodeTokenInvalid).Errorf("invalid refresh token")
	}
	if err := a.canIssue(replacement); err != nil {
		return err
	}
	if err := current.Revoke(replacement.createdByIP, replacement.tokenHash, ReasonRotated, now); err != nil {
		return err
	}
	return a.AddRefreshToken(replacement, policy, now)
}

// RevokeRefreshToken revokes a single token, e.g. on logout.
func (a *Account) RevokeRefreshToken(token, byIP, reason string, now time.Time) error {
	t, ok := a.FindRefreshToken(token)
	if !ok {
		return oops.Code(CodeTokenInvalid).Errorf("invalid refresh token")
	}
	if err := t.Revoke(byIP, "", reason, now); err != nil {
		return err
	}
	a.touch(now)
	return nil
}

// RevokeAllRefreshTokens revokes every active token and returns how many
// were revoked.
func (a *Account) RevokeAllRefreshTokens(byIP, reason string, now time.Time) (int, error) {
	active := a.ActiveRefreshTokens(now)
	if len(active) == 0 {
		return 0, oops.Code(CodeNoActiveTokens).Errorf("account has no active refresh tokens")
	}
	for _, t := range active {
		if err := t.Revoke(byIP, "", reason, now); err != nil {
			return 0, err
		}
	}
	a.touch(now)
	return len(active), nil
}

// revokeAllQuietly is used by state changes that end every session.
func (a *Account) revokeAllQuietly(byIP, reason string, now time.Time) {
	for _, t := range a.ActiveRefreshTokens(now) {
		_ = t.Revoke(byIP, "", reason, now) //nolint:errcheck // tokens are active, IP is non-empty
	}
}

// Deactivate disables the account and ends all of its sessions.
func (a *Account) Deactivate(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return oops.Code("AUTH_INVALID_REASON").Errorf("deactivation reason cannot be empty")
	}
	if !a.IsActive() {
		return oops.Code("AUTH_ACCOUNT_ALREADY_DEACTIVATED").Errorf("account is already deactivated")
	}
	at := now
	a.deactivatedAt = &at
	a.deactivationReason = reason
	a.revokeAllQuietly(SystemActor, ReasonDeactivated, now)
	a.touch(now)
	return nil
}

// Activate re-enables a deactivated account.
func (a *Account) Activate(now time.Time) error {
	if a.IsActive() {
		return oops.Code(CodeAccountAlreadyActive).Errorf("account is already active")
	}
	a.deactivatedAt = nil
	a.deactivationReason = ""
	a.touch(now)
	return nil
}

// VerifyEmail marks the email address as confirmed.
func (a *Account) VerifyEmail(now time.Time) error {
	if a.IsEmailVerified() {
		return oops.Code("AUTH_EMAIL_ALREADY_VERIFIED").Errorf("email is already verified")
	}
	at := now
	a.emailVerifiedAt = &at
	a.touch(now)
	return nil
}

// ChangePasswordHash replaces the stored hash. Callers that change the
// password on the user's behalf should also end existing sessions.
func (a *Account) ChangePasswordHash(hash string, now time.Time) error {
	if hash == "" {
		return oops.Code("AUTH_INVALID_PASSWORD_HASH").Errorf("password hash cannot be empty")
	}
	a.passwordHash = hash
	a.touch(now)
	return nil
}

// MarkDeleted soft-deletes the account and ends all of its sessions.
func (a *Account) MarkDeleted(by string, now time.Time) error {
	if a.IsDeleted() {
		return oops.Code(CodeAccountAlreadyDeleted).Errorf("account is already deleted")
	}
	if strings.TrimSpace(by) == "" {
		by = SystemActor
	}
	at := now
	a.deletedAt = &at
	a.deletedBy = by
	a.revokeAllQuietly(SystemActor, ReasonDeleted, now)
	a.touch(now)
	return nil
}

// AccountState is the persisted form of an Account.
type AccountState struct {
	ID                  ulid.ULID
	Email               string
	PasswordHash        string
	FirstName           string
	LastName            string
	Phone               PhoneNumber
	Address             Address
	AvatarURL           string
	Role                Role
	EmailVerifiedAt     *time.Time
	DeactivatedAt       *time.Time
	DeactivationReason  string
	FailedLoginAttempts int
	LastFailedLoginAt   *time.Time
	LastFailedLoginIP   string
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	LastLoginIP         string
	RefreshTokens       []RefreshTokenState
	DeletedAt           *time.Time
	DeletedBy           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Version             int
}

// State snapshots the account and its tokens for persistence.
func (a *Account) State() AccountState {
	tokens := make([]RefreshTokenState, 0, len(a.refreshTokens))
	for _, t := range a.refreshTokens {
		tokens = append(tokens, t.State())
	}
	return AccountState{
		ID:                  a.id,
		Email:               a.email,
		PasswordHash:        a.passwordHash,
		FirstName:           a.firstName,
		LastName:            a.lastName,
		Phone:               a.phone,
		Address:             a.address,
		AvatarURL:           a.avatarURL,
		Role:                a.role,
		EmailVerifiedAt:     copyTime(a.emailVerifiedAt),
		DeactivatedAt:       copyTime(a.deactivatedAt),
		DeactivationReason:  a.deactivationReason,
		FailedLoginAttempts: a.failedLoginAttempts,
		LastFailedLoginAt:   copyTime(a.lastFailedLoginAt),
		LastFailedLoginIP:   a.lastFailedLoginIP,
		LockedUntil:         copyTime(a.lockedUntil),
		LastLoginAt:         copyTime(a.lastLoginAt),
		LastLoginIP:         a.lastLoginIP,
		RefreshTokens:       tokens,
		DeletedAt:           copyTime(a.deletedAt),
		DeletedBy:           a.deletedBy,
		CreatedAt:           a.createdAt,
		UpdatedAt:           a.updatedAt,
		Version:             a.version,
	}
}

// RestoreAccount rebuilds an account loaded from storage.
func RestoreAccount(s AccountState) *Account {
	a := &Account{
		id:                  s.ID,
		email:               s.Email,
		passwordHash:        s.PasswordHash,
		firstName:           s.FirstName,
		lastName:            s.LastName,
		phone:               s.Phone,
		address:             s.Address,
		avatarURL:           s.AvatarURL,
		role:                s.Role,
		emailVerifiedAt:     copyTime(s.EmailVerifiedAt),
		deactivatedAt:       copyTime(s.DeactivatedAt),
		deactivationReason:  s.DeactivationReason,
		failedLoginAttempts: s.FailedLoginAttempts,
		lastFailedLoginAt:   copyTime(s.LastFailedLoginAt),
		lastFailedLoginIP:   s.LastFailedLoginIP,
		lockedUntil:         copyTime(s.LockedUntil),
		lastLoginAt:         copyTime(s.LastLoginAt),
		lastLoginIP:         s.LastLoginIP,
		deletedAt:           copyTime(s.DeletedAt),
		deletedBy:           s.DeletedBy,
		createdAt:           s.CreatedAt,
		updatedAt:           s.UpdatedAt,
		version:             s.Version,
	}
	for _, ts := range s.RefreshTokens {
		a.refreshTokens = append(a.refreshTokens, RestoreRefreshToken(ts))
	}
	return a
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
