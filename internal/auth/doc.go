// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package auth implements account security for the craftsmen platform.
//
// # Domain Types
//
// Account is the aggregate root. It owns the password hash, the failed-login
// counter, the lockout window and the account's refresh tokens. Accounts are
// created with the role factories:
//   - NewCustomer - a customer account
//   - NewCraftsman - a craftsman account
//   - NewAccountForRole - dispatches on a parsed Role; admins cannot self-register
//
// RefreshToken values are created with NewRefreshToken and only ever attached
// to an account through Account methods, which enforce the active-token cap
// and record rotation chains. Time is always passed in explicitly so lockout
// and expiry are evaluated lazily against the caller's clock.
//
// # Services
//
// Service coordinates repositories, hashing and token issuance:
//   - Login - password check, lockout accounting, session start
//   - Register - account creation with the first session
//   - Refresh - refresh-token rotation with reuse detection
//   - Logout, LogoutAll, ChangePassword, Deactivate, Activate, Unlock, VerifyEmail
//
// Repositories persist an account and its tokens atomically and reject stale
// writes with core.ErrConflict. Mutating operations retry on conflict, except
// Refresh, which reports CONCURRENT_MODIFICATION so a token is never
// exchanged twice.
package auth
