// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth

// Observer is notified of security-relevant outcomes, typically to feed
// metrics.
type Observer interface {
	LoginSucceeded()
	LoginFailed(reason string)
	AccountLocked()
	TokenRefreshed()
	RefreshTokenReused()
}

type nopObserver struct{}

func (nopObserver) LoginSucceeded()     {}
func (nopObserver) LoginFailed(string)  {}
func (nopObserver) AccountLocked()      {}
func (nopObserver) TokenRefreshed()     {}
func (nopObserver) RefreshTokenReused() {}
