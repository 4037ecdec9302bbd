// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth

import (
	"regexp"
	"strings"

	"github.com/samber/oops"
)

// MaxEmailLength is the longest accepted email address.
const MaxEmailLength = 255

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail trims and lower-cases an email address and validates its
// shape. Accounts are always stored and looked up by the normalized form.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", oops.Code(CodeInvalidEmail).Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return "", oops.Code(CodeInvalidEmail).
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return "", oops.Code(CodeInvalidEmail).Errorf("invalid email format")
	}
	return email, nil
}
