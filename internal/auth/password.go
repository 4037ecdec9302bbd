// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth

import (
	"strings"
	"unicode"

	"github.com/samber/oops"
)

// Password policy limits.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// ValidatePassword checks a plaintext password against the platform policy:
// 8 to 128 characters with at least one upper-case letter, one lower-case
// letter, one digit and one special character. All violations are reported
// together under the "violations" context key.
func ValidatePassword(password string) error {
	if password == "" {
		return oops.Code(CodeWeakPassword).Errorf("password cannot be empty")
	}

	var violations []string
	n := len([]rune(password))
	if n < MinPasswordLength {
		violations = append(violations, "must be at least 8 characters")
	}
	if n > MaxPasswordLength {
		violations = append(violations, "must be at most 128 characters")
	}

	c := classify(password)
	if !c.upper {
		violations = append(violations, "must contain an upper-case letter")
	}
	if !c.lower {
		violations = append(violations, "must contain a lower-case letter")
	}
	if !c.digit {
		violations = append(violations, "must contain a digit")
	}
	if !c.special {
		violations = append(violations, "must contain a special character")
	}

	if len(violations) > 0 {
		return oops.Code(CodeWeakPassword).
			With("violations", violations).
			Errorf("password does not meet policy: %s", strings.Join(violations, "; "))
	}
	return nil
}

// PasswordStrength buckets a password strength score.
type PasswordStrength int

// Strength levels, weakest first.
const (
	StrengthVeryWeak PasswordStrength = iota
	StrengthWeak
	StrengthMedium
	StrengthStrong
	StrengthVeryStrong
)

func (s PasswordStrength) String() string {
	switch s {
	case StrengthVeryWeak:
		return "very_weak"
	case StrengthWeak:
		return "weak"
	case StrengthMedium:
		return "medium"
	case StrengthStrong:
		return "strong"
	case StrengthVeryStrong:
		return "very_strong"
	default:
		return "unknown"
	}
}

// PasswordScore rates a password from 0 to 100. Length contributes up to 40,
// each character class 10, and distinct characters up to 20.
func PasswordScore(password string) int {
	runes := []rune(password)
	score := min(len(runes)*2, 40)

	c := classify(password)
	for _, has := range []bool{c.upper, c.lower, c.digit, c.special} {
		if has {
			score += 10
		}
	}

	unique := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		unique[r] = struct{}{}
	}
	score += min(len(unique)*2, 20)

	return min(score, 100)
}

// MeasurePasswordStrength returns the score and its bucket.
func MeasurePasswordStrength(password string) (int, PasswordStrength) {
	score := PasswordScore(password)
	switch {
	case score >= 80:
		return score, StrengthVeryStrong
	case score >= 60:
		return score, StrengthStrong
	case score >= 40:
		return score, StrengthMedium
	case score >= 20:
		return score, StrengthWeak
	default:
		return score, StrengthVeryWeak
	}
}

type charClasses struct {
	upper, lower, digit, special bool
}

func classify(s string) charClasses {
	var c charClasses
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.digit = true
		default:
			c.special = true
		}
	}
	return c
}
