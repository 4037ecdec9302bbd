// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package auth

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Profile error codes.
const (
	CodeInvalidName      = "AUTH_INVALID_NAME"
	CodeInvalidPhone     = "AUTH_INVALID_PHONE"
	CodeInvalidAddress   = "AUTH_INVALID_ADDRESS"
	CodeInvalidAvatarURL = "AUTH_INVALID_AVATAR_URL"
)

// MaxAvatarURLLength bounds stored avatar URLs.
const MaxAvatarURLLength = 2048

// E.164: optional plus, no leading zero, at most 15 digits.
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// PhoneNumber is a phone number in international format with separators
// removed. The zero value means no number.
type PhoneNumber string

// ParsePhoneNumber strips spaces, dashes and parentheses and checks the
// remaining digits against E.164.
func ParsePhoneNumber(s string) (PhoneNumber, error) {
	cleaned := phoneSeparators.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return "", oops.Code(CodeInvalidPhone).Errorf("phone number cannot be empty")
	}
	if !phonePattern.MatchString(cleaned) {
		return "", oops.Code(CodeInvalidPhone).
			With("phone", s).
			Errorf("invalid phone number format, use international format such as +420123456789")
	}
	return PhoneNumber(cleaned), nil
}

func (p PhoneNumber) String() string { return string(p) }

// Address is a postal address. State is optional.
type Address struct {
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// NewAddress trims every part and requires all but State.
func NewAddress(street, city, zipCode, country, state string) (Address, error) {
	a := Address{
		Street:  strings.TrimSpace(street),
		City:    strings.TrimSpace(city),
		State:   strings.TrimSpace(state),
		ZipCode: strings.TrimSpace(zipCode),
		Country: strings.TrimSpace(country),
	}
	for _, part := range []struct{ name, value string }{
		{"street", a.Street},
		{"city", a.City},
		{"zip_code", a.ZipCode},
		{"country", a.Country},
	} {
		if part.value == "" {
			return Address{}, oops.Code(CodeInvalidAddress).
				With("field", part.name).
				Errorf("%s cannot be empty", part.name)
		}
	}
	return a, nil
}

// IsZero reports whether no address is set.
func (a Address) IsZero() bool { return a == Address{} }

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	parts := []string{a.Street, a.City}
	if a.State != "" {
		parts = append(parts, a.State)
	}
	return strings.Join(append(parts, a.ZipCode, a.Country), ", ")
}

// ProfileUpdate lists the profile fields to change. Nil fields are left as
// they are.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *Address
	AvatarURL *string
}

// validateName trims a first or last name and checks its length.
func validateName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", oops.Code(CodeInvalidName).
			With("field", field).
			Errorf("%s cannot be empty", field)
	}
	if len(name) > MaxNameLength {
		return "", oops.Code(CodeInvalidName).
			With("field", field).
			With("max", MaxNameLength).
			Errorf("%s must be at most %d characters", field, MaxNameLength)
	}
	return name, nil
}

func validateAvatarURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > MaxAvatarURLLength {
		return "", oops.Code(CodeInvalidAvatarURL).
			With("max", MaxAvatarURLLength).
			Errorf("avatar url is too long")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", oops.Code(CodeInvalidAvatarURL).
			With("avatar_url", raw).
			Errorf("avatar url must be an absolute http(s) URL")
	}
	return raw, nil
}

// UpdateProfile applies the non-nil fields of u. Every field is validated
// before any is written, so a rejected update leaves the account unchanged.
func (a *Account) UpdateProfile(u ProfileUpdate, now time.Time) error {
	if !a.IsActive() {
		return errAccountDeactivated()
	}

	first, last := a.firstName, a.lastName
	phone, address, avatar := a.phone, a.address, a.avatarURL
	var err error
	if u.FirstName != nil {
		if first, err = validateName("first_name", *u.FirstName); err != nil {
			return err
		}
	}
	if u.LastName != nil {
		if last, err = validateName("last_name", *u.LastName); err != nil {
			return err
		}
	}
	if u.Phone != nil {
		if phone, err = ParsePhoneNumber(*u.Phone); err != nil {
			return err
		}
	}
	if u.Address != nil {
		addr, err := NewAddress(u.Address.Street, u.Address.City, u.Address.ZipCode, u.Address.Country, u.Address.State)
		if err != nil {
			return err
		}
		address = addr
	}
	if u.AvatarURL != nil {
		if avatar, err = validateAvatarURL(*u.AvatarURL); err != nil {
			return err
		}
	}

	a.firstName, a.lastName = first, last
	a.phone, a.address, a.avatarURL = phone, address, avatar
	a.touch(now)
	return nil
}

// ChangeRole moves the account to another role. Changing to the current role
// is a no-op. Existing sessions are ended so the next access token carries
// the new role.
func (a *Account) ChangeRole(role Role, now time.Time) (bool, error) {
	switch role {
	case RoleCustomer, RoleCraftsman, RoleAdmin:
	default:
		return false, oops.Code(CodeInvalidRole).With("role", string(role)).Errorf("invalid role")
	}
	if a.role == role {
		return false, nil
	}
	a.role = role
	a.revokeAllQuietly(SystemActor, ReasonRoleChanged, now)
	a.touch(now)
	return true, nil
}
