// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package project

import (
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxImages bounds the number of images attached to one project.
const MaxImages = 20

// MaxImageURLLength bounds an image URL.
const MaxImageURLLength = 2048

// Image is a picture attached to a project.
type Image struct {
	ID        ulid.ULID
	URL       string
	CreatedAt time.Time
}

// ValidateImageURL checks that raw is an absolute http or https URL.
func ValidateImageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > MaxImageURLLength {
		return "", oops.Code(CodeInvalidImage).
			With("max", MaxImageURLLength).
			Errorf("image url must be 1 to %d characters", MaxImageURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", oops.Code(CodeInvalidImage).With("url", raw).Wrap(err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", oops.Code(CodeInvalidImage).
			With("url", raw).
			Errorf("image url must be an absolute http or https url")
	}
	return u.String(), nil
}
