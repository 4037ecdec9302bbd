// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package core

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID generates a new ULID stamped with the current wall clock.
func NewULID() ulid.ULID {
	return NewULIDAt(time.Now())
}

// NewULIDAt generates a ULID whose timestamp component is t. Aggregates use
// the injected clock so that ids sort in the same order as their creation
// times, even under a manual clock in tests.
func NewULIDAt(t time.Time) ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy)
}

// ParseULID parses a ULID string.
func ParseULID(s string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_ID").With("id", s).Wrap(err)
	}
	return id, nil
}

// IsZeroID reports whether id is the zero ULID.
func IsZeroID(id ulid.ULID) bool {
	return id.Compare(ulid.ULID{}) == 0
}
