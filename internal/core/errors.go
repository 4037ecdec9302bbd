// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package core

import "errors"

// ErrNotFound is returned when a requested aggregate does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an aggregate was saved from a stale version.
// The caller should reload and retry, or surface a conflict.
var ErrConflict = errors.New("concurrent modification")
