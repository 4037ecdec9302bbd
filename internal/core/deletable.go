// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package core

import "time"

// Deletable is implemented by aggregates that are soft-deleted rather than
// removed. Repositories exclude deleted rows unless asked otherwise.
type Deletable interface {
	IsDeleted() bool
	DeletedAt() *time.Time
	DeletedBy() string
}
