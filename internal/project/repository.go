// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package project

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Repository loads and saves project aggregates with their offers and
// images. Save is all-or-nothing and fails with core.ErrConflict when the
// project changed since it was loaded. Deleted projects are not returned.
type Repository interface {
	GetByID(ctx context.Context, id ulid.ULID) (*Project, error)
	Create(ctx context.Context, p *Project) error
	Save(ctx context.Context, p *Project) error
	List(ctx context.Context, filter ListFilter) (Page, error)
}
