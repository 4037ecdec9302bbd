// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package projecttest provides an in-memory project Repository for tests.
package projecttest

import (
	"context"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/internal/project"
)

// MemoryRepository stores project snapshots with the same version check as
// the postgres repository.
type MemoryRepository struct {
	mu        sync.Mutex
	projects  map[ulid.ULID]project.State
	publisher core.Publisher

	// SaveHook, when set, runs before each Save and may return an error to
	// simulate storage failures or lost races.
	SaveHook func(p *project.Project) error
}

// NewMemoryRepository creates an empty repository. publisher may be nil.
func NewMemoryRepository(publisher core.Publisher) *MemoryRepository {
	return &MemoryRepository{
		projects:  make(map[ulid.ULID]project.State),
		publisher: publisher,
	}
}

// GetByID implements project.Repository.
func (r *MemoryRepository) GetByID(_ context.Context, id ulid.ULID) (*project.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.projects[id]
	if !ok || s.DeletedAt != nil {
		return nil, oops.With("project_id", id.String()).Wrap(core.ErrNotFound)
	}
	return project.Restore(s), nil
}

// Create implements project.Repository.
func (r *MemoryRepository) Create(ctx context.Context, p *project.Project) error {
	r.mu.Lock()
	state := p.State()
	state.Version = 1
	r.projects[p.ID()] = state
	r.mu.Unlock()

	p.SetVersion(1)
	r.publish(ctx, p)
	return nil
}

// Save implements project.Repository.
func (r *MemoryRepository) Save(ctx context.Context, p *project.Project) error {
	if r.SaveHook != nil {
		if err := r.SaveHook(p); err != nil {
			return err
		}
	}

	r.mu.Lock()
	stored, ok := r.projects[p.ID()]
	if !ok {
		r.mu.Unlock()
		return oops.With("project_id", p.ID().String()).Wrap(core.ErrNotFound)
	}
	if stored.Version != p.Version() {
		r.mu.Unlock()
		return oops.
			With("project_id", p.ID().String()).
			With("expected_version", p.Version()).
			With("stored_version", stored.Version).
			Wrap(core.ErrConflict)
	}
	state := p.State()
	state.Version = stored.Version + 1
	r.projects[p.ID()] = state
	r.mu.Unlock()

	p.SetVersion(state.Version)
	r.publish(ctx, p)
	return nil
}

// List implements project.Repository.
func (r *MemoryRepository) List(_ context.Context, filter project.ListFilter) (project.Page, error) {
	f, err := filter.Normalize()
	if err != nil {
		return project.Page{}, err
	}

	r.mu.Lock()
	var matched []project.Summary
	for _, s := range r.projects {
		if s.DeletedAt != nil {
			continue
		}
		sum := project.Summarize(project.Restore(s))
		if f.Matches(sum) {
			matched = append(matched, sum)
		}
	}
	r.mu.Unlock()

	slices.SortFunc(matched, f.Compare)
	page := project.Page{Total: len(matched), Page: f.Page, PageSize: f.PageSize}
	start := min(f.Offset(), len(matched))
	end := min(start+f.PageSize, len(matched))
	page.Items = matched[start:end]
	return page, nil
}

// Stored returns the stored snapshot of a project, including deleted ones.
func (r *MemoryRepository) Stored(id ulid.ULID) (project.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.projects[id]
	return s, ok
}

func (r *MemoryRepository) publish(ctx context.Context, p *project.Project) {
	events := p.DrainEvents()
	if r.publisher != nil && len(events) > 0 {
		r.publisher.Dispatch(ctx, events...)
	}
}

var _ project.Repository = (*MemoryRepository)(nil)
