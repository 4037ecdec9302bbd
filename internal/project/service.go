// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package project

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/craftsmenplatform/craftsmen/internal/core"
)

// Actor is the authenticated user issuing a command. Admins pass ownership
// checks.
type Actor struct {
	ID    ulid.ULID
	Admin bool
}

// ServiceConfig wires a Service. Projects is required.
type ServiceConfig struct {
	Projects Repository
	Clock    core.Clock
	Retry    core.RetryPolicy
	Logger   *slog.Logger
}

// Service runs project commands as load, mutate, save cycles.
type Service struct {
	projects Repository
	clock    core.Clock
	retry    core.RetryPolicy
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService creates a Service, applying defaults for optional fields.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Projects == nil {
		return nil, oops.Code("PROJECT_INVALID_CONFIG").Errorf("projects repository is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock{}
	}
	if cfg.Retry == (core.RetryPolicy{}) {
		cfg.Retry = core.DefaultRetryPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		projects: cfg.Projects,
		clock:    cfg.Clock,
		retry:    cfg.Retry,
		logger:   cfg.Logger.With("component", "project"),
		tracer:   otel.Tracer("github.com/craftsmenplatform/craftsmen/internal/project"),
	}, nil
}

// Create posts a new draft project owned by the actor.
func (s *Service) Create(ctx context.Context, actor Actor, d Details) (*Project, error) {
	ctx, span := s.tracer.Start(ctx, "project.Create")
	defer span.End()

	p, err := New(NewParams{CustomerID: actor.ID, Details: d}, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, oops.Code("PROJECT_CREATE_FAILED").
			With("operation", "create project").
			With("project_id", p.ID().String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "project created", "project_id", p.ID().String(), "customer_id", actor.ID.String())
	return p, nil
}

// Get loads a project.
func (s *Service) Get(ctx context.Context, id ulid.ULID) (*Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, oops.Code(CodeNotFound).With("project_id", id.String()).Wrap(err)
	}
	if err != nil {
		return nil, oops.Code("PROJECT_GET_FAILED").
			With("operation", "get project").
			With("project_id", id.String()).
			Wrap(err)
	}
	return p, nil
}

// List returns one page of projects matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (Page, error) {
	ctx, span := s.tracer.Start(ctx, "project.List")
	defer span.End()

	f, err := filter.Normalize()
	if err != nil {
		return Page{}, err
	}
	page, err := s.projects.List(ctx, f)
	if err != nil {
		return Page{}, oops.Code("PROJECT_LIST_FAILED").With("operation", "list projects").Wrap(err)
	}
	return page, nil
}

// Update edits a draft project. Owner only.
func (s *Service) Update(ctx context.Context, actor Actor, id ulid.ULID, d Details) (*Project, error) {
	return s.ownerMutate(ctx, "project.Update", actor, id, func(p *Project, now time.Time) error {
		return p.Update(d, now)
	})
}

// Publish opens a draft for offers. Owner only.
func (s *Service) Publish(ctx context.Context, actor Actor, id ulid.ULID) (*Project, error) {
	return s.ownerMutate(ctx, "project.Publish", actor, id, func(p *Project, now time.Time) error {
		return p.Publish(now)
	})
}

// SubmitOffer records the actor's bid on a published project.
func (s *Service) SubmitOffer(ctx context.Context, actor Actor, projectID ulid.ULID, params OfferParams) (Offer, error) {
	params.CraftsmanID = actor.ID
	var offer Offer
	_, err := s.mutate(ctx, "project.SubmitOffer", projectID, func(p *Project, now time.Time) error {
		var err error
		offer, err = p.AddOffer(params, now)
		return err
	})
	if err != nil {
		return Offer{}, err
	}
	s.logger.InfoContext(ctx, "offer submitted",
		"project_id", projectID.String(),
		"offer_id", offer.ID().String(),
		"craftsman_id", actor.ID.String())
	return offer, nil
}

// AcceptOffer accepts one offer and rejects all other pending offers.
// Owner only.
func (s *Service) AcceptOffer(ctx context.Context, actor Actor, projectID, offerID ulid.ULID) (*Project, error) {
	p, err := s.ownerMutate(ctx, "project.AcceptOffer", actor, projectID, func(p *Project, now time.Time) error {
		return p.AcceptOffer(offerID, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "offer accepted", "project_id", projectID.String(), "offer_id", offerID.String())
	return p, nil
}

// RejectOffer declines one pending offer. Owner only.
func (s *Service) RejectOffer(ctx context.Context, actor Actor, projectID, offerID ulid.ULID, reason string) (*Project, error) {
	return s.ownerMutate(ctx, "project.RejectOffer", actor, projectID, func(p *Project, now time.Time) error {
		return p.RejectOffer(offerID, reason, now)
	})
}

// WithdrawOffer withdraws the actor's own pending offer.
func (s *Service) WithdrawOffer(ctx context.Context, actor Actor, projectID, offerID ulid.ULID) (*Project, error) {
	return s.mutate(ctx, "project.WithdrawOffer", projectID, func(p *Project, now time.Time) error {
		return p.WithdrawOffer(offerID, actor.ID, now)
	})
}

// Complete marks an in-progress project as done. Owner only.
func (s *Service) Complete(ctx context.Context, actor Actor, id ulid.ULID) (*Project, error) {
	return s.ownerMutate(ctx, "project.Complete", actor, id, func(p *Project, now time.Time) error {
		return p.Complete(now)
	})
}

// Cancel cancels a project. Owner only.
func (s *Service) Cancel(ctx context.Context, actor Actor, id ulid.ULID, reason string) (*Project, error) {
	return s.ownerMutate(ctx, "project.Cancel", actor, id, func(p *Project, now time.Time) error {
		return p.Cancel(reason, now)
	})
}

// AddImage attaches an image. Owner only.
func (s *Service) AddImage(ctx context.Context, actor Actor, id ulid.ULID, url string) (Image, error) {
	var img Image
	_, err := s.ownerMutate(ctx, "project.AddImage", actor, id, func(p *Project, now time.Time) error {
		var err error
		img, err = p.AddImage(url, now)
		return err
	})
	return img, err
}

// RemoveImage detaches an image. Owner only.
func (s *Service) RemoveImage(ctx context.Context, actor Actor, id, imageID ulid.ULID) (*Project, error) {
	return s.ownerMutate(ctx, "project.RemoveImage", actor, id, func(p *Project, now time.Time) error {
		return p.RemoveImage(imageID, now)
	})
}

// Delete soft-deletes a draft or cancelled project. Owner only.
func (s *Service) Delete(ctx context.Context, actor Actor, id ulid.ULID) error {
	_, err := s.ownerMutate(ctx, "project.Delete", actor, id, func(p *Project, now time.Time) error {
		return p.MarkDeleted(actor.ID.String(), now)
	})
	return err
}

func (s *Service) ownerMutate(ctx context.Context, op string, actor Actor, id ulid.ULID, fn func(*Project, time.Time) error) (*Project, error) {
	return s.mutate(ctx, op, id, func(p *Project, now time.Time) error {
		if !actor.Admin && !p.IsOwnedBy(actor.ID) {
			return oops.Code(CodeForbidden).
				With("project_id", id.String()).
				With("actor_id", actor.ID.String()).
				Errorf("only the project owner can do this")
		}
		return fn(p, now)
	})
}

// mutate re-runs load, fn, save while the save hits a version conflict.
func (s *Service) mutate(ctx context.Context, op string, id ulid.ULID, fn func(*Project, time.Time) error) (*Project, error) {
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("project.id", id.String()))

	var out *Project
	err := core.RetryOnConflict(ctx, s.retry, func(ctx context.Context) error {
		p, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(p, s.clock.Now()); err != nil {
			return err
		}
		if err := s.projects.Save(ctx, p); err != nil {
			if errors.Is(err, core.ErrConflict) {
				return oops.Code(CodeConcurrentModification).
					With("project_id", id.String()).
					Wrap(err)
			}
			return oops.Code("PROJECT_SAVE_FAILED").
				With("operation", "save project").
				With("project_id", id.String()).
				Wrap(err)
		}
		out = p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}
