// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package postgres persists project aggregates in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/shopspring/decimal"

	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/internal/project"
	"github.com/craftsmenplatform/craftsmen/internal/store"
)

const acceptedConstraint = "offers_one_accepted_per_project"

const projectColumns = `id, customer_id, title, description,
	budget_min::text, budget_max::text, budget_currency, preferred_start, deadline,
	status, published_at, completed_at, cancelled_at, cancellation_reason, accepted_offer_id,
	deleted_at, deleted_by, created_at, updated_at, version`

const projectInsertColumns = `id, customer_id, title, description,
	budget_min, budget_max, budget_currency, preferred_start, deadline,
	status, published_at, completed_at, cancelled_at, cancellation_reason, accepted_offer_id,
	deleted_at, deleted_by, created_at, updated_at, version`

// Numeric columns are read as text so amounts keep their exact scale.
const offerColumns = `id, project_id, craftsman_id, price_amount::text, price_currency, description,
	estimated_duration_days, timeline_start, timeline_end, status,
	accepted_at, rejected_at, withdrawn_at, rejection_reason, created_at, updated_at`

const offerInsertColumns = `id, project_id, craftsman_id, price_amount, price_currency, description,
	estimated_duration_days, timeline_start, timeline_end, status,
	accepted_at, rejected_at, withdrawn_at, rejection_reason, created_at, updated_at`

// ProjectRepository implements project.Repository using PostgreSQL. A
// project, its offers and images are written in one transaction; buffered
// events are dispatched after commit.
type ProjectRepository struct {
	db        store.DB
	publisher core.Publisher
	scope     store.Scope
}

// NewProjectRepository creates a new ProjectRepository. publisher may be nil.
func NewProjectRepository(db store.DB, publisher core.Publisher) *ProjectRepository {
	return &ProjectRepository{db: db, publisher: publisher, scope: store.Live}
}

// GetByID loads a project with its offers and images.
func (r *ProjectRepository) GetByID(ctx context.Context, id ulid.ULID) (*project.Project, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1 AND `+r.scope.Predicate(""),
		id.String())
	state, err := scanProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("project_id", id.String()).Wrap(core.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PROJECT_GET_FAILED").
			With("operation", "get project").
			With("project_id", id.String()).
			Wrap(err)
	}

	if state.Offers, err = r.loadOffers(ctx, id); err != nil {
		return nil, err
	}
	if state.Images, err = r.loadImages(ctx, id); err != nil {
		return nil, err
	}
	return project.Restore(state), nil
}

func (r *ProjectRepository) loadOffers(ctx context.Context, projectID ulid.ULID) ([]project.OfferState, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE project_id = $1 ORDER BY created_at, id`,
		projectID.String())
	if err != nil {
		return nil, oops.Code("PROJECT_GET_FAILED").
			With("operation", "query offers").
			With("project_id", projectID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var offers []project.OfferState
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PROJECT_GET_FAILED").With("operation", "iterate offers").Wrap(err)
	}
	return offers, nil
}

func (r *ProjectRepository) loadImages(ctx context.Context, projectID ulid.ULID) ([]project.Image, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, url, created_at FROM project_images WHERE project_id = $1 ORDER BY created_at, id`,
		projectID.String())
	if err != nil {
		return nil, oops.Code("PROJECT_GET_FAILED").
			With("operation", "query images").
			With("project_id", projectID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var images []project.Image
	for rows.Next() {
		var (
			img   project.Image
			idStr string
		)
		if err := rows.Scan(&idStr, &img.URL, &img.CreatedAt); err != nil {
			return nil, oops.Code("PROJECT_IMAGE_SCAN_FAILED").Wrap(err)
		}
		if img.ID, err = ulid.Parse(idStr); err != nil {
			return nil, oops.Code("PROJECT_IMAGE_SCAN_FAILED").With("id", idStr).Wrap(err)
		}
		img.CreatedAt = img.CreatedAt.UTC()
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PROJECT_GET_FAILED").With("operation", "iterate images").Wrap(err)
	}
	return images, nil
}

// Create stores a new project at version 1.
func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	s := p.State()
	lo, hi, cur := budgetColumns(s.Budget)
	err := store.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO projects (`+projectInsertColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1)`,
			s.ID.String(), s.CustomerID.String(), s.Title, s.Description,
			lo, hi, cur, s.Schedule.PreferredStart(), s.Schedule.Deadline(),
			string(s.Status), s.PublishedAt, s.CompletedAt, s.CancelledAt, s.CancellationReason, idOrNil(s.AcceptedOfferID),
			s.DeletedAt, s.DeletedBy, s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return oops.Code("PROJECT_CREATE_FAILED").
				With("operation", "insert project").
				With("project_id", s.ID.String()).
				Wrap(err)
		}
		return writeChildren(ctx, tx, s)
	})
	if err != nil {
		return err
	}

	p.SetVersion(1)
	r.publish(ctx, p)
	return nil
}

// Save writes the project if it is still at the version it was loaded at.
func (r *ProjectRepository) Save(ctx context.Context, p *project.Project) error {
	s := p.State()
	lo, hi, cur := budgetColumns(s.Budget)
	err := store.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE projects SET
				title = $3,
				description = $4,
				budget_min = $5,
				budget_max = $6,
				budget_currency = $7,
				preferred_start = $8,
				deadline = $9,
				status = $10,
				published_at = $11,
				completed_at = $12,
				cancelled_at = $13,
				cancellation_reason = $14,
				accepted_offer_id = $15,
				deleted_at = $16,
				deleted_by = $17,
				updated_at = $18,
				version = version + 1
			WHERE id = $1 AND version = $2`,
			s.ID.String(), s.Version,
			s.Title, s.Description, lo, hi, cur, s.Schedule.PreferredStart(), s.Schedule.Deadline(),
			string(s.Status), s.PublishedAt, s.CompletedAt, s.CancelledAt, s.CancellationReason,
			idOrNil(s.AcceptedOfferID), s.DeletedAt, s.DeletedBy, s.UpdatedAt,
		)
		if err != nil {
			return oops.Code("PROJECT_SAVE_FAILED").
				With("operation", "update project").
				With("project_id", s.ID.String()).
				Wrap(err)
		}
		if result.RowsAffected() == 0 {
			return oops.
				With("project_id", s.ID.String()).
				With("version", s.Version).
				Wrap(core.ErrConflict)
		}
		return writeChildren(ctx, tx, s)
	})
	if err != nil {
		return err
	}

	p.SetVersion(s.Version + 1)
	r.publish(ctx, p)
	return nil
}

// writeChildren upserts offers and synchronizes images. Offers are never
// removed; images missing from the aggregate are deleted.
func writeChildren(ctx context.Context, tx pgx.Tx, s project.State) error {
	for _, o := range s.Offers {
		var duration *int
		if o.EstimatedDurationDays > 0 {
			d := o.EstimatedDurationDays
			duration = &d
		}
		var start, end *time.Time
		if o.Timeline != nil {
			start, end = &o.Timeline.Start, &o.Timeline.End
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO offers (`+offerInsertColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			 ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				accepted_at = EXCLUDED.accepted_at,
				rejected_at = EXCLUDED.rejected_at,
				withdrawn_at = EXCLUDED.withdrawn_at,
				rejection_reason = EXCLUDED.rejection_reason,
				updated_at = EXCLUDED.updated_at`,
			o.ID.String(), o.ProjectID.String(), o.CraftsmanID.String(),
			o.Price.Amount(), o.Price.Currency(), o.Description,
			duration, start, end, string(o.Status),
			o.AcceptedAt, o.RejectedAt, o.WithdrawnAt, o.RejectionReason, o.CreatedAt, o.UpdatedAt,
		)
		if store.IsUniqueViolation(err, acceptedConstraint) {
			return oops.With("project_id", s.ID.String()).Wrap(core.ErrConflict)
		}
		if err != nil {
			return oops.Code("OFFER_SAVE_FAILED").
				With("operation", "upsert offer").
				With("offer_id", o.ID.String()).
				Wrap(err)
		}
	}

	keep := make([]string, 0, len(s.Images))
	for _, img := range s.Images {
		keep = append(keep, img.ID.String())
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM project_images WHERE project_id = $1 AND NOT (id = ANY($2))`,
		s.ID.String(), keep,
	); err != nil {
		return oops.Code("PROJECT_IMAGE_SAVE_FAILED").With("operation", "delete images").Wrap(err)
	}
	for _, img := range s.Images {
		if _, err := tx.Exec(ctx,
			`INSERT INTO project_images (id, project_id, url, created_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO NOTHING`,
			img.ID.String(), s.ID.String(), img.URL, img.CreatedAt,
		); err != nil {
			return oops.Code("PROJECT_IMAGE_SAVE_FAILED").
				With("operation", "insert image").
				With("image_id", img.ID.String()).
				Wrap(err)
		}
	}
	return nil
}

// List returns one page of live projects matching filter.
func (r *ProjectRepository) List(ctx context.Context, filter project.ListFilter) (project.Page, error) {
	f, err := filter.Normalize()
	if err != nil {
		return project.Page{}, err
	}
	where, args := listWhere(f, r.scope)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM projects p WHERE `+where, args...).Scan(&total); err != nil {
		return project.Page{}, oops.Code("PROJECT_LIST_FAILED").With("operation", "count projects").Wrap(err)
	}

	query := fmt.Sprintf(`SELECT p.id, p.customer_id, p.title, p.status,
			p.budget_min::text, p.budget_max::text, p.budget_currency, p.preferred_start, p.deadline,
			p.published_at, p.created_at,
			(SELECT count(*) FROM offers o WHERE o.project_id = p.id) AS offer_count
		FROM projects p
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`, where, orderClause(f), len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, f.PageSize, f.Offset())...)
	if err != nil {
		return project.Page{}, oops.Code("PROJECT_LIST_FAILED").With("operation", "list projects").Wrap(err)
	}
	defer rows.Close()

	page := project.Page{Total: total, Page: f.Page, PageSize: f.PageSize}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return project.Page{}, err
		}
		page.Items = append(page.Items, sum)
	}
	if err := rows.Err(); err != nil {
		return project.Page{}, oops.Code("PROJECT_LIST_FAILED").With("operation", "iterate projects").Wrap(err)
	}
	return page, nil
}

func listWhere(f project.ListFilter, scope store.Scope) (string, []any) {
	conds := []string{scope.Predicate("p")}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != nil {
		add("p.status = $%d", string(*f.Status))
	}
	if f.CustomerID != nil {
		add("p.customer_id = $%d", f.CustomerID.String())
	}
	if f.MinBudget != nil {
		add("p.budget_max >= $%d", *f.MinBudget)
	}
	if f.MaxBudget != nil {
		add("p.budget_min <= $%d", *f.MaxBudget)
	}
	if f.CreatedAfter != nil {
		add("p.created_at >= $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		add("p.created_at <= $%d", *f.CreatedBefore)
	}
	return strings.Join(conds, " AND "), args
}

func orderClause(f project.ListFilter) string {
	col := "p.created_at"
	switch f.OrderBy {
	case project.OrderTitle:
		col = "p.title"
	case project.OrderBudgetMin:
		col = "COALESCE(p.budget_min, 0)"
	case project.OrderBudgetMax:
		col = "COALESCE(p.budget_max, 0)"
	case project.OrderStatus:
		col = "p.status"
	}
	dir := "ASC"
	if f.Descending {
		dir = "DESC"
	}
	return col + " " + dir + ", p.id " + dir
}

func (r *ProjectRepository) publish(ctx context.Context, p *project.Project) {
	events := p.DrainEvents()
	if r.publisher != nil && len(events) > 0 {
		r.publisher.Dispatch(ctx, events...)
	}
}

func budgetColumns(b project.Budget) (lo, hi decimal.NullDecimal, currency *string) {
	if m, ok := b.Min(); ok {
		lo = decimal.NewNullDecimal(m.Amount())
	}
	if m, ok := b.Max(); ok {
		hi = decimal.NewNullDecimal(m.Amount())
	}
	if c := b.Currency(); c != "" {
		currency = &c
	}
	return lo, hi, currency
}

func idOrNil(id *ulid.ULID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

var _ project.Repository = (*ProjectRepository)(nil)
