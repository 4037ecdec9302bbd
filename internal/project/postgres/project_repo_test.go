// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/internal/money"
	"github.com/craftsmenplatform/craftsmen/internal/project"
	"github.com/craftsmenplatform/craftsmen/pkg/errutil"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var projectCols = []string{
	"id", "customer_id", "title", "description",
	"budget_min", "budget_max", "budget_currency", "preferred_start", "deadline",
	"status", "published_at", "completed_at", "cancelled_at", "cancellation_reason", "accepted_offer_id",
	"deleted_at", "deleted_by", "created_at", "updated_at", "version",
}

var offerCols = []string{
	"id", "project_id", "craftsman_id", "price_amount", "price_currency", "description",
	"estimated_duration_days", "timeline_start", "timeline_end", "status",
	"accepted_at", "rejected_at", "withdrawn_at", "rejection_reason", "created_at", "updated_at",
}

func ptr[T any](v T) *T { return &v }

// anyArgs matches n statement arguments without checking their values.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

const (
	projectArgs = 19
	updateArgs  = 18
	offerArgs   = 16
)

type collector struct{ events []core.Event }

func (c *collector) Dispatch(_ context.Context, events ...core.Event) {
	c.events = append(c.events, events...)
}

func newPublished(t *testing.T) *project.Project {
	t.Helper()
	lo, hi := money.MustNew(decimal.NewFromInt(100), "CZK"), money.MustNew(decimal.NewFromInt(500), "CZK")
	b, err := project.NewBudget(&lo, &hi)
	require.NoError(t, err)
	p, err := project.New(project.NewParams{
		CustomerID: core.NewULID(),
		Details:    project.Details{Title: "Deck", Description: "Build a deck", Budget: b},
	}, testNow)
	require.NoError(t, err)
	require.NoError(t, p.Publish(testNow))
	return p
}

func TestProjectRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	id, customer := core.NewULID(), core.NewULID()
	offerID, craftsman := core.NewULID(), core.NewULID()
	imageID := core.NewULID()
	nilTime := (*time.Time)(nil)

	t.Run("loads project with children", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM projects WHERE id = \$1 AND deleted_at IS NULL`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(projectCols).AddRow(
				id.String(), customer.String(), "Deck", "Build a deck",
				ptr("100.00"), ptr("500.00"), ptr("CZK"), nilTime, nilTime,
				"in_progress", &testNow, nilTime, nilTime, "", ptr(offerID.String()),
				nilTime, "", testNow, testNow, 4,
			))
		mock.ExpectQuery(`FROM offers WHERE project_id = \$1 ORDER BY created_at, id`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(offerCols).AddRow(
				offerID.String(), id.String(), craftsman.String(), "250.50", "CZK", "Oak boards",
				ptr(5), &testNow, ptr(testNow.Add(120*time.Hour)), "accepted",
				&testNow, nilTime, nilTime, "", testNow, testNow,
			))
		mock.ExpectQuery(`FROM project_images WHERE project_id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "url", "created_at"}).
				AddRow(imageID.String(), "https://example.com/deck.jpg", testNow))

		p, err := NewProjectRepository(mock, nil).GetByID(ctx, id)
		require.NoError(t, err)

		assert.Equal(t, project.StatusInProgress, p.Status())
		assert.Equal(t, 4, p.Version())
		lo, ok := p.Budget().Min()
		require.True(t, ok)
		assert.Equal(t, "100.00 CZK", lo.String())

		accepted, ok := p.AcceptedOfferID()
		require.True(t, ok)
		assert.Equal(t, offerID, accepted)

		o, ok := p.Offer(offerID)
		require.True(t, ok)
		assert.Equal(t, "250.50 CZK", o.Price().String())
		assert.Equal(t, 5, o.EstimatedDurationDays())
		tl, ok := o.Timeline()
		require.True(t, ok)
		assert.Equal(t, testNow.Add(120*time.Hour), tl.End)

		require.Len(t, p.Images(), 1)
		assert.Equal(t, imageID, p.Images()[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM projects WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(projectCols))

		_, err = NewProjectRepository(mock, nil).GetByID(ctx, id)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.Equal(t, "", errutil.Code(err))
	})

	t.Run("query failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM projects WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnError(errors.New("timeout"))

		_, err = NewProjectRepository(mock, nil).GetByID(ctx, id)
		errutil.AssertErrorCode(t, err, "PROJECT_GET_FAILED")
	})
}

func TestProjectRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := newPublished(t)
	_, err = p.AddOffer(project.OfferParams{
		CraftsmanID: core.NewULID(),
		Price:       money.MustNew(decimal.NewFromInt(300), "CZK"),
	}, testNow)
	require.NoError(t, err)
	_, err = p.AddImage("https://example.com/a.png", testNow)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT INTO projects \(.*\)\s+VALUES`).
		WithArgs(anyArgs(projectArgs)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`(?s)INSERT INTO offers .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(anyArgs(offerArgs)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM project_images`).
		WithArgs(p.ID().String(), []string{p.Images()[0].ID.String()}).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO project_images`).
		WithArgs(p.Images()[0].ID.String(), p.ID().String(), "https://example.com/a.png", testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	events := &collector{}
	require.NoError(t, NewProjectRepository(mock, events).Create(context.Background(), p))
	assert.Equal(t, 1, p.Version())
	assert.Len(t, events.events, 2)
	assert.Empty(t, p.PendingEvents())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("stale version", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		p := newPublished(t)
		p.SetVersion(3)

		mock.ExpectBegin()
		mock.ExpectExec(`(?s)UPDATE projects SET.*WHERE id = \$1 AND version = \$2`).
			WithArgs(anyArgs(updateArgs)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		events := &collector{}
		err = NewProjectRepository(mock, events).Save(ctx, p)
		assert.ErrorIs(t, err, core.ErrConflict)
		assert.Equal(t, 3, p.Version())
		assert.Empty(t, events.events)
		assert.NotEmpty(t, p.PendingEvents())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second accepted offer hits unique index", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		p := newPublished(t)
		o, err := p.AddOffer(project.OfferParams{
			CraftsmanID: core.NewULID(),
			Price:       money.MustNew(decimal.NewFromInt(300), "CZK"),
		}, testNow)
		require.NoError(t, err)
		require.NoError(t, p.AcceptOffer(o.ID(), testNow))
		p.SetVersion(1)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE projects SET`).
			WithArgs(anyArgs(updateArgs)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO offers`).
			WithArgs(anyArgs(offerArgs)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: acceptedConstraint})
		mock.ExpectRollback()

		err = NewProjectRepository(mock, nil).Save(ctx, p)
		assert.ErrorIs(t, err, core.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success bumps version and publishes", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		p := newPublished(t)
		p.SetVersion(2)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE projects SET`).
			WithArgs(p.ID().String(), 2,
				"Deck", "Build a deck", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), "published", pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), "", pgxmock.AnyArg(), pgxmock.AnyArg(), "", testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`DELETE FROM project_images WHERE project_id = \$1 AND NOT \(id = ANY\(\$2\)\)`).
			WithArgs(p.ID().String(), []string{}).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectCommit()

		events := &collector{}
		require.NoError(t, NewProjectRepository(mock, events).Save(ctx, p))
		assert.Equal(t, 3, p.Version())
		require.Len(t, events.events, 1)
		assert.Equal(t, core.EventProjectPublished, events.events[0].Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProjectRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	customer := core.NewULID()
	status := project.StatusPublished
	minBudget := decimal.NewFromInt(1000)
	id := core.NewULID()

	mock.ExpectQuery(`SELECT count\(\*\) FROM projects p WHERE p.deleted_at IS NULL AND p.status = \$1 AND p.customer_id = \$2 AND p.budget_max >= \$3`).
		WithArgs("published", customer.String(), minBudget).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(`ORDER BY p.title DESC, p.id DESC\s+LIMIT \$4 OFFSET \$5`).
		WithArgs("published", customer.String(), minBudget, 10, 20).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "customer_id", "title", "status", "budget_min", "budget_max", "budget_currency",
			"preferred_start", "deadline", "published_at", "created_at", "offer_count",
		}).AddRow(
			id.String(), customer.String(), "Deck", "published", (*string)(nil), ptr("5000"), ptr("CZK"),
			(*time.Time)(nil), (*time.Time)(nil), &testNow, testNow, 3,
		))

	page, err := NewProjectRepository(mock, nil).List(context.Background(), project.ListFilter{
		Status:     &status,
		CustomerID: &customer,
		MinBudget:  &minBudget,
		OrderBy:    project.OrderTitle,
		Descending: true,
		Page:       3,
		PageSize:   10,
	})
	require.NoError(t, err)

	assert.Equal(t, 21, page.Total)
	assert.Equal(t, 3, page.TotalPages())
	require.Len(t, page.Items, 1)
	assert.Equal(t, id, page.Items[0].ID)
	assert.Equal(t, 3, page.Items[0].OfferCount)
	hi, ok := page.Items[0].Budget.Max()
	require.True(t, ok)
	assert.Equal(t, "5000.00 CZK", hi.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_ListRejectsInvalidFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewProjectRepository(mock, nil).List(context.Background(), project.ListFilter{PageSize: -1})
	errutil.AssertErrorCode(t, err, project.CodeInvalidFilter)
}

func TestOrderClause(t *testing.T) {
	tests := []struct {
		f    project.ListFilter
		want string
	}{
		{project.ListFilter{OrderBy: project.OrderCreatedAt, Descending: true}, "p.created_at DESC, p.id DESC"},
		{project.ListFilter{OrderBy: project.OrderBudgetMin}, "COALESCE(p.budget_min, 0) ASC, p.id ASC"},
		{project.ListFilter{OrderBy: project.OrderStatus}, "p.status ASC, p.id ASC"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, orderClause(tt.f))
	}
}
