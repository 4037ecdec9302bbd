// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package postgres

import (
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/money"
	"github.com/craftsmenplatform/craftsmen/internal/project"
)

// scanProject scans a projects row without children. Callers handle
// pgx.ErrNoRows.
func scanProject(row pgx.Row) (project.State, error) {
	var (
		s                     project.State
		idStr, customerStr    string
		status                string
		budgetMin, budgetMax  *string
		currency, acceptedStr *string
		start, deadline       *time.Time
	)
	err := row.Scan(
		&idStr, &customerStr, &s.Title, &s.Description,
		&budgetMin, &budgetMax, &currency, &start, &deadline,
		&status, &s.PublishedAt, &s.CompletedAt, &s.CancelledAt, &s.CancellationReason, &acceptedStr,
		&s.DeletedAt, &s.DeletedBy, &s.CreatedAt, &s.UpdatedAt, &s.Version,
	)
	if err != nil {
		return s, err //nolint:wrapcheck // callers wrap with lookup context
	}

	if s.ID, err = parseID("id", idStr); err != nil {
		return s, err
	}
	if s.CustomerID, err = parseID("customer_id", customerStr); err != nil {
		return s, err
	}
	if acceptedStr != nil {
		id, err := parseID("accepted_offer_id", *acceptedStr)
		if err != nil {
			return s, err
		}
		s.AcceptedOfferID = &id
	}
	s.Status = project.Status(status)
	if s.Budget, err = restoreBudget(budgetMin, budgetMax, currency); err != nil {
		return s, err
	}
	if s.Schedule, err = project.NewSchedule(utc(start), utc(deadline)); err != nil {
		return s, err
	}
	s.PublishedAt = utc(s.PublishedAt)
	s.CompletedAt = utc(s.CompletedAt)
	s.CancelledAt = utc(s.CancelledAt)
	s.DeletedAt = utc(s.DeletedAt)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func scanOffer(row pgx.Row) (project.OfferState, error) {
	var (
		o                               project.OfferState
		idStr, projectStr, craftsmanStr string
		amount, currency, status        string
		duration                        *int
		start, end                      *time.Time
	)
	err := row.Scan(
		&idStr, &projectStr, &craftsmanStr, &amount, &currency, &o.Description,
		&duration, &start, &end, &status,
		&o.AcceptedAt, &o.RejectedAt, &o.WithdrawnAt, &o.RejectionReason, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, oops.Code("OFFER_SCAN_FAILED").Wrap(err)
	}
	if o.ID, err = parseID("offer_id", idStr); err != nil {
		return o, err
	}
	if o.ProjectID, err = parseID("project_id", projectStr); err != nil {
		return o, err
	}
	if o.CraftsmanID, err = parseID("craftsman_id", craftsmanStr); err != nil {
		return o, err
	}
	if o.Price, err = money.Parse(amount, currency); err != nil {
		return o, err
	}
	if o.Status, err = project.ParseOfferStatus(status); err != nil {
		return o, err
	}
	if duration != nil {
		o.EstimatedDurationDays = *duration
	}
	if start != nil && end != nil {
		o.Timeline = &project.Timeline{Start: start.UTC(), End: end.UTC()}
	}
	o.AcceptedAt = utc(o.AcceptedAt)
	o.RejectedAt = utc(o.RejectedAt)
	o.WithdrawnAt = utc(o.WithdrawnAt)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

func scanSummary(row pgx.Row) (project.Summary, error) {
	var (
		s                    project.Summary
		idStr, customerStr   string
		status               string
		budgetMin, budgetMax *string
		currency             *string
		start, deadline      *time.Time
	)
	err := row.Scan(
		&idStr, &customerStr, &s.Title, &status,
		&budgetMin, &budgetMax, &currency, &start, &deadline,
		&s.PublishedAt, &s.CreatedAt, &s.OfferCount,
	)
	if err != nil {
		return s, oops.Code("PROJECT_SCAN_FAILED").Wrap(err)
	}
	if s.ID, err = parseID("id", idStr); err != nil {
		return s, err
	}
	if s.CustomerID, err = parseID("customer_id", customerStr); err != nil {
		return s, err
	}
	s.Status = project.Status(status)
	if s.Budget, err = restoreBudget(budgetMin, budgetMax, currency); err != nil {
		return s, err
	}
	if s.Schedule, err = project.NewSchedule(utc(start), utc(deadline)); err != nil {
		return s, err
	}
	s.PublishedAt = utc(s.PublishedAt)
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

func restoreBudget(lo, hi, currency *string) (project.Budget, error) {
	if currency == nil {
		return project.Budget{}, nil
	}
	var bounds [2]*money.Money
	for i, raw := range []*string{lo, hi} {
		if raw == nil {
			continue
		}
		m, err := money.Parse(*raw, *currency)
		if err != nil {
			return project.Budget{}, err
		}
		bounds[i] = &m
	}
	return project.NewBudget(bounds[0], bounds[1])
}

func parseID(field, s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("PROJECT_INVALID_ID").With(field, s).Wrap(err)
	}
	return id, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
