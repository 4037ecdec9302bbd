// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package project

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/shopspring/decimal"

	"github.com/craftsmenplatform/craftsmen/internal/money"
)

// Paging defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// OrderBy names a sortable project column.
type OrderBy string

// Sortable columns.
const (
	OrderCreatedAt OrderBy = "created_at"
	OrderTitle     OrderBy = "title"
	OrderBudgetMin OrderBy = "budget_min"
	OrderBudgetMax OrderBy = "budget_max"
	OrderStatus    OrderBy = "status"
)

// ListFilter selects and pages projects. Zero fields do not filter.
// Soft-deleted projects are never listed.
type ListFilter struct {
	Status     *Status
	CustomerID *ulid.ULID
	// MinBudget keeps projects whose budget maximum is at least this amount.
	MinBudget *decimal.Decimal
	// MaxBudget keeps projects whose budget minimum is at most this amount.
	MaxBudget     *decimal.Decimal
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	OrderBy       OrderBy
	Descending    bool
	Page          int
	PageSize      int
}

// ParseSort parses "field" or "field:asc|desc". Field names may be snake
// or camel case ("createdAt", "budget_min").
func ParseSort(s string) (OrderBy, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return OrderCreatedAt, true, nil
	}
	field, dir, _ := strings.Cut(s, ":")
	var desc bool
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return "", false, oops.Code(CodeInvalidFilter).With("sort", s).Errorf("sort direction must be asc or desc")
	}
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(field), "_", "")) {
	case "createdat":
		return OrderCreatedAt, desc, nil
	case "title":
		return OrderTitle, desc, nil
	case "budgetmin":
		return OrderBudgetMin, desc, nil
	case "budgetmax":
		return OrderBudgetMax, desc, nil
	case "status":
		return OrderStatus, desc, nil
	default:
		return "", false, oops.Code(CodeInvalidFilter).With("sort", s).Errorf("unknown sort field")
	}
}

// Normalize applies defaults and validates the filter.
func (f ListFilter) Normalize() (ListFilter, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Page < 1 {
		return f, oops.Code(CodeInvalidFilter).With("page", f.Page).Errorf("page must be at least 1")
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		return f, oops.Code(CodeInvalidFilter).
			With("page_size", f.PageSize).
			Errorf("page size must be between 1 and %d", MaxPageSize)
	}
	switch f.OrderBy {
	case "":
		f.OrderBy = OrderCreatedAt
		f.Descending = true
	case OrderCreatedAt, OrderTitle, OrderBudgetMin, OrderBudgetMax, OrderStatus:
	default:
		return f, oops.Code(CodeInvalidFilter).With("order_by", string(f.OrderBy)).Errorf("unknown sort field")
	}
	if f.MinBudget != nil && f.MaxBudget != nil && f.MinBudget.GreaterThan(*f.MaxBudget) {
		return f, oops.Code(CodeInvalidFilter).Errorf("minimum budget cannot exceed maximum budget")
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return f, oops.Code(CodeInvalidFilter).Errorf("created after cannot be later than created before")
	}
	return f, nil
}

// Offset is the number of rows skipped before the requested page.
func (f ListFilter) Offset() int { return (f.Page - 1) * f.PageSize }

// Matches reports whether a project passes the filter's predicates.
func (f ListFilter) Matches(s Summary) bool {
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if f.CustomerID != nil && s.CustomerID != *f.CustomerID {
		return false
	}
	if f.MinBudget != nil {
		hi, ok := s.Budget.Max()
		if !ok || hi.Amount().LessThan(*f.MinBudget) {
			return false
		}
	}
	if f.MaxBudget != nil {
		lo, ok := s.Budget.Min()
		if !ok || lo.Amount().GreaterThan(*f.MaxBudget) {
			return false
		}
	}
	if f.CreatedAfter != nil && s.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && s.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

// Compare orders two summaries by the filter's sort column, breaking ties
// by id. Missing budgets sort as zero.
func (f ListFilter) Compare(a, b Summary) int {
	var c int
	switch f.OrderBy {
	case OrderTitle:
		c = strings.Compare(a.Title, b.Title)
	case OrderBudgetMin:
		c = boundAmount(a.Budget.Min()).Cmp(boundAmount(b.Budget.Min()))
	case OrderBudgetMax:
		c = boundAmount(a.Budget.Max()).Cmp(boundAmount(b.Budget.Max()))
	case OrderStatus:
		c = strings.Compare(string(a.Status), string(b.Status))
	default:
		c = a.CreatedAt.Compare(b.CreatedAt)
	}
	if c == 0 {
		c = a.ID.Compare(b.ID)
	}
	if f.Descending {
		return -c
	}
	return c
}

func boundAmount(m money.Money, ok bool) decimal.Decimal {
	if !ok {
		return decimal.Zero
	}
	return m.Amount()
}

// Summary is the listing view of a project.
type Summary struct {
	ID          ulid.ULID
	CustomerID  ulid.ULID
	Title       string
	Status      Status
	Budget      Budget
	Schedule    Schedule
	OfferCount  int
	PublishedAt *time.Time
	CreatedAt   time.Time
}

// Summarize builds the listing view of p.
func Summarize(p *Project) Summary {
	return Summary{
		ID:          p.id,
		CustomerID:  p.customerID,
		Title:       p.title,
		Status:      p.status,
		Budget:      p.budget,
		Schedule:    p.schedule,
		OfferCount:  len(p.offers),
		PublishedAt: copyTime(p.publishedAt),
		CreatedAt:   p.createdAt,
	}
}

// Page is one page of listing results.
type Page struct {
	Items    []Summary
	Total    int
	Page     int
	PageSize int
}

// TotalPages is the number of pages at the current page size.
func (p Page) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool { return p.Page < p.TotalPages() }

// HasPrevious reports whether an earlier page exists.
func (p Page) HasPrevious() bool { return p.Page > 1 }
