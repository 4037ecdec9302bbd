// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package project

import (
	"time"

	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/money"
)

// Budget is the customer's price range. Either bound may be absent; when
// both are present they share a currency and min does not exceed max.
type Budget struct {
	min *money.Money
	max *money.Money
}

// NewBudget validates a budget range. nil bounds are open.
func NewBudget(lo, hi *money.Money) (Budget, error) {
	if lo != nil && hi != nil {
		if !lo.SameCurrency(*hi) {
			return Budget{}, oops.Code(CodeInvalidBudget).
				With("min_currency", lo.Currency()).
				With("max_currency", hi.Currency()).
				Errorf("budget bounds must use the same currency")
		}
		if lo.GreaterThan(*hi) {
			return Budget{}, oops.Code(CodeBudgetOrder).
				With("min", lo.String()).
				With("max", hi.String()).
				Errorf("budget minimum cannot exceed maximum")
		}
	}
	return Budget{min: copyMoney(lo), max: copyMoney(hi)}, nil
}

// Min returns the lower bound if set.
func (b Budget) Min() (money.Money, bool) {
	if b.min == nil {
		return money.Money{}, false
	}
	return *b.min, true
}

// Max returns the upper bound if set.
func (b Budget) Max() (money.Money, bool) {
	if b.max == nil {
		return money.Money{}, false
	}
	return *b.max, true
}

// IsSet reports whether either bound is present.
func (b Budget) IsSet() bool { return b.min != nil || b.max != nil }

// Currency returns the budget currency, or "" for an empty budget.
func (b Budget) Currency() string {
	switch {
	case b.min != nil:
		return b.min.Currency()
	case b.max != nil:
		return b.max.Currency()
	default:
		return ""
	}
}

func copyMoney(m *money.Money) *money.Money {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// Schedule holds the customer's preferred start and deadline. Either may be
// absent; when both are present start is not after the deadline.
type Schedule struct {
	preferredStart *time.Time
	deadline       *time.Time
}

// NewSchedule validates a schedule.
func NewSchedule(preferredStart, deadline *time.Time) (Schedule, error) {
	if preferredStart != nil && deadline != nil && preferredStart.After(*deadline) {
		return Schedule{}, oops.Code(CodeInvalidSchedule).
			With("preferred_start", preferredStart.UTC()).
			With("deadline", deadline.UTC()).
			Errorf("preferred start cannot be after the deadline")
	}
	return Schedule{preferredStart: copyTime(preferredStart), deadline: copyTime(deadline)}, nil
}

// PreferredStart returns the preferred start date, or nil.
func (s Schedule) PreferredStart() *time.Time { return copyTime(s.preferredStart) }

// Deadline returns the deadline, or nil.
func (s Schedule) Deadline() *time.Time { return copyTime(s.deadline) }

// Timeline is the period a craftsman proposes to do the work in.
type Timeline struct {
	Start time.Time
	End   time.Time
}

// NewTimeline validates that start is not after end.
func NewTimeline(start, end time.Time) (Timeline, error) {
	if start.IsZero() || end.IsZero() {
		return Timeline{}, oops.Code(CodeInvalidTimeline).Errorf("timeline start and end are required")
	}
	if start.After(end) {
		return Timeline{}, oops.Code(CodeInvalidTimeline).
			With("start", start.UTC()).
			With("end", end.UTC()).
			Errorf("timeline start cannot be after its end")
	}
	return Timeline{Start: start, End: end}, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
