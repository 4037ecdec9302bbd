// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package money provides an immutable amount-plus-currency value.
//
// Arithmetic that can fail (currency mismatch, negative result, bad divisor)
// returns an error. Ordering comparisons across currencies are a programming
// error and panic; check SameCurrency first when the currencies are not known
// to match.
package money

import (
	"encoding/json"
	"strings"

	"github.com/samber/oops"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a caller does not name one.
const DefaultCurrency = "CZK"

// Scale is the number of decimal places an amount may carry. Storage and the
// JSON encoding both keep exactly this many.
const Scale = 2

// Money is a non-negative decimal amount with at most Scale decimal places in
// a three-letter ISO 4217 currency.
// The zero value is not valid; use New, Parse, or Zero.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New creates a Money value. The currency is upper-cased. Amounts with more
// than Scale significant decimal places are rejected rather than rounded, so
// a value never changes between validation and storage.
func New(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, oops.Code("MONEY_NEGATIVE_AMOUNT").
			With("amount", amount.String()).
			Errorf("amount cannot be negative")
	}
	if !amount.Equal(amount.Truncate(Scale)) {
		return Money{}, oops.Code("MONEY_INVALID_SCALE").
			With("amount", amount.String()).
			Errorf("amount cannot have more than %d decimal places", Scale)
	}
	cur, err := normalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: cur}, nil
}

// MustNew is New for values known to be valid, such as literals in tests.
func MustNew(amount decimal.Decimal, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Parse creates a Money value from decimal text such as "1250.50".
func Parse(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, oops.Code("MONEY_INVALID_AMOUNT").
			With("amount", amount).
			Wrap(err)
	}
	return New(d, currency)
}

// FromInt creates a whole-unit Money value.
func FromInt(amount int64, currency string) (Money, error) {
	return New(decimal.NewFromInt(amount), currency)
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) (Money, error) {
	return New(decimal.Zero, currency)
}

func normalizeCurrency(currency string) (string, error) {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		return "", oops.Code("MONEY_INVALID_CURRENCY").Errorf("currency cannot be empty")
	}
	if len(cur) != 3 {
		return "", oops.Code("MONEY_INVALID_CURRENCY").
			With("currency", currency).
			Errorf("currency code must be 3 characters (ISO 4217)")
	}
	for _, r := range cur {
		if r < 'A' || r > 'Z' {
			return "", oops.Code("MONEY_INVALID_CURRENCY").
				With("currency", currency).
				Errorf("currency code must contain only letters")
		}
	}
	return cur, nil
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the upper-case currency code.
func (m Money) Currency() string { return m.currency }

// SameCurrency reports whether m and other share a currency.
func (m Money) SameCurrency(other Money) bool { return m.currency == other.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

func (m Money) mismatch(op string, other Money) error {
	return oops.Code("MONEY_CURRENCY_MISMATCH").
		With("operation", op).
		With("left", m.currency).
		With("right", other.currency).
		Errorf("cannot %s money with different currencies: %s and %s", op, m.currency, other.currency)
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, m.mismatch("add", other)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns m - other. A negative result is an error.
func (m Money) Subtract(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, m.mismatch("subtract", other)
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, oops.Code("MONEY_NEGATIVE_RESULT").
			With("left", m.String()).
			With("right", other.String()).
			Errorf("subtraction would result in negative amount")
	}
	return Money{amount: result, currency: m.currency}, nil
}

// Multiply returns m * factor rounded to Scale places. The factor must not
// be negative.
func (m Money) Multiply(factor decimal.Decimal) (Money, error) {
	if factor.IsNegative() {
		return Money{}, oops.Code("MONEY_NEGATIVE_FACTOR").
			With("factor", factor.String()).
			Errorf("cannot multiply by negative factor")
	}
	return Money{amount: m.amount.Mul(factor).Round(Scale), currency: m.currency}, nil
}

// Divide returns m / divisor rounded to Scale places. The divisor must be
// positive.
func (m Money) Divide(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, oops.Code("MONEY_INVALID_DIVISOR").Errorf("cannot divide by zero")
	}
	if divisor.IsNegative() {
		return Money{}, oops.Code("MONEY_INVALID_DIVISOR").
			With("divisor", divisor.String()).
			Errorf("cannot divide by negative number")
	}
	return Money{amount: m.amount.Div(divisor).Round(Scale), currency: m.currency}, nil
}

// Compare returns -1, 0 or 1. It panics if the currencies differ.
func (m Money) Compare(other Money) int {
	if !m.SameCurrency(other) {
		panic(m.mismatch("compare", other))
	}
	return m.amount.Cmp(other.amount)
}

// GreaterThan reports m > other. It panics if the currencies differ.
func (m Money) GreaterThan(other Money) bool { return m.Compare(other) > 0 }

// GreaterThanOrEqual reports m >= other. It panics if the currencies differ.
func (m Money) GreaterThanOrEqual(other Money) bool { return m.Compare(other) >= 0 }

// LessThan reports m < other. It panics if the currencies differ.
func (m Money) LessThan(other Money) bool { return m.Compare(other) < 0 }

// LessThanOrEqual reports m <= other. It panics if the currencies differ.
func (m Money) LessThanOrEqual(other Money) bool { return m.Compare(other) <= 0 }

// Equal compares amounts rounded to two decimal places, and currencies.
// Unlike the ordering comparisons it never panics.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Round(Scale).Equal(other.amount.Round(Scale))
}

// String formats the value as "1250.00 CZK".
func (m Money) String() string {
	return m.amount.StringFixed(Scale) + " " + m.currency
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes the value as {"amount":"1250.00","currency":"CZK"}.
func (m Money) MarshalJSON() ([]byte, error) {
	//nolint:wrapcheck // encoding of two strings cannot fail
	return json.Marshal(moneyJSON{Amount: m.amount.StringFixed(Scale), Currency: m.currency})
}

// UnmarshalJSON decodes and validates the value. A missing currency falls
// back to DefaultCurrency.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return oops.Code("MONEY_INVALID_JSON").Wrap(err)
	}
	if raw.Currency == "" {
		raw.Currency = DefaultCurrency
	}
	parsed, err := Parse(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
