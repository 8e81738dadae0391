// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals with a fixed two-digit fractional part. They are
// never routed through float64, neither when decoding requests nor when
// reading them back from storage.
package core

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount mirrors the NUMERIC(10,2) column the amounts are stored in.
var maxAmount = decimal.RequireFromString("99999999.99")

// Money is an exact currency amount.
type Money struct {
	d decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// MustMoney parses s and panics on error. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney converts a decimal string to Money without validating its range.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Use
// Validate to enforce the positive, two-decimal constraint.
//
// Examples:
//
//	ParseMoney("12.50") -> 12.50
//	ParseMoney("12,5")  -> 12.50
//	ParseMoney("abc")   -> error
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrMissingAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	return Money{d: d}, nil
}

// ParseMoneyJSON decodes a raw JSON value that is either a string ("12.50")
// or a number literal (12.50). The literal text is parsed directly so that no
// binary floating point conversion takes place.
func ParseMoneyJSON(raw []byte) (Money, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Money{}, ErrMissingAmount
	}
	if raw[0] == '"' {
		if len(raw) < 2 || raw[len(raw)-1] != '"' {
			return Money{}, ErrMalformedAmount
		}
		raw = raw[1 : len(raw)-1]
	}
	return ParseMoney(string(raw))
}

// Validate enforces amount > 0, at most two fractional digits and the
// storage range.
func (m Money) Validate() error {
	if !m.d.IsPositive() {
		return ErrInvalidAmount
	}
	if !m.d.Equal(m.d.Round(2)) {
		return ErrAmountPrecision
	}
	if m.d.GreaterThan(maxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// String returns the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

// Cmp compares m and o like decimal.Cmp.
func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// Float returns a float64 for display purposes such as charts.
// Use the decimal value for calculations.
func (m Money) Float() float64 {
	f, _ := m.d.Float64()
	return f
}

// MarshalJSON encodes the amount as a quoted fixed two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts quoted strings and number literals.
func (m *Money) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*m = Money{}
		return nil
	}
	v, err := ParseMoneyJSON(b)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Value implements driver.Valuer. Amounts are written as fixed two-decimal text.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for TEXT and NUMERIC columns.
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	m.d = d
	return nil
}
