package core

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

const (
	SortDefault  SortMode = ""
	SortDateDesc SortMode = "date_desc"
)

type (
	// Date is a calendar date without a time component, always in UTC.
	Date struct {
		time.Time
	}

	// SortMode selects the ordering of a listing.
	SortMode string

	// ExpenseInput is a candidate expense as submitted by a caller.
	ExpenseInput struct {
		Amount      Money
		Category    string
		Description *string
		Date        Date
	}

	// Expense is a stored expense record.
	Expense struct {
		ID          int64     `json:"id"`
		Amount      Money     `json:"amount"`
		Category    string    `json:"category"`
		Description *string   `json:"description"`
		Date        Date      `json:"date"`
		CreatedAt   time.Time `json:"created_at"`
		RequestHash string    `json:"-"`
	}

	// ListFilter narrows and orders a listing. An empty Category lists everything.
	ListFilter struct {
		Category string
		Sort     SortMode
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Impossible dates such as 2024-02-30
// are rejected.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrMissingDate
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrMalformedDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrMalformedDate
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner for DATE and TEXT columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *Date) scanText(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	v, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("scan date %q: %w", s, err)
	}
	*d = v
	return nil
}

// ParseSortMode maps the query value "date_desc" to SortDateDesc; anything
// else selects the default ordering.
func ParseSortMode(s string) SortMode {
	if strings.TrimSpace(s) == string(SortDateDesc) {
		return SortDateDesc
	}
	return SortDefault
}

// NormalizedDescription returns the description used for hashing. An absent
// description and an empty one are the same value.
func (in ExpenseInput) NormalizedDescription() string {
	if in.Description == nil {
		return ""
	}
	return *in.Description
}

// Validate checks the candidate in field order and returns the first
// *ValidationError found.
func (in ExpenseInput) Validate() error {
	if err := in.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if strings.TrimSpace(in.Category) == "" {
		return NewValidationError("category", ErrEmptyCategory)
	}
	if err := in.Date.Validate(); err != nil {
		return NewValidationError("date", err)
	}
	return nil
}

// DescriptionOr returns the description or fallback when it is absent.
func (e Expense) DescriptionOr(fallback string) string {
	if e.Description == nil {
		return fallback
	}
	return *e.Description
}
