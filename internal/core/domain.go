package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the only accepted text form of a calendar date.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	// Date is a calendar date without time of day, kept at UTC midnight.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          int64           `json:"id,omitempty"`
		Type        TransactionType `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description,omitempty"`
		Date        Date            `json:"date"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// Patch carries the fields of a partial update. Nil fields are left untouched.
	Patch struct {
		Type        *TransactionType
		Amount      *decimal.Decimal
		Category    *string
		Description *string
		Date        *Date
	}
)

var ErrInvalidDate = errors.New("invalid date")

// Amounts travel as JSON numbers. Decoding still accepts quoted decimals.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// IsValid reports whether t is income or expense.
func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. Impossible dates such as 2024-02-30 are rejected.
func ParseDate(s string) (Date, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: parsed}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Compare returns -1, 0 or +1 comparing calendar days.
func (d Date) Compare(other Date) int {
	return d.Time.Compare(other.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Apply returns a copy of t with the patch fields set.
func (p Patch) Apply(t Transaction) Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}

// PatchFrom builds a patch that overwrites every mutable field of t.
func PatchFrom(t Transaction) Patch {
	return Patch{
		Type:        &t.Type,
		Amount:      &t.Amount,
		Category:    &t.Category,
		Description: &t.Description,
		Date:        &t.Date,
	}
}
