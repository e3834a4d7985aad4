package core

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	RequiredField ErrorKind = "required_field"
	TypeMismatch  ErrorKind = "type_mismatch"
	OutOfRange    ErrorKind = "out_of_range"
	FormatError   ErrorKind = "format_error"
)

const (
	MaxCategoryLength    = 100
	MaxDescriptionLength = 500
	MaxDateAgeYears      = 10
)

// MaxAmount is the largest accepted transaction amount.
var MaxAmount = decimal.NewFromInt(999_999_999)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type (
	// ErrorKind tags a validation failure.
	ErrorKind string

	FieldError struct {
		Field   string    `json:"field"`
		Kind    ErrorKind `json:"kind"`
		Message string    `json:"message"`
	}

	ValidationResult struct {
		Valid  bool         `json:"valid"`
		Errors []FieldError `json:"errors"`
	}

	// RawInput holds transaction fields as they arrive from a request body.
	// Each field is nil when absent.
	RawInput struct {
		Type        any
		Amount      any
		Category    any
		Description any
		Date        any
	}

	// ValidationError is returned by services when input is rejected before persistence.
	ValidationError struct {
		Result ValidationResult
	}
)

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Error formats all violations as "field: message, field: message".
func (r ValidationResult) Error() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, ", ")
}

// Has reports whether a violation of the given kind was recorded for field.
func (r ValidationResult) Has(field string, kind ErrorKind) bool {
	for _, e := range r.Errors {
		if e.Field == field && e.Kind == kind {
			return true
		}
	}
	return false
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Result.Error()
}

func fieldErr(field string, kind ErrorKind, msg string) *FieldError {
	return &FieldError{Field: field, Kind: kind, Message: msg}
}

func collect(errs ...*FieldError) ValidationResult {
	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			out = append(out, *e)
		}
	}
	return ValidationResult{Valid: len(out) == 0, Errors: out}
}

// ValidateType checks the transaction type field.
func ValidateType(v any) *FieldError {
	if v == nil {
		return fieldErr("type", RequiredField, "transaction type is required")
	}
	s, ok := asString(v)
	if !ok {
		return fieldErr("type", TypeMismatch, "transaction type must be a string")
	}
	return checkType(TransactionType(s))
}

func checkType(t TransactionType) *FieldError {
	if t == "" {
		return fieldErr("type", RequiredField, "transaction type is required")
	}
	if !t.IsValid() {
		return fieldErr("type", OutOfRange, `transaction type must be "income" or "expense"`)
	}
	return nil
}

// ValidateAmount checks the amount field, coercing numeric strings.
func ValidateAmount(v any) *FieldError {
	_, err := coerceAmount(v)
	return err
}

func coerceAmount(v any) (decimal.Decimal, *FieldError) {
	var (
		d   decimal.Decimal
		err error
	)
	switch x := v.(type) {
	case nil:
		return d, fieldErr("amount", RequiredField, "amount is required")
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return d, fieldErr("amount", RequiredField, "amount is required")
		}
		d, err = decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	case json.Number:
		d, err = decimal.NewFromString(x.String())
	case decimal.Decimal:
		d = x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return d, fieldErr("amount", TypeMismatch, "amount must be a number")
		}
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case int32:
		d = decimal.NewFromInt32(x)
	default:
		return d, fieldErr("amount", TypeMismatch, "amount must be a number")
	}
	if err != nil {
		return d, fieldErr("amount", TypeMismatch, "amount must be a number")
	}
	return d, checkAmount(d)
}

func checkAmount(d decimal.Decimal) *FieldError {
	if !d.IsPositive() {
		return fieldErr("amount", OutOfRange, "amount must be greater than zero")
	}
	if d.GreaterThan(MaxAmount) {
		return fieldErr("amount", OutOfRange, "amount is too large")
	}
	return nil
}

// ValidateCategory checks the category field.
func ValidateCategory(v any) *FieldError {
	if v == nil {
		return fieldErr("category", RequiredField, "category is required")
	}
	s, ok := v.(string)
	if !ok {
		return fieldErr("category", TypeMismatch, "category must be a string")
	}
	return checkCategory(s)
}

func checkCategory(s string) *FieldError {
	if strings.TrimSpace(s) == "" {
		return fieldErr("category", RequiredField, "category is required")
	}
	if utf8.RuneCountInString(s) > MaxCategoryLength {
		return fieldErr("category", OutOfRange, "category name is too long")
	}
	return nil
}

// ValidateDescription checks the optional description field.
func ValidateDescription(v any) *FieldError {
	if v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fieldErr("description", TypeMismatch, "description must be a string")
	}
	return checkDescription(s)
}

func checkDescription(s string) *FieldError {
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return fieldErr("description", OutOfRange, "description is too long")
	}
	return nil
}

// ValidateDate checks the optional date field against the calendar day of now.
// An absent or empty date is valid; callers default it to today.
func ValidateDate(v any, now time.Time) *FieldError {
	_, err := coerceDate(v, now)
	return err
}

func coerceDate(v any, now time.Time) (Date, *FieldError) {
	if v == nil {
		return Date{}, nil
	}
	s, ok := v.(string)
	if !ok {
		return Date{}, fieldErr("date", TypeMismatch, "date must be a string")
	}
	if s == "" {
		return Date{}, nil
	}
	if !datePattern.MatchString(s) {
		return Date{}, fieldErr("date", FormatError, "invalid date format, use YYYY-MM-DD")
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, fieldErr("date", FormatError, "date is not a valid calendar date")
	}
	return d, checkDate(d, now)
}

func checkDate(d Date, now time.Time) *FieldError {
	today := DateOf(now)
	if d.After(today.Time) {
		return fieldErr("date", OutOfRange, "date cannot be in the future")
	}
	if d.Before(today.AddDate(-MaxDateAgeYears, 0, 0)) {
		return fieldErr("date", OutOfRange, "date is too old")
	}
	return nil
}

// ValidateInput runs every field validator on raw input without short-circuiting.
// Errors are ordered type, amount, category, description, date.
func ValidateInput(in RawInput, now time.Time) ValidationResult {
	return collect(
		ValidateType(in.Type),
		ValidateAmount(in.Amount),
		ValidateCategory(in.Category),
		ValidateDescription(in.Description),
		ValidateDate(in.Date, now),
	)
}

// ParseInput validates raw input and converts it to a Transaction.
// A missing date defaults to the calendar day of now.
func ParseInput(in RawInput, now time.Time) (Transaction, ValidationResult) {
	result := ValidateInput(in, now)
	if !result.Valid {
		return Transaction{}, result
	}

	typ, _ := asString(in.Type)
	amount, _ := coerceAmount(in.Amount)
	category, _ := in.Category.(string)
	description, _ := in.Description.(string)
	date, _ := coerceDate(in.Date, now)
	if date.IsZero() {
		date = DateOf(now)
	}

	return Transaction{
		Type:        TransactionType(typ),
		Amount:      amount,
		Category:    strings.TrimSpace(category),
		Description: strings.TrimSpace(description),
		Date:        date,
	}, result
}

// Validate checks an already typed transaction.
func (t Transaction) Validate(now time.Time) ValidationResult {
	var dateErr *FieldError
	if t.Date.IsZero() {
		dateErr = fieldErr("date", RequiredField, "date is required")
	} else {
		dateErr = checkDate(t.Date, now)
	}
	return collect(
		checkType(t.Type),
		checkAmount(t.Amount),
		checkCategory(t.Category),
		checkDescription(t.Description),
		dateErr,
	)
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case TransactionType:
		return string(x), true
	default:
		return "", false
	}
}
