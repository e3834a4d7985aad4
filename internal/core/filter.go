package core

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	TypeAll     TypeFilter = "all"
	TypeIncome  TypeFilter = TypeFilter(Income)
	TypeExpense TypeFilter = TypeFilter(Expense)

	SortByDate     SortField = "date"
	SortByAmount   SortField = "amount"
	SortByCategory SortField = "category"

	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type (
	// TypeFilter narrows by transaction type. The zero value matches everything.
	TypeFilter string

	// SortField represents a field that can be sorted on.
	SortField string

	// SortOrder represents sort direction.
	SortOrder string

	// FilterOptions holds the transient narrowing and ordering criteria.
	// Zero-valued fields are inactive.
	FilterOptions struct {
		Search    string
		Type      TypeFilter
		Category  string
		DateFrom  Date
		DateTo    Date
		SortBy    SortField
		SortOrder SortOrder
	}
)

// ParseTypeFilter accepts "", "all", "income" and "expense".
func ParseTypeFilter(s string) (TypeFilter, error) {
	switch t := TypeFilter(strings.ToLower(strings.TrimSpace(s))); t {
	case "", TypeAll:
		return TypeAll, nil
	case TypeIncome, TypeExpense:
		return t, nil
	default:
		return "", fmt.Errorf("invalid type filter %q", s)
	}
}

// ParseSortField defaults to SortByDate when s is empty.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return SortByDate, nil
	case SortByDate, SortByAmount, SortByCategory:
		return f, nil
	default:
		return "", fmt.Errorf("invalid sort field %q", s)
	}
}

// ParseSortOrder defaults to SortDesc when s is empty.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return SortDesc, nil
	case SortAsc, SortDesc:
		return o, nil
	default:
		return "", fmt.Errorf("invalid sort order %q", s)
	}
}

// HasFilters reports whether any narrowing predicate is active.
func (o FilterOptions) HasFilters() bool {
	return o.Search != "" ||
		(o.Type != "" && o.Type != TypeAll) ||
		o.Category != "" ||
		!o.DateFrom.IsZero() ||
		!o.DateTo.IsZero()
}

// Matches reports whether t satisfies every active predicate.
func (o FilterOptions) Matches(t Transaction) bool {
	if o.Search != "" {
		q := strings.ToLower(o.Search)
		if !strings.Contains(strings.ToLower(t.Category), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	if o.Type != "" && o.Type != TypeAll && TransactionType(o.Type) != t.Type {
		return false
	}
	if o.Category != "" && t.Category != o.Category {
		return false
	}
	// Dates carry no time of day, so DateTo already covers its whole day.
	if !o.DateFrom.IsZero() && t.Date.Before(o.DateFrom.Time) {
		return false
	}
	if !o.DateTo.IsZero() && t.Date.After(o.DateTo.Time) {
		return false
	}
	return true
}

// FilterTransactions returns the transactions matching opts, preserving order.
func FilterTransactions(list []Transaction, opts FilterOptions) []Transaction {
	out := make([]Transaction, 0, len(list))
	for _, t := range list {
		if opts.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// SortTransactions returns a stably sorted copy of list. The input is not modified.
func SortTransactions(list []Transaction, by SortField, order SortOrder) []Transaction {
	out := slices.Clone(list)
	if out == nil {
		out = []Transaction{}
	}

	var cmp func(a, b Transaction) int
	switch by {
	case SortByDate:
		cmp = func(a, b Transaction) int { return a.Date.Compare(b.Date) }
	case SortByAmount:
		cmp = func(a, b Transaction) int { return a.Amount.Cmp(b.Amount) }
	case SortByCategory:
		col := collate.New(language.Und)
		cmp = func(a, b Transaction) int { return col.CompareString(a.Category, b.Category) }
	default:
		return out
	}

	if order == SortDesc {
		asc := cmp
		cmp = func(a, b Transaction) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}

// ApplyFiltersAndSort filters then sorts according to opts.
func ApplyFiltersAndSort(list []Transaction, opts FilterOptions) []Transaction {
	return SortTransactions(FilterTransactions(list, opts), opts.SortBy, opts.SortOrder)
}
