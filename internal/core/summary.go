package core

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Balance is derived from the full transaction set on every read.
type Balance struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// FilterStats describes how much of a collection survived filtering.
type FilterStats struct {
	TotalCount    int  `json:"totalCount"`
	FilteredCount int  `json:"filteredCount"`
	HasFilters    bool `json:"hasFilters"`
	Percentage    int  `json:"percentage"`
}

// CalculateBalance sums income and expense amounts. An empty list yields zeros.
func CalculateBalance(list []Transaction) Balance {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range list {
		switch t.Type {
		case Income:
			income = income.Add(t.Amount)
		case Expense:
			expense = expense.Add(t.Amount)
		}
	}
	return Balance{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
	}
}

// UniqueCategories returns the distinct categories in ascending order.
func UniqueCategories(list []Transaction) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0)
	for _, t := range list {
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	sort.Strings(out)
	return out
}

// CalculateFilterStats compares a filtered view against the whole collection.
func CalculateFilterStats(all, filtered []Transaction) FilterStats {
	total, count := len(all), len(filtered)
	stats := FilterStats{
		TotalCount:    total,
		FilteredCount: count,
		HasFilters:    total != count,
	}
	if total > 0 {
		stats.Percentage = int(math.Round(float64(count) / float64(total) * 100))
	}
	return stats
}
