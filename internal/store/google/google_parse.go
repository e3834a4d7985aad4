package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wallet/internal/core"
)

// Column order of the transactions sheet.
var header = []any{"id", "type", "amount", "category", "description", "date", "created_at"}

const columnCount = 7

// sheetRow is a parsed transaction with its 1-based row number in the sheet.
type sheetRow struct {
	Row         int
	Transaction core.Transaction
}

// toValues renders t as one sheet row.
func toValues(t core.Transaction) []any {
	created := ""
	if !t.CreatedAt.IsZero() {
		created = t.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return []any{
		strconv.FormatInt(t.ID, 10),
		string(t.Type),
		t.Amount.String(),
		t.Category,
		t.Description,
		t.Date.String(),
		created,
	}
}

// parseRows converts a values matrix (as returned by Sheets API) into
// transactions. The header row, blank rows and rows with a non-numeric id are
// skipped; any other malformed row is an error.
func parseRows(values [][]any) ([]sheetRow, error) {
	out := make([]sheetRow, 0, len(values))
	for i, raw := range values {
		cols := toStrings(raw)
		if isBlank(cols) {
			continue
		}
		if _, err := strconv.ParseInt(safeGet(cols, 0), 10, 64); err != nil {
			continue
		}
		t, err := parseRow(cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, sheetRow{Row: i + 1, Transaction: t})
	}
	return out, nil
}

func parseRow(cols []string) (core.Transaction, error) {
	var (
		t   core.Transaction
		err error
	)
	if t.ID, err = strconv.ParseInt(safeGet(cols, 0), 10, 64); err != nil {
		return t, fmt.Errorf("invalid id %q", safeGet(cols, 0))
	}
	t.Type = core.TransactionType(strings.ToLower(safeGet(cols, 1)))
	if !t.Type.IsValid() {
		return t, fmt.Errorf("invalid type %q", safeGet(cols, 1))
	}
	if t.Amount, err = parseAmount(safeGet(cols, 2)); err != nil {
		return t, err
	}
	t.Category = safeGet(cols, 3)
	t.Description = safeGet(cols, 4)
	if t.Date, err = core.ParseDate(safeGet(cols, 5)); err != nil {
		return t, err
	}
	if s := safeGet(cols, 6); s != "" {
		if t.CreatedAt, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return t, fmt.Errorf("invalid created_at %q", s)
		}
	}
	return t, nil
}

// parseAmount accepts both dot and comma decimal separators.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
