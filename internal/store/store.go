package store

import (
	"context"
	"errors"
	"slices"

	"wallet/internal/core"
)

// ErrNotFound is returned when no transaction has the requested id.
var ErrNotFound = errors.New("transaction not found")

// Ports for outbound adapters.
type (
	// TransactionStore persists transactions. Ids and creation times are
	// assigned by the store.
	TransactionStore interface {
		// List returns at most limit transactions, newest first.
		// limit <= 0 returns everything.
		List(ctx context.Context, limit int) ([]core.Transaction, error)

		Create(ctx context.Context, t core.Transaction) (int64, error)

		// Update applies p to the transaction with the given id and
		// returns the stored result. Unknown ids yield ErrNotFound.
		Update(ctx context.Context, id int64, p core.Patch) (core.Transaction, error)

		// Delete removes the transaction and reports whether it existed.
		Delete(ctx context.Context, id int64) (bool, error)
	}

	// Upserter writes a transaction under its own id, inserting or replacing.
	// Mirror targets implement it so replayed events keep source ids.
	Upserter interface {
		Upsert(ctx context.Context, t core.Transaction) error
	}

	// MirrorStore is the target of replayed change events.
	MirrorStore interface {
		Upserter
		Delete(ctx context.Context, id int64) (bool, error)
	}
)

// CompareNewestFirst orders by date desc, then created_at desc, then id desc.
func CompareNewestFirst(a, b core.Transaction) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	default:
		return 0
	}
}

// NewestFirst sorts list in place in listing order and truncates it to limit.
func NewestFirst(list []core.Transaction, limit int) []core.Transaction {
	slices.SortStableFunc(list, CompareNewestFirst)
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}
