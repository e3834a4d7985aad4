package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/store"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "data", "wallet.db")
	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, dbPath
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	_, dbPath := newTestRepo(t)

	require.NoError(t, RunMigrations(dbPath))

	version, dirty, err := SchemaVersion(dbPath)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
}

func TestSQLiteRepositoryCRUD(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	clock := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	repo.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})

	salary := core.Transaction{
		Type:        core.Income,
		Amount:      decimal.RequireFromString("2500.50"),
		Category:    "Salary",
		Description: "February",
		Date:        core.NewDate(2025, 2, 28),
	}
	coffee := core.Transaction{
		Type:     core.Expense,
		Amount:   decimal.RequireFromString("3.20"),
		Category: "Coffee",
		Date:     core.NewDate(2025, 2, 28),
	}
	rent := core.Transaction{
		Type:     core.Expense,
		Amount:   decimal.NewFromInt(900),
		Category: "Rent",
		Date:     core.NewDate(2025, 2, 1),
	}

	salaryID, err := repo.Create(ctx, salary)
	require.NoError(t, err)
	coffeeID, err := repo.Create(ctx, coffee)
	require.NoError(t, err)
	rentID, err := repo.Create(ctx, rent)
	require.NoError(t, err)

	list, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	// same date: later created_at first
	assert.Equal(t, []int64{coffeeID, salaryID, rentID}, []int64{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "2500.5", list[1].Amount.String())
	assert.Equal(t, "February", list[1].Description)
	assert.Equal(t, core.NewDate(2025, 2, 28), list[1].Date)
	assert.False(t, list[1].CreatedAt.IsZero())

	limited, err := repo.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	amount := decimal.RequireFromString("3.50")
	updated, err := repo.Update(ctx, coffeeID, core.Patch{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(amount))
	assert.Equal(t, "Coffee", updated.Category)

	got, err := repo.Get(ctx, coffeeID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(amount))

	_, err = repo.Update(ctx, 999, core.Patch{Amount: &amount})
	assert.ErrorIs(t, err, store.ErrNotFound)

	ok, err := repo.Delete(ctx, rentID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(ctx, rentID)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err = repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSQLiteRepositoryUpsert(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	tx := core.Transaction{
		ID:        42,
		Type:      core.Expense,
		Amount:    decimal.NewFromInt(15),
		Category:  "Books",
		Date:      core.NewDate(2025, 1, 10),
		CreatedAt: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Upsert(ctx, tx))

	tx.Category = "Magazines"
	require.NoError(t, repo.Upsert(ctx, tx))

	got, err := repo.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Magazines", got.Category)
	assert.True(t, got.CreatedAt.Equal(tx.CreatedAt))

	list, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Error(t, repo.Upsert(ctx, core.Transaction{Type: core.Income}))
}

func TestSQLiteRepositoryPing(t *testing.T) {
	repo, _ := newTestRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestSQLiteRepositoryLogsWithStorageComponent(t *testing.T) {
	repo, _ := newTestRepo(t)

	var buf bytes.Buffer
	lg := log.New(log.Config{Output: &buf, Format: log.FormatJSON, Component: log.ComponentHTTP})
	ctx := log.WithContext(context.Background(), lg)

	id, err := repo.Create(ctx, core.Transaction{
		Type:     core.Income,
		Amount:   decimal.RequireFromString("12.30"),
		Category: "Gift",
		Date:     core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)
	deleted, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	require.True(t, deleted)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2, buf.String())
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		assert.Equal(t, log.ComponentStorage, rec[log.FieldComponent])
		assert.EqualValues(t, id, rec[log.FieldTransactionID])
	}
}
