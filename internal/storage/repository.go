package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/store"

	_ "modernc.org/sqlite"
)

// timestampLayout has fixed width so created_at sorts correctly as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = `SELECT id, type, amount, category, description, date, created_at FROM transactions`

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ store.TransactionStore = (*SQLiteRepository)(nil)
	_ store.MirrorStore      = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// WithClock replaces the time source used for created_at.
func (r *SQLiteRepository) WithClock(now func() time.Time) *SQLiteRepository {
	r.now = now
	return r
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` ORDER BY date DESC, created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (type, amount, category, description, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(t.Type), t.Amount.String(), t.Category, t.Description,
		t.Date.String(), r.now().UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	logger(ctx).InfoContext(ctx, "Transaction saved to SQLite",
		log.FieldTransactionID, id,
		log.FieldTransactionType, t.Type,
		log.FieldAmount, t.Amount.String(),
		log.FieldCategory, t.Category)

	return id, nil
}

// Get returns one transaction or store.ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return getByID(ctx, r.db, id)
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getByID(ctx context.Context, q rowQuerier, id int64) (core.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, store.ErrNotFound
	}
	return t, err
}

func logger(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentStorage)
}

func (r *SQLiteRepository) Update(ctx context.Context, id int64, p core.Patch) (core.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	current, err := getByID(ctx, tx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	updated := p.Apply(current)
	_, err = tx.ExecContext(ctx,
		`UPDATE transactions SET type = ?, amount = ?, category = ?, description = ?, date = ? WHERE id = ?`,
		string(updated.Type), updated.Amount.String(), updated.Category, updated.Description,
		updated.Date.String(), id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n > 0 {
		logger(ctx).InfoContext(ctx, "Transaction deleted from SQLite", log.FieldTransactionID, id)
	}
	return n > 0, nil
}

// Upsert writes t under its own id.
func (r *SQLiteRepository) Upsert(ctx context.Context, t core.Transaction) error {
	if t.ID <= 0 {
		return fmt.Errorf("upsert transaction: missing id")
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, type, amount, category, description, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   type = excluded.type,
		   amount = excluded.amount,
		   category = excluded.category,
		   description = excluded.description,
		   date = excluded.date`,
		t.ID, string(t.Type), t.Amount.String(), t.Category, t.Description,
		t.Date.String(), created.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("upsert transaction %d: %w", t.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                          core.Transaction
		typ, amount, date, created string
	)
	if err := s.Scan(&t.ID, &typ, &amount, &t.Category, &t.Description, &date, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("scan transaction: %w", err)
	}

	t.Type = core.TransactionType(typ)

	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("transaction %d: parse amount %q: %w", t.ID, amount, err)
	}
	if t.Date, err = core.ParseDate(date); err != nil {
		return t, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	if t.CreatedAt, err = time.Parse(timestampLayout, created); err != nil {
		return t, fmt.Errorf("transaction %d: parse created_at %q: %w", t.ID, created, err)
	}
	return t, nil
}
