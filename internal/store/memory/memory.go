package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"wallet/internal/core"
	"wallet/internal/store"
)

// SeedFile is read from the data directory by NewFromFiles.
const SeedFile = "seed_transactions.json"

type Store struct {
	mu     sync.Mutex
	items  []core.Transaction
	nextID int64
	now    func() time.Time
}

var (
	_ store.TransactionStore = (*Store)(nil)
	_ store.MirrorStore      = (*Store)(nil)
)

// New returns a store holding a copy of seed. Seed records without an id
// get one assigned.
func New(seed []core.Transaction) *Store {
	s := &Store{nextID: 1, now: time.Now}
	for _, t := range seed {
		if t.ID <= 0 {
			t.ID = s.nextID
		}
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
		s.items = append(s.items, t)
	}
	return s
}

// NewFromFiles seeds the store from base/seed_transactions.json, falling back
// to SampleTransactions when the file is missing or unreadable.
func NewFromFiles(base string) *Store {
	seed := readSeed(filepath.Join(base, SeedFile))
	if len(seed) == 0 {
		seed = SampleTransactions()
	}
	return New(seed)
}

// SampleTransactions returns the two demo records served by a fresh store.
func SampleTransactions() []core.Transaction {
	return []core.Transaction{
		{
			ID:          1,
			Type:        core.Income,
			Amount:      decimal.NewFromInt(50000),
			Category:    "Зарплата",
			Description: "Зарплата за месяц",
			Date:        core.NewDate(2024, 1, 15),
			CreatedAt:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:          2,
			Type:        core.Expense,
			Amount:      decimal.NewFromInt(1500),
			Category:    "Продукты",
			Description: "Покупка продуктов",
			Date:        core.NewDate(2024, 1, 16),
			CreatedAt:   time.Date(2024, 1, 16, 14, 30, 0, 0, time.UTC),
		},
	}
}

// WithClock replaces the time source used for created_at.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) List(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	out := append([]core.Transaction(nil), s.items...)
	s.mu.Unlock()
	if out == nil {
		out = []core.Transaction{}
	}
	return store.NewestFirst(out, limit), nil
}

func (s *Store) Create(_ context.Context, t core.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID
	t.CreatedAt = s.now().UTC()
	s.nextID++
	s.items = append(s.items, t)
	return t.ID, nil
}

func (s *Store) Update(_ context.Context, id int64, p core.Patch) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, store.ErrNotFound
	}
	s.items[i] = p.Apply(s.items[i])
	return s.items[i], nil
}

func (s *Store) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true, nil
}

// Upsert stores t under t.ID, replacing any existing record.
func (s *Store) Upsert(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID <= 0 {
		t.ID = s.nextID
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	if t.ID >= s.nextID {
		s.nextID = t.ID + 1
	}
	if i := s.indexOf(t.ID); i >= 0 {
		s.items[i] = t
		return nil
	}
	s.items = append(s.items, t)
	return nil
}

func (s *Store) indexOf(id int64) int {
	for i, t := range s.items {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func readSeed(path string) []core.Transaction {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var seed []core.Transaction
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil
	}
	return seed
}
