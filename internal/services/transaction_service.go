package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"wallet/internal/cache"
	"wallet/internal/core"
	"wallet/internal/events"
	"wallet/internal/log"
	"wallet/internal/store"
)

const (
	cacheKeyAll          = "transactions:all"
	cacheKeyRecentPrefix = "transactions:recent:"
)

// EventPublisher announces committed changes.
type EventPublisher interface {
	Publish(ctx context.Context, e events.TransactionEvent) error
}

// ServiceConfig tunes TransactionService.
type ServiceConfig struct {
	// ListLimit bounds the recent list returned by Overview (default: 50)
	ListLimit int

	// CacheTTL is how long list reads stay cached (default: 5m)
	CacheTTL time.Duration

	Now    func() time.Time
	Logger *log.Logger
}

// DefaultServiceConfig returns sensible defaults
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListLimit: 50,
		CacheTTL:  5 * time.Minute,
		Now:       time.Now,
	}
}

// Snapshot is the state returned after reads and mutations.
type Snapshot struct {
	Transactions []core.Transaction `json:"transactions"`
	Balance      core.Balance       `json:"balance"`
}

// QueryResult is a filtered and sorted view over the whole collection.
type QueryResult struct {
	Transactions []core.Transaction `json:"transactions"`
	Stats        core.FilterStats   `json:"stats"`
	Categories   []string           `json:"categories"`
	Balance      core.Balance       `json:"balance"`
}

// TransactionService validates input, persists through the store, keeps the
// list cache coherent and publishes change events.
type TransactionService struct {
	store     store.TransactionStore
	cache     cache.Store[[]core.Transaction]
	publisher EventPublisher
	cfg       ServiceConfig
	logger    *log.Logger
	closers   []io.Closer
}

// NewTransactionService wires the service. cache and publisher may be nil.
func NewTransactionService(st store.TransactionStore, c cache.Store[[]core.Transaction], pub EventPublisher, cfg ServiceConfig) *TransactionService {
	def := DefaultServiceConfig()
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = def.ListLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &TransactionService{
		store:     st,
		cache:     c,
		publisher: pub,
		cfg:       cfg,
		logger:    logger.WithComponent(log.ComponentTransaction),
	}
}

// AddCloser registers a resource released by Close.
func (s *TransactionService) AddCloser(c io.Closer) {
	if c != nil {
		s.closers = append(s.closers, c)
	}
}

// Overview returns the most recent transactions and the balance of all of them.
func (s *TransactionService) Overview(ctx context.Context) (Snapshot, error) {
	snap, _, err := s.overview(ctx)
	return snap, err
}

func (s *TransactionService) overview(ctx context.Context) (Snapshot, []core.Transaction, error) {
	var recent, all []core.Transaction

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = s.list(gctx, s.cfg.ListLimit)
		return err
	})
	g.Go(func() error {
		var err error
		all, err = s.list(gctx, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, nil, fmt.Errorf("fetch transactions: %w", err)
	}

	return Snapshot{Transactions: recent, Balance: core.CalculateBalance(all)}, all, nil
}

// Query filters and sorts the whole collection.
func (s *TransactionService) Query(ctx context.Context, opts core.FilterOptions) (QueryResult, error) {
	all, err := s.list(ctx, 0)
	if err != nil {
		return QueryResult{}, fmt.Errorf("fetch transactions: %w", err)
	}
	filtered := core.ApplyFiltersAndSort(all, opts)
	return QueryResult{
		Transactions: filtered,
		Stats:        core.CalculateFilterStats(all, filtered),
		Categories:   core.UniqueCategories(all),
		Balance:      core.CalculateBalance(all),
	}, nil
}

// Create validates raw input and stores a new transaction. A missing date
// defaults to today. Invalid input yields *core.ValidationError.
func (s *TransactionService) Create(ctx context.Context, in core.RawInput) (Snapshot, error) {
	tx, res := core.ParseInput(in, s.cfg.Now())
	if !res.Valid {
		return Snapshot{}, &core.ValidationError{Result: res}
	}

	id, err := s.store.Create(ctx, tx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create transaction: %w", err)
	}
	tx.ID = id
	s.invalidate()

	snap, all, err := s.overview(ctx)
	if stored, ok := find(all, id); ok {
		tx = stored
	}
	s.afterMutation(ctx, log.OpCreate, events.OpCreated, tx)
	return snap, err
}

// Update replaces every field of transaction id with the validated input.
// Unknown ids yield store.ErrNotFound.
func (s *TransactionService) Update(ctx context.Context, id int64, in core.RawInput) (Snapshot, error) {
	tx, res := core.ParseInput(in, s.cfg.Now())
	if !res.Valid {
		return Snapshot{}, &core.ValidationError{Result: res}
	}

	updated, err := s.store.Update(ctx, id, core.PatchFrom(tx))
	if err != nil {
		return Snapshot{}, fmt.Errorf("update transaction %d: %w", id, err)
	}
	s.invalidate()
	s.afterMutation(ctx, log.OpUpdate, events.OpUpdated, updated)

	return s.Overview(ctx)
}

// Delete removes transaction id. Unknown ids yield store.ErrNotFound.
func (s *TransactionService) Delete(ctx context.Context, id int64) (Snapshot, error) {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if !ok {
		return Snapshot{}, fmt.Errorf("delete transaction %d: %w", id, store.ErrNotFound)
	}
	s.invalidate()
	s.afterMutation(ctx, log.OpDelete, events.OpDeleted, core.Transaction{ID: id})

	return s.Overview(ctx)
}

// Ready reports whether the store answers.
func (s *TransactionService) Ready(ctx context.Context) error {
	if _, err := s.store.List(ctx, 1); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}
	return nil
}

func (s *TransactionService) list(ctx context.Context, limit int) ([]core.Transaction, error) {
	key := cacheKeyAll
	if limit > 0 {
		key = cacheKeyRecentPrefix + strconv.Itoa(limit)
	}
	if s.cache != nil {
		if entry, ok := s.cache.Get(key); ok {
			return slices.Clone(entry.Value), nil
		}
	}

	list, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(key, slices.Clone(list), s.cfg.CacheTTL)
	}
	return list, nil
}

func (s *TransactionService) invalidate() {
	if s.cache == nil {
		return
	}
	s.cache.Delete(cacheKeyAll)
	s.cache.Delete(cacheKeyRecentPrefix + strconv.Itoa(s.cfg.ListLimit))
}

// afterMutation logs the change and publishes its event. Publish failures
// are logged only; the mutation is already committed.
func (s *TransactionService) afterMutation(ctx context.Context, op string, evOp events.Op, tx core.Transaction) {
	log.NewStructuredLogger(s.logger).LogTransactionChanged(ctx, op, tx.ID, string(tx.Type), tx.Amount.String(), tx.Category)

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event publisher not configured, skipping event", log.FieldTransactionID, tx.ID)
		return
	}

	var payload *core.Transaction
	if evOp != events.OpDeleted {
		payload = &tx
	}
	if err := s.publisher.Publish(ctx, events.NewTransactionEvent(evOp, tx.ID, payload)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldTransactionID, tx.ID,
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
}

// Close releases registered resources.
func (s *TransactionService) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close transaction service: %w", err)
	}
	return nil
}

func find(list []core.Transaction, id int64) (core.Transaction, bool) {
	for _, t := range list {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}
