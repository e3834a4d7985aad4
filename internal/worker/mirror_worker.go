package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet/internal/events"
	"wallet/internal/log"
	"wallet/internal/store"
)

// MirrorConfig holds configuration for the mirror worker
type MirrorConfig struct {
	// ReconcileInterval is how often the full source is copied to the
	// mirror (default: 15m)
	ReconcileInterval time.Duration
}

// DefaultMirrorConfig returns sensible defaults
func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{ReconcileInterval: 15 * time.Minute}
}

// MirrorWorker replays transaction change events into a mirror store and
// periodically reconciles the mirror against the source store.
type MirrorWorker struct {
	source store.TransactionStore
	mirror store.MirrorStore
	config MirrorConfig
	logger *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMirrorWorker creates a worker. source may be nil, which disables
// reconciliation.
func NewMirrorWorker(source store.TransactionStore, mirror store.MirrorStore, config MirrorConfig, logger *log.Logger) *MirrorWorker {
	if config.ReconcileInterval <= 0 {
		config.ReconcileInterval = DefaultMirrorConfig().ReconcileInterval
	}
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &MirrorWorker{
		source: source,
		mirror: mirror,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent applies a single change event to the mirror. It satisfies
// events.Handler.
func (w *MirrorWorker) HandleEvent(ctx context.Context, e events.TransactionEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event %s: %w", e.EventID, err)
	}

	w.logger.InfoContext(ctx, "Processing transaction event",
		log.FieldEventID, e.EventID,
		log.FieldOperation, string(e.Op),
		log.FieldTransactionID, e.TransactionID)

	switch e.Op {
	case events.OpCreated, events.OpUpdated:
		t := *e.Transaction
		t.ID = e.TransactionID
		if err := w.mirror.Upsert(ctx, t); err != nil {
			return fmt.Errorf("mirror upsert %d: %w", e.TransactionID, err)
		}
	case events.OpDeleted:
		ok, err := w.mirror.Delete(ctx, e.TransactionID)
		if err != nil {
			return fmt.Errorf("mirror delete %d: %w", e.TransactionID, err)
		}
		if !ok {
			// Already gone; replays and reconciles can race the event.
			w.logger.WarnContext(ctx, "Transaction missing from mirror, nothing to delete",
				log.FieldTransactionID, e.TransactionID)
		}
	}

	w.logger.InfoContext(ctx, "Mirrored transaction event",
		log.FieldEventID, e.EventID,
		log.FieldOperation, log.OpMirror,
		log.FieldTransactionID, e.TransactionID)
	return nil
}

// Reconcile copies every source transaction into the mirror. It recovers
// from lost messages and worker downtime. Returns the number of records
// written.
func (w *MirrorWorker) Reconcile(ctx context.Context) (int, error) {
	if w.source == nil {
		return 0, nil
	}

	list, err := w.source.List(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list source transactions: %w", err)
	}

	synced, failed := 0, 0
	for _, t := range list {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.mirror.Upsert(ctx, t); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror transaction",
				log.FieldTransactionID, t.ID,
				log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Reconcile completed",
		"total", len(list),
		"synced", synced,
		"errors", failed)

	if failed > 0 {
		return synced, fmt.Errorf("reconcile: %d of %d transactions failed", failed, len(list))
	}
	return synced, nil
}

// Start runs Reconcile immediately and then on every ReconcileInterval.
// Returns an error if already running.
func (w *MirrorWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("mirror worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stop, done := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stop, done)

	w.logger.InfoContext(ctx, "Mirror worker started",
		"reconcile_interval", w.config.ReconcileInterval)
	return nil
}

// Stop signals the loop and waits for it to finish or ctx to expire.
func (w *MirrorWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stop, done := w.stopCh, w.doneCh
	w.running = false
	w.mu.Unlock()

	close(stop)

	select {
	case <-done:
		w.logger.InfoContext(ctx, "Mirror worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Mirror worker stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the reconcile loop is active
func (w *MirrorWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *MirrorWorker) runLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.ReconcileInterval)
	defer ticker.Stop()

	w.reconcileAndLog(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcileAndLog(ctx)
		}
	}
}

func (w *MirrorWorker) reconcileAndLog(ctx context.Context) {
	if _, err := w.Reconcile(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Reconcile failed", log.FieldError, err)
	}
}
