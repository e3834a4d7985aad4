package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet/internal/core"
	"wallet/internal/events"
	"wallet/internal/log"
	"wallet/internal/store/memory"
)

// flakyMirror fails Upsert for the ids in failIDs.
type flakyMirror struct {
	*memory.Store
	mu      sync.Mutex
	failIDs map[int64]bool
}

func (m *flakyMirror) Upsert(ctx context.Context, t core.Transaction) error {
	m.mu.Lock()
	fail := m.failIDs[t.ID]
	m.mu.Unlock()
	if fail {
		return errors.New("quota exceeded")
	}
	return m.Store.Upsert(ctx, t)
}

func sample(id int64) core.Transaction {
	return core.Transaction{
		ID:       id,
		Type:     core.Expense,
		Amount:   decimal.RequireFromString("12.30"),
		Category: "Coffee",
		Date:     core.NewDate(2024, 3, 1),
	}
}

func mirrored(t *testing.T, m *memory.Store) []core.Transaction {
	t.Helper()
	list, err := m.List(context.Background(), 0)
	require.NoError(t, err)
	return list
}

func TestMirrorWorker_HandleEvent(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New(nil)
	w := NewMirrorWorker(nil, mirror, MirrorConfig{}, log.Discard())

	tx := sample(42)
	require.NoError(t, w.HandleEvent(ctx, events.NewTransactionEvent(events.OpCreated, 42, &tx)))
	list := mirrored(t, mirror)
	require.Len(t, list, 1)
	assert.Equal(t, int64(42), list[0].ID, "mirror keeps the source id")

	tx.Category = "Tea"
	require.NoError(t, w.HandleEvent(ctx, events.NewTransactionEvent(events.OpUpdated, 42, &tx)))
	list = mirrored(t, mirror)
	require.Len(t, list, 1)
	assert.Equal(t, "Tea", list[0].Category)

	require.NoError(t, w.HandleEvent(ctx, events.NewTransactionEvent(events.OpDeleted, 42, nil)))
	assert.Empty(t, mirrored(t, mirror))

	// Deleting again is not an error.
	require.NoError(t, w.HandleEvent(ctx, events.NewTransactionEvent(events.OpDeleted, 42, nil)))
}

func TestMirrorWorker_HandleEventRejectsInvalid(t *testing.T) {
	w := NewMirrorWorker(nil, memory.New(nil), MirrorConfig{}, log.Discard())

	tests := []struct {
		name string
		ev   events.TransactionEvent
	}{
		{"no id", events.NewTransactionEvent(events.OpDeleted, 0, nil)},
		{"created without payload", events.NewTransactionEvent(events.OpCreated, 1, nil)},
		{"unknown op", events.NewTransactionEvent(events.Op("archived"), 1, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, w.HandleEvent(context.Background(), tt.ev))
		})
	}
}

func TestMirrorWorker_HandleEventMirrorFailure(t *testing.T) {
	mirror := &flakyMirror{Store: memory.New(nil), failIDs: map[int64]bool{7: true}}
	w := NewMirrorWorker(nil, mirror, MirrorConfig{}, log.Discard())

	tx := sample(7)
	err := w.HandleEvent(context.Background(), events.NewTransactionEvent(events.OpCreated, 7, &tx))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestMirrorWorker_Reconcile(t *testing.T) {
	source := memory.New([]core.Transaction{sample(1), sample(2), sample(3)})
	mirror := &flakyMirror{Store: memory.New(nil), failIDs: map[int64]bool{2: true}}
	w := NewMirrorWorker(source, mirror, MirrorConfig{}, log.Discard())

	n, err := w.Reconcile(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, mirrored(t, mirror.Store), 2)

	mirror.mu.Lock()
	delete(mirror.failIDs, 2)
	mirror.mu.Unlock()

	n, err = w.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, mirrored(t, mirror.Store), 3)
}

func TestMirrorWorker_ReconcileWithoutSource(t *testing.T) {
	w := NewMirrorWorker(nil, memory.New(nil), MirrorConfig{}, log.Discard())
	n, err := w.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDefaultMirrorConfig(t *testing.T) {
	if got := DefaultMirrorConfig().ReconcileInterval; got != 15*time.Minute {
		t.Errorf("expected ReconcileInterval 15m, got %v", got)
	}
	w := NewMirrorWorker(nil, memory.New(nil), MirrorConfig{}, nil)
	if w.config.ReconcileInterval != 15*time.Minute {
		t.Errorf("zero interval should fall back to default, got %v", w.config.ReconcileInterval)
	}
}

func TestMirrorWorker_Lifecycle(t *testing.T) {
	source := memory.New([]core.Transaction{sample(1), sample(2)})
	mirror := memory.New(nil)
	w := NewMirrorWorker(source, mirror, MirrorConfig{ReconcileInterval: time.Hour}, log.Discard())

	if w.IsRunning() {
		t.Fatal("worker should not be running initially")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(ctx), "second start should fail")

	require.Eventually(t, func() bool {
		list, _ := mirror.List(context.Background(), 0)
		return len(list) == 2
	}, 2*time.Second, 10*time.Millisecond, "startup reconcile should fill the mirror")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.False(t, w.IsRunning())

	require.NoError(t, w.Stop(stopCtx), "stop when not running should not error")
}
