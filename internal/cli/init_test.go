package cli

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet/internal/backend"
	"wallet/internal/config"
	"wallet/internal/log"
)

func captureExit(t *testing.T) *int {
	t.Helper()
	code := -1
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = os.Exit })
	return &code
}

func TestLoadAndValidateConfigExitsOnInvalidEnv(t *testing.T) {
	code := captureExit(t)
	t.Setenv("PORT", "not-a-port")

	LoadAndValidateConfig(log.Discard())

	assert.Equal(t, 1, *code)
}

func TestInitBackendMemory(t *testing.T) {
	code := captureExit(t)
	cfg := config.Load()
	cfg.DataBackend = "memory"
	cfg.DataDir = t.TempDir()

	res := InitBackend(context.Background(), log.Discard(), cfg)

	require.NotNil(t, res)
	assert.Equal(t, -1, *code)
	assert.Equal(t, backend.MemoryBackend, res.Type)
	assert.NoError(t, res.Close())
}

func TestInitBackendExitsOnUnknownBackend(t *testing.T) {
	code := captureExit(t)
	cfg := config.Load()
	cfg.DataBackend = "postgres"

	assert.Nil(t, InitBackend(context.Background(), log.Discard(), cfg))
	assert.Equal(t, 1, *code)
}

func TestGracefulShutdownRunsCleanupOnSignal(t *testing.T) {
	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(log.Discard(), time.Second, func(ctx context.Context) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		close(cleaned)
	})

	// NotifyContext registers synchronously, so the signal is not lost.
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-cleaned:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup did not run")
	}
	WaitForShutdown(ctx, done)
}
