// Package cli holds the start-up and shutdown plumbing shared by
// cmd/wallet and cmd/wallet-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wallet/internal/backend"
	"wallet/internal/config"
	"wallet/internal/log"
)

// exit is replaced in tests.
var exit = os.Exit

func fatal(logger *log.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	exit(1)
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
// values and installs it as the slog default.
func SetupLogger(level, format string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Format:    log.ParseFormat(format),
		Output:    os.Stdout,
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile reads .env when present. A missing file is normal outside
// local development.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig exits the process when the environment is invalid.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fatal(logger, "Configuration validation failed", log.FieldError, err)
	}
	return cfg
}

// InitBackend builds the primary store selected by DATA_BACKEND or exits.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		fatal(logger, "Invalid backend configuration", log.FieldError, err)
		return nil
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		fatal(logger, "Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		return nil
	}
	return res
}

// GracefulShutdown waits in the background for SIGINT or SIGTERM, then runs
// cleanup with a context bounded by timeout. The returned context is
// cancelled once cleanup has returned; done closes after the final log line.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	finished, markFinished := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer markFinished()

		<-sigCtx.Done()
		stopSignals()
		logger.Info("Shutdown signal received", "cause", context.Cause(sigCtx).Error())

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if cleanup != nil {
			cleanup(ctx)
		}
		markFinished()

		if ctx.Err() != nil {
			logger.Warn("Shutdown timeout reached", "timeout", timeout)
			return
		}
		logger.Info("Shutdown complete")
	}()

	return finished, done
}

// WaitForShutdown blocks until cleanup has run and its logging is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
