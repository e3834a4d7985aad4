package main

import (
	"context"
	"errors"
	"os"
	"time"

	"wallet/internal/backend"
	"wallet/internal/cli"
	"wallet/internal/events"
	"wallet/internal/log"
	"wallet/internal/store"
	gsheet "wallet/internal/store/google"
	"wallet/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger.Info("Starting wallet-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration invalid", log.FieldError, err)
		os.Exit(1)
	}

	startCtx := context.Background()

	mirror, err := gsheet.New(startCtx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	// Only a SQLite primary is shared with the API process and can be
	// reconciled from here.
	var (
		source store.TransactionStore
		be     *backend.BackendResult
	)
	if cfg.DataBackend == string(backend.SQLiteBackend) {
		be = cli.InitBackend(startCtx, logger, cfg)
		source = be.Store
	} else {
		logger.Info("Reconciliation disabled, primary store is not shared", log.FieldBackend, cfg.DataBackend)
	}

	eventsClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentEvents))
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	w := worker.NewMirrorWorker(source, mirror, worker.MirrorConfig{ReconcileInterval: cfg.ReconcileInterval}, logger)

	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		stopConsuming()
		select {
		case <-consumerDone:
		case <-ctx.Done():
		}
		if err := w.Stop(ctx); err != nil {
			logger.Error("Mirror worker stop error", log.FieldError, err)
		}
		if err := eventsClient.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
		if err := be.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	if err := w.Start(consumeCtx); err != nil {
		logger.Error("Failed to start mirror worker", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		defer close(consumerDone)
		if err := eventsClient.Consume(consumeCtx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
