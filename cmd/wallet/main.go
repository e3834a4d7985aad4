package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"wallet/internal/cache"
	"wallet/internal/cli"
	"wallet/internal/core"
	"wallet/internal/events"
	apphttp "wallet/internal/http"
	"wallet/internal/log"
	"wallet/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	be := cli.InitBackend(context.Background(), logger, cfg)

	listCache := cache.NewLRUCache[[]core.Transaction](64)
	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache))
	cacheManager.Register(listCache)
	cacheManager.StartCleanup(10 * time.Minute)

	// Events are optional; the API keeps working without a broker.
	var publisher services.EventPublisher
	var eventsClient *events.Client
	if cfg.AMQPURL != "" {
		c, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentEvents))
		if err != nil {
			logger.Warn("AMQP unavailable, change events disabled", log.FieldError, err)
		} else {
			eventsClient = c
			publisher = c
		}
	} else {
		logger.Info("AMQP_URL not set, change events disabled")
	}

	svc := services.NewTransactionService(be.Store, listCache, publisher, services.ServiceConfig{
		ListLimit: cfg.ListLimit,
		CacheTTL:  cfg.CacheTTL,
		Logger:    logger,
	})
	if eventsClient != nil {
		svc.AddCloser(eventsClient)
	}
	svc.AddCloser(be)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		Cache:              listCache,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := svc.Close(); err != nil {
			logger.Error("Failed to release resources", log.FieldError, err)
		}
	})

	logger.Info("Starting wallet server",
		"port", cfg.Port,
		log.FieldBackend, string(be.Type),
		"events", eventsClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
