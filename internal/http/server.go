package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/middleware/ratelimit"
	"wallet/internal/middleware/security"
	"wallet/internal/middleware/trace"
	"wallet/internal/services"
)

// TransactionService is the application surface the handlers drive.
type TransactionService interface {
	Overview(ctx context.Context) (services.Snapshot, error)
	Query(ctx context.Context, opts core.FilterOptions) (services.QueryResult, error)
	Create(ctx context.Context, in core.RawInput) (services.Snapshot, error)
	Update(ctx context.Context, id int64, in core.RawInput) (services.Snapshot, error)
	Delete(ctx context.Context, id int64) (services.Snapshot, error)
	Ready(ctx context.Context) error
}

// CacheSizer reports the number of cached entries for /readyz and /metrics.
type CacheSizer interface {
	Size() int
}

// Options tunes the server. Zero values fall back to DefaultOptions.
type Options struct {
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	AllowedOrigins     []string
	Cache              CacheSizer
	Logger             *log.Logger
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		RateLimitPerMinute: 60,
		RequestTimeout:     30 * time.Second,
		AllowedOrigins:     []string{"*"},
	}
}

// appMetrics holds application-specific counters
type appMetrics struct {
	created int64
	updated int64
	deleted int64
	uptime  time.Time
}

type Server struct {
	http.Server
	svc    TransactionService
	cache  CacheSizer
	logger *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures middleware and routes, returning a ready-to-run server.
func NewServer(addr string, svc TransactionService, opts Options) *Server {
	def := DefaultOptions()
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = def.RateLimitPerMinute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = def.AllowedOrigins
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}

	rlConfig := ratelimit.DefaultConfig()
	rlConfig.RequestsPerMinute = opts.RateLimitPerMinute

	s := &Server{
		svc:              svc,
		cache:            opts.Cache,
		logger:           logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(rlConfig),
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	r := chi.NewRouter()

	r.Use(s.traceMiddleware.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(s.securityDetector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", trace.RequestIDHeader},
		ExposedHeaders:   []string{trace.RequestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited))
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api/transactions", func(r chi.Router) {
		r.Get("/", s.handleListTransactions)
		r.Get("/query", s.handleQueryTransactions)
		r.Post("/", s.handleCreateTransaction)
		r.Put("/{id}", s.handleUpdateTransaction)
		r.Delete("/{id}", s.handleDeleteTransaction)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       opts.RequestTimeout,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
