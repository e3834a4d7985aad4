package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady pings the store. Cache and limiter are reported but never fail
// readiness.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]any{
		"store": "ok",
		"rate_limiter": map[string]any{
			"status":         "ok",
			"active_clients": s.rateLimiter.ActiveClients(),
		},
	}
	if s.cache != nil {
		checks["cache"] = map[string]any{"status": "ok", "entries": s.cache.Size()}
	}

	state, code := "ready", http.StatusOK
	if err := s.svc.Ready(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		state, code = "not_ready", http.StatusServiceUnavailable
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    state,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// metric is one Prometheus text-format family. A family with several
// samples lists them in labels order.
type metric struct {
	name, help, kind string
	labels           []string
	values           []float64
}

func (m metric) writeTo(w io.Writer) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", m.name, m.help, m.name, m.kind)
	for i, v := range m.values {
		name := m.name
		if i < len(m.labels) {
			name += "{" + m.labels[i] + "}"
		}
		fmt.Fprintf(w, "%s %s\n", name, strconv.FormatFloat(v, 'f', -1, 64))
	}
	fmt.Fprintln(w)
}

func gauge(name, help string, v float64) metric {
	return metric{name: name, help: help, kind: "gauge", values: []float64{v}}
}

func counter(name, help string, v int64) metric {
	return metric{name: name, help: help, kind: "counter", values: []float64{float64(v)}}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	req := s.traceMiddleware.GetMetrics()
	lim := s.rateLimiter.GetMetrics()
	sec := s.securityDetector.GetMetrics()

	entries := 0
	if s.cache != nil {
		entries = s.cache.Size()
	}

	families := []metric{
		counter("http_requests_total", "Requests received", req.TotalRequests),
		counter("http_server_errors_total", "Responses with a 5xx status", req.ServerErrors),
		{
			name: "transactions_changed_total", help: "Committed transaction mutations", kind: "counter",
			labels: []string{`op="create"`, `op="update"`, `op="delete"`},
			values: []float64{
				float64(atomic.LoadInt64(&s.appMetrics.created)),
				float64(atomic.LoadInt64(&s.appMetrics.updated)),
				float64(atomic.LoadInt64(&s.appMetrics.deleted)),
			},
		},
		gauge("cache_entries", "Cached transaction lists", float64(entries)),
		counter("rate_limit_hits_total", "Requests refused by the rate limiter", lim.TotalHits),
		gauge("active_rate_limit_clients", "Clients with a live token bucket", float64(lim.ClientCount)),
		counter("suspicious_requests_total", "Requests flagged by the detector", sec.SuspiciousRequests),
		gauge("uptime_seconds", "Seconds since the server started", math.Floor(time.Since(s.appMetrics.uptime).Seconds())),
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, m := range families {
		m.writeTo(w)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Overview(r.Context())
	if err != nil {
		s.failure(w, r, err, log.OpList, "Failed to load transactions")
		return
	}
	NewJSONResponse().Body(snap).Write(w)
}

func (s *Server) handleQueryTransactions(w http.ResponseWriter, r *http.Request) {
	opts, err := ParseFilterOptions(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	res, err := s.svc.Query(r.Context(), opts)
	if err != nil {
		s.failure(w, r, err, log.OpQuery, "Failed to load transactions")
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := ParseTransactionInput(w, r)
	if err != nil {
		BadRequestError("Invalid request body").Write(w)
		return
	}

	snap, err := s.svc.Create(r.Context(), in)
	if err != nil {
		s.failure(w, r, err, log.OpCreate, "Failed to create transaction")
		return
	}
	atomic.AddInt64(&s.appMetrics.created, 1)
	NewJSONResponse().Body(snap).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError("Invalid transaction id").Write(w)
		return
	}
	in, err := ParseTransactionInput(w, r)
	if err != nil {
		BadRequestError("Invalid request body").Write(w)
		return
	}

	snap, err := s.svc.Update(r.Context(), id, in)
	if err != nil {
		s.failure(w, r, err, log.OpUpdate, "Failed to update transaction")
		return
	}
	atomic.AddInt64(&s.appMetrics.updated, 1)
	NewJSONResponse().Body(snap).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError("Invalid transaction id").Write(w)
		return
	}

	snap, err := s.svc.Delete(r.Context(), id)
	if err != nil {
		s.failure(w, r, err, log.OpDelete, "Failed to delete transaction")
		return
	}
	atomic.AddInt64(&s.appMetrics.deleted, 1)
	NewJSONResponse().Body(snap).Write(w)
}

// failure maps service errors onto responses. Validation and not-found are
// client errors; anything else is logged and reported generically.
func (s *Server) failure(w http.ResponseWriter, r *http.Request, err error, op, message string) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		ValidationFailed(verr.Result).Write(w)
	case errors.Is(err, store.ErrNotFound):
		NotFoundError("Transaction not found").Write(w)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), message, err, log.ComponentHTTP, op, nil)
		InternalServerError(message).Write(w)
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError("Rate limit exceeded. Please try again later.").Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("Not found").Write(w)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	MethodNotAllowedError().Write(w)
}
