// Package trace tags each request with an id, a request-scoped logger and a
// completion log line.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"wallet/internal/log"
)

// RequestIDHeader carries the id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// Metrics is a snapshot of the request counters.
type Metrics struct {
	TotalRequests int64
	ServerErrors  int64

	// LastResponseTime is in microseconds.
	LastResponseTime int64
}

type Middleware struct {
	logger   *log.Logger
	clientIP func(*http.Request) string

	total, serverErrors, lastMicros atomic.Int64
}

// NewMiddleware uses clientIP, when set, to fill the client_ip attribute.
func NewMiddleware(logger *log.Logger, clientIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &Middleware{logger: logger.WithComponent(log.ComponentHTTP), clientIP: clientIP}
}

// requestID keeps a caller supplied id only when it is a UUID.
func requestID(r *http.Request) string {
	if id, err := uuid.Parse(r.Header.Get(RequestIDHeader)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.total.Add(1)

		id := requestID(r)
		w.Header().Set(RequestIDHeader, id)

		var ip string
		if m.clientIP != nil {
			ip = m.clientIP(r)
		}

		reqLog := m.logger.With(log.FieldRequestID, id)
		ctx := log.WithContext(context.WithValue(r.Context(), requestIDKey{}, id), reqLog)
		r = r.WithContext(ctx)
		reqLog.DebugContext(ctx, "HTTP request started",
			log.FieldMethod, r.Method, log.FieldPath, r.URL.Path, log.FieldClientIP, ip)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		m.lastMicros.Store(elapsed.Microseconds())
		if status >= http.StatusInternalServerError {
			m.serverErrors.Add(1)
		}
		log.NewStructuredLogger(reqLog).LogHTTPEnd(ctx, r, status, elapsed.Milliseconds(), ip)
	})
}

// GetRequestID returns the id assigned by Middleware, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:    m.total.Load(),
		ServerErrors:     m.serverErrors.Load(),
		LastResponseTime: m.lastMicros.Load(),
	}
}
