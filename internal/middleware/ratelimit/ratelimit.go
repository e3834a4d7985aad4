// Package ratelimit throttles clients with one token bucket per IP.
package ratelimit

import (
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// idleAfter is how long a client may stay silent before its bucket is dropped.
const idleAfter = 10 * time.Minute

// Config tunes a Limiter. Zero fields take DefaultConfig values except
// Methods, where empty means every method is limited.
type Config struct {
	// RequestsPerMinute is both the refill rate and the burst size.
	RequestsPerMinute int
	CleanupInterval   time.Duration
	Methods           []string
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		Methods:           []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter holds a bucket per client and a janitor goroutine that forgets
// idle clients. Stop releases the goroutine.
type Limiter struct {
	perMinute int
	methods   []string

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time

	rejected atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	l := &Limiter{
		perMinute: cfg.RequestsPerMinute,
		methods:   slices.Clone(cfg.Methods),
		buckets:   make(map[string]*bucket),
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	go l.janitor(cfg.CleanupInterval)
	return l
}

// WithClock replaces the time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
	return l
}

// Allow takes a token for client. A refused request reports how long until
// the next token is available.
func (l *Limiter) Allow(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[client]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60), l.perMinute)}
		l.buckets[client] = b
	}
	b.lastSeen = now

	r := b.lim.ReserveN(now, 1)
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		l.rejected.Add(1)
		return false, wait
	}
	return true, 0
}

// Applies reports whether requests with this method are limited.
func (l *Limiter) Applies(method string) bool {
	return len(l.methods) == 0 || slices.Contains(l.methods, method)
}

func (l *Limiter) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.forgetIdle()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) forgetIdle() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleAfter)
	n := 0
	for client, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, client)
			n++
		}
	}
	return n
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop ends the janitor. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   l.rejected.Load(),
		ClientCount: int64(l.ActiveClients()),
	}
}

// Middleware answers refused requests with 429 and Retry-After in whole
// seconds. onLimit, when set, writes the body.
func (l *Limiter) Middleware(clientOf func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Applies(r.Method) {
				if ok, wait := l.Allow(clientOf(r)); !ok {
					secs := int(math.Ceil(wait.Round(time.Millisecond).Seconds()))
					w.Header().Set("Retry-After", strconv.Itoa(max(1, secs)))
					if onLimit != nil {
						onLimit(w, r)
					} else {
						http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
					}
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
