// Package ratelimit implements a fixed-window request limiter keyed by
// client address, plus chi-compatible middleware.
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/metrics"
)

// RejectMessage is returned to clients over their quota.
const RejectMessage = "Too many requests. Please try again later."

type window struct {
	count   int
	resetAt time.Time
}

// Limiter allows at most Limit requests per key per Window.
type Limiter struct {
	name   string
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window

	metrics *metrics.Metrics
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithMetrics counts rejections under the limiter's name.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// New creates a limiter named after the endpoint it guards.
func New(name string, limit int, period time.Duration, opts ...Option) *Limiter {
	if period <= 0 {
		period = time.Minute
	}
	l := &Limiter{
		name:    name,
		limit:   limit,
		window:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the endpoint name.
func (l *Limiter) Name() string { return l.name }

// Allow records a request for key. When the quota is used up it reports
// false and how long until the window resets.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}
	if w.count >= l.limit {
		if l.metrics != nil {
			l.metrics.RateLimitRejected.WithLabelValues(l.name).Inc()
		}
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

// Prune drops expired windows and returns how many were removed.
func (l *Limiter) Prune() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// ClientIP keys a request by the host of its connection address. Run chi's
// RealIP middleware first to key by a trusted proxy's forwarding headers.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// Middleware rejects requests over the limiter's quota with 429.
func Middleware(l *Limiter, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := l.Allow(keyFn(r))
			if !ok {
				secs := int(retry.Round(time.Second).Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   RejectMessage,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Pruner periodically clears expired windows across a set of limiters.
type Pruner struct {
	cron *cron.Cron
}

// StartPruner schedules Prune on every limiter on a cron schedule.
func StartPruner(schedule string, log zerolog.Logger, limiters ...*Limiter) (*Pruner, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		for _, l := range limiters {
			if n := l.Prune(); n > 0 {
				log.Debug().Str("endpoint", l.Name()).Int("pruned", n).Msg("rate limit windows pruned")
			}
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return &Pruner{cron: c}, nil
}

// Stop halts the pruner.
func (p *Pruner) Stop() {
	if p != nil && p.cron != nil {
		<-p.cron.Stop().Done()
	}
}
