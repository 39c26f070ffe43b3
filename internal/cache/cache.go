// Package cache provides the process-wide ephemeral key/value store with
// per-entry expiry and named TTL classes.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/config"
	"github.com/seenimoa/stockai/internal/metrics"
)

// Class names a default TTL bucket.
type Class string

const (
	Price        Class = "price"
	Details      Class = "details"
	Historical   Class = "historical"
	Corporate    Class = "corporate"
	Options      Class = "options"
	MarketStatus Class = "market_status"
	Directory    Class = "directory"
)

// DefaultTTLs are the recommended lifetimes for each class.
var DefaultTTLs = map[Class]time.Duration{
	Price:        30 * time.Second,
	Details:      5 * time.Minute,
	Historical:   15 * time.Minute,
	Corporate:    time.Hour,
	Options:      time.Minute,
	MarketStatus: 10 * time.Second,
	Directory:    24 * time.Hour,
}

// DefaultSweep is the janitor schedule.
const DefaultSweep = "@every 5m"

type entry struct {
	value     any
	expiresAt time.Time
}

// Store is a thread-safe in-memory cache. Writes are last-write-wins.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttls    map[Class]time.Duration
	now     func() time.Time

	metrics *metrics.Metrics
	log     zerolog.Logger
	cron    *cron.Cron
}

// Option configures a Store.
type Option func(*Store)

// WithTTLs overrides class TTLs. Zero durations keep the default.
func WithTTLs(cfg config.CacheTTLConfig) Option {
	return func(s *Store) {
		set := func(c Class, d time.Duration) {
			if d > 0 {
				s.ttls[c] = d
			}
		}
		set(Price, cfg.Price)
		set(Details, cfg.Details)
		set(Historical, cfg.Historical)
		set(Corporate, cfg.Corporate)
		set(Options, cfg.Options)
		set(MarketStatus, cfg.MarketStatus)
		set(Directory, cfg.Directory)
	}
}

// WithMetrics records hits and misses per key prefix.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger sets the janitor logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		ttls:    make(map[Class]time.Duration, len(DefaultTTLs)),
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for c, d := range DefaultTTLs {
		s.ttls[c] = d
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetime for a class. Unknown classes get the details TTL.
func (s *Store) TTL(c Class) time.Duration {
	if d, ok := s.ttls[c]; ok {
		return d
	}
	return s.ttls[Details]
}

// Get returns the value for key. Expired entries are removed and reported as absent.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if ok && !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		// Re-check: a concurrent Set may have refreshed it.
		if cur, still := s.entries[key]; still && !s.now().Before(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		ok = false
	}

	s.record(key, ok)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

// SetClass stores value with the TTL of the given class.
func (s *Store) SetClass(key string, value any, c Class) {
	s.Set(key, value, s.TTL(c))
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep deletes expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	remaining := len(s.entries)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CacheEntries.Set(float64(remaining))
	}
	return removed
}

// StartJanitor schedules Sweep on a cron schedule such as "@every 5m".
func (s *Store) StartJanitor(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweep
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if n := s.Sweep(); n > 0 {
			s.log.Debug().Int("removed", n).Int("remaining", s.Len()).Msg("cache sweep")
		}
	}); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	return nil
}

// Stop halts the janitor, if running.
func (s *Store) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}
}

func (s *Store) record(key string, hit bool) {
	if s.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	s.metrics.CacheRequests.WithLabelValues(prefix(key), result).Inc()
}

// prefix returns the operation part of a key such as "stock:TCS".
func prefix(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// GetAs is a typed Get. A stored value of another type counts as absent.
func GetAs[T any](s *Store, key string) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
