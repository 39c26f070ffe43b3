package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/seenimoa/stockai/internal/config"
	"github.com/seenimoa/stockai/internal/metrics"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func TestSetGet(t *testing.T) {
	s := New()
	s.Set("stock:TCS", "value", time.Minute)

	v, ok := s.Get("stock:TCS")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if v != "value" {
		t.Fatalf("got %v, want value", v)
	}

	if _, ok := s.Get("stock:INFY"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestLazyExpiry(t *testing.T) {
	clock := newClock()
	s := New(WithClock(clock.Now))
	s.Set("k", 1, 30*time.Second)

	clock.Advance(29 * time.Second)
	if _, ok := s.Get("k"); !ok {
		t.Fatal("entry should still be live before TTL")
	}

	clock.Advance(time.Second)
	if _, ok := s.Get("k"); ok {
		t.Fatal("entry should expire exactly at TTL")
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be removed on Get, Len = %d", s.Len())
	}
}

func TestClassTTLs(t *testing.T) {
	s := New()
	tests := []struct {
		class Class
		want  time.Duration
	}{
		{Price, 30 * time.Second},
		{Details, 5 * time.Minute},
		{Historical, 15 * time.Minute},
		{Corporate, time.Hour},
		{Options, 60 * time.Second},
		{MarketStatus, 10 * time.Second},
		{Class("unknown"), 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := s.TTL(tt.class); got != tt.want {
			t.Errorf("TTL(%s) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestWithTTLsOverride(t *testing.T) {
	s := New(WithTTLs(config.CacheTTLConfig{Price: 5 * time.Second}))
	if got := s.TTL(Price); got != 5*time.Second {
		t.Errorf("Price TTL = %v, want 5s", got)
	}
	if got := s.TTL(Corporate); got != time.Hour {
		t.Errorf("zero override should keep default, got %v", got)
	}
}

func TestSetClassExpiry(t *testing.T) {
	clock := newClock()
	s := New(WithClock(clock.Now))
	s.SetClass("options:NIFTY", "chain", Options)

	clock.Advance(59 * time.Second)
	if _, ok := s.Get("options:NIFTY"); !ok {
		t.Fatal("options entry should live 60s")
	}
	clock.Advance(2 * time.Second)
	if _, ok := s.Get("options:NIFTY"); ok {
		t.Fatal("options entry should be gone after 60s")
	}
}

func TestDeleteAndClear(t *testing.T) {
	s := New()
	s.Set("a", 1, time.Hour)
	s.Set("b", 2, time.Hour)

	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Error("expected miss after Delete")
	}

	s.Clear()
	if _, ok := s.Get("b"); ok {
		t.Error("expected miss after Clear")
	}
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d", s.Len())
	}
}

func TestSweep(t *testing.T) {
	clock := newClock()
	m := metrics.New()
	s := New(WithClock(clock.Now), WithMetrics(m))
	s.Set("short", 1, time.Second)
	s.Set("long", 2, time.Hour)

	clock.Advance(2 * time.Second)
	if n := s.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if s.Len() != 1 {
		t.Errorf("Len after sweep = %d, want 1", s.Len())
	}
	if got := testutil.ToFloat64(m.CacheEntries); got != 1 {
		t.Errorf("cache entries gauge = %v, want 1", got)
	}
}

func TestHitMissMetrics(t *testing.T) {
	m := metrics.New()
	s := New(WithMetrics(m))
	s.Set("stock:TCS", 1, time.Minute)

	s.Get("stock:TCS")
	s.Get("stock:TCS")
	s.Get("stock:INFY")

	if got := testutil.ToFloat64(m.CacheRequests.WithLabelValues("stock", "hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheRequests.WithLabelValues("stock", "miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
}

func TestGetAs(t *testing.T) {
	s := New()
	s.Set("n", 42, time.Minute)

	if v, ok := GetAs[int](s, "n"); !ok || v != 42 {
		t.Errorf("GetAs[int] = %v, %v", v, ok)
	}
	if _, ok := GetAs[string](s, "n"); ok {
		t.Error("GetAs with wrong type should report absent")
	}
}

func TestJanitor(t *testing.T) {
	s := New()
	if err := s.StartJanitor("@every 1s"); err != nil {
		t.Fatalf("StartJanitor: %v", err)
	}
	defer s.Stop()

	if err := New().StartJanitor("not a schedule"); err == nil {
		t.Error("expected error for invalid cron schedule")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set("k", i, time.Minute)
			s.Get("k")
			s.Sweep()
		}(i)
	}
	wg.Wait()
	if _, ok := s.Get("k"); !ok {
		t.Error("last write should be readable")
	}
}

func TestDefaultTTLsMatchConfigDefaults(t *testing.T) {
	want := map[Class]time.Duration{
		Price:        30 * time.Second,
		Details:      5 * time.Minute,
		Historical:   15 * time.Minute,
		Corporate:    time.Hour,
		Options:      time.Minute,
		MarketStatus: 10 * time.Second,
		Directory:    24 * time.Hour,
	}
	if len(DefaultTTLs) != len(want) {
		t.Fatalf("DefaultTTLs has %d classes, want %d", len(DefaultTTLs), len(want))
	}
	for c, d := range want {
		if DefaultTTLs[c] != d {
			t.Errorf("DefaultTTLs[%v] = %v, want %v", c, DefaultTTLs[c], d)
		}
	}

	ttl := config.Default().Cache.TTL
	fromConfig := map[Class]time.Duration{
		Price:        ttl.Price,
		Details:      ttl.Details,
		Historical:   ttl.Historical,
		Corporate:    ttl.Corporate,
		Options:      ttl.Options,
		MarketStatus: ttl.MarketStatus,
		Directory:    ttl.Directory,
	}
	for c, d := range fromConfig {
		if d != DefaultTTLs[c] {
			t.Errorf("config default for %v = %v, cache default %v", c, d, DefaultTTLs[c])
		}
	}
}
