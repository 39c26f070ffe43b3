package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/metrics"
)

func TestAllowWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l := New("analyze", 10, time.Minute, WithClock(func() time.Time { return now }))

	for i := 1; i <= 10; i++ {
		if ok, _ := l.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	ok, retry := l.Allow("1.2.3.4")
	if ok {
		t.Fatal("11th request should be rejected")
	}
	if retry != time.Minute {
		t.Errorf("retry = %v, want 1m", retry)
	}

	if ok, _ := l.Allow("5.6.7.8"); !ok {
		t.Error("other clients have their own window")
	}
}

func TestWindowResets(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l := New("compare", 1, time.Minute, WithClock(func() time.Time { return now }))

	l.Allow("a")
	if ok, _ := l.Allow("a"); ok {
		t.Fatal("second request in window should be rejected")
	}

	// Counter resets only once now is strictly past resetAt.
	now = now.Add(time.Minute)
	if ok, _ := l.Allow("a"); ok {
		t.Fatal("request exactly at resetAt is still in the window")
	}
	now = now.Add(time.Millisecond)
	if ok, _ := l.Allow("a"); !ok {
		t.Fatal("request after resetAt should start a new window")
	}
}

func TestNewDefaultsPeriod(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l := New("symbols", 1, 0, WithClock(func() time.Time { return now }))

	l.Allow("a")
	ok, retry := l.Allow("a")
	if ok || retry != time.Minute {
		t.Fatalf("ok=%v retry=%v, want a rejected request with a 1m default window", ok, retry)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestPrune(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l := New("market", 30, time.Minute, WithClock(func() time.Time { return now }))
	l.Allow("a")
	l.Allow("b")

	now = now.Add(2 * time.Minute)
	l.Allow("c")

	if n := l.Prune(); n != 2 {
		t.Errorf("Prune removed %d, want 2", n)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "1.1.1.1:99", "1.1.1.1"},
		{"forwarded header ignored", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.1.1.1:99", "1.1.1.1"},
		{"real ip header ignored", map[string]string{"X-Real-IP": "10.0.0.3"}, "1.1.1.1:99", "1.1.1.1"},
		{"no port", nil, "2.2.2.2", "2.2.2.2"},
		{"unknown", nil, "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddlewareRejectsEleventhRequest(t *testing.T) {
	m := metrics.New()
	l := New("analyze", 10, time.Minute, WithMetrics(m))
	h := Middleware(l, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var rec *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		rec = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		h.ServeHTTP(rec, req)
		if i < 10 && rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("11th request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["success"] != false || body["error"] != RejectMessage {
		t.Errorf("unexpected body %v", body)
	}
	if got := testutil.ToFloat64(m.RateLimitRejected.WithLabelValues("analyze")); got != 1 {
		t.Errorf("rejections = %v, want 1", got)
	}
}

func TestStartPruner(t *testing.T) {
	p, err := StartPruner("@every 1m", zerolog.Nop(), New("x", 1, time.Minute))
	if err != nil {
		t.Fatalf("StartPruner: %v", err)
	}
	p.Stop()

	if _, err := StartPruner("bogus", zerolog.Nop()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
