package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewIsolatedRegistries(t *testing.T) {
	a := New()
	b := New()

	a.ToolCalls.WithLabelValues("analyze_stock", "ok").Inc()

	if got := testutil.ToFloat64(a.ToolCalls.WithLabelValues("analyze_stock", "ok")); got != 1 {
		t.Errorf("a tool calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.ToolCalls.WithLabelValues("analyze_stock", "ok")); got != 0 {
		t.Errorf("b tool calls = %v, want 0", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.CacheRequests.WithLabelValues("stock", "hit").Add(2)
	m.ObserveLLM(time.Now().Add(-time.Second), errors.New("boom"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`stockai_cache_requests_total{prefix="stock",result="hit"} 2`,
		`stockai_llm_request_duration_seconds_count{outcome="error"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestObserveLLMNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveLLM(time.Now(), nil)
}
