// Package metrics holds the Prometheus instruments for stockai.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
// Each instance owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	CacheRequests     *prometheus.CounterVec // labels: prefix, result=hit|miss
	CacheEntries      prometheus.Gauge
	UpstreamRequests  *prometheus.CounterVec // labels: op, outcome=ok|not_found|error
	UpstreamRetries   *prometheus.CounterVec // labels: op
	ToolCalls         *prometheus.CounterVec // labels: tool, status=ok|error
	LLMDuration       *prometheus.HistogramVec
	Queries           *prometheus.CounterVec // labels: type, fallback
	HTTPRequests      *prometheus.CounterVec // labels: route, status
	RateLimitRejected *prometheus.CounterVec // labels: endpoint
	WSClients         prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockai_cache_requests_total",
			Help: "Cache lookups by key prefix and result",
		}, []string{"prefix", "result"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockai_cache_entries",
			Help: "Entries held in the ephemeral cache after the last sweep",
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockai_upstream_requests_total",
			Help: "Upstream data calls by operation and outcome",
		}, []string{"op", "outcome"}),
		UpstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockai_upstream_retries_total",
			Help: "Retries issued after a failed upstream call",
		}, []string{"op"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockai_tool_calls_total",
			Help: "Tool invocations by tool name and status",
		}, []string{"tool", "status"}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockai_llm_request_duration_seconds",
			Help:    "Chat completion latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"outcome"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockai_queries_total",
			Help: "Orchestrated queries by classified type and whether the fallback answered",
		}, []string{"type", "fallback"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockai_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		}, []string{"route", "status"}),
		RateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockai_ratelimit_rejections_total",
			Help: "Requests rejected by the fixed-window limiter",
		}, []string{"endpoint"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockai_ws_clients",
			Help: "Connected market-status WebSocket clients",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CacheRequests,
		m.CacheEntries,
		m.UpstreamRequests,
		m.UpstreamRetries,
		m.ToolCalls,
		m.LLMDuration,
		m.Queries,
		m.HTTPRequests,
		m.RateLimitRejected,
		m.WSClients,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveLLM records one chat completion.
func (m *Metrics) ObserveLLM(start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LLMDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
