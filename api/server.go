// Package api provides the HTTP API server for stockai.
//
// It exposes endpoints for free-text questions, single-stock analysis,
// comparisons, raw market data, symbol search, a market-status WebSocket
// feed, health and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/agent"
	"github.com/seenimoa/stockai/internal/config"
	"github.com/seenimoa/stockai/internal/datasource"
	"github.com/seenimoa/stockai/internal/metrics"
	"github.com/seenimoa/stockai/internal/ratelimit"
	"github.com/seenimoa/stockai/internal/tools"
	"github.com/seenimoa/stockai/pkg/models"
)

const (
	llmRouteTimeout   = 2 * time.Minute
	dataRouteTimeout  = 30 * time.Second
	shutdownTimeout   = 15 * time.Second
	pruneSchedule     = "@every 1m"
	defaultWSInterval = 15 * time.Second
)

// NewsFeed is the RSS side of the news endpoint.
type NewsFeed interface {
	MarketNews(ctx context.Context, limit int) ([]models.NewsItem, error)
	StockNews(ctx context.Context, symbol, companyName string, limit int) ([]models.NewsItem, error)
}

// Sizer reports how many symbols the directory holds.
type Sizer interface {
	Len() int
}

// Deps are the services the server is built from.
type Deps struct {
	Orchestrator *agent.Orchestrator
	Facade       *datasource.Facade
	Toolkit      *tools.Toolkit
	Directory    Sizer    // optional, reported by /health
	News         NewsFeed // nil disables RSS items
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	Version      string
}

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	orch    *agent.Orchestrator
	facade  *datasource.Facade
	toolkit *tools.Toolkit
	news    NewsFeed
	dir     Sizer
	metrics *metrics.Metrics
	limits  map[string]*ratelimit.Limiter
	wsHub   *WSHub
	log     zerolog.Logger
	version string
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	log := deps.Logger.With().Str("component", "api").Logger()
	s := &Server{
		cfg:     cfg,
		orch:    deps.Orchestrator,
		facade:  deps.Facade,
		toolkit: deps.Toolkit,
		news:    deps.News,
		dir:     deps.Directory,
		metrics: deps.Metrics,
		limits:  newLimiters(cfg.RateLimit, deps.Metrics),
		wsHub:   NewWSHub(deps.Metrics, log),
		log:     log,
		version: deps.Version,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the market-status WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// Limiters returns the per-endpoint rate limiters.
func (s *Server) Limiters() []*ratelimit.Limiter {
	out := make([]*ratelimit.Limiter, 0, len(s.limits))
	for _, l := range s.limits {
		out = append(out, l)
	}
	return out
}

// ListenAndServe runs the HTTP server, the WebSocket hub and the rate-limit
// pruner until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.API.ReadTimeout,
		WriteTimeout: s.cfg.API.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pruner, err := ratelimit.StartPruner(pruneSchedule, s.log, s.Limiters()...)
	if err != nil {
		return err
	}
	defer pruner.Stop()

	go s.wsHub.Run(ctx)
	go s.pushMarketStatus(ctx, s.cfg.WS.Interval)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", httpSrv.Addr).Msg("api server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down api server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if s.cfg.RateLimit.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Question answering
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(llmRouteTimeout))
			r.With(s.limit("ask")).Post("/ask", s.handleAsk)
			r.With(s.limit("analyze")).Post("/analyze", s.handleAnalyze)
			r.With(s.limit("compare")).Post("/compare", s.handleCompare)
		})

		// Market data
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(dataRouteTimeout))
			r.With(s.limit("stock")).Get("/stock/{symbol}", s.handleStock)
			r.With(s.limit("stock")).Get("/quotes", s.handleQuotes)
			r.With(s.limit("options")).Get("/options", s.handleOptions)
			r.With(s.limit("market")).Get("/market", s.handleMarket)
			r.With(s.limit("news")).Get("/news", s.handleNews)
			r.With(s.limit("symbols")).Get("/symbols", s.handleSymbols)
		})

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)

		// WebSocket
		r.Get("/ws/market", s.handleWebSocket)
	})

	return r
}

// ── Middleware ──

// requestLogger logs each request through zerolog and counts it by route
// pattern and status.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			s.log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("ip", ratelimit.ClientIP(r)).
				Msg("http request")
			if s.metrics != nil {
				s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			}
		}()

		next.ServeHTTP(ww, r)
	})
}

// limit returns the rate-limit middleware of one endpoint.
func (s *Server) limit(endpoint string) func(http.Handler) http.Handler {
	return ratelimit.Middleware(s.limits[endpoint], nil)
}

func newLimiters(cfg config.RateLimitConfig, m *metrics.Metrics) map[string]*ratelimit.Limiter {
	quotas := map[string]int{
		"ask":     cfg.Ask,
		"analyze": cfg.Analyze,
		"compare": cfg.Compare,
		"stock":   cfg.Stock,
		"news":    cfg.News,
		"options": cfg.Options,
		"market":  cfg.Market,
		"symbols": cfg.Symbols,
	}
	out := make(map[string]*ratelimit.Limiter, len(quotas))
	for name, limit := range quotas {
		opts := []ratelimit.Option{}
		if m != nil {
			opts = append(opts, ratelimit.WithMetrics(m))
		}
		out[name] = ratelimit.New(name, limit, cfg.Window, opts...)
	}
	return out
}

// ── Responses ──

// APIResponse is the envelope of data endpoints.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Cached  *bool  `json:"cached,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

func writeData(w http.ResponseWriter, data any, cached bool) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Cached:  &cached,
	})
}
