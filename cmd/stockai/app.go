package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/agent"
	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/internal/config"
	"github.com/seenimoa/stockai/internal/datasource"
	"github.com/seenimoa/stockai/internal/llm"
	"github.com/seenimoa/stockai/internal/logging"
	"github.com/seenimoa/stockai/internal/metrics"
	"github.com/seenimoa/stockai/internal/tools"
)

// queryTimeout bounds one analyst run, all model turns included.
const queryTimeout = 2 * time.Minute

// app holds every service, built once and shared by the commands.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	metrics   *metrics.Metrics
	store     *cache.Store
	facade    *datasource.Facade
	directory *datasource.Directory
	news      *datasource.NewsReader
	toolkit   *tools.Toolkit
	provider  llm.Provider // nil when no model is configured
	orch      *agent.Orchestrator
}

// buildApp wires config, logger, metrics, cache, data sources, tools, the
// LLM provider and the orchestrator. A missing model or symbol directory
// degrades the app instead of failing it.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logging.New(cfg.Logging)
	m := metrics.New()
	ds := cfg.DataSource

	store := cache.New(
		cache.WithTTLs(cfg.Cache.TTL),
		cache.WithMetrics(m),
		cache.WithLogger(logging.Component(log, "cache")),
	)

	nse := datasource.NewNSE(
		datasource.WithHTTPTimeout(ds.Timeout),
		datasource.WithUserAgent(ds.UserAgent),
		datasource.WithNSELogger(logging.Component(log, "nse")),
	)
	facade := datasource.NewFacade(nse, store,
		datasource.WithRetry(ds.RetryAttempts, ds.RetryDelay),
		datasource.WithConcurrency(ds.MaxConcurrency),
		datasource.WithHistoryFallback(datasource.NewYahooHistory("", ds.Timeout)),
		datasource.WithFacadeMetrics(m),
		datasource.WithFacadeLogger(logging.Component(log, "facade")),
	)

	directory := datasource.NewDirectory(ds.DirectoryPath, ds.DirectoryURL, ds.DirectoryRefresh, logging.Component(log, "directory"))
	if err := directory.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("symbol directory unavailable; name lookups will find nothing")
	}

	news := datasource.NewNewsReader(store, datasource.SourcesFromURLs(ds.NewsFeeds), ds.Timeout, logging.Component(log, "news"))
	screener := datasource.NewScreener(store, "", ds.Timeout, logging.Component(log, "screener"))

	toolkit := tools.New(facade,
		tools.WithScreener(screener),
		tools.WithNews(news),
		tools.WithDirectory(directory),
		tools.WithLogger(logging.Component(log, "tools")),
	)

	var provider llm.Provider
	p, err := llm.NewFromConfig(cfg.LLM, m, logging.Component(log, "llm"))
	switch {
	case err == nil:
		provider = p
	case errors.Is(err, llm.ErrNoProviders), errors.Is(err, llm.ErrNoAPIKey):
		log.Warn().Err(err).Msg("no language model configured; answers come from templates")
	default:
		return nil, err
	}

	opts := &llm.ChatOptions{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens}
	orch := agent.NewOrchestrator(agent.Config{
		Provider:    provider,
		Toolkit:     toolkit,
		Known:       directory,
		ChatOptions: opts,
		Timeout:     queryTimeout,
		Metrics:     m,
		Logger:      log,
	})

	return &app{
		cfg:       cfg,
		log:       log,
		metrics:   m,
		store:     store,
		facade:    facade,
		directory: directory,
		news:      news,
		toolkit:   toolkit,
		provider:  provider,
		orch:      orch,
	}, nil
}
