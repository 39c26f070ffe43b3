package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/config"
	"github.com/seenimoa/stockai/internal/metrics"
)

// Router sends each request to the primary provider and falls through the
// fallback chain when a provider is down or rate limited.
type Router struct {
	chain []Provider
	log   zerolog.Logger
}

// NewRouter creates a router over the given providers, tried in order.
func NewRouter(log zerolog.Logger, providers ...Provider) (*Router, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return &Router{chain: providers, log: log}, nil
}

// Name reports the chain, primary first.
func (r *Router) Name() string {
	names := make([]string, len(r.chain))
	for i, p := range r.chain {
		names[i] = p.Name()
	}
	return "router/" + strings.Join(names, ",")
}

// Chat tries each provider in turn. Errors that another endpoint would
// repeat (bad request, context length) stop the chain.
func (r *Router) Chat(ctx context.Context, messages []Message, tools []Tool, opts *ChatOptions) (*Response, error) {
	var lastErr error
	for i, p := range r.chain {
		resp, err := p.Chat(ctx, messages, tools, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !shouldFallThrough(err) {
			return nil, err
		}
		if i < len(r.chain)-1 {
			r.log.Warn().Err(err).Str("provider", p.Name()).Str("next", r.chain[i+1].Name()).Msg("llm provider failed, trying next")
		}
	}
	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// Ping checks the primary provider.
func (r *Router) Ping(ctx context.Context) error {
	return r.chain[0].Ping(ctx)
}

// Health pings every provider in the chain.
func (r *Router) Health(ctx context.Context) map[string]error {
	out := make(map[string]error, len(r.chain))
	for _, p := range r.chain {
		out[p.Name()] = p.Ping(ctx)
	}
	return out
}

func shouldFallThrough(err error) bool {
	switch {
	case errors.Is(err, ErrContextLength):
		return false
	case errors.Is(err, ErrProviderDown), errors.Is(err, ErrRateLimit),
		errors.Is(err, ErrNoAPIKey), errors.Is(err, ErrInvalidModel),
		errors.Is(err, ErrEmptyResponse):
		return true
	default:
		return false
	}
}

// NewFromConfig builds the provider described by the llm config section.
// With fallbacks configured the result is a Router. Provider "none"
// returns ErrNoProviders so callers run without a model.
func NewFromConfig(cfg config.LLMConfig, m *metrics.Metrics, log zerolog.Logger) (Provider, error) {
	if cfg.Provider == "none" || cfg.Provider == "" {
		return nil, ErrNoProviders
	}

	primary, err := NewOpenAIProvider(ProviderConfig{
		Name:        cfg.Provider,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}, WithMetrics(m))
	if err != nil {
		return nil, err
	}
	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}

	chain := []Provider{primary}
	for _, fb := range cfg.Fallbacks {
		model := fb.Model
		if model == "" {
			model = cfg.Model
		}
		p, err := NewOpenAIProvider(ProviderConfig{
			Name:        fb.Provider,
			APIKey:      fb.APIKey,
			BaseURL:     fb.BaseURL,
			Model:       model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, WithMetrics(m))
		if err != nil {
			log.Warn().Err(err).Str("provider", fb.Provider).Msg("skipping llm fallback")
			continue
		}
		chain = append(chain, p)
	}
	return NewRouter(log, chain...)
}
