package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/internal/metrics"
	"github.com/seenimoa/stockai/internal/retry"
	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

// Facade is the single entry point to exchange data. Every read goes
// through the cache, then through the upstream client with retry.
type Facade struct {
	up      Upstream
	history HistorySource
	cache   *cache.Store
	metrics *metrics.Metrics
	log     zerolog.Logger

	attempts    int
	delay       time.Duration
	concurrency int
}

// FacadeOption configures a Facade.
type FacadeOption func(*Facade)

// WithRetry sets the attempt count and the fixed pause between attempts.
func WithRetry(attempts int, delay time.Duration) FacadeOption {
	return func(f *Facade) {
		if attempts > 0 {
			f.attempts = attempts
		}
		if delay >= 0 {
			f.delay = delay
		}
	}
}

// WithConcurrency bounds GetMultiple's parallel fetches.
func WithConcurrency(n int) FacadeOption {
	return func(f *Facade) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithHistoryFallback sets a second history source, used once the upstream
// history call has exhausted its retries.
func WithHistoryFallback(h HistorySource) FacadeOption {
	return func(f *Facade) { f.history = h }
}

// WithFacadeMetrics records upstream outcomes and retries.
func WithFacadeMetrics(m *metrics.Metrics) FacadeOption {
	return func(f *Facade) { f.metrics = m }
}

// WithFacadeLogger sets the logger.
func WithFacadeLogger(l zerolog.Logger) FacadeOption {
	return func(f *Facade) { f.log = l }
}

// NewFacade wraps an upstream client with the given cache.
func NewFacade(up Upstream, store *cache.Store, opts ...FacadeOption) *Facade {
	f := &Facade{
		up:          up,
		cache:       store,
		log:         zerolog.Nop(),
		attempts:    retry.Default.MaxAttempts,
		delay:       retry.Default.Delay,
		concurrency: 5,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// MarketStatusKey is the cache key of the market status.
const MarketStatusKey = "market:status"

// SnapshotKey is the cache key of a symbol's equity snapshot.
func SnapshotKey(symbol string) string { return "stock:" + symbol }

// OptionsKey is the cache key of a symbol's option chain.
func OptionsKey(symbol string) string { return "options:" + symbol }

// Cache exposes the shared store.
func (f *Facade) Cache() *cache.Store { return f.cache }

// EquitySnapshot returns the current quote for symbol.
func (f *Facade) EquitySnapshot(ctx context.Context, symbol string) (*models.EquitySnapshot, error) {
	sym, err := checkSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, f, "equity", sym, SnapshotKey(sym), cache.Details, func(ctx context.Context) (*models.EquitySnapshot, error) {
		return f.up.Equity(ctx, sym)
	})
}

// TradeInfo returns volume, market cap and delivery data.
func (f *Facade) TradeInfo(ctx context.Context, symbol string) (*models.TradeInfo, error) {
	sym, err := checkSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, f, "trade_info", sym, "trade:"+sym, cache.Price, func(ctx context.Context) (*models.TradeInfo, error) {
		return f.up.TradeInfo(ctx, sym)
	})
}

// CorporateProfile returns shareholding, actions, announcements, meetings and results.
func (f *Facade) CorporateProfile(ctx context.Context, symbol string) (*models.CorporateProfile, error) {
	sym, err := checkSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, f, "corporate", sym, "corporate:"+sym, cache.Corporate, func(ctx context.Context) (*models.CorporateProfile, error) {
		return f.up.Corporate(ctx, sym)
	})
}

// PriceHistory returns daily candles in the range, newest first.
func (f *Facade) PriceHistory(ctx context.Context, symbol string, r models.DateRange) (models.PriceHistory, error) {
	sym, err := checkSymbol(symbol)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("history:%s:%s:%s", sym, r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	h, err := fetch(ctx, f, "history", sym, key, cache.Historical, func(ctx context.Context) (models.PriceHistory, error) {
		h, err := f.up.History(ctx, sym, r.From, r.To)
		if err != nil {
			return nil, err
		}
		return newestFirst(h), nil
	})
	if err == nil || f.history == nil || errors.Is(err, ErrNotFound) {
		return h, err
	}

	f.log.Warn().Err(err).Str("symbol", sym).Msg("exchange history failed, using fallback source")
	alt, altErr := f.history.History(ctx, sym, r.From, r.To)
	if altErr != nil || len(alt) == 0 {
		f.observe("history_fallback", "error")
		return nil, err
	}
	f.observe("history_fallback", "ok")
	alt = newestFirst(alt)
	f.cache.SetClass(key, alt, cache.Historical)
	return alt, nil
}

func newestFirst(h models.PriceHistory) models.PriceHistory {
	sorted := make(models.PriceHistory, len(h))
	copy(sorted, h)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })
	return sorted
}

// OptionChain returns the nearest-expiry option chain.
func (f *Facade) OptionChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	sym, err := checkSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, f, "option_chain", sym, OptionsKey(sym), cache.Options, func(ctx context.Context) (*models.OptionChain, error) {
		return f.up.OptionChain(ctx, sym)
	})
}

// MarketStatus returns the exchange session state.
func (f *Facade) MarketStatus(ctx context.Context) (*models.MarketStatus, error) {
	return fetch(ctx, f, "market_status", "", MarketStatusKey, cache.MarketStatus, func(ctx context.Context) (*models.MarketStatus, error) {
		return f.up.MarketStatus(ctx)
	})
}

// ValidateSymbol reports whether the exchange knows symbol.
func (f *Facade) ValidateSymbol(ctx context.Context, symbol string) bool {
	return f.CheckSymbol(ctx, symbol) == nil
}

// CheckSymbol returns nil when the exchange knows symbol and ErrNotFound
// when it does not. A positive answer warms the snapshot cache; a negative
// one is remembered for the details TTL. Transient failures return the
// upstream error without caching.
func (f *Facade) CheckSymbol(ctx context.Context, symbol string) error {
	sym, err := checkSymbol(symbol)
	if err != nil {
		return err
	}
	if _, bad := f.cache.Get(invalidKey(sym)); bad {
		return ErrNotFound
	}
	_, err = f.EquitySnapshot(ctx, sym)
	if errors.Is(err, ErrNotFound) {
		f.cache.SetClass(invalidKey(sym), true, cache.Details)
	}
	return err
}

func invalidKey(sym string) string { return "invalid:" + sym }

// GetMultiple fetches snapshots in parallel. Failures are dropped and the
// survivors keep the input order.
func (f *Facade) GetMultiple(ctx context.Context, symbols []string) []*models.EquitySnapshot {
	results := make([]*models.EquitySnapshot, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			snap, err := f.EquitySnapshot(gctx, sym)
			if err != nil {
				f.log.Debug().Err(err).Str("symbol", sym).Msg("dropping failed snapshot")
				return nil
			}
			results[i] = snap
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*models.EquitySnapshot, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// fetch reads key from the cache or calls fn with retry, caching success.
func fetch[T any](ctx context.Context, f *Facade, op, symbol, key string, class cache.Class, fn func(context.Context) (T, error)) (T, error) {
	if v, ok := cache.GetAs[T](f.cache, key); ok {
		return v, nil
	}

	policy := retry.Policy{
		MaxAttempts: f.attempts,
		Delay:       f.delay,
		Retryable:   func(err error) bool { return !errors.Is(err, ErrNotFound) },
		OnRetry: func(attempt int, err error) {
			if f.metrics != nil {
				f.metrics.UpstreamRetries.WithLabelValues(op).Inc()
			}
			f.log.Warn().Err(err).Str("op", op).Str("symbol", symbol).Int("attempt", attempt).Msg("upstream call failed, retrying")
		},
	}

	v, attempts, err := retry.Do(ctx, policy, fn)
	switch {
	case err == nil:
		f.observe(op, "ok")
		f.cache.SetClass(key, v, class)
		return v, nil
	case errors.Is(err, ErrNotFound):
		f.observe(op, "not_found")
		var zero T
		return zero, err
	default:
		f.observe(op, "error")
		var zero T
		return zero, &UpstreamError{Op: op, Symbol: symbol, Attempts: attempts, Err: err}
	}
}

func (f *Facade) observe(op, outcome string) {
	if f.metrics != nil {
		f.metrics.UpstreamRequests.WithLabelValues(op, outcome).Inc()
	}
}

// checkSymbol normalizes and format-checks a ticker. A malformed ticker
// cannot exist on the exchange, so it reports ErrNotFound.
func checkSymbol(symbol string) (string, error) {
	sym := utils.NormalizeTicker(symbol)
	if err := utils.ValidateSymbol(sym); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return sym, nil
}
