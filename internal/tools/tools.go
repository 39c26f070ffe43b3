// Package tools exposes the market-data operations the model can call. Every
// handler answers with a JSON payload; data problems come back as
// {"error": "..."} and never as a Go error, so the conversation can go on.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/internal/datasource"
	"github.com/seenimoa/stockai/internal/llm"
	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

// Tool names.
const (
	NameResolveSymbol = "resolve_symbol"
	NameAnalyzeStock  = "analyze_stock"
	NameTechnical     = "technical_analysis"
	NameOptions       = "analyze_options"
	NameCompare       = "compare_stocks"
	NameNews          = "get_stock_news"
)

// AnalysisTools are offered to the single-stock agent.
var AnalysisTools = []string{NameAnalyzeStock, NameTechnical, NameResolveSymbol, NameOptions, NameNews}

// ComparisonTools are offered to the comparison agent.
var ComparisonTools = []string{NameCompare}

const (
	// DefaultMaxOutputBytes bounds a single tool payload.
	DefaultMaxOutputBytes = 6000
	truncatedMarker       = "…(truncated)"

	historyDays    = 90
	compareDays    = 365
	maxMatches     = 10
	maxHeadlines   = 5
	maxAnnounce    = 5
	maxActions     = 3
	maxMeetings    = 3
	maxLevelsShown = 3
)

// FundamentalsSource supplies Screener ratios.
type FundamentalsSource interface {
	Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
}

// NewsSource supplies RSS headlines for a stock.
type NewsSource interface {
	StockNews(ctx context.Context, symbol, companyName string, limit int) ([]models.NewsItem, error)
}

// SymbolSearcher resolves company names to listings.
type SymbolSearcher interface {
	Search(name string) []models.Listing
}

// Toolkit implements the tools on top of the data facade.
type Toolkit struct {
	facade    *datasource.Facade
	store     *cache.Store
	screener  FundamentalsSource
	news      NewsSource
	directory SymbolSearcher
	log       zerolog.Logger
	now       func() time.Time
	maxBytes  int
}

// Option configures a Toolkit.
type Option func(*Toolkit)

// WithScreener enables Screener fundamentals in comparisons.
func WithScreener(s FundamentalsSource) Option {
	return func(k *Toolkit) { k.screener = s }
}

// WithNews enables RSS headlines in the news tool.
func WithNews(n NewsSource) Option {
	return func(k *Toolkit) { k.news = n }
}

// WithDirectory enables resolve_symbol.
func WithDirectory(d SymbolSearcher) Option {
	return func(k *Toolkit) { k.directory = d }
}

// WithLogger sets the toolkit logger.
func WithLogger(l zerolog.Logger) Option {
	return func(k *Toolkit) { k.log = l }
}

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(k *Toolkit) { k.now = now }
}

// WithMaxOutputBytes overrides DefaultMaxOutputBytes.
func WithMaxOutputBytes(n int) Option {
	return func(k *Toolkit) {
		if n > 0 {
			k.maxBytes = n
		}
	}
}

// New creates a Toolkit. Tool results share the facade's cache.
func New(facade *datasource.Facade, opts ...Option) *Toolkit {
	k := &Toolkit{
		facade:   facade,
		store:    facade.Cache(),
		log:      zerolog.Nop(),
		now:      utils.NowIST,
		maxBytes: DefaultMaxOutputBytes,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Register adds every tool to reg. resolve_symbol is only offered when a
// directory is configured.
func (k *Toolkit) Register(reg *llm.ToolRegistry) {
	for _, t := range k.buildTools() {
		reg.Register(t)
	}
}

func (k *Toolkit) buildTools() []llm.Tool {
	symbolOnly := func(desc string) *llm.JSONSchema {
		return llm.ObjectSchema(desc, map[string]*llm.JSONSchema{
			"symbol": llm.StringProp("NSE trading symbol, e.g. TCS, IRCTC, UTKARSHBNK"),
		}, "symbol")
	}

	tools := []llm.Tool{
		{
			Name: NameAnalyzeStock,
			Description: "Get a snapshot of an NSE stock. Returns symbol, name, sector, price, change, dayRange, " +
				"fiftyTwoWeekRange, position52w, vwap, peRatio, sectorPE, marketCap, volume, deliveryPercent, " +
				"ma5, ma10, ma20, rsi, trend, volatility, supports, resistances, promoterHolding, promoterTrend, " +
				"recentDividend, latestAnnouncement, fnoAvailable and indices. Missing values are \"N/A\".",
			Parameters: symbolOnly("Stock analysis parameters"),
			Handler:    k.symbolHandler(k.AnalyzeStock),
		},
		{
			Name: NameTechnical,
			Description: "Technical analysis from 90 days of prices. Returns symbol, currentPrice, movingAverages{ma5, ma10, ma20}, " +
				"rsi, rsiSignal, macd, trend, volatility, volatilityAssessment, support, resistance, " +
				"signals{buy, sell, neutral, overall}, dataPoints and a warning when history is short.",
			Parameters: symbolOnly("Technical analysis parameters"),
			Handler:    k.symbolHandler(k.Technical),
		},
		{
			Name: NameOptions,
			Description: "Option chain analysis for the nearest expiry. Returns symbol, underlyingPrice, expiryDate, pcr, sentiment, " +
				"maxPain, maxPainDistance, highestCallOI, highestPutOI, averageIV, ivAssessment, totalCallVolume and totalPutVolume. " +
				"Only F&O stocks have option chains.",
			Parameters: symbolOnly("Options analysis parameters"),
			Handler:    k.symbolHandler(k.Options),
		},
		{
			Name: NameNews,
			Description: "Recent exchange filings and press coverage for a stock. Returns symbol, latestAnnouncements, " +
				"corporateActions, upcomingMeetings, headlines and headlineSentiment.",
			Parameters: symbolOnly("News parameters"),
			Handler:    k.symbolHandler(k.News),
		},
		{
			Name: NameCompare,
			Description: "Compare two NSE stocks. Returns stock1 and stock2 metrics (price, peRatio, roe, profitMargin, " +
				"debtToEquity, dividendYield, oneYearReturn, ...), winnerByMetric, score{wins1, wins2, ties, total} and summary.",
			Parameters: llm.ObjectSchema("Comparison parameters", map[string]*llm.JSONSchema{
				"symbol1": llm.StringProp("First NSE trading symbol"),
				"symbol2": llm.StringProp("Second NSE trading symbol"),
			}, "symbol1", "symbol2"),
			Handler: k.handleCompare,
		},
	}
	if k.directory != nil {
		tools = append(tools, llm.Tool{
			Name:        NameResolveSymbol,
			Description: "Find NSE symbols for a company name. Returns query and matches[{symbol, name}], at most 10.",
			Parameters: llm.ObjectSchema("Symbol lookup parameters", map[string]*llm.JSONSchema{
				"companyName": llm.StringProp("Company name or part of it, e.g. Tata Consultancy"),
			}, "companyName"),
			Handler: k.handleResolve,
		})
	}
	return tools
}

// ── Handlers ──

func (k *Toolkit) symbolHandler(fn func(context.Context, string) string) llm.ToolHandler {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var params struct {
			Symbol string `json:"symbol"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return errorJSON("invalid arguments: " + err.Error()), nil
		}
		if params.Symbol == "" {
			return errorJSON("symbol is required"), nil
		}
		return k.capOutput(fn(ctx, params.Symbol)), nil
	}
}

func (k *Toolkit) handleCompare(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Symbol1 string `json:"symbol1"`
		Symbol2 string `json:"symbol2"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return errorJSON("invalid arguments: " + err.Error()), nil
	}
	if params.Symbol1 == "" || params.Symbol2 == "" {
		return errorJSON("symbol1 and symbol2 are required"), nil
	}
	return k.capOutput(k.Compare(ctx, params.Symbol1, params.Symbol2)), nil
}

func (k *Toolkit) handleResolve(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		CompanyName string `json:"companyName"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return errorJSON("invalid arguments: " + err.Error()), nil
	}
	return k.capOutput(k.Resolve(ctx, params.CompanyName)), nil
}

// ── Errors ──

var (
	errCompanyRequired = errors.New("companyName is required")
	errNoDirectory     = errors.New("symbol directory is not configured")
)

// LookupError ties a data failure to the symbol it concerns.
type LookupError struct {
	Symbol string
	Err    error
}

func (e *LookupError) Error() string { return e.Symbol + ": " + e.Err.Error() }

func (e *LookupError) Unwrap() error { return e.Err }

// UserMessage turns a lookup failure into the text shown to users and the model.
func UserMessage(symbol string, err error) string {
	sym := utils.NormalizeTicker(symbol)
	switch {
	case errors.Is(err, datasource.ErrNotFound):
		return fmt.Sprintf("Stock %s not found on NSE. Please check the spelling.", sym)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Sprintf("Request for %s timed out. Please try again later.", sym)
	default:
		return fmt.Sprintf("Unable to fetch data for %s right now. Please try again later.", sym)
	}
}

// ── Helpers ──

func errorJSON(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}

func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorJSON("encode result: " + err.Error())
	}
	return string(data)
}

// cached returns the payload stored under key or builds it. Only successful
// payloads are stored, so errors are retried on the next call.
func (k *Toolkit) cached(key string, class cache.Class, build func() (string, bool)) string {
	if s, ok := cache.GetAs[string](k.store, key); ok {
		return s
	}
	s, ok := build()
	if ok {
		k.store.SetClass(key, s, class)
	}
	return s
}

// capOutput truncates s on a rune boundary and marks the cut.
func (k *Toolkit) capOutput(s string) string {
	return capOutput(s, k.maxBytes)
}

func capOutput(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedMarker
}

func rupees(v float64) string { return utils.FmtRupee(utils.Positive(v)) }

func levels(prices []float64) []string {
	out := make([]string, 0, min(len(prices), maxLevelsShown))
	for _, p := range prices[:min(len(prices), maxLevelsShown)] {
		out = append(out, fmt.Sprintf("₹%.2f", p))
	}
	return out
}
