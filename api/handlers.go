package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/internal/datasource"
	"github.com/seenimoa/stockai/internal/tools"
	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

const (
	maxQueryLen      = 500
	maxSymbolLen     = 20
	maxQuoteSymbols  = 10
	newsLimit        = 10
	healthTimeout    = 5 * time.Second
	stockCachePrefix = "api:stock:"
)

// User-facing messages.
const (
	msgBadBody        = "Invalid request body"
	msgEmptyQuery     = "Query cannot be empty"
	msgLongQuery      = "Query too long"
	msgBadSymbol      = "Invalid stock symbol format"
	msgSymbolRequired = "Symbol parameter is required"
	msgTwoSymbols     = "Exactly 2 symbols required"
	msgQuoteSymbols   = "symbols must list 1 to 10 comma-separated symbols"
	msgTryLater       = "Something went wrong. Please try again later."
	msgOptionsFailed  = "Failed to fetch options data. Note: Options data may not be available for all stocks."
	msgMarketFailed   = "Failed to fetch market status. Please try again later."
	msgNewsType       = "type must be one of corporate, rss, all"
	msgSearchRequired = "Query parameter q is required"
	msgNoDirectory    = "Symbol directory is not available"
)

// QuotesData is the data of GET /quotes. Missing lists the symbols the
// exchange could not serve.
type QuotesData struct {
	Quotes  []*models.EquitySnapshot `json:"quotes"`
	Missing []string                 `json:"missing"`
}

// QueryRequest is the body of POST /ask and POST /analyze.
type QueryRequest struct {
	Query string `json:"query"`
}

// CompareRequest is the body of POST /compare.
type CompareRequest struct {
	Symbols []string `json:"symbols"`
}

// AskResponse is the body returned by POST /ask.
type AskResponse struct {
	Success        bool     `json:"success"`
	Answer         string   `json:"answer"`
	Type           string   `json:"type"`
	Symbols        []string `json:"symbols"`
	Confidence     float64  `json:"confidence"`
	Fallback       bool     `json:"fallback"`
	RequestID      string   `json:"requestId"`
	ProcessingTime int64    `json:"processingTime"` // milliseconds
}

// AnalyzeResponse is the body returned by POST /analyze.
type AnalyzeResponse struct {
	Success        bool   `json:"success"`
	Answer         string `json:"answer"`
	ProcessingTime int64  `json:"processingTime"`
}

// ComparisonData is the data of POST /compare.
type ComparisonData struct {
	Comparison     ComparedStocks    `json:"comparison"`
	WinnerByMetric map[string]string `json:"winnerByMetric"`
	Score          tools.Score       `json:"score"`
	Insight        string            `json:"insight"`
	Insights       string            `json:"insights"`
	Fallback       bool              `json:"fallback"`
	ProcessingTime int64             `json:"processingTime"`
}

// ComparedStocks holds the two metric columns of a comparison.
type ComparedStocks struct {
	Stock1 tools.StockMetrics `json:"stock1"`
	Stock2 tools.StockMetrics `json:"stock2"`
}

// StockData is the data of GET /stock/{symbol}.
type StockData struct {
	Equity    *models.EquitySnapshot   `json:"equity"`
	Trade     *models.TradeInfo        `json:"trade"`
	Corporate *models.CorporateProfile `json:"corporate"`
}

// NewsData is the data of GET /news.
type NewsData struct {
	Symbol           string                   `json:"symbol,omitempty"`
	Announcements    []models.Announcement    `json:"announcements,omitempty"`
	CorporateActions []models.CorporateAction `json:"corporateActions,omitempty"`
	Meetings         []models.BoardMeeting    `json:"meetings,omitempty"`
	FinancialResults []models.FinancialResult `json:"financialResults,omitempty"`
	Headlines        []models.NewsItem        `json:"headlines,omitempty"`
}

// HealthData is the data of GET /health.
type HealthData struct {
	Status        string `json:"status"`
	MarketStatus  string `json:"marketStatus"`
	CacheEntries  int    `json:"cacheEntries"`
	Version       string `json:"version"`
	TimeIST       string `json:"timeIST"`
	DirectorySize int    `json:"directorySize,omitempty"`
}

// ── Question answering ──

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	query, msg := decodeQuery(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	res := s.orch.Process(r.Context(), query)
	writeJSON(w, http.StatusOK, AskResponse{
		Success:        true,
		Answer:         res.Answer,
		Type:           string(res.Type),
		Symbols:        res.Symbols,
		Confidence:     res.Confidence,
		Fallback:       res.Fallback,
		RequestID:      res.RequestID,
		ProcessingTime: res.Duration.Milliseconds(),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	query, msg := decodeQuery(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	res := s.orch.Analyze(r.Context(), query)
	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Success:        true,
		Answer:         res.Answer,
		ProcessingTime: res.Duration.Milliseconds(),
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	if len(req.Symbols) != 2 {
		writeError(w, http.StatusBadRequest, msgTwoSymbols)
		return
	}
	syms := make([]string, 2)
	for i, raw := range req.Symbols {
		sym, ok := parseSymbol(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, msgBadSymbol)
			return
		}
		syms[i] = sym
	}

	out, err := s.orch.Compare(r.Context(), syms[0], syms[1])
	if err != nil {
		s.writeLookupError(w, r, err, msgTryLater)
		return
	}

	c := out.Comparison
	writeData(w, ComparisonData{
		Comparison:     ComparedStocks{Stock1: c.Stock1, Stock2: c.Stock2},
		WinnerByMetric: c.WinnerByMetric,
		Score:          c.Score,
		Insight:        out.Insight,
		Insights:       out.Narrative,
		Fallback:       out.Fallback,
		ProcessingTime: out.Duration.Milliseconds(),
	}, false)
}

// ── Market data ──

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	sym, ok := parseSymbol(chi.URLParam(r, "symbol"))
	if !ok {
		writeError(w, http.StatusBadRequest, msgBadSymbol)
		return
	}

	store := s.facade.Cache()
	key := stockCachePrefix + sym
	if data, ok := cache.GetAs[*StockData](store, key); ok {
		writeData(w, data, true)
		return
	}

	data := &StockData{}
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		snap, err := s.facade.EquitySnapshot(ctx, sym)
		if err != nil {
			return err
		}
		data.Equity = snap
		return nil
	})
	g.Go(func() error {
		if trade, err := s.facade.TradeInfo(ctx, sym); err == nil {
			data.Trade = trade
		}
		return nil
	})
	g.Go(func() error {
		if corp, err := s.facade.CorporateProfile(ctx, sym); err == nil {
			data.Corporate = corp
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Warn().Err(err).Str("symbol", sym).Msg("stock snapshot failed")
		s.writeLookupError(w, r, &tools.LookupError{Symbol: sym, Err: err}, msgTryLater)
		return
	}

	store.SetClass(key, data, cache.Details)
	writeData(w, data, false)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbol")
	if strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, msgSymbolRequired)
		return
	}
	sym, ok := parseSymbol(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, msgBadSymbol)
		return
	}

	_, cached := s.facade.Cache().Get(datasource.OptionsKey(sym))
	summary, err := s.toolkit.OptionsSummary(r.Context(), sym)
	switch {
	case errors.Is(err, datasource.ErrNotFound):
		writeError(w, http.StatusNotFound, tools.OptionsError(sym, err))
		return
	case err != nil:
		s.writeLookupError(w, r, err, msgOptionsFailed)
		return
	}
	writeData(w, tools.FormatOptions(summary), cached)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	var syms []string
	seen := make(map[string]bool)
	for _, raw := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		sym, ok := parseSymbol(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, msgBadSymbol)
			return
		}
		if !seen[sym] {
			seen[sym] = true
			syms = append(syms, sym)
		}
	}
	if len(syms) == 0 || len(syms) > maxQuoteSymbols {
		writeError(w, http.StatusBadRequest, msgQuoteSymbols)
		return
	}

	quotes := s.facade.GetMultiple(r.Context(), syms)
	data := QuotesData{Quotes: quotes, Missing: []string{}}
	found := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		found[q.Symbol] = true
	}
	for _, sym := range syms {
		if !found[sym] {
			data.Missing = append(data.Missing, sym)
		}
	}
	writeData(w, data, false)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	_, cached := s.facade.Cache().Get(datasource.MarketStatusKey)
	status, err := s.facade.MarketStatus(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("market status failed")
		writeError(w, http.StatusInternalServerError, msgMarketFailed)
		return
	}
	writeData(w, status, cached)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := strings.ToLower(strings.TrimSpace(q.Get("type")))
	if kind == "" {
		kind = "all"
	}
	if kind != "corporate" && kind != "rss" && kind != "all" {
		writeError(w, http.StatusBadRequest, msgNewsType)
		return
	}

	var sym string
	if raw := strings.TrimSpace(q.Get("symbol")); raw != "" {
		var ok bool
		if sym, ok = parseSymbol(raw); !ok {
			writeError(w, http.StatusBadRequest, msgBadSymbol)
			return
		}
	} else if kind != "rss" {
		writeError(w, http.StatusBadRequest, msgSymbolRequired)
		return
	}

	ctx := r.Context()
	data := &NewsData{Symbol: sym}
	if kind != "rss" {
		corp, err := s.facade.CorporateProfile(ctx, sym)
		switch {
		case err == nil:
			data.Announcements = corp.Announcements
			data.CorporateActions = corp.Actions
			data.Meetings = corp.BoardMeetings
			data.FinancialResults = corp.Results
		case kind == "corporate" || errors.Is(err, datasource.ErrNotFound):
			s.writeLookupError(w, r, &tools.LookupError{Symbol: sym, Err: err}, msgTryLater)
			return
		default:
			s.log.Warn().Err(err).Str("symbol", sym).Msg("corporate news unavailable")
		}
	}
	if kind != "corporate" && s.news != nil {
		data.Headlines = s.headlines(ctx, sym)
	}
	writeData(w, data, false)
}

// headlines returns RSS items for sym, or market-wide items when sym is
// empty. Feed errors yield no items.
func (s *Server) headlines(ctx context.Context, sym string) []models.NewsItem {
	var (
		items []models.NewsItem
		err   error
	)
	if sym == "" {
		items, err = s.news.MarketNews(ctx, newsLimit)
	} else {
		var company string
		if snap, serr := s.facade.EquitySnapshot(ctx, sym); serr == nil {
			company = snap.CompanyName
		}
		items, err = s.news.StockNews(ctx, sym, company, newsLimit)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", sym).Msg("rss news unavailable")
		return nil
	}
	return items
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, msgSearchRequired)
		return
	}
	matches, err := s.toolkit.ResolveMatches(q)
	if err != nil {
		s.log.Error().Err(err).Msg("symbol search failed")
		writeError(w, http.StatusInternalServerError, msgNoDirectory)
		return
	}
	writeData(w, matches, false)
}

// ── Health ──

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := utils.NowIST()
	data := HealthData{
		Status:       "ok",
		MarketStatus: utils.SessionAt(now),
		Version:      s.version,
		TimeIST:      now.Format(time.RFC3339),
	}
	if s.facade != nil {
		data.CacheEntries = s.facade.Cache().Len()

		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if ms, err := s.facade.MarketStatus(ctx); err == nil && len(ms.Markets) > 0 {
			data.MarketStatus = ms.Markets[0].Status
		}
	}
	if s.dir != nil {
		data.DirectorySize = s.dir.Len()
	}
	writeData(w, data, false)
}

// ── Helpers ──

// decodeQuery returns the trimmed query or a user-facing error message.
func decodeQuery(r *http.Request) (string, string) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", msgBadBody
	}
	q := strings.TrimSpace(req.Query)
	switch {
	case q == "":
		return "", msgEmptyQuery
	case utf8.RuneCountInString(q) > maxQueryLen:
		return "", msgLongQuery
	}
	return q, ""
}

// parseSymbol upper-cases and validates a path or query symbol.
func parseSymbol(raw string) (string, bool) {
	sym := strings.ToUpper(strings.TrimSpace(raw))
	if sym == "" || len(sym) > maxSymbolLen || utils.ValidateSymbol(sym) != nil {
		return "", false
	}
	return sym, true
}

// writeLookupError maps data errors to 404 or a generic 500.
func (s *Server) writeLookupError(w http.ResponseWriter, r *http.Request, err error, generic string) {
	var le *tools.LookupError
	switch {
	case errors.Is(err, tools.ErrSameSymbol):
		writeError(w, http.StatusBadRequest, "Please provide two different symbols")
	case errors.Is(err, datasource.ErrNotFound):
		sym := ""
		if errors.As(err, &le) {
			sym = le.Symbol
		}
		writeError(w, http.StatusNotFound, fmt.Sprintf("Stock %s not found on NSE", sym))
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, generic)
	}
}
