package agent

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/agent/prompts"
	"github.com/seenimoa/stockai/internal/llm"
	"github.com/seenimoa/stockai/pkg/utils"
)

// QueryType is the route a query takes through the orchestrator.
type QueryType string

const (
	TypeStockAnalysis QueryType = "stock_analysis"
	TypeComparison    QueryType = "comparison"
	TypeGeneral       QueryType = "general"
)

// Extraction methods reported in ClassifiedQuery.Method.
const (
	MethodLLM   = "llm"
	MethodRegex = "regex"
)

const (
	minSymbolLen = 2
	maxSymbolLen = 10

	extractionTimeout = 15 * time.Second
)

// ClassifiedQuery is the routing decision for one query.
type ClassifiedQuery struct {
	Type       QueryType `json:"type"`
	Symbols    []string  `json:"symbols"`
	Comparison bool      `json:"comparison"`
	Method     string    `json:"method"`
}

// SymbolChecker reports whether a symbol is a known listing.
type SymbolChecker interface {
	Has(symbol string) bool
}

var (
	comparisonPattern = regexp.MustCompile(`VS|VERSUS|COMPARE`)
	tokenPattern      = regexp.MustCompile(`[A-Za-z0-9&-]+`)
)

// stopWords are uppercase words that look like tickers in a query.
var stopWords = map[string]bool{
	"ANALYZE": true, "ANALYSE": true, "ANALYSIS": true, "COMPARE": true,
	"VS": true, "VERSUS": true, "STOCK": true, "STOCKS": true, "SHARE": true,
	"SHARES": true, "PRICE": true, "NSE": true, "BSE": true, "AND": true,
	"THE": true, "FOR": true, "WITH": true, "WHAT": true, "HOW": true,
	"IS": true, "OF": true, "BUY": true, "SELL": true, "HOLD": true,
	"SHOULD": true, "TODAY": true, "NONE": true, "RSI": true, "IPO": true,
}

// Classifier extracts symbols from a query and picks its route.
type Classifier struct {
	provider llm.Provider
	known    SymbolChecker
	log      zerolog.Logger
}

// NewClassifier creates a classifier. provider may be nil, in which case
// extraction is always regex-based. known may be nil; the well-known
// sector lists are consulted either way.
func NewClassifier(provider llm.Provider, known SymbolChecker, log zerolog.Logger) *Classifier {
	return &Classifier{provider: provider, known: known, log: log}
}

// Classify extracts symbols and routes the query.
func (c *Classifier) Classify(ctx context.Context, query string) ClassifiedQuery {
	symbols, method := c.extract(ctx, query)
	q := ClassifiedQuery{
		Symbols:    symbols,
		Comparison: comparisonPattern.MatchString(strings.ToUpper(query)),
		Method:     method,
	}

	switch {
	case len(symbols) >= 2 && q.Comparison:
		q.Type = TypeComparison
		q.Symbols = symbols[:2]
	case len(symbols) >= 1:
		q.Type = TypeStockAnalysis
		q.Symbols = symbols[:1]
	default:
		q.Type = TypeGeneral
	}
	return q
}

func (c *Classifier) extract(ctx context.Context, query string) ([]string, string) {
	if c.provider != nil {
		syms, err := c.extractLLM(ctx, query)
		if err == nil {
			return syms, MethodLLM
		}
		c.log.Warn().Err(err).Msg("symbol extraction by model failed; using pattern match")
	}
	return c.extractRegex(query), MethodRegex
}

func (c *Classifier) extractLLM(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	answer, err := llm.Complete(ctx, c.provider, "", prompts.SymbolExtraction(query), &llm.ChatOptions{
		Temperature: 0,
		MaxTokens:   50,
	})
	if err != nil {
		return nil, err
	}

	var candidates []string
	for _, part := range strings.Split(firstLine(answer), ",") {
		sym := utils.NormalizeTicker(strings.Trim(part, " \t.\"'`*"))
		if stopWords[sym] {
			continue
		}
		candidates = append(candidates, sym)
	}
	return filterSymbols(candidates), nil
}

func (c *Classifier) extractRegex(query string) []string {
	var candidates []string
	for _, tok := range tokenPattern.FindAllString(query, -1) {
		upper := strings.ToUpper(tok)
		if stopWords[upper] {
			continue
		}
		sym := utils.NormalizeTicker(upper)
		if (tok == upper && hasLetter(tok)) || c.isKnown(sym) {
			candidates = append(candidates, sym)
		}
	}
	return filterSymbols(candidates)
}

func (c *Classifier) isKnown(sym string) bool {
	if prompts.IsWellKnown(sym) {
		return true
	}
	return c.known != nil && c.known.Has(sym)
}

// ── Helpers ──

// filterSymbols keeps valid symbols of 2 to 10 chars, first occurrence wins.
func filterSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if len(s) < minSymbolLen || len(s) > maxSymbolLen || seen[s] {
			continue
		}
		if utils.ValidateSymbol(s) != nil {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func hasLetter(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' {
			return true
		}
	}
	return false
}
