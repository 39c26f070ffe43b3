package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/guregu/null/v6"
	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/internal/retry"
	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

const screenerBaseURL = "https://www.screener.in"

// Screener scrapes headline ratios from Screener.in company pages.
type Screener struct {
	baseURL   string
	userAgent string
	client    *http.Client
	cache     *cache.Store
	policy    retry.Policy
	log       zerolog.Logger
}

// NewScreener creates a Screener.in scraper sharing the given cache.
// An empty baseURL uses the public site.
func NewScreener(store *cache.Store, baseURL string, timeout time.Duration, log zerolog.Logger) *Screener {
	if baseURL == "" {
		baseURL = screenerBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Screener{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: DefaultUserAgent,
		client:    &http.Client{Timeout: timeout},
		cache:     store,
		policy: retry.Policy{
			MaxAttempts: 2,
			Delay:       500 * time.Millisecond,
			Retryable:   func(err error) bool { return !errors.Is(err, ErrNotFound) },
		},
		log: log,
	}
}

// Fundamentals returns P/E, ROE, ROCE, book value, dividend yield, market cap,
// debt-to-equity and net margin for symbol.
func (s *Screener) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	sym, err := checkSymbol(symbol)
	if err != nil {
		return nil, err
	}

	key := "fundamentals:" + sym
	if f, ok := cache.GetAs[*models.Fundamentals](s.cache, key); ok {
		return f, nil
	}

	doc, _, err := retry.Do(ctx, s.policy, func(ctx context.Context) (*goquery.Document, error) {
		return s.fetchPage(ctx, sym)
	})
	if err != nil {
		return nil, err
	}

	f := parseFundamentals(sym, doc)
	s.cache.SetClass(key, f, cache.Corporate)
	return f, nil
}

// --- Internal helpers ---

// fetchPage downloads the consolidated page, falling back to standalone.
func (s *Screener) fetchPage(ctx context.Context, symbol string) (*goquery.Document, error) {
	headers := map[string]string{"Accept": "text/html"}

	url := fmt.Sprintf("%s/company/%s/consolidated/", s.baseURL, symbol)
	body, err := doGet(ctx, s.client, s.userAgent, url, headers)
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", symbol).Msg("consolidated page unavailable, trying standalone")
		url = fmt.Sprintf("%s/company/%s/", s.baseURL, symbol)
		body, err = doGet(ctx, s.client, s.userAgent, url, headers)
		if err != nil {
			return nil, fmt.Errorf("screener.in %s: %w", symbol, err)
		}
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse screener HTML: %w", err)
	}
	return doc, nil
}

// parseFundamentals reads the #top-ratios list and the profit-and-loss table.
func parseFundamentals(symbol string, doc *goquery.Document) *models.Fundamentals {
	f := &models.Fundamentals{Symbol: symbol}

	doc.Find("#top-ratios li").Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Find(".name").Text())
		val := parseScreenerNumber(sel.Find(".number").First().Text())

		switch {
		case strings.Contains(name, "Market Cap"):
			f.MarketCapCr = val
		case strings.Contains(name, "Stock P/E"):
			f.PE = val
		case strings.Contains(name, "Book Value"):
			f.BookValue = val
		case strings.Contains(name, "Dividend Yield"):
			f.DividendYield = val
		case strings.Contains(name, "ROCE"):
			f.ROCE = val
		case strings.Contains(name, "ROE"):
			f.ROE = val
		case strings.Contains(name, "Debt to equity"):
			f.DebtToEquity = val
		case strings.Contains(name, "EPS"):
			f.EPS = val
		}
	})

	sales, profit := lastColumn(doc, "#profit-loss", "Sales"), lastColumn(doc, "#profit-loss", "Net Profit")
	if !sales.Valid {
		sales = lastColumn(doc, "#profit-loss", "Revenue")
	}
	if sales.Valid && profit.Valid && sales.Float64 != 0 {
		f.NetMargin = null.FloatFrom(profit.Float64 / sales.Float64 * 100)
	}
	return f
}

// lastColumn returns the right-most value of the row whose label starts with
// label in the given section's table.
func lastColumn(doc *goquery.Document, sectionID, label string) null.Float {
	var out null.Float
	doc.Find(sectionID + " table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		name := strings.TrimSpace(row.Find("td").First().Text())
		if !strings.HasPrefix(name, label) {
			return true
		}
		out = parseScreenerNumber(row.Find("td").Last().Text())
		return false
	})
	return out
}

// parseScreenerNumber parses a number in Screener.in format. Commas,
// percent signs, rupee signs and Cr suffixes are stripped; the value keeps
// the unit the page shows it in.
func parseScreenerNumber(s string) null.Float {
	s = strings.NewReplacer(",", "", "%", "", "₹", "", "\u00a0", " ").Replace(s)
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "Cr.")
	s = strings.TrimSuffix(s, "Cr")
	s = strings.TrimSpace(s)
	if s == "" {
		return null.Float{}
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return null.Float{}
	}
	return utils.Finite(val)
}
