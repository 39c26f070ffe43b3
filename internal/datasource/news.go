package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/pkg/models"
)

// NewsSource is one RSS feed.
type NewsSource struct {
	Name   string
	RSSURL string
}

// DefaultNewsSources lists the Indian market RSS feeds read by default.
var DefaultNewsSources = []NewsSource{
	{Name: "Moneycontrol", RSSURL: "https://www.moneycontrol.com/rss/marketreports.xml"},
	{Name: "Economic Times Markets", RSSURL: "https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms"},
	{Name: "LiveMint Markets", RSSURL: "https://www.livemint.com/rss/markets"},
}

// SourcesFromURLs names each feed after its host.
func SourcesFromURLs(urls []string) []NewsSource {
	out := make([]NewsSource, 0, len(urls))
	for _, raw := range urls {
		name := raw
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			name = strings.TrimPrefix(u.Host, "www.")
		}
		out = append(out, NewsSource{Name: name, RSSURL: raw})
	}
	return out
}

// NewsReader reads headlines from RSS feeds and filters them per stock.
type NewsReader struct {
	sources []NewsSource
	cache   *cache.Store
	parser  *gofeed.Parser
	log     zerolog.Logger
}

// NewNewsReader creates a reader over the given sources. Nil sources use
// DefaultNewsSources.
func NewNewsReader(store *cache.Store, sources []NewsSource, timeout time.Duration, log zerolog.Logger) *NewsReader {
	if len(sources) == 0 {
		sources = DefaultNewsSources
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: timeout}
	p.UserAgent = DefaultUserAgent
	return &NewsReader{sources: sources, cache: store, parser: p, log: log}
}

// MarketNews returns recent headlines from every feed, newest first.
// Feeds that fail are skipped; an error is returned only when all fail.
func (n *NewsReader) MarketNews(ctx context.Context, limit int) ([]models.NewsItem, error) {
	all, ok := cache.GetAs[[]models.NewsItem](n.cache, "news:market")
	if !ok {
		var err error
		all, err = n.fetchAll(ctx)
		if err != nil {
			return nil, err
		}
		n.cache.SetClass("news:market", all, cache.Details)
	}
	return capItems(all, limit), nil
}

// StockNews returns headlines mentioning the symbol or company name.
func (n *NewsReader) StockNews(ctx context.Context, symbol, companyName string, limit int) ([]models.NewsItem, error) {
	sym, err := checkSymbol(symbol)
	if err != nil {
		return nil, err
	}

	key := "news:" + sym
	if items, ok := cache.GetAs[[]models.NewsItem](n.cache, key); ok {
		return capItems(items, limit), nil
	}

	all, err := n.MarketNews(ctx, 0)
	if err != nil {
		return nil, err
	}

	keywords := tickerKeywords(sym, companyName)
	filtered := make([]models.NewsItem, 0)
	for _, a := range all {
		if matchesAny(a.Title+" "+a.Summary, keywords) {
			filtered = append(filtered, a)
		}
	}

	n.cache.SetClass(key, filtered, cache.Corporate)
	return capItems(filtered, limit), nil
}

// --- Internal helpers ---

func (n *NewsReader) fetchAll(ctx context.Context) ([]models.NewsItem, error) {
	var (
		mu     sync.Mutex
		all    []models.NewsItem
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range n.sources {
		g.Go(func() error {
			items, err := n.fetchRSS(gctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				n.log.Warn().Err(err).Str("feed", src.Name).Msg("news feed unavailable")
				return nil
			}
			all = append(all, items...)
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(n.sources) {
		return nil, fmt.Errorf("all %d news feeds failed: %w", failed, ErrUpstream)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Published.After(all[j].Published) })
	return all, nil
}

// fetchRSS parses an RSS feed and returns its items.
func (n *NewsReader) fetchRSS(ctx context.Context, src NewsSource) ([]models.NewsItem, error) {
	feed, err := n.parser.ParseURLWithContext(src.RSSURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", src.Name, err)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		a := models.NewsItem{
			Title:   strings.TrimSpace(it.Title),
			Link:    it.Link,
			Source:  src.Name,
			Summary: cleanHTML(it.Description),
		}
		if it.PublishedParsed != nil {
			a.Published = *it.PublishedParsed
		}
		items = append(items, a)
	}
	return items, nil
}

func capItems(items []models.NewsItem, limit int) []models.NewsItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// Well-known names for large caps, beyond the ticker itself.
var tickerNames = map[string][]string{
	"reliance":   {"reliance industries", "ril"},
	"tcs":        {"tata consultancy"},
	"hdfcbank":   {"hdfc bank"},
	"infy":       {"infosys"},
	"icicibank":  {"icici bank"},
	"hindunilvr": {"hindustan unilever", "hul"},
	"sbin":       {"sbi", "state bank"},
	"bhartiartl": {"bharti airtel", "airtel"},
	"kotakbank":  {"kotak mahindra", "kotak bank"},
	"lt":         {"larsen", "l&t"},
	"bajfinance": {"bajaj finance"},
	"axisbank":   {"axis bank"},
	"maruti":     {"maruti suzuki"},
	"tatamotors": {"tata motors"},
	"tatasteel":  {"tata steel"},
	"hcltech":    {"hcl tech", "hcl technologies"},
	"asianpaint": {"asian paints"},
	"sunpharma":  {"sun pharma", "sun pharmaceutical"},
	"ongc":       {"oil and natural gas"},
	"irctc":      {"indian railway catering"},
}

// tickerKeywords returns lower-case search keywords for a ticker and its
// company name, e.g. "TCS" → ["tcs", "tata consultancy", "tata consultancy services"].
func tickerKeywords(ticker, companyName string) []string {
	t := strings.ToLower(ticker)
	keywords := []string{t}
	keywords = append(keywords, tickerNames[t]...)

	if name := normalizeName(companyName); name != "" {
		name = strings.TrimSpace(strings.TrimSuffix(name, " ltd"))
		if name != "" && name != t {
			keywords = append(keywords, name)
		}
	}
	return keywords
}

// matchesAny reports whether text mentions any keyword. Single-word
// keywords must match a whole word so short tickers do not hit substrings.
func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	}) {
		words[w] = struct{}{}
	}

	for _, kw := range keywords {
		if strings.ContainsRune(kw, ' ') {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		if _, ok := words[kw]; ok {
			return true
		}
	}
	return false
}
