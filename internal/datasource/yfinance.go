package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// HistorySource supplies daily candles. The Facade consults one as a
// fallback when the exchange history endpoint keeps failing.
type HistorySource interface {
	History(ctx context.Context, symbol string, from, to time.Time) (models.PriceHistory, error)
}

// YahooHistory reads daily candles for NSE listings (SYMBOL.NS) from the
// Yahoo Finance chart API.
type YahooHistory struct {
	baseURL string
	client  *http.Client
}

// NewYahooHistory creates the fallback history source. An empty baseURL
// uses the public endpoint.
func NewYahooHistory(baseURL string, timeout time.Duration) *YahooHistory {
	if baseURL == "" {
		baseURL = yahooChartURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &YahooHistory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// --- Yahoo Finance v8 chart types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfIndicators struct {
	Quote []yfOHLCV `json:"quote"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// History returns daily candles between from and to, oldest first as Yahoo
// sends them.
func (y *YahooHistory) History(ctx context.Context, symbol string, from, to time.Time) (models.PriceHistory, error) {
	ticker := yahooTicker(symbol)
	q := url.Values{
		"period1":  {fmt.Sprint(from.Unix())},
		"period2":  {fmt.Sprint(to.Unix())},
		"interval": {"1d"},
	}
	u := fmt.Sprintf("%s/%s?%s", y.baseURL, url.PathEscape(ticker), q.Encode())

	body, err := doGet(ctx, y.client, DefaultUserAgent, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	defer body.Close()

	var resp yfChartResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse yahoo chart: %w", err)
	}
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("yahoo chart %s: %w", ticker, ErrNotFound)
		}
		return nil, fmt.Errorf("yahoo chart %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, ErrNotFound)
	}
	return parseYFCandles(resp.Chart.Result[0]), nil
}

// --- Helpers ---

// yahooTicker maps an NSE symbol to Yahoo's form, e.g. TCS → TCS.NS.
func yahooTicker(symbol string) string {
	sym := utils.NormalizeTicker(symbol)
	switch sym {
	case "NIFTY":
		return "^NSEI"
	case "BANKNIFTY":
		return "^NSEBANK"
	}
	return sym + ".NS"
}

// parseYFCandles zips the column arrays into candles, skipping rows
// without a close.
func parseYFCandles(result yfChartResult) models.PriceHistory {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	q := result.Indicators.Quote[0]
	at := func(col []*float64, i int) float64 {
		if i < len(col) && col[i] != nil {
			return *col[i]
		}
		return 0
	}

	candles := make(models.PriceHistory, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		c := models.OHLCV{
			Date:  time.Unix(ts, 0).In(utils.IST),
			Open:  at(q.Open, i),
			High:  at(q.High, i),
			Low:   at(q.Low, i),
			Close: *q.Close[i],
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		candles = append(candles, c)
	}
	return candles
}
