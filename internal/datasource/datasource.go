// Package datasource provides access to NSE India market data, Screener.in
// fundamentals, RSS news and the exchange symbol directory. The Facade wraps
// the exchange client with retry, caching and symbol validation.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seenimoa/stockai/pkg/models"
)

// Upstream is the exchange client the Facade wraps. Implementations return
// ErrNotFound for unknown symbols and any other error for transient failures.
type Upstream interface {
	Equity(ctx context.Context, symbol string) (*models.EquitySnapshot, error)
	TradeInfo(ctx context.Context, symbol string) (*models.TradeInfo, error)
	Corporate(ctx context.Context, symbol string) (*models.CorporateProfile, error)
	History(ctx context.Context, symbol string, from, to time.Time) (models.PriceHistory, error)
	OptionChain(ctx context.Context, symbol string) (*models.OptionChain, error)
	MarketStatus(ctx context.Context) (*models.MarketStatus, error)
}

// --- Sentinel errors ---

// ErrNotFound is returned when the exchange does not know a symbol. It is
// never retried.
var ErrNotFound = errors.New("symbol not found")

// ErrUpstream marks failures of the upstream provider after retries.
var ErrUpstream = errors.New("upstream data unavailable")

// ErrRateLimited is returned when a source answers HTTP 429. It is retried.
var ErrRateLimited = errors.New("rate limited by data source")

// UpstreamError describes an upstream call that failed on every attempt.
type UpstreamError struct {
	Op       string
	Symbol   string
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Op, e.Symbol, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUpstream) match any UpstreamError.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// DefaultTimeout bounds every upstream HTTP request.
const DefaultTimeout = 10 * time.Second

// doGet performs a GET request with the given URL and headers, returning the
// response body. The caller closes it. 404 maps to ErrNotFound and 429 to
// ErrRateLimited.
func doGet(ctx context.Context, client *http.Client, userAgent, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if err := statusError(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// statusError converts a failed response into a typed error. The body is
// read but not closed.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
	return nil
}
