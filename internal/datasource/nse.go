package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

const (
	nseBaseURL   = "https://www.nseindia.com"
	nseCookieTTL = 5 * time.Minute

	// nseHistoryChunk is the widest range the history endpoint answers in one call.
	nseHistoryChunk = 90 * 24 * time.Hour
)

// NSE scrapes the public JSON API behind nseindia.com. The API requires
// session cookies, so the homepage is visited before the first call and
// again every few minutes.
type NSE struct {
	baseURL   string
	userAgent string
	client    *http.Client
	log       zerolog.Logger

	mu           sync.Mutex
	cookieExpiry time.Time
}

// NSEOption configures the NSE client.
type NSEOption func(*NSE)

// WithBaseURL points the client at another host (tests).
func WithBaseURL(u string) NSEOption {
	return func(n *NSE) { n.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPTimeout sets the per-request timeout.
func WithHTTPTimeout(d time.Duration) NSEOption {
	return func(n *NSE) {
		if d > 0 {
			n.client.Timeout = d
		}
	}
}

// WithUserAgent overrides the browser user agent.
func WithUserAgent(ua string) NSEOption {
	return func(n *NSE) {
		if ua != "" {
			n.userAgent = ua
		}
	}
}

// WithNSELogger sets the client logger.
func WithNSELogger(l zerolog.Logger) NSEOption {
	return func(n *NSE) { n.log = l }
}

// NewNSE creates a new NSE India client.
func NewNSE(opts ...NSEOption) *NSE {
	jar, _ := cookiejar.New(nil)
	n := &NSE{
		baseURL:   nseBaseURL,
		userAgent: DefaultUserAgent,
		client: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// --- NSE JSON response types ---

// nseNum accepts numbers, numeric strings ("1,234.5", "12.3%") and blanks
// such as "-" or "", which decode as absent.
type nseNum struct {
	v  float64
	ok bool
}

func (n *nseNum) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.NewReplacer(",", "", "%", "", "₹", "").Replace(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.v, n.ok = v, true
	return nil
}

// Float converts to an optional number, dropping non-finite values.
func (n nseNum) Float() null.Float {
	if !n.ok {
		return null.Float{}
	}
	return utils.Finite(n.v)
}

type nseQuoteResponse struct {
	Info         nseStockInfo    `json:"info"`
	Metadata     nseMetadata     `json:"metadata"`
	SecurityInfo nseSecurityInfo `json:"securityInfo"`
	PriceInfo    nsePriceInfo    `json:"priceInfo"`
}

type nseStockInfo struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Industry    string `json:"industry"`
	IsFNOSec    bool   `json:"isFNOSec"`
	ListingDate string `json:"listingDate"`
}

type nseMetadata struct {
	Series      string `json:"series"`
	Status      string `json:"status"`
	ListingDate string `json:"listingDate"`
	Industry    string `json:"industry"`
	PDSymbolPE  nseNum `json:"pdSymbolPe"`
	PDSectorPE  nseNum `json:"pdSectorPe"`
	PDSectorInd string `json:"pdSectorInd"`
}

type nseSecurityInfo struct {
	FaceValue nseNum `json:"faceValue"`
}

type nsePriceInfo struct {
	LastPrice       nseNum     `json:"lastPrice"`
	Change          nseNum     `json:"change"`
	PChange         nseNum     `json:"pChange"`
	PreviousClose   nseNum     `json:"previousClose"`
	Open            nseNum     `json:"open"`
	VWAP            nseNum     `json:"vwap"`
	IntraDayHighLow nseHighLow `json:"intraDayHighLow"`
	WeekHighLow     nseHighLow `json:"weekHighLow"`
}

type nseHighLow struct {
	Min     nseNum `json:"min"`
	MinDate string `json:"minDate"`
	Max     nseNum `json:"max"`
	MaxDate string `json:"maxDate"`
}

type nseTradeInfoResponse struct {
	MarketDeptOrderBook *struct {
		TradeInfo struct {
			TotalTradedVolume nseNum `json:"totalTradedVolume"`
			TotalTradedValue  nseNum `json:"totalTradedValue"`
			TotalMarketCap    nseNum `json:"totalMarketCap"`
		} `json:"tradeInfo"`
	} `json:"marketDeptOrderBook"`
	SecurityWiseDP *struct {
		DeliveryToTradedQuantity nseNum `json:"deliveryToTradedQuantity"`
	} `json:"securityWiseDP"`
}

type nseCorporateResponse struct {
	LatestAnnouncements struct {
		Data []struct {
			Subject       string `json:"subject"`
			Desc          string `json:"desc"`
			BroadcastDate string `json:"broadcastdate"`
			AnDate        string `json:"an_dt"`
		} `json:"data"`
	} `json:"latest_announcements"`
	CorporateActions struct {
		Data []struct {
			ExDate  string `json:"exdate"`
			Purpose string `json:"purpose"`
		} `json:"data"`
	} `json:"corporate_actions"`
	ShareholdingsPatterns struct {
		Data map[string][]map[string]nseNum `json:"data"`
	} `json:"shareholdings_patterns"`
	FinancialResults struct {
		Data []struct {
			ToDate       string `json:"to_date"`
			Income       nseNum `json:"income"`
			ProLossAfTax nseNum `json:"proLossAftTax"`
			ReDilEPS     nseNum `json:"reDilEPS"`
		} `json:"data"`
	} `json:"financial_results"`
	// The exchange spells this key "borad_meeting"; both spellings are read.
	BoradMeeting nseMeetings `json:"borad_meeting"`
	BoardMeeting nseMeetings `json:"board_meeting"`
}

type nseMeetings struct {
	Data []struct {
		Purpose     string `json:"purpose"`
		MeetingDate string `json:"meetingdate"`
	} `json:"data"`
}

// nseHistEntry represents a single historical data row from NSE.
type nseHistEntry struct {
	Timestamp  string `json:"CH_TIMESTAMP"`
	MTimestamp string `json:"mTIMESTAMP"`
	Open       nseNum `json:"CH_OPENING_PRICE"`
	High       nseNum `json:"CH_TRADE_HIGH_PRICE"`
	Low        nseNum `json:"CH_TRADE_LOW_PRICE"`
	Close      nseNum `json:"CH_CLOSING_PRICE"`
	Volume     nseNum `json:"CH_TOT_TRADED_QTY"`
}

type nseMarketStatusResponse struct {
	MarketState []struct {
		Market        string `json:"market"`
		MarketStatus  string `json:"marketStatus"`
		TradeDate     string `json:"tradeDate"`
		Index         string `json:"index"`
		Last          nseNum `json:"last"`
		Variation     nseNum `json:"variation"`
		PercentChange nseNum `json:"percentChange"`
		Message       string `json:"marketStatusMessage"`
	} `json:"marketState"`
}

// --- Upstream implementation ---

// Equity returns the quote snapshot. An empty info block means the symbol
// is unknown.
func (n *NSE) Equity(ctx context.Context, symbol string) (*models.EquitySnapshot, error) {
	var resp nseQuoteResponse
	if err := n.getJSON(ctx, "/api/quote-equity", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return nil, fmt.Errorf("NSE quote %s: %w", symbol, err)
	}
	if resp.Info.Symbol == "" || !resp.PriceInfo.LastPrice.ok {
		return nil, fmt.Errorf("NSE quote %s: %w", symbol, ErrNotFound)
	}

	industry := resp.Metadata.Industry
	if industry == "" {
		industry = resp.Info.Industry
	}
	listing := resp.Info.ListingDate
	if listing == "" {
		listing = resp.Metadata.ListingDate
	}
	p := resp.PriceInfo

	return &models.EquitySnapshot{
		Symbol:         resp.Info.Symbol,
		CompanyName:    resp.Info.CompanyName,
		Industry:       industry,
		SectorIndex:    resp.Metadata.PDSectorInd,
		Series:         resp.Metadata.Series,
		ListingDate:    listing,
		IsFNO:          resp.Info.IsFNOSec,
		LastPrice:      p.LastPrice.v,
		Change:         p.Change.Float(),
		PChange:        p.PChange.Float(),
		PreviousClose:  p.PreviousClose.Float(),
		Open:           p.Open.Float(),
		DayHigh:        p.IntraDayHighLow.Max.Float(),
		DayLow:         p.IntraDayHighLow.Min.Float(),
		VWAP:           p.VWAP.Float(),
		Week52High:     p.WeekHighLow.Max.Float(),
		Week52HighDate: p.WeekHighLow.MaxDate,
		Week52Low:      p.WeekHighLow.Min.Float(),
		Week52LowDate:  p.WeekHighLow.MinDate,
		PE:             resp.Metadata.PDSymbolPE.Float(),
		SectorPE:       resp.Metadata.PDSectorPE.Float(),
		FaceValue:      resp.SecurityInfo.FaceValue.Float(),
		FetchedAt:      utils.NowIST(),
	}, nil
}

// TradeInfo returns the volume, market cap and delivery block.
func (n *NSE) TradeInfo(ctx context.Context, symbol string) (*models.TradeInfo, error) {
	var resp nseTradeInfoResponse
	q := url.Values{"symbol": {symbol}, "section": {"trade_info"}}
	if err := n.getJSON(ctx, "/api/quote-equity", q, &resp); err != nil {
		return nil, fmt.Errorf("NSE trade info %s: %w", symbol, err)
	}
	if resp.MarketDeptOrderBook == nil && resp.SecurityWiseDP == nil {
		return nil, fmt.Errorf("NSE trade info %s: %w", symbol, ErrNotFound)
	}

	ti := &models.TradeInfo{Symbol: symbol}
	if ob := resp.MarketDeptOrderBook; ob != nil {
		ti.TotalTradedVolume = ob.TradeInfo.TotalTradedVolume.Float()
		ti.TotalTradedValue = ob.TradeInfo.TotalTradedValue.Float()
		ti.TotalMarketCap = ob.TradeInfo.TotalMarketCap.Float()
	}
	if dp := resp.SecurityWiseDP; dp != nil {
		ti.DeliveryPercent = dp.DeliveryToTradedQuantity.Float()
	}
	return ti, nil
}

// Corporate returns announcements, actions, shareholding, results and board meetings.
func (n *NSE) Corporate(ctx context.Context, symbol string) (*models.CorporateProfile, error) {
	var resp nseCorporateResponse
	q := url.Values{"symbol": {symbol}, "market": {"equities"}}
	if err := n.getJSON(ctx, "/api/top-corp-info", q, &resp); err != nil {
		return nil, fmt.Errorf("NSE corporate info %s: %w", symbol, err)
	}

	cp := &models.CorporateProfile{Symbol: symbol}

	for _, a := range resp.LatestAnnouncements.Data {
		subject := firstNonEmpty(a.Subject, a.Desc)
		if subject == "" {
			continue
		}
		cp.Announcements = append(cp.Announcements, models.Announcement{
			Date:    firstNonEmpty(a.BroadcastDate, a.AnDate),
			Subject: subject,
		})
	}
	for _, a := range resp.CorporateActions.Data {
		cp.Actions = append(cp.Actions, models.CorporateAction{ExDate: a.ExDate, Purpose: a.Purpose})
	}
	meetings := resp.BoradMeeting.Data
	if len(meetings) == 0 {
		meetings = resp.BoardMeeting.Data
	}
	for _, m := range meetings {
		cp.BoardMeetings = append(cp.BoardMeetings, models.BoardMeeting{Date: m.MeetingDate, Purpose: m.Purpose})
	}
	for _, r := range resp.FinancialResults.Data {
		cp.Results = append(cp.Results, models.FinancialResult{
			Period:    r.ToDate,
			Income:    r.Income.Float(),
			NetProfit: r.ProLossAfTax.Float(),
			EPS:       r.ReDilEPS.Float(),
		})
	}
	cp.Shareholding = parseShareholding(resp.ShareholdingsPatterns.Data)

	return cp, nil
}

// History returns daily candles between from and to, fetched in chunks the
// endpoint accepts. Rows come back in whatever order the exchange sends.
func (n *NSE) History(ctx context.Context, symbol string, from, to time.Time) (models.PriceHistory, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("NSE historical %s: range ends before it starts", symbol)
	}

	var out models.PriceHistory
	for end := to; !end.Before(from); {
		start := end.Add(-nseHistoryChunk)
		if start.Before(from) {
			start = from
		}

		q := url.Values{
			"symbol": {symbol},
			"series": {`["EQ"]`},
			"from":   {start.Format("02-01-2006")},
			"to":     {end.Format("02-01-2006")},
		}
		var resp struct {
			Data []nseHistEntry `json:"data"`
		}
		if err := n.getJSON(ctx, "/api/historical/cm/equity", q, &resp); err != nil {
			return nil, fmt.Errorf("NSE historical %s: %w", symbol, err)
		}
		for _, e := range resp.Data {
			if c, ok := e.candle(); ok {
				out = append(out, c)
			}
		}

		end = start.AddDate(0, 0, -1)
	}
	return out, nil
}

// MarketStatus returns the state of each market segment.
func (n *NSE) MarketStatus(ctx context.Context) (*models.MarketStatus, error) {
	var resp nseMarketStatusResponse
	if err := n.getJSON(ctx, "/api/marketStatus", nil, &resp); err != nil {
		return nil, fmt.Errorf("NSE market status: %w", err)
	}

	ms := &models.MarketStatus{FetchedAt: utils.NowIST()}
	for _, s := range resp.MarketState {
		ms.Markets = append(ms.Markets, models.MarketState{
			Market:        s.Market,
			Status:        s.MarketStatus,
			TradeDate:     s.TradeDate,
			Index:         s.Index,
			Last:          s.Last.Float(),
			Variation:     s.Variation.Float(),
			PercentChange: s.PercentChange.Float(),
			Message:       s.Message,
		})
	}
	return ms, nil
}

// --- Internal helpers ---

// ensureCookies visits the NSE homepage to get session cookies.
func (n *NSE) ensureCookies(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if time.Now().Before(n.cookieExpiry) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch NSE homepage for cookies: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body

	n.cookieExpiry = time.Now().Add(nseCookieTTL)
	n.log.Debug().Msg("NSE session cookies refreshed")
	return nil
}

// getJSON performs a GET against the NSE API and decodes the JSON body.
func (n *NSE) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if err := n.ensureCookies(ctx); err != nil {
		return err
	}

	u := n.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	body, err := doGet(ctx, n.client, n.userAgent, u, map[string]string{
		"Accept":           "application/json",
		"Referer":          n.baseURL + "/",
		"X-Requested-With": "XMLHttpRequest",
	})
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	// Unknown symbols come back as an empty object or array.
	if t := bytes.TrimSpace(data); len(t) == 0 || bytes.Equal(t, []byte("{}")) || bytes.Equal(t, []byte("[]")) {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse NSE response: %w", err)
	}
	return nil
}

// candle converts a history row. Rows without a date or close are skipped.
func (e nseHistEntry) candle() (models.OHLCV, bool) {
	date, ok := parseNSEDate(e.Timestamp, e.MTimestamp)
	if !ok || !e.Close.ok {
		return models.OHLCV{}, false
	}
	return models.OHLCV{
		Date:   date,
		Open:   e.Open.v,
		High:   e.High.v,
		Low:    e.Low.v,
		Close:  e.Close.v,
		Volume: int64(e.Volume.v),
	}, true
}

var nseDateLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	"2006-01-02",
	"02-Jan-2006",
	"02-Jan-2006 15:04:05",
	"02-01-2006",
}

// parseNSEDate tries each candidate string against the layouts NSE uses.
func parseNSEDate(candidates ...string) (time.Time, bool) {
	for _, s := range candidates {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		for _, layout := range nseDateLayouts {
			if t, err := time.ParseInLocation(layout, s, utils.IST); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// parseShareholding flattens the quarter-keyed shareholding map into a
// newest-first list.
func parseShareholding(data map[string][]map[string]nseNum) []models.ShareholdingPeriod {
	if len(data) == 0 {
		return nil
	}
	periods := make([]models.ShareholdingPeriod, 0, len(data))
	for quarter, rows := range data {
		sp := models.ShareholdingPeriod{Date: quarter}
		for _, row := range rows {
			for k, v := range row {
				switch {
				case strings.HasPrefix(k, "Promoter"):
					sp.Promoter = v.Float()
				case k == "Public":
					sp.Public = v.Float()
				}
			}
		}
		periods = append(periods, sp)
	}

	sort.SliceStable(periods, func(i, j int) bool {
		ti, okI := parseNSEDate(periods[i].Date)
		tj, okJ := parseNSEDate(periods[j].Date)
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI != okJ:
			return okI
		default:
			return periods[i].Date > periods[j].Date
		}
	})
	return periods
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
