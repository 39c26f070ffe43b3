// Package models defines the shared data types for stockai.
package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// OHLCV is one trading day of price data.
type OHLCV struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceHistory is a daily series ordered newest-first (index 0 is the latest session).
type PriceHistory []OHLCV

// Closes returns the closing prices in the same newest-first order.
func (h PriceHistory) Closes() []float64 {
	out := make([]float64, len(h))
	for i, p := range h {
		out[i] = p.Close
	}
	return out
}

// DateRange is an inclusive calendar range for history requests.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// LastDays returns the range ending at now and starting n days earlier.
func LastDays(now time.Time, n int) DateRange {
	return DateRange{From: now.AddDate(0, 0, -n), To: now}
}

// EquitySnapshot is the current trading state of one listed equity.
type EquitySnapshot struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Industry    string `json:"industry"`
	SectorIndex string `json:"sectorIndex"`
	Series      string `json:"series"`
	ListingDate string `json:"listingDate"`
	IsFNO       bool   `json:"isFNO"`

	LastPrice     float64    `json:"lastPrice"`
	Change        null.Float `json:"change"`
	PChange       null.Float `json:"pChange"`
	PreviousClose null.Float `json:"previousClose"`
	Open          null.Float `json:"open"`
	DayHigh       null.Float `json:"dayHigh"`
	DayLow        null.Float `json:"dayLow"`
	VWAP          null.Float `json:"vwap"`

	Week52High     null.Float `json:"week52High"`
	Week52HighDate string     `json:"week52HighDate,omitempty"`
	Week52Low      null.Float `json:"week52Low"`
	Week52LowDate  string     `json:"week52LowDate,omitempty"`

	PE        null.Float `json:"pe"`
	SectorPE  null.Float `json:"sectorPE"`
	FaceValue null.Float `json:"faceValue"`

	FetchedAt time.Time `json:"fetchedAt"`
}

// TradeInfo carries the volume and market-cap block of the exchange quote.
type TradeInfo struct {
	Symbol string `json:"symbol"`
	// TotalTradedVolume is in lakhs of shares and TotalTradedValue in crores,
	// as the exchange reports them.
	TotalTradedVolume null.Float `json:"totalTradedVolume"`
	TotalTradedValue  null.Float `json:"totalTradedValue"`
	// TotalMarketCap is in crores of rupees.
	TotalMarketCap  null.Float `json:"totalMarketCap"`
	DeliveryPercent null.Float `json:"deliveryPercent"`
}

// MarketCapRupees converts the exchange's crore figure to rupees.
func (t *TradeInfo) MarketCapRupees() null.Float {
	if t == nil || !t.TotalMarketCap.Valid {
		return null.Float{}
	}
	return null.FloatFrom(t.TotalMarketCap.Float64 * 1e7)
}

// VolumeShares converts the traded volume from lakhs to shares.
func (t *TradeInfo) VolumeShares() null.Float {
	if t == nil || !t.TotalTradedVolume.Valid {
		return null.Float{}
	}
	return null.FloatFrom(t.TotalTradedVolume.Float64 * 1e5)
}

// ShareholdingPeriod is one quarter of the shareholding pattern.
type ShareholdingPeriod struct {
	Date     string     `json:"date"`
	Promoter null.Float `json:"promoter"`
	Public   null.Float `json:"public"`
}

// CorporateAction is a dividend, split, bonus or similar action.
type CorporateAction struct {
	ExDate  string `json:"exDate"`
	Purpose string `json:"purpose"`
}

// Announcement is an exchange filing headline.
type Announcement struct {
	Date    string `json:"date"`
	Subject string `json:"subject"`
}

// BoardMeeting is a scheduled board meeting.
type BoardMeeting struct {
	Date    string `json:"date"`
	Purpose string `json:"purpose"`
}

// FinancialResult is a condensed quarterly result row.
type FinancialResult struct {
	Period    string     `json:"period"`
	Income    null.Float `json:"income"`
	NetProfit null.Float `json:"netProfit"`
	EPS       null.Float `json:"eps"`
}

// ProfitMargin returns net profit as a percentage of income.
func (r FinancialResult) ProfitMargin() null.Float {
	if !r.Income.Valid || !r.NetProfit.Valid || r.Income.Float64 == 0 {
		return null.Float{}
	}
	return null.FloatFrom(r.NetProfit.Float64 / r.Income.Float64 * 100)
}

// CorporateProfile holds slow-changing per-company facts.
// Every list is ordered newest-first.
type CorporateProfile struct {
	Symbol        string               `json:"symbol"`
	Shareholding  []ShareholdingPeriod `json:"shareholding"`
	Actions       []CorporateAction    `json:"corporateActions"`
	Announcements []Announcement       `json:"announcements"`
	BoardMeetings []BoardMeeting       `json:"boardMeetings"`
	Results       []FinancialResult    `json:"financialResults"`
}

// LatestPromoterHolding returns the promoter percentage of the most recent quarter.
func (c *CorporateProfile) LatestPromoterHolding() null.Float {
	if c == nil {
		return null.Float{}
	}
	for _, p := range c.Shareholding {
		if p.Promoter.Valid {
			return p.Promoter
		}
	}
	return null.Float{}
}

// LatestResult returns the newest financial result, if any.
func (c *CorporateProfile) LatestResult() (FinancialResult, bool) {
	if c == nil || len(c.Results) == 0 {
		return FinancialResult{}, false
	}
	return c.Results[0], true
}

// Fundamentals are the headline ratios scraped from Screener.in.
type Fundamentals struct {
	Symbol        string     `json:"symbol"`
	MarketCapCr   null.Float `json:"marketCapCr"`
	PE            null.Float `json:"pe"`
	BookValue     null.Float `json:"bookValue"`
	DividendYield null.Float `json:"dividendYield"`
	ROCE          null.Float `json:"roce"`
	ROE           null.Float `json:"roe"`
	DebtToEquity  null.Float `json:"debtToEquity"`
	NetMargin     null.Float `json:"netMargin"`
	EPS           null.Float `json:"eps"`
}

// MarketState is one market segment's trading status.
type MarketState struct {
	Market        string     `json:"market"`
	Status        string     `json:"status"`
	TradeDate     string     `json:"tradeDate"`
	Index         string     `json:"index"`
	Last          null.Float `json:"last"`
	Variation     null.Float `json:"variation"`
	PercentChange null.Float `json:"percentChange"`
	Message       string     `json:"message,omitempty"`
}

// MarketStatus is the exchange-wide session state.
type MarketStatus struct {
	Markets   []MarketState `json:"markets"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// NewsItem is a headline from an RSS feed.
type NewsItem struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Source    string    `json:"source"`
	Published time.Time `json:"published"`
	Summary   string    `json:"summary,omitempty"`
}

// Listing is one row of the exchange's symbol directory.
type Listing struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}
