package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stockai/internal/analysis/comparison"
	"github.com/seenimoa/stockai/internal/analysis/fundamental"
	"github.com/seenimoa/stockai/internal/analysis/technical"
	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

// ErrSameSymbol is returned when both sides of a comparison are one stock.
var ErrSameSymbol = errors.New("two different symbols are required")

// oneMonthSessions approximates a month of trading days.
const oneMonthSessions = 20

// StockMetrics is one side of a comparison, formatted for display.
type StockMetrics struct {
	Symbol          string `json:"symbol"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	DayChange       string `json:"dayChange"`
	PERatio         string `json:"peRatio"`
	SectorPE        string `json:"sectorPE"`
	EPS             string `json:"eps"`
	MarketCap       string `json:"marketCap"`
	ProfitMargin    string `json:"profitMargin"`
	DividendYield   string `json:"dividendYield"`
	BookValue       string `json:"bookValue"`
	ROE             string `json:"roe"`
	DebtToEquity    string `json:"debtToEquity"`
	DeliveryPercent string `json:"deliveryPercent"`
	Position52w     string `json:"position52w"`
	Week52High      string `json:"week52High"`
	Week52Low       string `json:"week52Low"`
	OneYearReturn   string `json:"oneYearReturn"`
	OneMonthReturn  string `json:"oneMonthReturn"`
	Volatility      string `json:"volatility"`
	PromoterHolding string `json:"promoterHolding"`
	RecentDividend  string `json:"recentDividend"`
	FNOAvailable    string `json:"fnoAvailable"`
	FinancialHealth string `json:"financialHealth"`
}

// Score is the win tally of a comparison.
type Score struct {
	Wins1 int `json:"wins1"`
	Wins2 int `json:"wins2"`
	Ties  int `json:"ties"`
	Total int `json:"total"`
}

// Comparison is the compare_stocks payload. WinnerByMetric names the
// winning symbol, or "Tie".
type Comparison struct {
	Stock1         StockMetrics      `json:"stock1"`
	Stock2         StockMetrics      `json:"stock2"`
	WinnerByMetric map[string]string `json:"winnerByMetric"`
	Score          Score             `json:"score"`
	Summary        string            `json:"summary"`

	Result comparison.Result `json:"-"`
}

// stockData is everything gathered for one side. Only snap is mandatory.
type stockData struct {
	symbol string
	snap   *models.EquitySnapshot
	err    error
	trade  *models.TradeInfo
	corp   *models.CorporateProfile
	hist   models.PriceHistory
	fund   *models.Fundamentals
}

// Compare returns the compare_stocks payload.
func (k *Toolkit) Compare(ctx context.Context, symbol1, symbol2 string) string {
	c, err := k.CompareStocks(ctx, symbol1, symbol2)
	if err != nil {
		var le *LookupError
		if errors.As(err, &le) {
			return errorJSON(UserMessage(le.Symbol, le.Err))
		}
		return errorJSON(err.Error())
	}
	return toJSON(c)
}

// CompareStocks validates both symbols, gathers both stocks in parallel
// and scores them. An unknown or unreachable symbol fails the comparison
// with a *LookupError.
func (k *Toolkit) CompareStocks(ctx context.Context, symbol1, symbol2 string) (*Comparison, error) {
	s1, s2 := utils.NormalizeTicker(symbol1), utils.NormalizeTicker(symbol2)
	if s1 == s2 {
		return nil, ErrSameSymbol
	}
	key := "comparison:" + s1 + ":" + s2
	if c, ok := cache.GetAs[*Comparison](k.store, key); ok {
		return c, nil
	}

	if err := k.validatePair(ctx, s1, s2); err != nil {
		return nil, err
	}

	a, b := &stockData{symbol: s1}, &stockData{symbol: s2}
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range []*stockData{a, b} {
		k.gather(gctx, g, d)
	}
	_ = g.Wait()

	for _, d := range []*stockData{a, b} {
		if d.err != nil {
			return nil, &LookupError{Symbol: d.symbol, Err: d.err}
		}
	}

	c := buildComparison(a, b)
	k.store.SetClass(key, c, cache.Details)
	return c, nil
}

// validatePair checks both symbols against the exchange in parallel and
// reports the first one it does not know.
func (k *Toolkit) validatePair(ctx context.Context, s1, s2 string) error {
	syms := []string{s1, s2}
	errs := make([]error, len(syms))
	var g errgroup.Group
	for i, sym := range syms {
		g.Go(func() error {
			errs[i] = k.facade.CheckSymbol(ctx, sym)
			return nil
		})
	}
	_ = g.Wait()
	for i, err := range errs {
		if err != nil {
			return &LookupError{Symbol: syms[i], Err: err}
		}
	}
	return nil
}

func (k *Toolkit) gather(ctx context.Context, g *errgroup.Group, d *stockData) {
	sym := d.symbol
	g.Go(func() error {
		d.snap, d.err = k.facade.EquitySnapshot(ctx, sym)
		return nil
	})
	g.Go(func() error {
		t, err := k.facade.TradeInfo(ctx, sym)
		k.optional(err, "trade", sym)
		d.trade = t
		return nil
	})
	g.Go(func() error {
		c, err := k.facade.CorporateProfile(ctx, sym)
		k.optional(err, "corporate", sym)
		d.corp = c
		return nil
	})
	g.Go(func() error {
		h, err := k.facade.PriceHistory(ctx, sym, models.LastDays(k.now(), compareDays))
		k.optional(err, "history", sym)
		d.hist = h
		return nil
	})
	if k.screener != nil {
		g.Go(func() error {
			f, err := k.screener.Fundamentals(ctx, sym)
			k.optional(err, "fundamentals", sym)
			d.fund = f
			return nil
		})
	}
}

func buildComparison(a, b *stockData) *Comparison {
	metrics := []comparison.Metric{
		comparison.NewMetric(comparison.MetricPrice, utils.Positive(a.snap.LastPrice), utils.Positive(b.snap.LastPrice)),
		comparison.NewMetric(comparison.MetricPE, a.pe(), b.pe()),
		comparison.NewMetric(comparison.MetricROE, a.roe(), b.roe()),
		comparison.NewMetric(comparison.MetricMargin, a.margin(), b.margin()),
		comparison.NewMetric(comparison.MetricDebtToEquity, a.debtToEquity(), b.debtToEquity()),
		comparison.NewMetric(comparison.MetricDividendYield, a.dividendYield(), b.dividendYield()),
		comparison.NewMetric(comparison.MetricOneYearReturn, a.returnOver(len(a.hist)-1), b.returnOver(len(b.hist)-1)),
		comparison.NewMetric(comparison.MetricHigh52w, a.snap.Week52High, b.snap.Week52High),
		comparison.NewMetric(comparison.MetricLow52w, a.snap.Week52Low, b.snap.Week52Low),
	}
	r := comparison.Scorecard(metrics)

	winners := make(map[string]string, len(r.Winners))
	for name, w := range r.Winners {
		switch w {
		case comparison.A:
			winners[name] = a.symbol
		case comparison.B:
			winners[name] = b.symbol
		default:
			winners[name] = string(comparison.Tie)
		}
	}

	return &Comparison{
		Stock1:         a.metrics(),
		Stock2:         b.metrics(),
		WinnerByMetric: winners,
		Score:          Score{Wins1: r.WinsA, Wins2: r.WinsB, Ties: r.Ties, Total: r.Total},
		Summary:        comparison.Insight(a.symbol, b.symbol, r),
		Result:         r,
	}
}

// ── Per-stock values ──

func (d *stockData) pe() null.Float {
	if d.snap.PE.Valid {
		return d.snap.PE
	}
	if d.fund != nil {
		return d.fund.PE
	}
	return null.Float{}
}

func (d *stockData) roe() null.Float {
	if d.fund == nil {
		return null.Float{}
	}
	return d.fund.ROE
}

func (d *stockData) debtToEquity() null.Float {
	if d.fund == nil {
		return null.Float{}
	}
	return d.fund.DebtToEquity
}

func (d *stockData) dividendYield() null.Float {
	if d.fund == nil {
		return null.Float{}
	}
	return d.fund.DividendYield
}

// margin prefers the latest quarterly result over Screener's annual figure.
func (d *stockData) margin() null.Float {
	if r, ok := d.corp.LatestResult(); ok {
		if m := r.ProfitMargin(); m.Valid {
			return m
		}
	}
	if d.fund != nil {
		return d.fund.NetMargin
	}
	return null.Float{}
}

func (d *stockData) eps() null.Float {
	if r, ok := d.corp.LatestResult(); ok && r.EPS.Valid {
		return r.EPS
	}
	if d.fund != nil {
		return d.fund.EPS
	}
	return null.Float{}
}

func (d *stockData) marketCap() null.Float {
	if mc := d.trade.MarketCapRupees(); mc.Valid {
		return mc
	}
	if d.fund != nil && d.fund.MarketCapCr.Valid {
		return null.FloatFrom(d.fund.MarketCapCr.Float64 * 1e7)
	}
	return null.Float{}
}

// returnOver is the percent change from the close idx sessions back to
// the current price.
func (d *stockData) returnOver(idx int) null.Float {
	if idx < 0 || idx >= len(d.hist) {
		return null.Float{}
	}
	base := d.hist[idx].Close
	if base == 0 {
		return null.Float{}
	}
	return utils.Finite((d.snap.LastPrice - base) / base * 100)
}

func (d *stockData) metrics() StockMetrics {
	snap := d.snap
	m := StockMetrics{
		Symbol:          d.symbol,
		Name:            utils.OrNA(snap.CompanyName),
		Price:           rupees(snap.LastPrice),
		DayChange:       utils.FmtSignedPercent(snap.PChange),
		PERatio:         utils.FmtNum(d.pe(), 2),
		SectorPE:        utils.FmtNum(snap.SectorPE, 2),
		EPS:             utils.FmtRupee(d.eps()),
		MarketCap:       utils.FmtCompactRupee(d.marketCap()),
		ProfitMargin:    utils.FmtPercent(d.margin()),
		DividendYield:   utils.FmtPercent(d.dividendYield()),
		BookValue:       utils.NA,
		ROE:             utils.FmtPercent(d.roe()),
		DebtToEquity:    utils.FmtNum(d.debtToEquity(), 2),
		DeliveryPercent: utils.NA,
		Position52w:     utils.NA,
		Week52High:      utils.FmtRupee(snap.Week52High),
		Week52Low:       utils.FmtRupee(snap.Week52Low),
		OneYearReturn:   utils.FmtSignedPercent(d.returnOver(len(d.hist) - 1)),
		OneMonthReturn:  utils.FmtSignedPercent(d.returnOver(min(oneMonthSessions, len(d.hist)-1))),
		Volatility:      utils.FmtPercent(technical.Volatility(d.hist)),
		PromoterHolding: utils.FmtPercent(d.corp.LatestPromoterHolding()),
		RecentDividend:  "No recent dividend",
		FNOAvailable:    "No",
		FinancialHealth: utils.NA,
	}
	if d.fund != nil {
		m.BookValue = utils.FmtRupee(d.fund.BookValue)
		if h := fundamental.AssessHealth(d.fund); h.Grade != fundamental.GradeUnknown {
			m.FinancialHealth = fmt.Sprintf("%s (%.0f/100)", h.Grade, h.Score)
		}
	}
	if d.trade != nil {
		m.DeliveryPercent = utils.FmtPercent(d.trade.DeliveryPercent)
	}
	if snap.Week52Low.Valid && snap.Week52High.Valid {
		m.Position52w = utils.FmtPercent(technical.Position52w(snap.LastPrice, snap.Week52Low.Float64, snap.Week52High.Float64))
	}
	if d.corp != nil && len(d.corp.Actions) > 0 {
		m.RecentDividend = joinOn(d.corp.Actions[0].Purpose, d.corp.Actions[0].ExDate)
	}
	if snap.IsFNO {
		m.FNOAvailable = "Yes"
	}
	return m
}
