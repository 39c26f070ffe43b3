package tools

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stockai/internal/analysis/fundamental"
	"github.com/seenimoa/stockai/internal/analysis/technical"
	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

// StockReport is the analyze_stock payload. Every field is display-ready.
type StockReport struct {
	Symbol             string   `json:"symbol"`
	Name               string   `json:"name"`
	Sector             string   `json:"sector"`
	Price              string   `json:"price"`
	Change             string   `json:"change"`
	DayRange           string   `json:"dayRange"`
	FiftyTwoWeekRange  string   `json:"fiftyTwoWeekRange"`
	Position52w        string   `json:"position52w"`
	VWAP               string   `json:"vwap"`
	PERatio            string   `json:"peRatio"`
	SectorPE           string   `json:"sectorPE"`
	MarketCap          string   `json:"marketCap"`
	Volume             string   `json:"volume"`
	DeliveryPercent    string   `json:"deliveryPercent"`
	MA5                string   `json:"ma5"`
	MA10               string   `json:"ma10"`
	MA20               string   `json:"ma20"`
	RSI                string   `json:"rsi"`
	Trend              string   `json:"trend"`
	Volatility         string   `json:"volatility"`
	Supports           []string `json:"supports"`
	Resistances        []string `json:"resistances"`
	PromoterHolding    string   `json:"promoterHolding"`
	PromoterTrend      string   `json:"promoterTrend"`
	RecentDividend     string   `json:"recentDividend"`
	LatestAnnouncement string   `json:"latestAnnouncement"`
	FNOAvailable       string   `json:"fnoAvailable"`
	Indices            string   `json:"indices"`
}

// AnalyzeStock returns the analyze_stock payload for symbol.
func (k *Toolkit) AnalyzeStock(ctx context.Context, symbol string) string {
	sym := utils.NormalizeTicker(symbol)
	return k.cached("tool:analyze:"+sym, cache.Details, func() (string, bool) {
		r, err := k.StockReport(ctx, sym)
		if err != nil {
			return errorJSON(UserMessage(sym, err)), false
		}
		return toJSON(r), true
	})
}

// StockReport fetches and formats the snapshot of one stock. Only the
// equity snapshot is required; trade, corporate and history data fill in
// fields when they arrive.
func (k *Toolkit) StockReport(ctx context.Context, symbol string) (*StockReport, error) {
	sym := utils.NormalizeTicker(symbol)

	var (
		snap    *models.EquitySnapshot
		snapErr error
		trade   *models.TradeInfo
		corp    *models.CorporateProfile
		hist    models.PriceHistory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, snapErr = k.facade.EquitySnapshot(gctx, sym)
		return nil
	})
	g.Go(func() error {
		t, err := k.facade.TradeInfo(gctx, sym)
		k.optional(err, "trade", sym)
		trade = t
		return nil
	})
	g.Go(func() error {
		c, err := k.facade.CorporateProfile(gctx, sym)
		k.optional(err, "corporate", sym)
		corp = c
		return nil
	})
	g.Go(func() error {
		h, err := k.facade.PriceHistory(gctx, sym, models.LastDays(k.now(), historyDays))
		k.optional(err, "history", sym)
		hist = h
		return nil
	})
	_ = g.Wait()

	if snapErr != nil {
		return nil, &LookupError{Symbol: sym, Err: snapErr}
	}
	return buildStockReport(snap, trade, corp, hist), nil
}

func buildStockReport(snap *models.EquitySnapshot, trade *models.TradeInfo, corp *models.CorporateProfile, hist models.PriceHistory) *StockReport {
	ind := technical.Compute(hist)

	r := &StockReport{
		Symbol:             utils.OrNA(snap.Symbol),
		Name:               utils.OrNA(snap.CompanyName),
		Sector:             utils.OrNA(snap.Industry),
		Price:              rupees(snap.LastPrice),
		Change:             utils.FmtChange(snap.Change, snap.PChange),
		DayRange:           utils.FmtRange(snap.DayLow, snap.DayHigh),
		FiftyTwoWeekRange:  utils.FmtRange(snap.Week52Low, snap.Week52High),
		Position52w:        utils.NA,
		VWAP:               utils.FmtRupee(snap.VWAP),
		PERatio:            utils.FmtNum(snap.PE, 2),
		SectorPE:           utils.FmtNum(snap.SectorPE, 2),
		MarketCap:          utils.FmtCompactRupee(trade.MarketCapRupees()),
		Volume:             utils.FmtVolume(trade.VolumeShares()),
		DeliveryPercent:    utils.NA,
		MA5:                utils.FmtRupee(ind.MA5),
		MA10:               utils.FmtRupee(ind.MA10),
		MA20:               utils.FmtRupee(ind.MA20),
		RSI:                utils.FmtNum(ind.RSI, 1),
		Trend:              string(ind.Trend),
		Volatility:         utils.FmtPercent(ind.Volatility),
		Supports:           levels(ind.Supports),
		Resistances:        levels(ind.Resistances),
		PromoterHolding:    utils.NA,
		PromoterTrend:      fundamental.TrendUnknown,
		RecentDividend:     "No recent dividend",
		LatestAnnouncement: "No recent announcements",
		FNOAvailable:       "No",
		Indices:            utils.OrNA(snap.SectorIndex),
	}
	if snap.Week52Low.Valid && snap.Week52High.Valid {
		if pos := technical.Position52w(snap.LastPrice, snap.Week52Low.Float64, snap.Week52High.Float64); pos.Valid {
			r.Position52w = fmt.Sprintf("%.1f%% of range", pos.Float64)
		}
	}
	if trade != nil {
		r.DeliveryPercent = utils.FmtPercent(trade.DeliveryPercent)
	}
	if snap.IsFNO {
		r.FNOAvailable = "Yes"
	}
	if corp != nil {
		r.PromoterHolding = utils.FmtNum(corp.LatestPromoterHolding(), 2)
		r.PromoterTrend = fundamental.AnalyzePromoter(corp.Shareholding).Direction
		if len(corp.Actions) > 0 {
			a := corp.Actions[0]
			r.RecentDividend = joinOn(a.Purpose, a.ExDate)
		}
		if len(corp.Announcements) > 0 {
			a := corp.Announcements[0]
			r.LatestAnnouncement = joinOn(a.Subject, a.Date)
		}
	}
	return r
}

func joinOn(what, when string) string {
	what, when = strings.TrimSpace(what), strings.TrimSpace(when)
	if when == "" {
		return utils.OrNA(what)
	}
	return utils.OrNA(what) + " on " + when
}

// optional logs a failed secondary fetch. The caller carries on without it.
func (k *Toolkit) optional(err error, what, sym string) {
	if err != nil {
		k.log.Debug().Err(err).Str("symbol", sym).Str("part", what).Msg("optional fetch failed")
	}
}
