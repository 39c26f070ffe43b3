package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stockai/internal/analysis/technical"
	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

// MovingAverages is the averages block of a technical report.
type MovingAverages struct {
	MA5        string `json:"ma5"`
	MA5Signal  string `json:"ma5Signal"`
	MA10       string `json:"ma10"`
	MA20       string `json:"ma20"`
	MA20Signal string `json:"ma20Signal"`
}

// SignalCounts is the vote tally of a technical report.
type SignalCounts struct {
	Buy     int    `json:"buy"`
	Sell    int    `json:"sell"`
	Neutral int    `json:"neutral"`
	Overall string `json:"overall"`
}

// TechnicalReport is the technical_analysis payload.
type TechnicalReport struct {
	Symbol               string         `json:"symbol"`
	CurrentPrice         string         `json:"currentPrice"`
	MovingAverages       MovingAverages `json:"movingAverages"`
	RSI                  string         `json:"rsi"`
	RSISignal            string         `json:"rsiSignal"`
	MACD                 string         `json:"macd"`
	Trend                string         `json:"trend"`
	Volatility           string         `json:"volatility"`
	VolatilityAssessment string         `json:"volatilityAssessment"`
	Support              []string       `json:"support"`
	Resistance           []string       `json:"resistance"`
	Signals              SignalCounts   `json:"signals"`
	DataPoints           int            `json:"dataPoints"`
	Warning              string         `json:"warning,omitempty"`
}

// Technical returns the technical_analysis payload. Failures are reported
// as plain text so the model reads them as a sentence.
func (k *Toolkit) Technical(ctx context.Context, symbol string) string {
	sym := utils.NormalizeTicker(symbol)
	return k.cached("technical:"+sym, cache.Details, func() (string, bool) {
		r, err := k.TechnicalReport(ctx, sym)
		if err != nil {
			return fmt.Sprintf("Error in technical analysis for %s: %s", sym, UserMessage(sym, err)), false
		}
		return toJSON(r), true
	})
}

// TechnicalReport computes indicators and signals from 90 days of history.
func (k *Toolkit) TechnicalReport(ctx context.Context, symbol string) (*TechnicalReport, error) {
	sym := utils.NormalizeTicker(symbol)

	var (
		snap *models.EquitySnapshot
		hist models.PriceHistory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = k.facade.EquitySnapshot(gctx, sym)
		return err
	})
	g.Go(func() error {
		var err error
		hist, err = k.facade.PriceHistory(gctx, sym, models.LastDays(k.now(), historyDays))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, &LookupError{Symbol: sym, Err: err}
	}
	return buildTechnicalReport(sym, snap.LastPrice, hist), nil
}

func buildTechnicalReport(sym string, price float64, hist models.PriceHistory) *TechnicalReport {
	ind := technical.Compute(hist)
	sig := technical.Signal(price, ind)

	r := &TechnicalReport{
		Symbol:       sym,
		CurrentPrice: rupees(price),
		MovingAverages: MovingAverages{
			MA5:        utils.FmtRupee(ind.MA5),
			MA5Signal:  priceVersus(price, ind.MA5),
			MA10:       utils.FmtRupee(ind.MA10),
			MA20:       utils.FmtRupee(ind.MA20),
			MA20Signal: priceVersus(price, ind.MA20),
		},
		RSI:                  utils.FmtNum(ind.RSI, 1),
		RSISignal:            rsiAdvice(sig.RSISignal),
		MACD:                 sig.MACross,
		Trend:                strings.ToUpper(string(ind.Trend)),
		Volatility:           utils.FmtPercent(ind.Volatility),
		VolatilityAssessment: sig.VolatilityLevel,
		Support:              levels(ind.Supports),
		Resistance:           levels(ind.Resistances),
		Signals: SignalCounts{
			Buy:     sig.Buy,
			Sell:    sig.Sell,
			Neutral: sig.Neutral,
			Overall: sig.Overall,
		},
		DataPoints: ind.DataPoints,
	}
	if !ind.Sufficient() {
		r.Warning = fmt.Sprintf("Only %d sessions of history available; at least %d are needed for reliable indicators.",
			ind.DataPoints, technical.MinReliableHistory)
	}
	return r
}

func priceVersus(price float64, ma null.Float) string {
	switch {
	case !ma.Valid:
		return utils.NA
	case price > ma.Float64:
		return "Above (Bullish)"
	default:
		return "Below (Bearish)"
	}
}

func rsiAdvice(zone string) string {
	switch zone {
	case technical.RSIOverbought:
		return "OVERBOUGHT (Consider selling)"
	case technical.RSIOversold:
		return "OVERSOLD (Consider buying)"
	default:
		return zone
	}
}
