package agent

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/tools"
	"github.com/seenimoa/stockai/pkg/utils"
)

const fallbackNote = "This summary was generated directly from market data because the AI analysis service is unavailable. It is not investment advice."

// analysisFallback builds the templated answer from the analyze_stock and
// technical_analysis data. Only a failed stock report is an error.
func (o *Orchestrator) analysisFallback(ctx context.Context, log zerolog.Logger, symbol string) (string, error) {
	report, err := o.toolkit.StockReport(ctx, symbol)
	if err != nil {
		return "", err
	}
	tech, err := o.toolkit.TechnicalReport(ctx, symbol)
	if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("technical data unavailable for template")
		tech = nil
	}
	return analysisSummary(report, tech), nil
}

func analysisSummary(r *tools.StockReport, t *tools.TechnicalReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%s) is trading at %s", r.Name, r.Symbol, r.Price)
	if known(r.Change) {
		fmt.Fprintf(&b, ", %s today", r.Change)
	}
	b.WriteString(".")
	if known(r.FiftyTwoWeekRange) {
		fmt.Fprintf(&b, " Its 52-week range is %s", r.FiftyTwoWeekRange)
		if known(r.Position52w) {
			fmt.Fprintf(&b, " and it sits at %s", r.Position52w)
		}
		b.WriteString(".")
	}
	if known(r.PERatio) {
		fmt.Fprintf(&b, " P/E is %s", r.PERatio)
		if known(r.SectorPE) {
			fmt.Fprintf(&b, " against a sector P/E of %s", r.SectorPE)
		}
		b.WriteString(".")
	}

	b.WriteString("\n\n")
	switch {
	case t != nil:
		fmt.Fprintf(&b, "The trend is %s", t.Trend)
		if known(t.RSI) {
			fmt.Fprintf(&b, " with RSI at %s", t.RSI)
		}
		fmt.Fprintf(&b, ". Technical signals read %s (%d buy, %d sell, %d neutral).",
			t.Signals.Overall, t.Signals.Buy, t.Signals.Sell, t.Signals.Neutral)
		if t.Warning != "" {
			fmt.Fprintf(&b, " %s", t.Warning)
		}
	case known(r.Trend):
		fmt.Fprintf(&b, "The trend is %s.", r.Trend)
	}
	if len(r.Supports) > 0 {
		fmt.Fprintf(&b, " Support near %s.", strings.Join(r.Supports, ", "))
	}
	if len(r.Resistances) > 0 {
		fmt.Fprintf(&b, " Resistance near %s.", strings.Join(r.Resistances, ", "))
	}

	b.WriteString("\n\n")
	if known(r.PromoterHolding) {
		fmt.Fprintf(&b, "Promoter holding is %s", r.PromoterHolding)
		if known(r.PromoterTrend) {
			fmt.Fprintf(&b, " (%s)", r.PromoterTrend)
		}
		b.WriteString(". ")
	}
	fmt.Fprintf(&b, "Latest announcement: %s.", r.LatestAnnouncement)

	b.WriteString("\n\n")
	b.WriteString(fallbackNote)
	return b.String()
}

func comparisonSummary(c *tools.Comparison) string {
	var b strings.Builder
	b.WriteString(c.Summary)

	s1, s2 := c.Stock1.Symbol, c.Stock2.Symbol
	fmt.Fprintf(&b, " Score: %s %d, %s %d, tied %d of %d metrics.",
		s1, c.Score.Wins1, s2, c.Score.Wins2, c.Score.Ties, c.Score.Total)

	leads := map[string][]string{}
	for _, metric := range slices.Sorted(maps.Keys(c.WinnerByMetric)) {
		w := c.WinnerByMetric[metric]
		leads[w] = append(leads[w], metric)
	}
	b.WriteString("\n")
	for _, who := range []string{s1, s2} {
		if len(leads[who]) > 0 {
			fmt.Fprintf(&b, "\n%s leads on %s.", who, strings.Join(leads[who], ", "))
		}
	}
	for who, metrics := range leads {
		if who != s1 && who != s2 {
			fmt.Fprintf(&b, "\nTied on %s.", strings.Join(metrics, ", "))
		}
	}

	b.WriteString("\n")
	for _, m := range []tools.StockMetrics{c.Stock1, c.Stock2} {
		fmt.Fprintf(&b, "\n%s: price %s, P/E %s, ROE %s, 1-year return %s, financial health %s.",
			m.Symbol, m.Price, m.PERatio, m.ROE, m.OneYearReturn, m.FinancialHealth)
	}

	b.WriteString("\n\n")
	b.WriteString(fallbackNote)
	return b.String()
}

func known(s string) bool { return s != "" && s != utils.NA }
