package fundamental

import (
	"fmt"
	"math"

	"github.com/guregu/null/v6"

	"github.com/seenimoa/stockai/pkg/models"
)

// Promoter trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
	TrendUnknown    = "N/A"
)

// stableBand is the absolute change in percentage points treated as flat.
const stableBand = 1.0

// PromoterAnalysis summarises the promoter holding history.
type PromoterAnalysis struct {
	Current   null.Float `json:"current"`
	Change    null.Float `json:"change"`
	Direction string     `json:"direction"`
	Quarters  int        `json:"quarters"`
	Signals   []string   `json:"signals"`
}

// AnalyzePromoter reads a newest-first shareholding history. Quarters
// without a promoter figure are skipped.
func AnalyzePromoter(periods []models.ShareholdingPeriod) PromoterAnalysis {
	var pts []float64
	for _, p := range periods {
		if p.Promoter.Valid {
			pts = append(pts, p.Promoter.Float64)
		}
	}

	a := PromoterAnalysis{Direction: TrendUnknown, Quarters: len(pts), Signals: []string{}}
	if len(pts) == 0 {
		return a
	}
	latest := pts[0]
	a.Current = null.FloatFrom(latest)

	switch {
	case latest > 70:
		a.Signals = append(a.Signals, "High promoter holding")
	case latest > 50:
		a.Signals = append(a.Signals, "Majority promoter holding")
	case latest > 30:
		a.Signals = append(a.Signals, "Moderate promoter holding")
	case latest > 0:
		a.Signals = append(a.Signals, "Low promoter holding")
	}

	if len(pts) < 2 {
		return a
	}
	change := latest - pts[len(pts)-1]
	a.Change = null.FloatFrom(change)

	switch {
	case math.Abs(change) < stableBand:
		a.Direction = TrendStable
	case change > 0:
		a.Direction = TrendIncreasing
		a.Signals = append(a.Signals, fmt.Sprintf("Promoters raised stake by %.2f pts over %d quarters", change, len(pts)))
	default:
		a.Direction = TrendDecreasing
		a.Signals = append(a.Signals, fmt.Sprintf("Promoters cut stake by %.2f pts over %d quarters", -change, len(pts)))
		if change < -5 {
			a.Signals = append(a.Signals, "Significant promoter selling")
		}
	}
	return a
}
