package technical

import (
	"github.com/guregu/null/v6"

	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

// Trend is the direction implied by the short, medium and long averages.
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
	TrendUnknown Trend = "N/A"
)

// MovingAverage is the simple mean of the latest n closes.
func MovingAverage(history models.PriceHistory, n int) null.Float {
	if n <= 0 || len(history) < n {
		return null.Float{}
	}
	var sum float64
	for _, c := range history[:n] {
		sum += c.Close
	}
	return utils.Finite(sum / float64(n))
}

// DetermineTrend is bullish when ma5 > ma10 > ma20, bearish when
// ma5 < ma10 < ma20 and neutral otherwise.
func DetermineTrend(ma5, ma10, ma20 null.Float) Trend {
	if !ma5.Valid || !ma10.Valid || !ma20.Valid {
		return TrendUnknown
	}
	a, b, c := ma5.Float64, ma10.Float64, ma20.Float64
	switch {
	case a > b && b > c:
		return TrendBullish
	case a < b && b < c:
		return TrendBearish
	default:
		return TrendNeutral
	}
}
