// Package technical computes price-based indicators from a daily history.
// Histories are newest-first: index 0 is the latest session. Values that
// cannot be computed are invalid null.Floats, never zero or NaN.
package technical

import (
	"math"

	"github.com/guregu/null/v6"

	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

const (
	// DefaultRSIPeriod is the look-back for RSI.
	DefaultRSIPeriod = 14
	// DefaultSRWindow is how many recent sessions are scanned for support and resistance.
	DefaultSRWindow = 30
	// MinReliableHistory is the fewest sessions for which the 20-day average exists.
	MinReliableHistory = 20

	tradingDaysPerYear = 252
)

// Indicators bundles every derived value for one history.
type Indicators struct {
	MA5         null.Float `json:"ma5"`
	MA10        null.Float `json:"ma10"`
	MA20        null.Float `json:"ma20"`
	RSI         null.Float `json:"rsi"`
	Volatility  null.Float `json:"volatility"`
	Trend       Trend      `json:"trend"`
	Supports    []float64  `json:"supports"`
	Resistances []float64  `json:"resistances"`
	DataPoints  int        `json:"dataPoints"`
}

// Compute derives all indicators from history.
func Compute(history models.PriceHistory) Indicators {
	ind := Indicators{
		MA5:        MovingAverage(history, 5),
		MA10:       MovingAverage(history, 10),
		MA20:       MovingAverage(history, 20),
		RSI:        RSI(history, DefaultRSIPeriod),
		Volatility: Volatility(history),
		DataPoints: len(history),
	}
	ind.Trend = DetermineTrend(ind.MA5, ind.MA10, ind.MA20)
	ind.Supports, ind.Resistances = SupportResistance(history, DefaultSRWindow)
	return ind
}

// Sufficient reports whether the history was long enough for every indicator.
func (i Indicators) Sufficient() bool {
	return i.DataPoints >= MinReliableHistory
}

// Position52w returns where current sits in the 52-week range, in percent.
// Prices outside the range give values below 0 or above 100.
func Position52w(current, low, high float64) null.Float {
	if !isFinite(current) || !isFinite(low) || !isFinite(high) || high == low {
		return null.Float{}
	}
	return utils.Finite((current - low) / (high - low) * 100)
}

// RSI is the relative strength index over the latest period sessions, using
// simple averages of gains and losses.
func RSI(history models.PriceHistory, period int) null.Float {
	if period <= 0 || len(history) < period+1 {
		return null.Float{}
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := history[i-1].Close - history[i].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return null.FloatFrom(100)
	}
	rs := avgGain / avgLoss
	return utils.Finite(100 - 100/(1+rs))
}

// Volatility is the annualized population standard deviation of daily
// returns over the whole history, in percent.
func Volatility(history models.PriceHistory) null.Float {
	if len(history) < 2 {
		return null.Float{}
	}

	returns := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		prev := history[i].Close
		if prev == 0 {
			return null.Float{}
		}
		returns = append(returns, (history[i-1].Close-prev)/prev)
	}

	mean := avg(returns)
	return utils.Finite(stddev(returns, mean) * math.Sqrt(tradingDaysPerYear) * 100)
}

// --- Helpers ---

func avg(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// stddev is the population standard deviation.
func stddev(data []float64, mean float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range data {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(data)))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
