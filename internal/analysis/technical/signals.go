package technical

import "github.com/guregu/null/v6"

// MaxSignalScore is the total weight of all votes Signal can cast.
const MaxSignalScore = 8

// Overall recommendations.
const (
	SignalBuy     = "BUY"
	SignalSell    = "SELL"
	SignalNeutral = "NEUTRAL"
)

// RSI zones.
const (
	RSIOverbought = "OVERBOUGHT"
	RSIOversold   = "OVERSOLD"
	RSINeutral    = "NEUTRAL"
)

// SignalSummary is the vote count behind a buy/sell call.
type SignalSummary struct {
	Buy             int    `json:"buy"`
	Sell            int    `json:"sell"`
	Neutral         int    `json:"neutral"`
	Overall         string `json:"overall"`
	RSISignal       string `json:"rsiSignal"`
	MACross         string `json:"maCross"`
	VolatilityLevel string `json:"volatilityLevel"`
}

// Signal counts votes from price against the 5- and 20-day averages, the
// trend (double weight) and RSI. Invalid inputs do not vote.
func Signal(price float64, ind Indicators) SignalSummary {
	var buy, sell int
	vote := func(ma null.Float) {
		if !ma.Valid {
			return
		}
		switch {
		case price > ma.Float64:
			buy++
		case price < ma.Float64:
			sell++
		}
	}
	vote(ind.MA5)
	vote(ind.MA20)

	switch ind.Trend {
	case TrendBullish:
		buy += 2
	case TrendBearish:
		sell += 2
	}

	if ind.RSI.Valid {
		switch {
		case ind.RSI.Float64 < 40:
			buy++
		case ind.RSI.Float64 > 60:
			sell++
		}
	}

	s := SignalSummary{
		Buy:             buy,
		Sell:            sell,
		Neutral:         MaxSignalScore - buy - sell,
		Overall:         SignalNeutral,
		RSISignal:       RSIZone(ind.RSI),
		MACross:         MACross(ind.MA5, ind.MA10),
		VolatilityLevel: VolatilityLevel(ind.Volatility),
	}
	switch {
	case buy > sell:
		s.Overall = SignalBuy
	case sell > buy:
		s.Overall = SignalSell
	}
	return s
}

// RSIZone classifies RSI: above 70 overbought, below 30 oversold.
func RSIZone(rsi null.Float) string {
	if !rsi.Valid {
		return "N/A"
	}
	switch {
	case rsi.Float64 > 70:
		return RSIOverbought
	case rsi.Float64 < 30:
		return RSIOversold
	default:
		return RSINeutral
	}
}

// MACross describes the 5-day average relative to the 10-day one.
func MACross(ma5, ma10 null.Float) string {
	if !ma5.Valid || !ma10.Valid {
		return "N/A"
	}
	switch {
	case ma5.Float64 > ma10.Float64:
		return "Bullish Crossover"
	case ma5.Float64 < ma10.Float64:
		return "Bearish Crossover"
	default:
		return "N/A"
	}
}

// VolatilityLevel buckets annualized volatility: above 30% High, below 15% Low.
func VolatilityLevel(vol null.Float) string {
	if !vol.Valid {
		return "N/A"
	}
	switch {
	case vol.Float64 > 30:
		return "High"
	case vol.Float64 < 15:
		return "Low"
	default:
		return "Moderate"
	}
}
