// Package derivatives derives open-interest and volatility metrics from a
// single-expiry option chain.
package derivatives

import (
	"github.com/guregu/null/v6"

	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

// OIPoint is a strike and its open interest.
type OIPoint struct {
	Strike float64 `json:"strike"`
	OI     float64 `json:"oi"`
}

// Summary is the full option-chain read-out.
type Summary struct {
	Symbol     string  `json:"symbol"`
	Underlying float64 `json:"underlying"`
	Expiry     string  `json:"expiry"`
	Strikes    int     `json:"strikes"`

	PCR       null.Float `json:"pcr"`
	Sentiment string     `json:"sentiment"`

	MaxPain         null.Float `json:"maxPain"`
	MaxPainDistance null.Float `json:"maxPainDistance"`
	MaxCallOI       OIPoint    `json:"maxCallOI"`
	MaxPutOI        OIPoint    `json:"maxPutOI"`

	AverageIV null.Float `json:"averageIV"`
	IVLevel   string     `json:"ivLevel"`

	TotalCallOI     float64 `json:"totalCallOI"`
	TotalPutOI      float64 `json:"totalPutOI"`
	TotalCallVolume float64 `json:"totalCallVolume"`
	TotalPutVolume  float64 `json:"totalPutVolume"`
}

// Analyze computes every metric for chain.
func Analyze(chain *models.OptionChain) Summary {
	if chain == nil {
		return Summary{Sentiment: "N/A", IVLevel: "N/A"}
	}

	s := Summary{
		Symbol:          chain.Symbol,
		Underlying:      chain.Underlying,
		Expiry:          chain.Expiry,
		Strikes:         len(chain.Strikes),
		PCR:             PutCallRatio(chain),
		MaxPain:         MaxPainStrike(chain),
		AverageIV:       AverageIV(chain),
		TotalCallOI:     chain.CallOI(),
		TotalPutOI:      chain.PutOI(),
		TotalCallVolume: chain.CallVolume(),
		TotalPutVolume:  chain.PutVolume(),
	}
	s.Sentiment = Sentiment(s.PCR)
	s.IVLevel = IVLevel(s.AverageIV)
	s.MaxCallOI, s.MaxPutOI = OIExtremes(chain)
	if s.MaxPain.Valid && chain.Underlying > 0 {
		s.MaxPainDistance = utils.Finite((s.MaxPain.Float64 - chain.Underlying) / chain.Underlying * 100)
	}
	return s
}

// MaxPainStrike returns the strike carrying the most combined call and put
// open interest. Ties keep the lower strike.
func MaxPainStrike(chain *models.OptionChain) null.Float {
	if chain == nil || len(chain.Strikes) == 0 {
		return null.Float{}
	}
	best := chain.Strikes[0]
	for _, s := range chain.Strikes[1:] {
		total, bestTotal := s.CallOI+s.PutOI, best.CallOI+best.PutOI
		if total > bestTotal || (total == bestTotal && s.Strike < best.Strike) {
			best = s
		}
	}
	return null.FloatFrom(best.Strike)
}

// OIExtremes returns the strikes with the highest call open interest (the
// strongest resistance) and the highest put open interest (the strongest
// support). Ties keep the lower strike.
func OIExtremes(chain *models.OptionChain) (maxCall, maxPut OIPoint) {
	if chain == nil {
		return maxCall, maxPut
	}
	for _, s := range chain.Strikes {
		if s.CallOI > maxCall.OI || (s.CallOI == maxCall.OI && s.CallOI > 0 && s.Strike < maxCall.Strike) {
			maxCall = OIPoint{Strike: s.Strike, OI: s.CallOI}
		}
		if s.PutOI > maxPut.OI || (s.PutOI == maxPut.OI && s.PutOI > 0 && s.Strike < maxPut.Strike) {
			maxPut = OIPoint{Strike: s.Strike, OI: s.PutOI}
		}
	}
	return maxCall, maxPut
}

// AverageIV is the mean of every non-zero call and put implied volatility.
func AverageIV(chain *models.OptionChain) null.Float {
	if chain == nil {
		return null.Float{}
	}
	var sum float64
	var n int
	for _, s := range chain.Strikes {
		if s.CallIV > 0 {
			sum += s.CallIV
			n++
		}
		if s.PutIV > 0 {
			sum += s.PutIV
			n++
		}
	}
	if n == 0 {
		return null.Float{}
	}
	return utils.Finite(sum / float64(n))
}

// IVLevel buckets implied volatility: above 30 High, below 20 Low.
func IVLevel(iv null.Float) string {
	if !iv.Valid {
		return "N/A"
	}
	switch {
	case iv.Float64 > 30:
		return "High"
	case iv.Float64 < 20:
		return "Low"
	default:
		return "Moderate"
	}
}
