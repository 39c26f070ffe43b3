package derivatives

import (
	"github.com/guregu/null/v6"

	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

// Option sentiment labels derived from the put-call ratio.
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// PutCallRatio is total put open interest over total call open interest.
func PutCallRatio(chain *models.OptionChain) null.Float {
	if chain == nil {
		return null.Float{}
	}
	calls := chain.CallOI()
	if calls == 0 {
		return null.Float{}
	}
	return utils.Finite(chain.PutOI() / calls)
}

// Sentiment reads the put-call ratio: above 1.2 put writers dominate
// (bullish), below 0.8 call writers dominate (bearish).
func Sentiment(pcr null.Float) string {
	if !pcr.Valid {
		return "N/A"
	}
	switch {
	case pcr.Float64 > 1.2:
		return SentimentBullish
	case pcr.Float64 < 0.8:
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}
