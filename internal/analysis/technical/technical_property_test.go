package technical

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func closesGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, gen.Float64Range(1, 10000)).SuchThat(func(v []float64) bool {
		return len(v) >= minLen
	})
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("RSI is within [0, 100] for period+1 or more points", prop.ForAll(
		func(closes []float64) bool {
			rsi := RSI(historyOf(closes...), DefaultRSIPeriod)
			return rsi.Valid && rsi.Float64 >= 0 && rsi.Float64 <= 100
		},
		closesGen(DefaultRSIPeriod+1, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_Position52wInsideRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("a price inside [low, high] maps into [0, 100]", prop.ForAll(
		func(low, width, frac float64) bool {
			high := low + width
			pos := Position52w(low+frac*width, low, high)
			return pos.Valid && pos.Float64 >= -1e-9 && pos.Float64 <= 100+1e-9
		},
		gen.Float64Range(1, 5000),
		gen.Float64Range(0.5, 5000),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestProperty_SupportResistanceBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("at most three levels, ordered", prop.ForAll(
		func(closes []float64) bool {
			s, r := SupportResistance(historyOf(closes...), DefaultSRWindow)
			if len(s) > maxLevels || len(r) > maxLevels {
				return false
			}
			for i := 1; i < len(s); i++ {
				if s[i-1] < s[i] {
					return false
				}
			}
			for i := 1; i < len(r); i++ {
				if r[i-1] > r[i] {
					return false
				}
			}
			return true
		},
		closesGen(0, 60),
	))

	properties.TestingRun(t)
}
