package technical

import (
	"sort"

	"github.com/seenimoa/stockai/pkg/models"
)

const maxLevels = 3

// SupportResistance finds local minima (supports) and maxima (resistances)
// among the latest window closes. A point qualifies when it is strictly
// below, or strictly above, both neighbours. The first three of each are
// kept in scan order, then supports are sorted high to low and resistances
// low to high. Both slices are non-nil.
func SupportResistance(history models.PriceHistory, window int) (supports, resistances []float64) {
	supports, resistances = []float64{}, []float64{}
	if window <= 0 {
		window = DefaultSRWindow
	}
	if len(history) < window {
		window = len(history)
	}
	if window < 3 {
		return supports, resistances
	}

	prices := history[:window].Closes()
	for i := 1; i < len(prices)-1; i++ {
		p, prev, next := prices[i], prices[i-1], prices[i+1]
		if p < prev && p < next && len(supports) < maxLevels {
			supports = append(supports, p)
		}
		if p > prev && p > next && len(resistances) < maxLevels {
			resistances = append(resistances, p)
		}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(supports)))
	sort.Float64s(resistances)
	return supports, resistances
}
