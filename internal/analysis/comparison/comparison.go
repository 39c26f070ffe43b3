// Package comparison scores two stocks metric by metric.
package comparison

import (
	"fmt"
	"math"

	"github.com/guregu/null/v6"
)

// Winner names the better side of one metric.
type Winner string

const (
	A   Winner = "A"
	B   Winner = "B"
	Tie Winner = "Tie"
)

// TieTolerance is the absolute difference below which two values tie.
const TieTolerance = 0.01

// Scorecard metric names.
const (
	MetricPrice         = "price"
	MetricPE            = "pe"
	MetricROE           = "roe"
	MetricMargin        = "margin"
	MetricDebtToEquity  = "debtToEquity"
	MetricDividendYield = "dividendYield"
	MetricOneYearReturn = "oneYearReturn"
	MetricHigh52w       = "high52w"
	MetricLow52w        = "low52w"
)

// lowerIsBetter lists the metrics where the smaller value wins.
var lowerIsBetter = map[string]bool{
	MetricPE:           true,
	MetricDebtToEquity: true,
	MetricLow52w:       true,
}

// HigherIsBetter reports the direction of a named metric.
func HigherIsBetter(name string) bool { return !lowerIsBetter[name] }

// DetermineWinner compares a and b. A missing value loses to a present one;
// two missing values tie, as do values closer than TieTolerance.
func DetermineWinner(a, b null.Float, higherIsBetter bool) Winner {
	switch {
	case !a.Valid && !b.Valid:
		return Tie
	case !a.Valid:
		return B
	case !b.Valid:
		return A
	}
	if math.Abs(a.Float64-b.Float64) < TieTolerance {
		return Tie
	}
	if (a.Float64 > b.Float64) == higherIsBetter {
		return A
	}
	return B
}

// Metric is one row of a scorecard.
type Metric struct {
	Name           string
	A, B           null.Float
	HigherIsBetter bool
}

// NewMetric builds a row with the direction looked up by name.
func NewMetric(name string, a, b null.Float) Metric {
	return Metric{Name: name, A: a, B: b, HigherIsBetter: HigherIsBetter(name)}
}

// Result tallies a scorecard. Order keeps the metric names as given.
type Result struct {
	Winners map[string]Winner `json:"winners"`
	Order   []string          `json:"order"`
	WinsA   int               `json:"winsA"`
	WinsB   int               `json:"winsB"`
	Ties    int               `json:"ties"`
	Total   int               `json:"total"`
}

// Scorecard decides every metric and counts the wins.
func Scorecard(metrics []Metric) Result {
	r := Result{
		Winners: make(map[string]Winner, len(metrics)),
		Order:   make([]string, 0, len(metrics)),
		Total:   len(metrics),
	}
	for _, m := range metrics {
		w := DetermineWinner(m.A, m.B, m.HigherIsBetter)
		r.Winners[m.Name] = w
		r.Order = append(r.Order, m.Name)
		switch w {
		case A:
			r.WinsA++
		case B:
			r.WinsB++
		default:
			r.Ties++
		}
	}
	return r
}

// Leader returns the side with more wins, or Tie.
func (r Result) Leader() Winner {
	switch {
	case r.WinsA > r.WinsB:
		return A
	case r.WinsB > r.WinsA:
		return B
	default:
		return Tie
	}
}

// Insight is the one-sentence verdict used when no narrative is available.
func Insight(nameA, nameB string, r Result) string {
	switch r.Leader() {
	case A:
		return fmt.Sprintf("%s shows stronger fundamentals with superior performance in %d out of %d key metrics.", nameA, r.WinsA, r.Total)
	case B:
		return fmt.Sprintf("%s demonstrates better overall performance, leading in %d out of %d key metrics.", nameB, r.WinsB, r.Total)
	default:
		return "Both stocks show comparable performance across key metrics."
	}
}
