package comparison

import (
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDetermineWinner(t *testing.T) {
	f := null.FloatFrom
	tests := []struct {
		name   string
		a, b   null.Float
		higher bool
		want   Winner
	}{
		{"both missing", null.Float{}, null.Float{}, true, Tie},
		{"a missing", null.Float{}, f(1), true, B},
		{"b missing", f(1), null.Float{}, false, A},
		{"higher wins", f(20), f(10), true, A},
		{"lower wins", f(20), f(10), false, B},
		{"pe 42.80 vs 42.81 is not a tie", f(42.80), f(42.81), false, A},
		{"pe 42.805 vs 42.810 ties", f(42.805), f(42.810), false, Tie},
		{"equal", f(5), f(5), true, Tie},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineWinner(tt.a, tt.b, tt.higher); got != tt.want {
				t.Errorf("DetermineWinner(%v, %v, %v) = %s, want %s", tt.a, tt.b, tt.higher, got, tt.want)
			}
		})
	}
}

func TestHigherIsBetter(t *testing.T) {
	for _, name := range []string{MetricPE, MetricDebtToEquity, MetricLow52w} {
		if HigherIsBetter(name) {
			t.Errorf("%s should be lower-is-better", name)
		}
	}
	for _, name := range []string{MetricPrice, MetricROE, MetricMargin, MetricDividendYield, MetricOneYearReturn, MetricHigh52w} {
		if !HigherIsBetter(name) {
			t.Errorf("%s should be higher-is-better", name)
		}
	}
}

func TestScorecardAndInsight(t *testing.T) {
	f := null.FloatFrom
	metrics := []Metric{
		NewMetric(MetricPrice, f(3900), f(1800)),
		NewMetric(MetricPE, f(31), f(28)),
		NewMetric(MetricROE, f(51), f(32)),
		NewMetric(MetricDebtToEquity, f(0.1), f(0.1)),
		NewMetric(MetricDividendYield, null.Float{}, f(2.1)),
	}
	r := Scorecard(metrics)

	if r.WinsA != 2 || r.WinsB != 2 || r.Ties != 1 || r.Total != 5 {
		t.Fatalf("tally = %+v", r)
	}
	if r.Winners[MetricPE] != B || r.Winners[MetricDividendYield] != B {
		t.Errorf("winners = %v", r.Winners)
	}
	if r.Order[0] != MetricPrice || r.Order[4] != MetricDividendYield {
		t.Errorf("order = %v", r.Order)
	}
	if got := Insight("TCS", "INFY", r); got != "Both stocks show comparable performance across key metrics." {
		t.Errorf("even insight = %q", got)
	}

	r.WinsA = 3
	want := "TCS shows stronger fundamentals with superior performance in 3 out of 5 key metrics."
	if got := Insight("TCS", "INFY", r); got != want {
		t.Errorf("A insight = %q", got)
	}

	r.WinsA, r.WinsB = 0, 4
	want = "INFY demonstrates better overall performance, leading in 4 out of 5 key metrics."
	if got := Insight("TCS", "INFY", r); got != want {
		t.Errorf("B insight = %q", got)
	}
}

func optionalFloat() gopter.Gen {
	return gen.OneGenOf(
		gen.Const(null.Float{}),
		gen.Float64Range(-1e6, 1e6).Map(func(v float64) null.Float { return null.FloatFrom(v) }),
		gen.Float64Range(0, 0.02).Map(func(v float64) null.Float { return null.FloatFrom(v) }),
	)
}

func TestProperty_WinnerSymmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	mirror := map[Winner]Winner{A: B, B: A, Tie: Tie}
	properties.Property("swapping inputs swaps the winner", prop.ForAll(
		func(a, b null.Float, higher bool) bool {
			return DetermineWinner(b, a, higher) == mirror[DetermineWinner(a, b, higher)]
		},
		optionalFloat(),
		optionalFloat(),
		gen.Bool(),
	))

	properties.Property("scorecard counts add up", prop.ForAll(
		func(a, b []float64) bool {
			n := min(len(a), len(b))
			metrics := make([]Metric, n)
			for i := 0; i < n; i++ {
				metrics[i] = Metric{Name: string(rune('a' + i%26)), A: null.FloatFrom(a[i]), B: null.FloatFrom(b[i]), HigherIsBetter: i%2 == 0}
			}
			r := Scorecard(metrics)
			return r.WinsA+r.WinsB+r.Ties == r.Total && r.Total == n
		},
		gen.SliceOf(gen.Float64Range(-100, 100)),
		gen.SliceOf(gen.Float64Range(-100, 100)),
	))

	properties.TestingRun(t)
}
