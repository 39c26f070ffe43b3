package fundamental

import (
	"math"
	"testing"

	"github.com/guregu/null/v6"

	"github.com/seenimoa/stockai/pkg/models"
)

func holding(vals ...float64) []models.ShareholdingPeriod {
	out := make([]models.ShareholdingPeriod, len(vals))
	for i, v := range vals {
		if !math.IsNaN(v) {
			out[i].Promoter = null.FloatFrom(v)
		}
	}
	return out
}

func TestAnalyzePromoter(t *testing.T) {
	tests := []struct {
		name      string
		in        []models.ShareholdingPeriod
		direction string
		change    float64
	}{
		{"increasing", holding(55, 53, 52), TrendIncreasing, 3},
		{"decreasing", holding(40, 44, 47), TrendDecreasing, -7},
		{"stable", holding(72.3, 72.1, 72.0), TrendStable, 0.3},
		{"gaps skipped", holding(60, math.NaN(), 58), TrendIncreasing, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnalyzePromoter(tt.in)
			if a.Direction != tt.direction {
				t.Errorf("Direction = %q, want %q", a.Direction, tt.direction)
			}
			if !a.Change.Valid || math.Abs(a.Change.Float64-tt.change) > 1e-9 {
				t.Errorf("Change = %v, want %v", a.Change, tt.change)
			}
			if a.Current.Float64 != tt.in[0].Promoter.Float64 {
				t.Errorf("Current = %v", a.Current)
			}
		})
	}
}

func TestAnalyzePromoterSparse(t *testing.T) {
	a := AnalyzePromoter(nil)
	if a.Current.Valid || a.Direction != TrendUnknown || a.Signals == nil {
		t.Errorf("empty = %+v", a)
	}

	one := AnalyzePromoter(holding(51))
	if !one.Current.Valid || one.Change.Valid || one.Direction != TrendUnknown {
		t.Errorf("single quarter = %+v", one)
	}
}

func TestAnalyzePromoterHeavySelling(t *testing.T) {
	a := AnalyzePromoter(holding(40, 44, 47))
	found := false
	for _, s := range a.Signals {
		if s == "Significant promoter selling" {
			found = true
		}
	}
	if !found {
		t.Errorf("signals = %v", a.Signals)
	}
}

func TestAssessHealth(t *testing.T) {
	f := null.FloatFrom
	strong := &models.Fundamentals{
		PE: f(28), ROE: f(51), ROCE: f(64), NetMargin: f(19),
		DebtToEquity: f(0.1), DividendYield: f(2.4),
	}
	h := AssessHealth(strong)
	if h.Grade != GradeStrong || h.Score < 90 {
		t.Errorf("strong = %+v", h)
	}
	if len(h.Strengths) == 0 {
		t.Error("expected strengths")
	}

	weak := &models.Fundamentals{
		PE: f(-3), ROE: f(-4), NetMargin: f(-2), DebtToEquity: f(3.1),
	}
	h = AssessHealth(weak)
	if h.Grade != GradeWeak || len(h.Weaknesses) < 3 {
		t.Errorf("weak = %+v", h)
	}
}

func TestAssessHealthMissingData(t *testing.T) {
	if h := AssessHealth(nil); h.Grade != GradeUnknown {
		t.Errorf("nil = %+v", h)
	}
	if h := AssessHealth(&models.Fundamentals{}); h.Grade != GradeUnknown || len(h.Components) != 0 {
		t.Errorf("empty = %+v", h)
	}

	// Only solvency known: the score is relative to that component alone.
	h := AssessHealth(&models.Fundamentals{DebtToEquity: null.FloatFrom(0.2)})
	if h.Score != 100 || len(h.Components) != 1 {
		t.Errorf("partial = %+v", h)
	}
}
