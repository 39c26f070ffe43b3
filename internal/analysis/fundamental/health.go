// Package fundamental grades a company from its headline ratios and
// its promoter holding history.
package fundamental

import (
	"fmt"

	"github.com/seenimoa/stockai/pkg/models"
)

// Health grades.
const (
	GradeStrong  = "Strong"
	GradeAverage = "Average"
	GradeWeak    = "Weak"
	GradeUnknown = "N/A"
)

// Health is a points-based reading of the Screener ratios. Score runs
// 0-100 over the components that had data.
type Health struct {
	Score      float64            `json:"score"`
	Grade      string             `json:"grade"`
	Strengths  []string           `json:"strengths"`
	Weaknesses []string           `json:"weaknesses"`
	Components map[string]float64 `json:"components"`
}

// AssessHealth scores profitability, solvency, valuation and income.
// A component is left out, not zeroed, when its inputs are missing.
func AssessHealth(f *models.Fundamentals) Health {
	h := Health{
		Grade:      GradeUnknown,
		Strengths:  []string{},
		Weaknesses: []string{},
		Components: make(map[string]float64),
	}
	if f == nil {
		return h
	}

	var total, weight float64
	add := func(name string, score, max float64) {
		h.Components[name] = score
		total += score
		weight += max
	}

	// Profitability (40 points).
	if f.ROE.Valid || f.ROCE.Valid || f.NetMargin.Valid {
		var s float64
		if f.ROE.Valid {
			switch roe := f.ROE.Float64; {
			case roe > 20:
				s += 15
				h.Strengths = append(h.Strengths, fmt.Sprintf("High ROE: %.1f%%", roe))
			case roe > 12:
				s += 10
			case roe > 0:
				s += 4
			default:
				h.Weaknesses = append(h.Weaknesses, "Negative or zero ROE")
			}
		}
		if f.ROCE.Valid {
			switch roce := f.ROCE.Float64; {
			case roce > 20:
				s += 15
				h.Strengths = append(h.Strengths, fmt.Sprintf("High ROCE: %.1f%%", roce))
			case roce > 12:
				s += 10
			case roce > 0:
				s += 4
			}
		}
		if f.NetMargin.Valid {
			switch m := f.NetMargin.Float64; {
			case m > 15:
				s += 10
				h.Strengths = append(h.Strengths, fmt.Sprintf("Healthy net margin: %.1f%%", m))
			case m > 5:
				s += 6
			case m > 0:
				s += 2
			default:
				h.Weaknesses = append(h.Weaknesses, "Loss-making")
			}
		}
		add("profitability", s, 40)
	}

	// Solvency (30 points).
	if f.DebtToEquity.Valid {
		var s float64
		switch de := f.DebtToEquity.Float64; {
		case de < 0.5:
			s = 30
			h.Strengths = append(h.Strengths, "Low debt-to-equity ratio")
		case de < 1:
			s = 20
		case de < 2:
			s = 10
		default:
			h.Weaknesses = append(h.Weaknesses, fmt.Sprintf("High D/E ratio: %.2f", de))
		}
		add("solvency", s, 30)
	}

	// Valuation (20 points).
	if f.PE.Valid {
		var s float64
		switch pe := f.PE.Float64; {
		case pe <= 0:
			h.Weaknesses = append(h.Weaknesses, "Negative earnings")
		case pe < 15:
			s = 20
		case pe < 30:
			s = 14
		case pe < 50:
			s = 7
		default:
			h.Weaknesses = append(h.Weaknesses, fmt.Sprintf("Rich valuation: P/E %.1f", pe))
		}
		add("valuation", s, 20)
	}

	// Income (10 points).
	if f.DividendYield.Valid {
		var s float64
		switch dy := f.DividendYield.Float64; {
		case dy >= 2:
			s = 10
			h.Strengths = append(h.Strengths, fmt.Sprintf("Dividend yield %.2f%%", dy))
		case dy >= 0.5:
			s = 6
		case dy > 0:
			s = 3
		}
		add("income", s, 10)
	}

	if weight == 0 {
		return h
	}
	h.Score = total / weight * 100
	h.Grade = grade(h.Score)
	return h
}

func grade(score float64) string {
	switch {
	case score >= 70:
		return GradeStrong
	case score >= 45:
		return GradeAverage
	default:
		return GradeWeak
	}
}
