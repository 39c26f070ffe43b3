// Package sentiment scores news headlines with a keyword lexicon. It needs
// no model and is deterministic, so it backs the news tool even when the
// LLM is down.
package sentiment

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/seenimoa/stockai/pkg/models"
)

// Lexicon weights, lower case. Multi-word phrases match as substrings,
// single words match whole words only.
var bullishWords = map[string]float64{
	"bullish": 0.7, "rally": 0.6, "rallies": 0.6, "surge": 0.7, "surges": 0.7, "upbeat": 0.5,
	"positive": 0.4, "growth": 0.4, "upgrade": 0.6, "outperform": 0.6,
	"buy": 0.5, "strong": 0.4, "recovery": 0.5, "breakout": 0.6,
	"record high": 0.7, "all-time high": 0.7, "beat": 0.5, "beats": 0.5,
	"gains": 0.4, "jumps": 0.5, "wins": 0.4, "order win": 0.5,
	"profit rises": 0.6, "dividend": 0.4, "bonus": 0.4, "accumulate": 0.5,
}

var bearishWords = map[string]float64{
	"bearish": 0.7, "crash": 0.8, "plunge": 0.7, "plunges": 0.7, "slump": 0.6,
	"negative": 0.4, "downgrade": 0.6, "underperform": 0.6,
	"sell": 0.5, "weak": 0.4, "decline": 0.5, "loss": 0.4, "losses": 0.4,
	"selloff": 0.7, "falls": 0.4, "correction": 0.5, "tumbles": 0.6,
	"default": 0.7, "fraud": 0.8, "scam": 0.8, "investigation": 0.5,
	"penalty": 0.5, "miss": 0.5, "misses": 0.5, "warning": 0.5, "concern": 0.3,
}

// Labels for aggregate sentiment.
const (
	LabelBullish         = "Bullish"
	LabelSlightlyBullish = "Slightly Bullish"
	LabelNeutral         = "Neutral"
	LabelSlightlyBearish = "Slightly Bearish"
	LabelBearish         = "Bearish"
)

// Score is one headline's reading. Value runs from -1 (bearish) to +1.
type Score struct {
	Headline   string    `json:"headline"`
	Value      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Published  time.Time `json:"published"`
}

// Aggregate is the time-weighted reading over many headlines.
type Aggregate struct {
	Value      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
	Articles   int     `json:"articles"`
}

// ScoreHeadline returns the net lexicon score and a confidence that grows
// with the number of matched terms.
func ScoreHeadline(text string) (score, confidence float64) {
	lower := strings.ToLower(text)
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	}) {
		words[w] = struct{}{}
	}
	has := func(term string) bool {
		if strings.ContainsRune(term, ' ') {
			return strings.Contains(lower, term)
		}
		_, ok := words[term]
		return ok
	}

	var bull, bear float64
	matches := 0
	for term, w := range bullishWords {
		if has(term) {
			bull += w
			matches++
		}
	}
	for term, w := range bearishWords {
		if has(term) {
			bear += w
			matches++
		}
	}
	if matches == 0 {
		return 0, 0.1
	}

	score = (bull - bear) / (bull + bear)
	confidence = math.Min(float64(matches)*0.15+0.2, 0.85)
	return score, confidence
}

// ScoreItem scores a headline together with its summary.
func ScoreItem(item models.NewsItem) Score {
	text := item.Title
	if item.Summary != "" {
		text += " " + item.Summary
	}
	v, c := ScoreHeadline(text)
	return Score{Headline: item.Title, Value: v, Confidence: c, Published: item.Published}
}

// AggregateItems scores every item and combines them, halving an item's
// weight for each day of age relative to now.
func AggregateItems(items []models.NewsItem, now time.Time) Aggregate {
	if len(items) == 0 {
		return Aggregate{Label: LabelNeutral}
	}

	var weighted, totalWeight, confSum float64
	for _, it := range items {
		s := ScoreItem(it)
		age := 0.0
		if !s.Published.IsZero() {
			age = math.Max(now.Sub(s.Published).Hours(), 0)
		}
		w := math.Exp(-math.Ln2*age/24) * s.Confidence
		weighted += s.Value * w
		totalWeight += w
		confSum += s.Confidence
	}

	agg := Aggregate{
		Confidence: confSum / float64(len(items)),
		Articles:   len(items),
	}
	if totalWeight > 0 {
		agg.Value = weighted / totalWeight
	}
	agg.Label = Label(agg.Value)
	return agg
}

// Label maps an aggregate score to a five-step scale.
func Label(score float64) string {
	switch {
	case score > 0.3:
		return LabelBullish
	case score > 0.1:
		return LabelSlightlyBullish
	case score < -0.3:
		return LabelBearish
	case score < -0.1:
		return LabelSlightlyBearish
	default:
		return LabelNeutral
	}
}
