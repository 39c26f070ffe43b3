package sentiment

import (
	"math"
	"testing"
	"time"

	"github.com/seenimoa/stockai/pkg/models"
)

func TestScoreHeadline(t *testing.T) {
	tests := []struct {
		headline string
		sign     int
	}{
		{"Reliance shares rally 5% on strong growth and positive results", 1},
		{"Market crash: stocks plunge amid fraud investigation concerns", -1},
		{"Company announces new office location in Bengaluru", 0},
		{"TCS hits record high after order win", 1},
		{"Bank faces penalty, shares tumbles", -1},
	}
	for _, tt := range tests {
		score, conf := ScoreHeadline(tt.headline)
		switch {
		case tt.sign > 0 && score <= 0, tt.sign < 0 && score >= 0, tt.sign == 0 && score != 0:
			t.Errorf("ScoreHeadline(%q) = %.3f, want sign %d", tt.headline, score, tt.sign)
		}
		if conf <= 0 || conf > 0.85 {
			t.Errorf("confidence %.3f out of range for %q", conf, tt.headline)
		}
	}
}

func TestScoreHeadlineWholeWords(t *testing.T) {
	// "sell" inside "bestseller" and "beat" inside "heartbeat" must not count.
	if score, _ := ScoreHeadline("Bestseller author describes the heartbeat of Mumbai"); score != 0 {
		t.Errorf("substring matched: %.3f", score)
	}
}

func TestAggregateItems(t *testing.T) {
	now := time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)
	items := []models.NewsItem{
		{Title: "Shares surge on record high profit rises", Published: now},
		{Title: "Stock falls after downgrade", Published: now.Add(-96 * time.Hour)},
	}
	agg := AggregateItems(items, now)
	if agg.Articles != 2 {
		t.Errorf("Articles = %d", agg.Articles)
	}
	if agg.Value <= 0.3 || agg.Label != LabelBullish {
		t.Errorf("recent bullish news should dominate: %+v", agg)
	}

	empty := AggregateItems(nil, now)
	if empty.Label != LabelNeutral || empty.Value != 0 {
		t.Errorf("empty = %+v", empty)
	}
}

func TestAggregateFutureDatesNotAmplified(t *testing.T) {
	now := time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)
	items := []models.NewsItem{{Title: "Shares surge", Published: now.Add(48 * time.Hour)}}
	agg := AggregateItems(items, now)
	if math.IsNaN(agg.Value) || agg.Value > 1 {
		t.Errorf("Value = %v", agg.Value)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.5, LabelBullish},
		{0.2, LabelSlightlyBullish},
		{0, LabelNeutral},
		{-0.2, LabelSlightlyBearish},
		{-0.9, LabelBearish},
	}
	for _, tt := range tests {
		if got := Label(tt.score); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
