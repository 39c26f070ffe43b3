package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/seenimoa/stockai/internal/analysis/derivatives"
	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/pkg/utils"
)

// OIConcentration is the strike carrying the most open interest on one side.
type OIConcentration struct {
	Strike         string `json:"strike"`
	OI             string `json:"oi"`
	Interpretation string `json:"interpretation"`
}

// OptionsReport is the analyze_options payload.
type OptionsReport struct {
	Symbol          string          `json:"symbol"`
	UnderlyingPrice string          `json:"underlyingPrice"`
	ExpiryDate      string          `json:"expiryDate"`
	PCR             string          `json:"pcr"`
	Sentiment       string          `json:"sentiment"`
	MaxPain         string          `json:"maxPain"`
	MaxPainDistance string          `json:"maxPainDistance"`
	HighestCallOI   OIConcentration `json:"highestCallOI"`
	HighestPutOI    OIConcentration `json:"highestPutOI"`
	AverageIV       string          `json:"averageIV"`
	IVAssessment    string          `json:"ivAssessment"`
	TotalCallVolume string          `json:"totalCallVolume"`
	TotalPutVolume  string          `json:"totalPutVolume"`
}

// Options returns the analyze_options payload. Stocks outside the F&O
// segment have no chain; the failure text says so.
func (k *Toolkit) Options(ctx context.Context, symbol string) string {
	sym := utils.NormalizeTicker(symbol)
	return k.cached("tool:options:"+sym, cache.Options, func() (string, bool) {
		s, err := k.OptionsSummary(ctx, sym)
		if err != nil {
			return OptionsError(sym, err), false
		}
		return toJSON(FormatOptions(s)), true
	})
}

// OptionsSummary analyses the nearest-expiry option chain.
func (k *Toolkit) OptionsSummary(ctx context.Context, symbol string) (derivatives.Summary, error) {
	sym := utils.NormalizeTicker(symbol)
	chain, err := k.facade.OptionChain(ctx, sym)
	if err != nil {
		return derivatives.Summary{}, &LookupError{Symbol: sym, Err: err}
	}
	return derivatives.Analyze(chain), nil
}

// OptionsError is the message shown when a symbol's options cannot be
// analysed.
func OptionsError(sym string, err error) string {
	return fmt.Sprintf("Error analyzing options for %s: %s. Note: Options data may not be available for all stocks.", sym, reason(err))
}

// reason is the short cause used inside longer error sentences.
func reason(err error) string {
	var le *LookupError
	if errors.As(err, &le) {
		err = le.Err
	}
	return err.Error()
}

// FormatOptions renders a summary for display. Open interest and volume
// are shown in lakhs.
func FormatOptions(s derivatives.Summary) OptionsReport {
	return OptionsReport{
		Symbol:          s.Symbol,
		UnderlyingPrice: rupees(s.Underlying),
		ExpiryDate:      utils.OrNA(s.Expiry),
		PCR:             utils.FmtNum(s.PCR, 2),
		Sentiment:       optionSentiment(s.Sentiment),
		MaxPain:         utils.FmtRupee(s.MaxPain),
		MaxPainDistance: utils.FmtPercent(s.MaxPainDistance),
		HighestCallOI: OIConcentration{
			Strike:         rupees(s.MaxCallOI.Strike),
			OI:             utils.FormatLakhs(s.MaxCallOI.OI),
			Interpretation: "Strong Resistance",
		},
		HighestPutOI: OIConcentration{
			Strike:         rupees(s.MaxPutOI.Strike),
			OI:             utils.FormatLakhs(s.MaxPutOI.OI),
			Interpretation: "Strong Support",
		},
		AverageIV:       utils.FmtPercent(s.AverageIV),
		IVAssessment:    ivAssessment(s.IVLevel),
		TotalCallVolume: utils.FormatLakhs(s.TotalCallVolume),
		TotalPutVolume:  utils.FormatLakhs(s.TotalPutVolume),
	}
}

func optionSentiment(label string) string {
	switch label {
	case derivatives.SentimentBullish:
		return "Bullish (High Put OI)"
	case derivatives.SentimentBearish:
		return "Bearish (High Call OI)"
	case derivatives.SentimentNeutral:
		return "Neutral"
	default:
		return label
	}
}

func ivAssessment(level string) string {
	switch level {
	case "High":
		return "High (Volatile market)"
	case "Low":
		return "Low (Calm market)"
	default:
		return level
	}
}
