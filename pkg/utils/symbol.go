package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxSymbolLen is the longest ticker the exchange issues.
const MaxSymbolLen = 20

var symbolPattern = regexp.MustCompile(`^[A-Z0-9&-]+$`)

// ErrInvalidSymbol is returned by ValidateSymbol for malformed tickers.
var ErrInvalidSymbol = errors.New("invalid stock symbol format")

// Common NSE ticker aliases.
var tickerAliases = map[string]string{
	"RIL":          "RELIANCE",
	"INFOSYS":      "INFY",
	"HDFC BANK":    "HDFCBANK",
	"ICICI BANK":   "ICICIBANK",
	"SBI":          "SBIN",
	"AIRTEL":       "BHARTIARTL",
	"BAJAJ FIN":    "BAJFINANCE",
	"L&T":          "LT",
	"TATA MOTORS":  "TATAMOTORS",
	"TATA STEEL":   "TATASTEEL",
	"HCL TECH":     "HCLTECH",
	"KOTAK":        "KOTAKBANK",
	"AXIS BANK":    "AXISBANK",
	"SUN PHARMA":   "SUNPHARMA",
	"ASIAN PAINTS": "ASIANPAINT",
	"NESTLE":       "NESTLEIND",
	"ULTRATECH":    "ULTRACEMCO",
	"MAHINDRA":     "M&M",
	"HUL":          "HINDUNILVR",
	"COAL INDIA":   "COALINDIA",
}

// Index tickers that trade options on the index segment.
var indexTickers = map[string]string{
	"NIFTY":      "NIFTY",
	"NIFTY50":    "NIFTY",
	"NIFTY 50":   "NIFTY",
	"BANKNIFTY":  "BANKNIFTY",
	"NIFTYBANK":  "BANKNIFTY",
	"NIFTY BANK": "BANKNIFTY",
	"FINNIFTY":   "FINNIFTY",
	"MIDCPNIFTY": "MIDCPNIFTY",
}

// NormalizeTicker upper-cases and trims user input, strips exchange suffixes
// and resolves common aliases.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))
	ticker = strings.TrimPrefix(ticker, "$")
	ticker = strings.TrimSuffix(ticker, ".NS")
	ticker = strings.TrimSuffix(ticker, ".BO")

	if idx, ok := indexTickers[ticker]; ok {
		return idx
	}
	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// ValidateSymbol checks the ticker format: 1-20 characters of [A-Z0-9&-].
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}
	if len(symbol) > MaxSymbolLen {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidSymbol, MaxSymbolLen)
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// IsIndex reports whether the ticker names an index rather than a stock.
func IsIndex(ticker string) bool {
	_, ok := indexTickers[NormalizeTicker(ticker)]
	return ok
}
