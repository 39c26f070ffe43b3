package prompts

import "slices"

// ── Indian Market Context ──

// MarketContext reminds the model of NSE trading conventions.
const MarketContext = `

## Market Context
- Exchange: NSE, prices in Indian Rupees (₹)
- Session: 9:15 AM to 3:30 PM IST, Monday to Friday, with exchange holidays
- Settlement: T+1
- Stock options expire monthly on the last Thursday`

// NumberFormat describes Indian number formatting for answers.
const NumberFormat = `

## Number Formatting
- Large amounts in lakhs (L, 1,00,000) and crores (Cr, 1,00,00,000)
- Indian digit grouping: ₹12,34,567
- Dates as DD-MMM-YYYY, times in IST`

// PromptSuffix is appended to every system prompt.
func PromptSuffix() string {
	return MarketContext + NumberFormat
}

// NSESectors lists well-known NSE symbols by sector. The classifier treats
// them as known symbols when the full directory is not loaded.
var NSESectors = map[string][]string{
	"IT":            {"TCS", "INFY", "WIPRO", "HCLTECH", "TECHM", "LTIM", "MPHASIS", "COFORGE", "PERSISTENT"},
	"Banking":       {"HDFCBANK", "ICICIBANK", "KOTAKBANK", "SBIN", "AXISBANK", "INDUSINDBK", "BANDHANBNK", "FEDERALBNK", "UTKARSHBNK"},
	"NBFC":          {"BAJFINANCE", "BAJAJFINSV", "CHOLAFIN", "MUTHOOTFIN"},
	"Pharma":        {"SUNPHARMA", "DRREDDY", "CIPLA", "DIVISLAB", "BIOCON", "LUPIN"},
	"Auto":          {"MARUTI", "TATAMOTORS", "M&M", "BAJAJ-AUTO", "HEROMOTOCO", "EICHERMOT"},
	"Oil & Gas":     {"RELIANCE", "ONGC", "IOC", "BPCL", "GAIL"},
	"Metal":         {"TATASTEEL", "HINDALCO", "JSWSTEEL", "VEDL", "COALINDIA"},
	"FMCG":          {"HINDUNILVR", "ITC", "NESTLEIND", "BRITANNIA", "DABUR"},
	"Railways":      {"IRCTC", "RVNL", "IRFC", "RAILTEL", "IRCON"},
	"Power":         {"NTPC", "POWERGRID", "TATAPOWER", "NHPC", "SJVN"},
	"Capital Goods": {"LT", "ABB", "SIEMENS", "HAL", "BEL", "BHEL"},
}

// SectorForTicker returns the sector of ticker, or "" when unknown.
func SectorForTicker(ticker string) string {
	for sector, tickers := range NSESectors {
		if slices.Contains(tickers, ticker) {
			return sector
		}
	}
	return ""
}

// IsWellKnown reports whether ticker appears in NSESectors.
func IsWellKnown(ticker string) bool {
	return SectorForTicker(ticker) != ""
}
