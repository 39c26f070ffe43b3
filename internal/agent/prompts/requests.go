package prompts

import "fmt"

// ── Request Templates ──

// SymbolExtraction asks the model to pull NSE symbols out of a free-text
// query. The answer is expected as a bare comma-separated list.
func SymbolExtraction(query string) string {
	return fmt.Sprintf(`Extract the NSE stock symbols mentioned in this query. Return ONLY the stock symbols as a comma-separated list, nothing else.

Query: %q

NSE symbols are 2 to 10 characters, usually uppercase letters, for example IRCTC, TCS, RELIANCE.
Map company names to their symbols (Infosys is INFY, State Bank of India is SBIN).
Ignore words such as ANALYZE, COMPARE, STOCK and PRICE. If there are none, return an empty line.

Stock symbols:`, query)
}

// AnalysisRequest is the user turn for a single-stock analysis.
func AnalysisRequest(query, symbol string) string {
	return fmt.Sprintf("%s\n\nThe stock in question is NSE:%s. Fetch its data with the tools before answering.", query, symbol)
}

// ComparisonRequest is the user turn for a two-stock comparison.
func ComparisonRequest(symbol1, symbol2 string) string {
	return fmt.Sprintf("Compare %s vs %s. Use the compare_stocks tool to fetch the data.", symbol1, symbol2)
}

// Clarification is returned when a query names no stock.
const Clarification = `I couldn't identify specific stock symbols in your query. Please include stock symbols (e.g., "Analyze IRCTC" or "Compare IRCTC vs RVNL").`
