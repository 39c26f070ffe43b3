package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"

	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/internal/datasource"
	"github.com/seenimoa/stockai/internal/llm"
	"github.com/seenimoa/stockai/pkg/models"
)

var errReset = errors.New("connection reset")

// fakeMarket is an in-memory exchange. Unknown symbols report ErrNotFound;
// fail makes one operation return a transient error.
type fakeMarket struct {
	mu      sync.Mutex
	stocks  map[string]*models.EquitySnapshot
	trade   map[string]*models.TradeInfo
	corp    map[string]*models.CorporateProfile
	history map[string]models.PriceHistory
	chains  map[string]*models.OptionChain
	fail    map[string]error
	calls   map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		stocks:  make(map[string]*models.EquitySnapshot),
		trade:   make(map[string]*models.TradeInfo),
		corp:    make(map[string]*models.CorporateProfile),
		history: make(map[string]models.PriceHistory),
		chains:  make(map[string]*models.OptionChain),
		fail:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (m *fakeMarket) hit(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	return m.fail[op]
}

func (m *fakeMarket) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *fakeMarket) Equity(_ context.Context, sym string) (*models.EquitySnapshot, error) {
	if err := m.hit("equity"); err != nil {
		return nil, err
	}
	s, ok := m.stocks[sym]
	if !ok {
		return nil, datasource.ErrNotFound
	}
	return s, nil
}

func (m *fakeMarket) TradeInfo(_ context.Context, sym string) (*models.TradeInfo, error) {
	if err := m.hit("trade"); err != nil {
		return nil, err
	}
	t, ok := m.trade[sym]
	if !ok {
		return nil, datasource.ErrNotFound
	}
	return t, nil
}

func (m *fakeMarket) Corporate(_ context.Context, sym string) (*models.CorporateProfile, error) {
	if err := m.hit("corporate"); err != nil {
		return nil, err
	}
	c, ok := m.corp[sym]
	if !ok {
		return nil, datasource.ErrNotFound
	}
	return c, nil
}

func (m *fakeMarket) History(_ context.Context, sym string, _, _ time.Time) (models.PriceHistory, error) {
	if err := m.hit("history"); err != nil {
		return nil, err
	}
	return m.history[sym], nil
}

func (m *fakeMarket) OptionChain(_ context.Context, sym string) (*models.OptionChain, error) {
	if err := m.hit("options"); err != nil {
		return nil, err
	}
	oc, ok := m.chains[sym]
	if !ok {
		return nil, datasource.ErrNotFound
	}
	return oc, nil
}

func (m *fakeMarket) MarketStatus(context.Context) (*models.MarketStatus, error) {
	return &models.MarketStatus{}, m.hit("market")
}

type fakeScreener map[string]*models.Fundamentals

func (f fakeScreener) Fundamentals(_ context.Context, sym string) (*models.Fundamentals, error) {
	if v, ok := f[sym]; ok {
		return v, nil
	}
	return nil, datasource.ErrNotFound
}

type fakeNews struct {
	items []models.NewsItem
	err   error
}

func (f fakeNews) StockNews(context.Context, string, string, int) ([]models.NewsItem, error) {
	return f.items, f.err
}

type fakeDirectory []models.Listing

func (f fakeDirectory) Search(name string) []models.Listing {
	var out []models.Listing
	for _, l := range f {
		if strings.Contains(strings.ToLower(l.Name), strings.ToLower(name)) {
			out = append(out, l)
		}
	}
	return out
}

// risingHistory returns n newest-first sessions ending at last, one rupee
// lower for each day back.
func risingHistory(now time.Time, n int, last float64) models.PriceHistory {
	h := make(models.PriceHistory, n)
	for i := range h {
		c := last - float64(i)
		h[i] = models.OHLCV{Date: now.AddDate(0, 0, -i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return h
}

var testNow = time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	market *fakeMarket
	store  *cache.Store
	kit    *Toolkit
	now    time.Time
}

func (f *fixture) clock() time.Time { return f.now }

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{market: newFakeMarket(), now: testNow}
	m := f.market

	f64 := null.FloatFrom
	m.stocks["TCS"] = &models.EquitySnapshot{
		Symbol: "TCS", CompanyName: "Tata Consultancy Services Limited", Industry: "Computers - Software",
		SectorIndex: "NIFTY IT", IsFNO: true,
		LastPrice: 3900, Change: f64(39), PChange: f64(1.01),
		DayLow: f64(3850), DayHigh: f64(3920), VWAP: f64(3890.5),
		Week52Low: f64(3000), Week52High: f64(4500), PE: f64(31), SectorPE: f64(29.5),
	}
	m.stocks["INFY"] = &models.EquitySnapshot{
		Symbol: "INFY", CompanyName: "Infosys Limited", LastPrice: 1800, PChange: f64(-0.5),
		Week52Low: f64(1400), Week52High: f64(2000), PE: f64(28),
	}
	m.trade["TCS"] = &models.TradeInfo{Symbol: "TCS", TotalMarketCap: f64(1411000), TotalTradedVolume: f64(15), DeliveryPercent: f64(55.67)}
	m.corp["TCS"] = &models.CorporateProfile{
		Symbol:        "TCS",
		Shareholding:  []models.ShareholdingPeriod{{Date: "30-Sep-2024", Promoter: f64(72.3)}, {Date: "30-Jun-2024", Promoter: f64(71.0)}},
		Actions:       []models.CorporateAction{{ExDate: "18-Oct-2024", Purpose: "Interim Dividend - Rs 10 Per Share"}},
		Announcements: []models.Announcement{{Date: "10-Oct-2024", Subject: "Financial Results"}},
		BoardMeetings: []models.BoardMeeting{{Date: "09-Jan-2025", Purpose: "Financial Results"}},
		Results:       []models.FinancialResult{{Period: "Q2", Income: f64(100), NetProfit: f64(20), EPS: f64(32.9)}},
	}
	m.history["TCS"] = risingHistory(testNow, 30, 3900)

	store := cache.New(cache.WithClock(f.clock))
	facade := datasource.NewFacade(m, store, datasource.WithRetry(1, 0))
	f.store = store
	f.kit = New(facade, append([]Option{WithClock(f.clock)}, opts...)...)
	return f
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("payload is not JSON: %v\n%s", err, s)
	}
	return v
}

// --- analyze_stock ---

func TestAnalyzeStockFields(t *testing.T) {
	f := newFixture(t)
	got := decode(t, f.kit.AnalyzeStock(context.Background(), "tcs"))

	want := map[string]string{
		"symbol":             "TCS",
		"price":              "₹3900.00",
		"change":             "+₹39.00 (+1.01%)",
		"dayRange":           "₹3850.00 - ₹3920.00",
		"fiftyTwoWeekRange":  "₹3000.00 - ₹4500.00",
		"position52w":        "60.0% of range",
		"peRatio":            "31.00",
		"marketCap":          "₹14.11 L Cr",
		"volume":             "15.00 L",
		"deliveryPercent":    "55.67%",
		"ma5":                "₹3898.00",
		"trend":              "bullish",
		"promoterHolding":    "72.30",
		"promoterTrend":      "increasing",
		"recentDividend":     "Interim Dividend - Rs 10 Per Share on 18-Oct-2024",
		"latestAnnouncement": "Financial Results on 10-Oct-2024",
		"fnoAvailable":       "Yes",
		"indices":            "NIFTY IT",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %q", k, got[k], v)
		}
	}
}

func TestAnalyzeStockIdempotentWithinTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.kit.AnalyzeStock(ctx, "TCS")
	second := f.kit.AnalyzeStock(ctx, "TCS")
	if first != second {
		t.Fatal("repeat call within TTL returned different bytes")
	}
	if n := f.market.count("equity"); n != 1 {
		t.Errorf("equity calls = %d, want 1", n)
	}

	f.now = f.now.Add(f.store.TTL(cache.Historical) + time.Second)
	f.kit.AnalyzeStock(ctx, "TCS")
	if n := f.market.count("equity"); n != 2 {
		t.Errorf("equity calls after TTL = %d, want 2", n)
	}
}

func TestAnalyzeStockOptionalPartsFail(t *testing.T) {
	f := newFixture(t)
	f.market.fail["trade"] = errReset
	f.market.fail["corporate"] = errReset
	f.market.fail["history"] = errReset

	got := decode(t, f.kit.AnalyzeStock(context.Background(), "TCS"))
	if got["price"] != "₹3900.00" {
		t.Errorf("price = %v", got["price"])
	}
	for _, k := range []string{"marketCap", "volume", "deliveryPercent", "ma5", "rsi", "promoterHolding"} {
		if got[k] != "N/A" {
			t.Errorf("%s = %v, want N/A", k, got[k])
		}
	}
	if got["recentDividend"] != "No recent dividend" || got["latestAnnouncement"] != "No recent announcements" {
		t.Errorf("corporate placeholders = %v / %v", got["recentDividend"], got["latestAnnouncement"])
	}
	if s, ok := got["supports"].([]any); !ok || len(s) != 0 {
		t.Errorf("supports = %#v, want []", got["supports"])
	}
}

func TestAnalyzeStockErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got := decode(t, f.kit.AnalyzeStock(ctx, "NOSUCH"))
	if got["error"] != "Stock NOSUCH not found on NSE. Please check the spelling." {
		t.Errorf("error = %v", got["error"])
	}

	f.market.fail["equity"] = errReset
	got = decode(t, f.kit.AnalyzeStock(ctx, "TCS"))
	if got["error"] != "Unable to fetch data for TCS right now. Please try again later." {
		t.Errorf("error = %v", got["error"])
	}

	delete(f.market.fail, "equity")
	got = decode(t, f.kit.AnalyzeStock(ctx, "TCS"))
	if got["symbol"] != "TCS" {
		t.Errorf("failure was cached: %v", got)
	}
}

// --- technical_analysis ---

func TestTechnical(t *testing.T) {
	f := newFixture(t)
	var r TechnicalReport
	if err := json.Unmarshal([]byte(f.kit.Technical(context.Background(), "TCS")), &r); err != nil {
		t.Fatal(err)
	}
	if r.Trend != "BULLISH" || r.MACD != "Bullish Crossover" {
		t.Errorf("trend=%q macd=%q", r.Trend, r.MACD)
	}
	if r.RSI != "100.0" || r.RSISignal != "OVERBOUGHT (Consider selling)" {
		t.Errorf("rsi=%q signal=%q", r.RSI, r.RSISignal)
	}
	if r.MovingAverages.MA20 != "₹3890.50" || r.MovingAverages.MA20Signal != "Above (Bullish)" {
		t.Errorf("ma20 = %+v", r.MovingAverages)
	}
	// Above both averages (+2), bullish trend (+2), RSI 100 (sell +1).
	if r.Signals.Buy != 4 || r.Signals.Sell != 1 || r.Signals.Neutral != 3 || r.Signals.Overall != "BUY" {
		t.Errorf("signals = %+v", r.Signals)
	}
	if r.DataPoints != 30 || r.Warning != "" {
		t.Errorf("dataPoints=%d warning=%q", r.DataPoints, r.Warning)
	}
}

func TestTechnicalShortHistory(t *testing.T) {
	f := newFixture(t)
	f.market.history["TCS"] = risingHistory(testNow, 10, 3900)

	var r TechnicalReport
	if err := json.Unmarshal([]byte(f.kit.Technical(context.Background(), "TCS")), &r); err != nil {
		t.Fatal(err)
	}
	if r.Warning == "" {
		t.Error("expected warning for 10 sessions")
	}
	if r.MovingAverages.MA20 != "N/A" || r.Trend != "N/A" {
		t.Errorf("ma20=%q trend=%q", r.MovingAverages.MA20, r.Trend)
	}
}

func TestTechnicalError(t *testing.T) {
	f := newFixture(t)
	got := f.kit.Technical(context.Background(), "NOSUCH")
	want := "Error in technical analysis for NOSUCH: Stock NOSUCH not found on NSE. Please check the spelling."
	if got != want {
		t.Errorf("got %q", got)
	}
}

// --- analyze_options ---

func TestOptions(t *testing.T) {
	f := newFixture(t)
	f.market.chains["TCS"] = &models.OptionChain{
		Symbol: "TCS", Underlying: 4000, Expiry: "31-Oct-2024",
		Strikes: []models.OptionStrike{
			{Strike: 3900, CallOI: 100000, PutOI: 900000, CallIV: 20, PutIV: 22},
			{Strike: 4000, CallOI: 300000, PutOI: 400000, CallIV: 21, PutIV: 23},
			{Strike: 4100, CallOI: 600000, PutOI: 100000, CallIV: 22, PutIV: 24},
		},
		TotalCallVolume: 250000, TotalPutVolume: 125000,
	}

	var r OptionsReport
	if err := json.Unmarshal([]byte(f.kit.Options(context.Background(), "TCS")), &r); err != nil {
		t.Fatal(err)
	}
	// PCR = 1400000 / 1000000.
	if r.PCR != "1.40" || r.Sentiment != "Bullish (High Put OI)" {
		t.Errorf("pcr=%q sentiment=%q", r.PCR, r.Sentiment)
	}
	if r.MaxPain != "₹3900.00" || r.MaxPainDistance != "-2.50%" {
		t.Errorf("maxPain=%q distance=%q", r.MaxPain, r.MaxPainDistance)
	}
	if r.HighestCallOI.Strike != "₹4100.00" || r.HighestCallOI.OI != "6.00L" || r.HighestCallOI.Interpretation != "Strong Resistance" {
		t.Errorf("call OI = %+v", r.HighestCallOI)
	}
	if r.HighestPutOI.Strike != "₹3900.00" || r.HighestPutOI.Interpretation != "Strong Support" {
		t.Errorf("put OI = %+v", r.HighestPutOI)
	}
	if r.IVAssessment != "Moderate" || r.TotalCallVolume != "2.50L" {
		t.Errorf("iv=%q callVol=%q", r.IVAssessment, r.TotalCallVolume)
	}
}

func TestOptionsMissingChain(t *testing.T) {
	f := newFixture(t)
	got := f.kit.Options(context.Background(), "IRCTC")
	want := "Error analyzing options for IRCTC: symbol not found. Note: Options data may not be available for all stocks."
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

// --- compare_stocks ---

func compareFixture(t *testing.T) *fixture {
	f64 := null.FloatFrom
	return newFixture(t, WithScreener(fakeScreener{
		"TCS":  {Symbol: "TCS", ROE: f64(51), ROCE: f64(64), DebtToEquity: f64(0.1), NetMargin: f64(19), BookValue: f64(250)},
		"INFY": {Symbol: "INFY", ROE: f64(32), DebtToEquity: f64(0.1), DividendYield: f64(2.1), NetMargin: f64(17)},
	}))
}

func TestCompareStocks(t *testing.T) {
	f := compareFixture(t)
	c, err := f.kit.CompareStocks(context.Background(), "TCS", "INFY")
	if err != nil {
		t.Fatal(err)
	}

	wantWinners := map[string]string{
		"price": "TCS", "pe": "INFY", "roe": "TCS", "margin": "TCS", "debtToEquity": "Tie",
		"dividendYield": "INFY", "oneYearReturn": "TCS", "high52w": "TCS", "low52w": "INFY",
	}
	for k, v := range wantWinners {
		if c.WinnerByMetric[k] != v {
			t.Errorf("winner[%s] = %q, want %q", k, c.WinnerByMetric[k], v)
		}
	}
	if c.Score != (Score{Wins1: 5, Wins2: 3, Ties: 1, Total: 9}) {
		t.Errorf("score = %+v", c.Score)
	}
	if c.Summary != "TCS shows stronger fundamentals with superior performance in 5 out of 9 key metrics." {
		t.Errorf("summary = %q", c.Summary)
	}
	if c.Stock1.ProfitMargin != "20.00%" || c.Stock2.ProfitMargin != "17.00%" {
		t.Errorf("margins = %q / %q", c.Stock1.ProfitMargin, c.Stock2.ProfitMargin)
	}
	if c.Stock1.OneYearReturn != "+0.75%" || c.Stock2.OneYearReturn != "N/A" {
		t.Errorf("returns = %q / %q", c.Stock1.OneYearReturn, c.Stock2.OneYearReturn)
	}
	if c.Stock1.OneMonthReturn != "+0.52%" {
		t.Errorf("one-month return = %q", c.Stock1.OneMonthReturn)
	}
	if !strings.HasPrefix(c.Stock1.FinancialHealth, "Strong") {
		t.Errorf("health = %q", c.Stock1.FinancialHealth)
	}

	if _, ok := cache.GetAs[*Comparison](f.store, "comparison:TCS:INFY"); !ok {
		t.Error("comparison not cached")
	}
}

func TestCompareErrors(t *testing.T) {
	f := compareFixture(t)
	ctx := context.Background()

	got := decode(t, f.kit.Compare(ctx, "TCS", "NOSUCH"))
	if got["error"] != "Stock NOSUCH not found on NSE. Please check the spelling." {
		t.Errorf("error = %v", got["error"])
	}
	if _, err := f.kit.CompareStocks(ctx, "tcs", "TCS.NS"); !errors.Is(err, ErrSameSymbol) {
		t.Errorf("same symbol err = %v", err)
	}
}

func TestCompareValidatesBeforeGathering(t *testing.T) {
	f := compareFixture(t)
	ctx := context.Background()

	_, err := f.kit.CompareStocks(ctx, "TCS", "NOSUCH")
	var le *LookupError
	if !errors.As(err, &le) || le.Symbol != "NOSUCH" || !errors.Is(err, datasource.ErrNotFound) {
		t.Fatalf("err = %v, want a not-found LookupError for NOSUCH", err)
	}
	if n := f.market.count("trade") + f.market.count("corporate") + f.market.count("history"); n != 0 {
		t.Errorf("unknown symbol should stop the comparison before gathering, got %d calls", n)
	}
	if _, ok := f.store.Get("invalid:NOSUCH"); !ok {
		t.Error("unknown symbol should be remembered")
	}

	calls := f.market.count("equity")
	if _, err := f.kit.CompareStocks(ctx, "INFY", "NOSUCH"); !errors.Is(err, datasource.ErrNotFound) {
		t.Errorf("second comparison err = %v", err)
	}
	if got := f.market.count("equity") - calls; got != 1 {
		t.Errorf("equity calls = %d, want 1 (INFY only; NOSUCH served from the negative cache)", got)
	}
}

// --- get_stock_news ---

func TestNewsPlaceholders(t *testing.T) {
	f := newFixture(t)
	f.market.corp["INFY"] = &models.CorporateProfile{Symbol: "INFY"}

	got := decode(t, f.kit.News(context.Background(), "INFY"))
	want := map[string]string{
		"latestAnnouncements": "No recent announcements",
		"corporateActions":    "No recent corporate actions",
		"upcomingMeetings":    "No upcoming meetings",
		"headlines":           "No recent news coverage",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %q", k, got[k], v)
		}
	}
}

func TestNewsWithHeadlines(t *testing.T) {
	items := []models.NewsItem{
		{Title: "TCS shares surge on record high profit rises", Source: "Mint", Published: testNow.Add(-time.Hour)},
		{Title: "TCS wins large order", Source: "ET"},
	}
	f := newFixture(t, WithNews(fakeNews{items: items}))

	var r struct {
		LatestAnnouncements []models.Announcement `json:"latestAnnouncements"`
		Headlines           []Headline            `json:"headlines"`
		HeadlineSentiment   struct {
			Label    string `json:"label"`
			Articles int    `json:"articles"`
		} `json:"headlineSentiment"`
	}
	if err := json.Unmarshal([]byte(f.kit.News(context.Background(), "TCS")), &r); err != nil {
		t.Fatal(err)
	}
	if len(r.LatestAnnouncements) != 1 || len(r.Headlines) != 2 {
		t.Fatalf("announcements=%d headlines=%d", len(r.LatestAnnouncements), len(r.Headlines))
	}
	if r.Headlines[0].Published != "10-Oct-2024 16:30" {
		t.Errorf("published = %q, want IST", r.Headlines[0].Published)
	}
	if r.HeadlineSentiment.Articles != 2 || r.HeadlineSentiment.Label != "Bullish" {
		t.Errorf("sentiment = %+v", r.HeadlineSentiment)
	}
}

func TestNewsUnknownSymbol(t *testing.T) {
	f := newFixture(t, WithNews(fakeNews{err: errReset}))
	got := decode(t, f.kit.News(context.Background(), "NOSUCH"))
	if !strings.HasPrefix(got["error"].(string), "Error fetching news for NOSUCH") {
		t.Errorf("error = %v", got["error"])
	}
}

// --- resolve_symbol ---

func TestResolve(t *testing.T) {
	dir := fakeDirectory{{Symbol: "TCS", Name: "Tata Consultancy Services Limited"}}
	for i := 0; i < 15; i++ {
		dir = append(dir, models.Listing{Symbol: "TATA" + string(rune('A'+i)), Name: "Tata Group Company"})
	}
	f := newFixture(t, WithDirectory(dir))
	ctx := context.Background()

	var r resolveResult
	if err := json.Unmarshal([]byte(f.kit.Resolve(ctx, "consultancy")), &r); err != nil {
		t.Fatal(err)
	}
	if len(r.Matches) != 1 || r.Matches[0].Symbol != "TCS" {
		t.Errorf("matches = %+v", r.Matches)
	}

	_ = json.Unmarshal([]byte(f.kit.Resolve(ctx, "tata")), &r)
	if len(r.Matches) != maxMatches {
		t.Errorf("matches = %d, want capped at %d", len(r.Matches), maxMatches)
	}

	got := f.kit.Resolve(ctx, "zzz")
	if !strings.Contains(got, `"matches": []`) {
		t.Errorf("empty result = %s", got)
	}
	if got := decode(t, f.kit.Resolve(ctx, "  ")); got["error"] != "companyName is required" {
		t.Errorf("blank query = %v", got)
	}
}

// --- registry wiring ---

func TestRegister(t *testing.T) {
	f := newFixture(t)
	reg := llm.NewToolRegistry()
	f.kit.Register(reg)
	if _, ok := reg.Get(NameResolveSymbol); ok {
		t.Error("resolve_symbol registered without a directory")
	}
	if reg.Count() != 5 {
		t.Errorf("tools = %v", reg.Names())
	}

	reg = llm.NewToolRegistry()
	New(datasource.NewFacade(newFakeMarket(), cache.New()), WithDirectory(fakeDirectory{})).Register(reg)
	if got := len(reg.Subset(AnalysisTools...)); got != len(AnalysisTools) {
		t.Errorf("analysis subset = %d", got)
	}
}

func TestHandlerArguments(t *testing.T) {
	f := newFixture(t)
	reg := llm.NewToolRegistry()
	f.kit.Register(reg)
	ctx := context.Background()

	out, err := reg.Execute(ctx, llm.ToolCall{Name: NameAnalyzeStock, Arguments: json.RawMessage(`{"symbol":`)})
	if err != nil || !strings.HasPrefix(out, `{"error":"invalid arguments`) {
		t.Errorf("bad JSON: out=%q err=%v", out, err)
	}
	out, err = reg.Execute(ctx, llm.ToolCall{Name: NameCompare, Arguments: json.RawMessage(`{"symbol1":"TCS"}`)})
	if err != nil || out != `{"error":"symbol1 and symbol2 are required"}` {
		t.Errorf("missing symbol2: out=%q err=%v", out, err)
	}
	out, err = reg.Execute(ctx, llm.ToolCall{Name: NameAnalyzeStock, Arguments: json.RawMessage(`{"symbol":"TCS"}`)})
	if err != nil || decode(t, out)["symbol"] != "TCS" {
		t.Errorf("analyze: out=%q err=%v", out, err)
	}
}

func TestCapOutput(t *testing.T) {
	if got := capOutput("short", 10); got != "short" {
		t.Errorf("short = %q", got)
	}
	// "₹" is three bytes; a cut inside it backs up to the rune start.
	got := capOutput("ab₹cd", 3)
	if got != "ab"+truncatedMarker {
		t.Errorf("cut = %q", got)
	}

	f := newFixture(t, WithMaxOutputBytes(40))
	out := f.kit.capOutput(f.kit.AnalyzeStock(context.Background(), "TCS"))
	if !strings.HasSuffix(out, truncatedMarker) || len(out) > 40+len(truncatedMarker) {
		t.Errorf("capped = %q", out)
	}
}
