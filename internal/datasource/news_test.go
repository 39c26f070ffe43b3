package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/cache"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Markets</title>
<item><title>TCS wins large deal in Europe</title><link>https://example.com/1</link>
  <description>&lt;p&gt;Tata Consultancy Services &lt;b&gt;signs&lt;/b&gt; a contract&lt;/p&gt;</description>
  <pubDate>Thu, 10 Oct 2024 09:00:00 +0530</pubDate></item>
<item><title>Nifty ends flat as IT gains offset bank losses</title><link>https://example.com/2</link>
  <pubDate>Thu, 10 Oct 2024 16:00:00 +0530</pubDate></item>
<item><title>Infosys raises guidance</title><link>https://example.com/3</link>
  <pubDate>Wed, 09 Oct 2024 12:00:00 +0530</pubDate></item>
</channel></rss>`

func newFeedServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMarketNews(t *testing.T) {
	good := newFeedServer(t, rssFeed, http.StatusOK)
	bad := newFeedServer(t, "", http.StatusInternalServerError)

	n := NewNewsReader(cache.New(), []NewsSource{
		{Name: "good", RSSURL: good.URL},
		{Name: "bad", RSSURL: bad.URL},
	}, time.Second, zerolog.Nop())

	items, err := n.MarketNews(context.Background(), 2)
	if err != nil {
		t.Fatalf("MarketNews: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Title != "Nifty ends flat as IT gains offset bank losses" {
		t.Errorf("first = %q, want newest", items[0].Title)
	}
	if items[1].Summary != "Tata Consultancy Services signs a contract" {
		t.Errorf("summary = %q, want HTML stripped", items[1].Summary)
	}
}

func TestMarketNewsAllFeedsDown(t *testing.T) {
	bad := newFeedServer(t, "", http.StatusBadGateway)
	n := NewNewsReader(cache.New(), []NewsSource{{Name: "bad", RSSURL: bad.URL}}, time.Second, zerolog.Nop())

	if _, err := n.MarketNews(context.Background(), 5); !errors.Is(err, ErrUpstream) {
		t.Errorf("err = %v, want ErrUpstream", err)
	}
}

func TestStockNews(t *testing.T) {
	good := newFeedServer(t, rssFeed, http.StatusOK)
	n := NewNewsReader(cache.New(), []NewsSource{{Name: "good", RSSURL: good.URL}}, time.Second, zerolog.Nop())

	items, err := n.StockNews(context.Background(), "INFY", "Infosys Limited", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Link != "https://example.com/3" {
		t.Errorf("INFY items = %+v", items)
	}

	items, err = n.StockNews(context.Background(), "SBIN", "State Bank of India", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("SBIN should match nothing, got %+v", items)
	}
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		text     string
		keywords []string
		want     bool
	}{
		{"TCS posts profit", []string{"tcs"}, true},
		{"Stocks to watch", []string{"tcs"}, false},
		{"L&T bags order", []string{"lt", "l&t"}, true},
		{"Multiple alternatives", []string{"lt"}, false},
		{"Tata Consultancy Services beats", []string{"tata consultancy"}, true},
	}
	for _, tt := range tests {
		if got := matchesAny(tt.text, tt.keywords); got != tt.want {
			t.Errorf("matchesAny(%q, %v) = %v, want %v", tt.text, tt.keywords, got, tt.want)
		}
	}
}

func TestTickerKeywords(t *testing.T) {
	got := tickerKeywords("TCS", "Tata Consultancy Services Limited")
	want := map[string]bool{"tcs": true, "tata consultancy": true, "tata consultancy services": true}
	if len(got) != len(want) {
		t.Fatalf("keywords = %v", got)
	}
	for _, k := range got {
		if !want[k] {
			t.Errorf("unexpected keyword %q", k)
		}
	}
}

func TestSourcesFromURLs(t *testing.T) {
	got := SourcesFromURLs([]string{"https://www.livemint.com/rss/markets", "not a url"})
	if got[0].Name != "livemint.com" || got[1].Name != "not a url" {
		t.Errorf("names = %q, %q", got[0].Name, got[1].Name)
	}
}
