package tools

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/stockai/internal/analysis/sentiment"
	"github.com/seenimoa/stockai/internal/cache"
	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

// Headline is one RSS item in the news payload.
type Headline struct {
	Title     string `json:"title"`
	Source    string `json:"source"`
	Published string `json:"published,omitempty"`
	Link      string `json:"link"`
}

// NewsReport is the get_stock_news payload. Each list field holds either
// a slice or a "No recent ..." sentence.
type NewsReport struct {
	Symbol              string               `json:"symbol"`
	LatestAnnouncements any                  `json:"latestAnnouncements"`
	CorporateActions    any                  `json:"corporateActions"`
	UpcomingMeetings    any                  `json:"upcomingMeetings"`
	Headlines           any                  `json:"headlines"`
	HeadlineSentiment   *sentiment.Aggregate `json:"headlineSentiment,omitempty"`
}

// News returns the get_stock_news payload.
func (k *Toolkit) News(ctx context.Context, symbol string) string {
	sym := utils.NormalizeTicker(symbol)
	return k.cached("tool:news:"+sym, cache.Corporate, func() (string, bool) {
		r, err := k.NewsReport(ctx, sym)
		if err != nil {
			return errorJSON(fmt.Sprintf("Error fetching news for %s: %s", sym, UserMessage(sym, err))), false
		}
		return toJSON(r), true
	})
}

// NewsReport combines exchange filings with matching press headlines. It
// fails only when neither source has anything to say.
func (k *Toolkit) NewsReport(ctx context.Context, symbol string) (*NewsReport, error) {
	sym := utils.NormalizeTicker(symbol)

	var (
		corp    *models.CorporateProfile
		corpErr error
		items   []models.NewsItem
		newsErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		corp, corpErr = k.facade.CorporateProfile(gctx, sym)
		return nil
	})
	if k.news != nil {
		g.Go(func() error {
			// The company name widens the keyword match; a failed snapshot
			// still leaves the ticker.
			var name string
			if snap, err := k.facade.EquitySnapshot(gctx, sym); err == nil {
				name = snap.CompanyName
			}
			items, newsErr = k.news.StockNews(gctx, sym, name, maxHeadlines)
			return nil
		})
	}
	_ = g.Wait()

	if corpErr != nil && (k.news == nil || newsErr != nil || len(items) == 0) {
		return nil, &LookupError{Symbol: sym, Err: corpErr}
	}
	k.optional(newsErr, "rss", sym)
	return buildNewsReport(sym, corp, items, k.now()), nil
}

func buildNewsReport(sym string, corp *models.CorporateProfile, items []models.NewsItem, now time.Time) *NewsReport {
	r := &NewsReport{
		Symbol:              sym,
		LatestAnnouncements: "No recent announcements",
		CorporateActions:    "No recent corporate actions",
		UpcomingMeetings:    "No upcoming meetings",
		Headlines:           "No recent news coverage",
	}
	if corp != nil {
		if n := len(corp.Announcements); n > 0 {
			r.LatestAnnouncements = corp.Announcements[:min(n, maxAnnounce)]
		}
		if n := len(corp.Actions); n > 0 {
			r.CorporateActions = corp.Actions[:min(n, maxActions)]
		}
		if n := len(corp.BoardMeetings); n > 0 {
			r.UpcomingMeetings = corp.BoardMeetings[:min(n, maxMeetings)]
		}
	}
	if len(items) > 0 {
		items = items[:min(len(items), maxHeadlines)]
		heads := make([]Headline, 0, len(items))
		for _, it := range items {
			h := Headline{Title: it.Title, Source: it.Source, Link: it.Link}
			if !it.Published.IsZero() {
				h.Published = it.Published.In(utils.IST).Format("02-Jan-2006 15:04")
			}
			heads = append(heads, h)
		}
		r.Headlines = heads
		agg := sentiment.AggregateItems(items, now)
		r.HeadlineSentiment = &agg
	}
	return r
}
