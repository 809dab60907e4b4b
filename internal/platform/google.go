package platform

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/mmcdole/gofeed"

	collyfetcher "github.com/JakeFAU/keyword-news-collector/internal/fetcher/colly"
	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

const googleDefaultBaseURL = "https://news.google.com/rss/search"

// GoogleConfig configures the Google News RSS adapter.
type GoogleConfig struct {
	Enabled  bool
	Language string
	Region   string
	BaseURL  string
}

// Google reads the Google News RSS search feed.
type Google struct {
	cfg    GoogleConfig
	getter Getter
}

// NewGoogle builds the Google News adapter.
func NewGoogle(cfg GoogleConfig, getter Getter) *Google {
	if cfg.BaseURL == "" {
		cfg.BaseURL = googleDefaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "ko"
	}
	if cfg.Region == "" {
		cfg.Region = "KR"
	}
	return &Google{cfg: cfg, getter: getter}
}

// Platform implements news.PlatformSource.
func (g *Google) Platform() news.Platform { return news.PlatformGoogle }

// Enabled implements news.PlatformSource.
func (g *Google) Enabled() bool { return g.cfg.Enabled }

// Fetch returns the window [offset*size, offset*size+size) of the feed. The
// feed itself is not paginated, so later windows drain it and then run dry.
func (g *Google) Fetch(ctx context.Context, keyword string, offset, size int) ([]news.RawItem, error) {
	if size <= 0 || offset < 0 {
		return nil, nil
	}
	if g.getter == nil {
		return nil, errors.New("google: no http getter")
	}

	q := url.Values{}
	q.Set("q", keyword)
	q.Set("hl", g.cfg.Language)
	q.Set("gl", g.cfg.Region)
	q.Set("ceid", g.cfg.Region+":"+g.cfg.Language)

	resp, err := g.getter.Fetch(ctx, collyfetcher.Request{URL: g.cfg.BaseURL + "?" + q.Encode()})
	if err != nil {
		return nil, fmt.Errorf("google news search: %w", err)
	}

	// gofeed.Parser is not safe for concurrent use.
	feed, err := gofeed.NewParser().ParseString(string(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse google news feed: %w", err)
	}

	items := make([]news.RawItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		summary := cleanText(it.Description)
		body := cleanText(it.Content)
		if body == "" {
			body = summary
		}
		items = append(items, news.RawItem{
			Title:   cleanText(it.Title),
			Body:    body,
			Summary: summary,
			URL:     it.Link,
		})
	}
	items = finish(items, len(items))

	start := offset * size
	if start >= len(items) {
		return nil, nil
	}
	end := min(start+size, len(items))
	return items[start:end], nil
}
