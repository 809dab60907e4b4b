package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	collyfetcher "github.com/JakeFAU/keyword-news-collector/internal/fetcher/colly"
	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

const (
	naverDefaultBaseURL = "https://openapi.naver.com/v1/search/news.json"
	naverMaxStart       = 1000
	naverMaxDisplay     = 100
)

// NaverConfig configures the Naver Open API adapter.
type NaverConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// Naver searches news through the Naver Open API.
type Naver struct {
	cfg    NaverConfig
	getter Getter
}

// NewNaver builds the Naver adapter.
func NewNaver(cfg NaverConfig, getter Getter) *Naver {
	if cfg.BaseURL == "" {
		cfg.BaseURL = naverDefaultBaseURL
	}
	return &Naver{cfg: cfg, getter: getter}
}

// Platform implements news.PlatformSource.
func (n *Naver) Platform() news.Platform { return news.PlatformNaver }

// Enabled implements news.PlatformSource.
func (n *Naver) Enabled() bool { return n.cfg.Enabled }

type naverResponse struct {
	Items []struct {
		Title        string `json:"title"`
		OriginalLink string `json:"originallink"`
		Link         string `json:"link"`
		Description  string `json:"description"`
	} `json:"items"`
}

// Fetch pages through results sorted by date. Pages past the API's start
// limit yield no items.
func (n *Naver) Fetch(ctx context.Context, keyword string, offset, size int) ([]news.RawItem, error) {
	if size <= 0 {
		return nil, nil
	}
	if size > naverMaxDisplay {
		size = naverMaxDisplay
	}
	start := offset*size + 1
	if start > naverMaxStart {
		return nil, nil
	}
	if n.getter == nil {
		return nil, errors.New("naver: no http getter")
	}

	q := url.Values{}
	q.Set("query", keyword)
	q.Set("display", strconv.Itoa(size))
	q.Set("start", strconv.Itoa(start))
	q.Set("sort", "date")

	resp, err := n.getter.Fetch(ctx, collyfetcher.Request{
		URL: n.cfg.BaseURL + "?" + q.Encode(),
		Headers: http.Header{
			"X-Naver-Client-Id":     {n.cfg.ClientID},
			"X-Naver-Client-Secret": {n.cfg.ClientSecret},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("naver search: %w", err)
	}

	var decoded naverResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("decode naver response: %w", err)
	}
	items := make([]news.RawItem, 0, len(decoded.Items))
	for _, it := range decoded.Items {
		link := it.OriginalLink
		if link == "" {
			link = it.Link
		}
		summary := cleanText(it.Description)
		items = append(items, news.RawItem{
			Title:   cleanText(it.Title),
			Body:    summary,
			Summary: summary,
			URL:     link,
		})
	}
	return finish(items, size), nil
}
