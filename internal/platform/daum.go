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
	daumDefaultBaseURL = "https://dapi.kakao.com/v2/search/web"
	daumMaxPage        = 50
	daumMaxSize        = 50
)

// DaumConfig configures the Daum (Kakao search) adapter.
type DaumConfig struct {
	Enabled bool
	APIKey  string
	BaseURL string
}

// Daum searches Daum's index through the Kakao search API.
type Daum struct {
	cfg    DaumConfig
	getter Getter
}

// NewDaum builds the Daum adapter.
func NewDaum(cfg DaumConfig, getter Getter) *Daum {
	if cfg.BaseURL == "" {
		cfg.BaseURL = daumDefaultBaseURL
	}
	return &Daum{cfg: cfg, getter: getter}
}

// Platform implements news.PlatformSource.
func (d *Daum) Platform() news.Platform { return news.PlatformDaum }

// Enabled implements news.PlatformSource.
func (d *Daum) Enabled() bool { return d.cfg.Enabled }

type daumResponse struct {
	Documents []struct {
		Title    string `json:"title"`
		Contents string `json:"contents"`
		URL      string `json:"url"`
	} `json:"documents"`
	Meta struct {
		IsEnd bool `json:"is_end"`
	} `json:"meta"`
}

// Fetch requests page offset+1, newest first.
func (d *Daum) Fetch(ctx context.Context, keyword string, offset, size int) ([]news.RawItem, error) {
	if size <= 0 {
		return nil, nil
	}
	if size > daumMaxSize {
		size = daumMaxSize
	}
	page := offset + 1
	if page > daumMaxPage {
		return nil, nil
	}
	if d.getter == nil {
		return nil, errors.New("daum: no http getter")
	}

	q := url.Values{}
	q.Set("query", keyword)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	q.Set("sort", "recency")

	resp, err := d.getter.Fetch(ctx, collyfetcher.Request{
		URL:     d.cfg.BaseURL + "?" + q.Encode(),
		Headers: http.Header{"Authorization": {"KakaoAK " + d.cfg.APIKey}},
	})
	if err != nil {
		return nil, fmt.Errorf("daum search: %w", err)
	}

	var decoded daumResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("decode daum response: %w", err)
	}
	items := make([]news.RawItem, 0, len(decoded.Documents))
	for _, doc := range decoded.Documents {
		contents := cleanText(doc.Contents)
		items = append(items, news.RawItem{
			Title:   cleanText(doc.Title),
			Body:    contents,
			Summary: contents,
			URL:     doc.URL,
		})
	}
	return finish(items, size), nil
}
