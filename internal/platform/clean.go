package platform

import (
	"context"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	collyfetcher "github.com/JakeFAU/keyword-news-collector/internal/fetcher/colly"
	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

// Getter issues GET requests. *collyfetcher.Fetcher satisfies it.
type Getter interface {
	Fetch(ctx context.Context, request collyfetcher.Request) (collyfetcher.Response, error)
}

var strict = bluemonday.StrictPolicy()

// cleanText strips markup, decodes entities and collapses whitespace.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(strict.Sanitize(s))
	// Some feeds double-encode their markup.
	if strings.ContainsRune(s, '<') {
		s = html.UnescapeString(strict.Sanitize(s))
	}
	return strings.Join(strings.Fields(s), " ")
}

// finish drops items without a URL and truncates to size.
func finish(items []news.RawItem, size int) []news.RawItem {
	out := make([]news.RawItem, 0, len(items))
	for _, item := range items {
		item.URL = strings.TrimSpace(item.URL)
		if item.URL == "" {
			continue
		}
		out = append(out, item)
		if len(out) == size {
			break
		}
	}
	return out
}
