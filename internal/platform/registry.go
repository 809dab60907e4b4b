package platform

import (
	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

// Registry is an ordered, immutable set of platform sources. Iteration order
// is registration order, which fixes the concatenation order of fan-out
// results.
type Registry struct {
	sources []news.PlatformSource
}

// NewRegistry keeps the first source registered for each platform.
func NewRegistry(sources ...news.PlatformSource) *Registry {
	seen := make(map[news.Platform]struct{}, len(sources))
	out := make([]news.PlatformSource, 0, len(sources))
	for _, src := range sources {
		if src == nil {
			continue
		}
		if _, dup := seen[src.Platform()]; dup {
			continue
		}
		seen[src.Platform()] = struct{}{}
		out = append(out, src)
	}
	return &Registry{sources: out}
}

// All returns every registered source.
func (r *Registry) All() []news.PlatformSource {
	if r == nil {
		return nil
	}
	return append([]news.PlatformSource(nil), r.sources...)
}

// Enabled returns the sources whose Enabled flag is set, in registry order.
func (r *Registry) Enabled() []news.PlatformSource {
	if r == nil {
		return nil
	}
	out := make([]news.PlatformSource, 0, len(r.sources))
	for _, src := range r.sources {
		if src.Enabled() {
			out = append(out, src)
		}
	}
	return out
}

// Lookup returns the source for p.
func (r *Registry) Lookup(p news.Platform) (news.PlatformSource, bool) {
	if r == nil {
		return nil, false
	}
	for _, src := range r.sources {
		if src.Platform() == p {
			return src, true
		}
	}
	return nil, false
}
