package news

import "strings"

// Platform identifies an external news source. The set is closed.
type Platform string

// Supported platforms, in registry order.
const (
	PlatformNaver  Platform = "NAVER"
	PlatformDaum   Platform = "DAUM"
	PlatformGoogle Platform = "GOOGLE"
)

var displayNames = map[Platform]string{
	PlatformNaver:  "네이버",
	PlatformDaum:   "다음",
	PlatformGoogle: "구글",
}

// Platforms lists every known platform in registry order.
func Platforms() []Platform {
	return []Platform{PlatformNaver, PlatformDaum, PlatformGoogle}
}

// DisplayName returns the human readable platform name.
func (p Platform) DisplayName() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	return string(p)
}

// Valid reports whether p is a member of the closed set.
func (p Platform) Valid() bool {
	_, ok := displayNames[p]
	return ok
}

func (p Platform) String() string {
	return string(p)
}

// ParsePlatform looks up a platform by case-insensitive name.
func ParsePlatform(name string) (Platform, bool) {
	p := Platform(strings.ToUpper(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", false
	}
	return p, true
}

// ParsePlatforms parses names, discarding unknown entries and duplicates while
// keeping first-seen order.
func ParsePlatforms(names []string) []Platform {
	seen := make(map[Platform]struct{}, len(names))
	out := make([]Platform, 0, len(names))
	for _, name := range names {
		p, ok := ParsePlatform(name)
		if !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
