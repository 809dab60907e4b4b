package news

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Platform
		ok   bool
	}{
		{in: "naver", want: PlatformNaver, ok: true},
		{in: " Daum ", want: PlatformDaum, ok: true},
		{in: "GOOGLE", want: PlatformGoogle, ok: true},
		{in: "bing", ok: false},
		{in: "", ok: false},
	}
	for _, tc := range tests {
		got, ok := ParsePlatform(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParsePlatformsDiscardsUnknownAndDuplicates(t *testing.T) {
	t.Parallel()

	got := ParsePlatforms([]string{"google", "yahoo", "NAVER", "Google", "", "daum"})
	require.Equal(t, []Platform{PlatformGoogle, PlatformNaver, PlatformDaum}, got)
}

func TestPlatformDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "네이버", PlatformNaver.DisplayName())
	assert.Equal(t, "다음", PlatformDaum.DisplayName())
	assert.Equal(t, "구글", PlatformGoogle.DisplayName())
	assert.Equal(t, "OTHER", Platform("OTHER").DisplayName())
}
