package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)

	again, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, got, again)
}

func TestDigestSeparatesParts(t *testing.T) {
	t.Parallel()

	require.Equal(t, Digest("https://a.example/1"), Digest("https://a.example/1"))
	require.NotEqual(t, Digest("ab", "c"), Digest("a", "bc"))
	require.Len(t, Digest("x"), 64)
}
