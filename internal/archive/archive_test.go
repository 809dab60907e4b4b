package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/keyword-news-collector/internal/hash/sha256"
	"github.com/JakeFAU/keyword-news-collector/internal/storage/memory"
)

type failingBlobs struct{}

func (failingBlobs) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestArchiveWritesDigestNamedObject(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	a, err := New(blobs, sha256.New(), "")
	require.NoError(t, err)

	payload := map[string]any{"keyword": "election", "items": []string{"a", "b"}}
	uri, err := a.Archive(context.Background(), "kw-1", 3, payload)
	require.NoError(t, err)

	paths := blobs.Paths()
	require.Len(t, paths, 1)
	require.True(t, strings.HasPrefix(paths[0], "raw/kw-1/3-"))
	require.True(t, strings.HasSuffix(paths[0], ".json"))
	require.Equal(t, "memory://"+paths[0], uri)

	body, ok := blobs.Object(paths[0])
	require.True(t, ok)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Equal(t, "election", decoded["keyword"])

	again, err := a.Archive(context.Background(), "kw-1", 3, payload)
	require.NoError(t, err)
	require.Equal(t, uri, again, "same payload maps to the same object")
}

func TestArchiveErrors(t *testing.T) {
	t.Parallel()

	_, err := New(nil, sha256.New(), "raw")
	require.Error(t, err)
	_, err = New(memory.NewBlobStore(), nil, "raw")
	require.Error(t, err)

	a, err := New(failingBlobs{}, sha256.New(), "archive")
	require.NoError(t, err)
	_, err = a.Archive(context.Background(), "kw-1", 0, struct{}{})
	require.ErrorContains(t, err, "quota exceeded")

	_, err = a.Archive(context.Background(), "", 0, struct{}{})
	require.Error(t, err)

	_, err = a.Archive(context.Background(), "kw-1", 0, make(chan int))
	require.ErrorContains(t, err, "marshal")
}
