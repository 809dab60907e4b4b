// Package archive writes the raw batch of each committed collection cycle to a
// blob store as JSON.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

const (
	defaultPrefix = "raw"
	contentType   = "application/json"
)

// Hasher digests payloads for object names.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Archiver stores batches under <prefix>/<keyword_id>/<cursor>-<digest>.json.
type Archiver struct {
	blobs  news.BlobStore
	hasher Hasher
	prefix string
}

// New builds an Archiver. An empty prefix defaults to "raw".
func New(blobs news.BlobStore, hasher Hasher, prefix string) (*Archiver, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if hasher == nil {
		return nil, errors.New("hasher is required")
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Archiver{blobs: blobs, hasher: hasher, prefix: prefix}, nil
}

// Archive marshals payload and uploads it, returning the blob URI.
func (a *Archiver) Archive(ctx context.Context, keywordID string, cursor int, payload any) (string, error) {
	if keywordID == "" {
		return "", errors.New("keyword id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal archive payload: %w", err)
	}
	digest, err := a.hasher.Hash(body)
	if err != nil {
		return "", fmt.Errorf("hash archive payload: %w", err)
	}
	name := path.Join(a.prefix, keywordID, strconv.Itoa(cursor)+"-"+digest+".json")
	uri, err := a.blobs.PutObject(ctx, name, contentType, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("put archive object: %w", err)
	}
	return uri, nil
}
