// Package storage is the object store adapter: keyed blob writes and
// URL-addressed deletes.
package storage

import (
	"context"
	"strings"
)

// Store puts and deletes blobs. URLs returned by Put are the base URL
// followed by the key; deletes accept those URLs back.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
	DeleteMany(ctx context.Context, urls []string) error
}

// URLMapper converts between object keys and public URLs by prefix.
type URLMapper struct {
	BaseURL string
}

func (m URLMapper) URL(key string) string {
	return m.BaseURL + key
}

// Key strips the base URL. ok is false for URLs outside the store.
func (m URLMapper) Key(url string) (key string, ok bool) {
	if !strings.HasPrefix(url, m.BaseURL) {
		return "", false
	}
	key = strings.TrimPrefix(url, m.BaseURL)
	return key, key != ""
}

// Keys maps urls to keys, skipping foreign URLs and duplicates.
func (m URLMapper) Keys(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	keys := make([]string, 0, len(urls))
	for _, u := range urls {
		k, ok := m.Key(u)
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
