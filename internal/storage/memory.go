package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps blobs in process. It backs local development
// (BLOB_DRIVER=memory) and records every call for tests.
type MemoryStore struct {
	urls URLMapper

	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
	deletes [][]string
	// FailPut makes Put return this error when set.
	FailPut error
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		urls:    URLMapper{BaseURL: baseURL},
		objects: make(map[string][]byte),
	}
}

func (m *MemoryStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut != nil {
		return "", m.FailPut
	}
	m.objects[key] = body
	m.puts = append(m.puts, key)
	return m.urls.URL(key), nil
}

func (m *MemoryStore) Delete(ctx context.Context, url string) error {
	return m.DeleteMany(ctx, []string{url})
}

func (m *MemoryStore) DeleteMany(_ context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, append([]string(nil), urls...))
	for _, k := range m.urls.Keys(urls) {
		delete(m.objects, k)
	}
	return nil
}

// Seed stores an object without recording a put and returns its URL.
func (m *MemoryStore) Seed(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = []byte{}
	return m.urls.URL(key)
}

func (m *MemoryStore) Has(url string) bool {
	k, ok := m.urls.Key(url)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, found := m.objects[k]
	return found
}

// PutKeys lists the keys written so far, in call order.
func (m *MemoryStore) PutKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.puts...)
}

// DeleteCalls lists the URL batches passed to deletes, in call order.
func (m *MemoryStore) DeleteCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.deletes...)
}

// DeletedURLs flattens DeleteCalls into a sorted list.
func (m *MemoryStore) DeletedURLs() []string {
	var all []string
	for _, call := range m.DeleteCalls() {
		all = append(all, call...)
	}
	sort.Strings(all)
	return all
}
