package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

type memoryStore struct {
	mu     sync.RWMutex
	groups map[string]map[string][]byte
}

func NewMemoryStore() Store {
	return &memoryStore{groups: make(map[string]map[string][]byte)}
}

func (m *memoryStore) Put(_ context.Context, key, id string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[key]
	if !ok {
		g = make(map[string][]byte)
		m.groups[key] = g
	}
	g[id] = append([]byte(nil), doc...)
	return nil
}

func (m *memoryStore) Get(_ context.Context, key, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.groups[key][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", catalog.ErrNotFound, key, id)
	}
	return append([]byte(nil), doc...), nil
}

func (m *memoryStore) List(_ context.Context, key string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g := m.groups[key]
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sortIDs(ids)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, append([]byte(nil), g[id]...))
	}
	return out, nil
}

func (m *memoryStore) DeleteAll(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups, key)
	return nil
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func (m *memoryStore) Close() error { return nil }
