package docsource

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string][]byte{}}
}

func (m *MemoryStore) Fetch(_ context.Context, collection, id string) ([]byte, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.docs[collection+"/"+id]
	if !ok {
		return nil, notFound(collection, id)
	}
	return append([]byte(nil), blob...), nil
}

func (m *MemoryStore) Put(_ context.Context, collection, id string, body []byte) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[collection+"/"+id] = append([]byte(nil), body...)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
