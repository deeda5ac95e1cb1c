package cache

import (
	"context"
	"sync"
)

// MemoryBackend is the in-process default backend. Entries past their TTL
// are kept so stale reads can still serve the previous snapshot; the store
// flags them Stale instead of dropping them.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	hits   int64
	misses int64
}

// NewMemoryBackend builds an empty memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Get returns the stored bytes for key.
func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		m.misses++
		return nil, false, nil
	}
	m.hits++
	return data, true, nil
}

// SetMulti swaps all given slots under one lock.
func (m *MemoryBackend) SetMulti(ctx context.Context, values map[string]Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range values {
		m.data[key] = value.Data
	}
	return nil
}

// Delete removes one slot.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Clear removes every slot.
func (m *MemoryBackend) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

// Stats reports hit/miss counters and current size.
func (m *MemoryBackend) Stats() (hits, misses int64, size int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits, m.misses, len(m.data)
}
