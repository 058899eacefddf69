package session

import (
	"context"
	"sync"
)

// MemoryKV keeps entries in process memory. Nothing survives a restart.
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]string)}
}

// NewMemoryStore is a TokenStore kept in memory.
func NewMemoryStore() *Store {
	return NewStore(NewMemoryKV(), DefaultNamespace)
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	if !ok {
		return "", ErrAbsent
	}
	return v, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
