// Package metadata reads and writes opaque key-value entries against a
// remote metadata store scoped to one tenant/app identity. The remote store
// is the source of truth; CachedManager may layer a short-TTL read cache on
// top of it.
package metadata

import (
	"context"
	"sync"
)

// Manager is the key-value contract all stores implement. Get reports
// found=false for a missing key instead of an error.
type Manager interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ScopedKey builds a domain-scoped metadata key using the `key__domain`
// convention shared with the other connector apps.
func ScopedKey(key, domain string) string {
	if domain == "" {
		return key
	}
	return key + "__" + domain
}

// MemoryManager is an in-process Manager used by tests and local dev mode.
type MemoryManager struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{values: make(map[string]string)}
}

func (m *MemoryManager) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryManager) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryManager) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
