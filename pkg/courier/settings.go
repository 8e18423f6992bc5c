package courier

import (
	"context"
	"sync"
)

// Settings is the generic key-value settings collaborator the bridge
// reads credentials and token state from. Implementations must return
// ErrSettingNotFound for absent keys, never a silent empty string.
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MemorySettings is an in-memory Settings implementation for tests and
// mock-mode runs.
type MemorySettings struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemorySettings creates an empty in-memory settings store.
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{values: make(map[string]string)}
}

// Get returns the value under key, or ErrSettingNotFound.
func (m *MemorySettings) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrSettingNotFound
	}
	return v, nil
}

// Set stores value under key.
func (m *MemorySettings) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes key.
func (m *MemorySettings) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var _ Settings = (*MemorySettings)(nil)
