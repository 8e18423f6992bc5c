package cache

import (
	"context"
	"sync"
	"time"

	"github.com/threadline/courier-bridge/pkg/courier"
)

type memoryEntry struct {
	payload   []byte
	fetchedAt time.Time
}

// Memory is an in-process Store for tests and single-instance runs
// without redis.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Get returns the stored payload and its fetch timestamp.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, time.Time{}, courier.ErrCacheMiss
	}
	return e.payload, e.fetchedAt, nil
}

// Set stores the payload with its fetch timestamp.
func (m *Memory) Set(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.entries[key] = memoryEntry{payload: cp, fetchedAt: fetchedAt}
	return nil
}

// Delete removes the entry for key.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

var _ Store = (*Memory)(nil)
