package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// sweepInterval is the minimum time between scans for expired entries
const sweepInterval = time.Minute

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Values are held JSON-encoded so
// callers get the same copy semantics as with Redis.
type MemoryStore struct {
	mu      sync.RWMutex
	entries   map[string]memoryEntry
	nextSweep time.Time
	now       func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetJSON stores a JSON-encoded value. A zero expiration keeps it forever.
func (m *MemoryStore) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	now := m.now()
	entry := memoryEntry{data: data}
	if expiration > 0 {
		entry.expiresAt = now.Add(expiration)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !now.Before(m.nextSweep) {
		m.sweep(now)
	}
	m.entries[key] = entry
	return nil
}

// sweep drops expired entries. Callers hold mu.
func (m *MemoryStore) sweep(now time.Time) {
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.nextSweep = now.Add(sweepInterval)
}

// GetJSON retrieves and decodes a value; expired entries are evicted
func (m *MemoryStore) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return false, nil
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return true, nil
}

// Close drops all entries
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}
