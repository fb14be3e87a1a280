package memory

import (
	"bytes"
	"context"
	"github.com/Avi18971911/spangrouper/pkg/store"
	"sync"
)

// MemoryStore keeps entries in process memory. It does not survive restarts
// and exists for tests and demos.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, store.ErrClosed
	}
	value, ok := m.entries[string(key)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return bytes.Clone(value), nil
}

func (m *MemoryStore) Put(_ context.Context, key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	m.entries[string(key)] = bytes.Clone(value)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...[]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	for _, key := range keys {
		delete(m.entries, string(key))
	}
	return nil
}

// Scan iterates over a snapshot so fn may modify the store.
func (m *MemoryStore) Scan(ctx context.Context, prefix []byte, fn func(key []byte, value []byte) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return store.ErrClosed
	}
	type entry struct {
		key   []byte
		value []byte
	}
	snapshot := make([]entry, 0, len(m.entries))
	for key, value := range m.entries {
		if bytes.HasPrefix([]byte(key), prefix) {
			snapshot = append(snapshot, entry{key: []byte(key), value: bytes.Clone(value)})
		}
	}
	m.mu.RUnlock()

	for _, e := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
