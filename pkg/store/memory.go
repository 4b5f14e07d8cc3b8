package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process ObjectStore used by tests and dry runs.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	updated map[string]time.Time
	puts    int

	// FailPut, when set, is returned by Put for matching keys.
	FailPut func(key string) error
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte), updated: make(map[string]time.Time)}
}

// Get returns a copy of the stored blob.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put stores a copy of data under key.
func (m *Memory) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailPut != nil {
		if err := m.FailPut(key); err != nil {
			return Wrap("memory", "put", key, err)
		}
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.mu.Lock()
	m.objects[key] = buf
	m.updated[key] = time.Now().UTC()
	m.puts++
	m.mu.Unlock()
	return nil
}

// UpdatedAt implements Stamped.
func (m *Memory) UpdatedAt(_ context.Context, key string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.updated[key]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return at, nil
}

// Keys lists stored keys in order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts counts successful writes.
func (m *Memory) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
