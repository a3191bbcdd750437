// ABOUTME: In-memory Store implementation for tests and the memory driver
// ABOUTME: Keeps the same JSON documents as SQLStore so behavior matches exactly

package store

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryStore is an in-memory Store. Documents are copied on read and write.
type MemoryStore struct {
	collections

	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		data: make(map[string][]byte),
	}
	m.collections = collections{docs: m, logger: slog.Default().With("component", "store", "driver", "memory")}
	return m
}

func (m *MemoryStore) readDoc(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), raw...), nil
}

func (m *MemoryStore) updateDoc(_ context.Context, key string, fn func([]byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := append([]byte(nil), m.data[key]...)
	next, err := fn(current)
	if err != nil {
		return err
	}
	m.data[key] = append([]byte(nil), next...)
	return nil
}

// SetRaw writes a collection document verbatim.
func (m *MemoryStore) SetRaw(_ context.Context, key string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), raw...)
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
