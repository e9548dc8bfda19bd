// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"sync"

	"github.com/flemzord/aether/internal/store"
)

// Memory is an in-memory store.Store. Set SaveErr to make every Save fail
// without changing the stored documents.
type Memory struct {
	mu    sync.Mutex
	docs  map[store.Kind][]byte
	saves int

	SaveErr error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[store.Kind][]byte)}
}

// Load implements store.Store.
func (m *Memory) Load(_ context.Context, kind store.Kind) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.docs[kind]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Save implements store.Store.
func (m *Memory) Save(_ context.Context, kind store.Kind, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.docs[kind] = append([]byte(nil), data...)
	m.saves++
	return nil
}

// Put seeds a raw document.
func (m *Memory) Put(kind store.Kind, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[kind] = []byte(data)
}

// Raw returns the stored document, or nil.
func (m *Memory) Raw(kind store.Kind) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.docs[kind]...)
}

// Saves returns the number of successful saves.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

var _ store.Store = (*Memory)(nil)
