package secretstore

import (
	"context"
	"sync"
)

// Memory keeps secrets in process memory.
type Memory struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{secrets: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, namespace string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.secrets[namespace]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Set(_ context.Context, namespace string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[namespace] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Delete(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, namespace)
	return nil
}

// Len returns the number of stored namespaces.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.secrets)
}
