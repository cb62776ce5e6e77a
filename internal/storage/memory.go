package storage

import (
	"context"
	"sync"
)

// Memory is a BlobStore for tests and local runs without R2.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
	// FailPut makes Put return this error when set.
	FailPut error
}

func NewMemory(baseURL string) *Memory {
	return &Memory{objects: make(map[string][]byte), baseURL: baseURL}
}

func (m *Memory) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if m.FailPut != nil {
		return "", m.FailPut
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return m.baseURL + "/" + key, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
