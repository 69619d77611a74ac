package mediastore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Memory is an in-memory Backend, intended for tests and ephemeral runs.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	mime string
	data []byte
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

func (m *Memory) Put(_ context.Context, key, mimeType string, data []byte) error {
	cp := bytes.Clone(data)
	m.mu.Lock()
	m.objects[key] = memoryObject{mime: mimeType, data: cp}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, "", fmt.Errorf("mediastore: get %s: %w", key, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.mime, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ Backend = (*Memory)(nil)
