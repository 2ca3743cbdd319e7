package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory keeps the key space in process memory.
type Memory struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{data: map[string]json.RawMessage{}}
}

func (m *Memory) Get(_ context.Context, keys ...string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := Snapshot{}
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out, nil
}

func (m *Memory) Set(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range snap {
		m.data[k] = append(json.RawMessage(nil), v...)
	}
	return nil
}

func (m *Memory) Close() error { return nil }
