package credential

import (
	"context"
	"sync"
	"sync/atomic"
)

// Memory is an in-process Store that records how often each operation ran.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string

	gets    atomic.Int64
	sets    atomic.Int64
	removes atomic.Int64
}

// NewMemory returns an empty Memory store, optionally seeded.
func NewMemory(seed map[string]string) *Memory {
	m := &Memory{values: make(map[string]string, len(seed))}
	for k, v := range seed {
		m.values[k] = v
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.gets.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.sets.Add(1)
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.removes.Add(1)
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

// Gets returns the number of Get calls.
func (m *Memory) Gets() int64 { return m.gets.Load() }

// Sets returns the number of Set calls.
func (m *Memory) Sets() int64 { return m.sets.Load() }

// Removes returns the number of Remove calls.
func (m *Memory) Removes() int64 { return m.removes.Load() }

// Writes is Sets plus Removes.
func (m *Memory) Writes() int64 { return m.sets.Load() + m.removes.Load() }
