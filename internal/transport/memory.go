package transport

import (
	"context"
	"maps"
	"sync"
)

// Memory is an in-process ResourceStore.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*memCollection
}

type memCollection struct {
	order []string
	items map[string]map[string]any
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

// List returns copies of every resource in the collection in insertion order.
func (m *Memory) List(_ context.Context, collection string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collections[collection]
	if c == nil {
		return nil, nil
	}
	out := make([]map[string]any, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, maps.Clone(c.items[id]))
	}
	return out, nil
}

// Get returns a copy of one resource.
func (m *Memory) Get(_ context.Context, collection, id string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collections[collection]
	if c == nil || c.items[id] == nil {
		return nil, ErrNotFound
	}
	return maps.Clone(c.items[id]), nil
}

// Put inserts or replaces a resource. Replacing keeps the original position.
func (m *Memory) Put(_ context.Context, collection, id string, attrs map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collections[collection]
	if c == nil {
		c = &memCollection{items: make(map[string]map[string]any)}
		m.collections[collection] = c
	}
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = maps.Clone(attrs)
	return nil
}

// Delete removes a resource.
func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collections[collection]
	if c == nil || c.items[id] == nil {
		return ErrNotFound
	}
	delete(c.items, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}
