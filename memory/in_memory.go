// Package memory provides the default process-local implementation of the
// core.Memory collaborator. Swap in the sqlite subpackage (or any custom
// implementation) for durability across restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opper-ai/opper-agent-go/core"
)

type record struct {
	value any
	entry core.MemoryEntry
}

// InMemory is a naive process-local core.Memory backed by a map.
// Concurrency: protected by RWMutex. Suitable for tests, examples and
// short-lived agents; use the sqlite store for anything that must survive a
// restart.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]*record
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]*record)}
}

// HasEntries reports whether any memory is stored.
func (m *InMemory) HasEntries(context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries) > 0, nil
}

// ListEntries returns the catalog sorted by key, values excluded.
func (m *InMemory) ListEntries(context.Context) ([]core.MemoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.MemoryEntry, 0, len(m.entries))
	for _, rec := range m.entries {
		out = append(out, rec.entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Read returns values for the given keys; nil or empty keys reads everything.
// Unknown keys are silently omitted.
func (m *InMemory) Read(_ context.Context, keys []string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any)
	if len(keys) == 0 {
		for key, rec := range m.entries {
			out[key] = rec.value
		}
		return out, nil
	}
	for _, key := range keys {
		if rec, ok := m.entries[key]; ok {
			out[key] = rec.value
		}
	}
	return out, nil
}

// Write stores a value under key and returns the resulting catalog entry.
func (m *InMemory) Write(_ context.Context, key string, value any, description string, metadata map[string]any) (*core.MemoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := core.MemoryEntry{
		Key:         key,
		Description: description,
		Metadata:    metadata,
		UpdatedAt:   time.Now(),
	}
	m.entries[key] = &record{value: value, entry: entry}
	return &entry, nil
}

// Delete removes a key, reporting whether it existed.
func (m *InMemory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

// Clear removes all entries and returns how many were removed.
func (m *InMemory) Clear(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]*record)
	return n, nil
}
