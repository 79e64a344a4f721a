package core

import (
	"context"
	"time"
)

// MemoryEntry describes a stored memory without exposing its value. The
// catalog handed to the model deliberately excludes values so it has to
// request an explicit read for the keys it actually needs.
type MemoryEntry struct {
	Key         string         `json:"key"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Memory is the persistence collaborator for agent memory. Implementations
// must be safe for concurrent use.
type Memory interface {
	// HasEntries reports whether any memory is stored.
	HasEntries(ctx context.Context) (bool, error)

	// ListEntries returns the catalog of stored entries, values excluded.
	ListEntries(ctx context.Context) ([]MemoryEntry, error)

	// Read returns the values for the given keys. A nil or empty key list
	// reads every stored entry. Unknown keys are silently omitted.
	Read(ctx context.Context, keys []string) (map[string]any, error)

	// Write stores a value under key and returns the resulting entry.
	Write(ctx context.Context, key string, value any, description string, metadata map[string]any) (*MemoryEntry, error)

	// Delete removes a key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear removes all entries and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}
