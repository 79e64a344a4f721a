// Package sqlite provides a durable core.Memory backed by a local SQLite
// database. Values and metadata are stored as JSON.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opper-ai/opper-agent-go/core"
)

const (
	driver = "sqlite"
	dsnOpt = "?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)"
)

// Store is a core.Memory persisted in a SQLite file. The database handle is
// safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the store at path, running migrations as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("memory store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("memory store: create dir: %w", err)
	}
	db, err := sql.Open(driver, path+dsnOpt)
	if err != nil {
		return nil, fmt.Errorf("memory store: open db: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS memory_entries (
			key         TEXT PRIMARY KEY,
			value       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			metadata    TEXT,
			updated_at  TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("memory store: migrate: %w", err)
	}
	return nil
}

// HasEntries reports whether any memory is stored.
func (s *Store) HasEntries(ctx context.Context) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM memory_entries LIMIT 1`).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("memory store: has entries: %w", err)
	}
	return true, nil
}

// ListEntries returns the catalog sorted by key, values excluded.
func (s *Store) ListEntries(ctx context.Context) ([]core.MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, description, metadata, updated_at FROM memory_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("memory store: list: %w", err)
	}
	defer rows.Close()

	var entries []core.MemoryEntry
	for rows.Next() {
		var (
			entry    core.MemoryEntry
			metadata sql.NullString
		)
		if err := rows.Scan(&entry.Key, &entry.Description, &metadata, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("memory store: scan: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("memory store: decode metadata for %q: %w", entry.Key, err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Read returns values for the given keys; nil or empty keys reads everything.
func (s *Store) Read(ctx context.Context, keys []string) (map[string]any, error) {
	out := make(map[string]any)

	if len(keys) == 0 {
		rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM memory_entries`)
		if err != nil {
			return nil, fmt.Errorf("memory store: read: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var key, raw string
			if err := rows.Scan(&key, &raw); err != nil {
				return nil, fmt.Errorf("memory store: scan: %w", err)
			}
			var value any
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				return nil, fmt.Errorf("memory store: decode %q: %w", key, err)
			}
			out[key] = value
		}
		return out, rows.Err()
	}

	for _, key := range keys {
		var raw string
		err := s.db.QueryRowContext(ctx,
			`SELECT value FROM memory_entries WHERE key = ?`, key).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			continue // unknown keys are silently omitted
		}
		if err != nil {
			return nil, fmt.Errorf("memory store: read %q: %w", key, err)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("memory store: decode %q: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}

// Write stores a value under key and returns the resulting catalog entry.
func (s *Store) Write(ctx context.Context, key string, value any, description string, metadata map[string]any) (*core.MemoryEntry, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("memory store: encode %q: %w", key, err)
	}
	var meta []byte
	if metadata != nil {
		if meta, err = json.Marshal(metadata); err != nil {
			return nil, fmt.Errorf("memory store: encode metadata for %q: %w", key, err)
		}
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_entries (key, value, description, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = excluded.description,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		key, string(raw), description, nullable(meta), now)
	if err != nil {
		return nil, fmt.Errorf("memory store: write %q: %w", key, err)
	}
	return &core.MemoryEntry{
		Key:         key,
		Description: description,
		Metadata:    metadata,
		UpdatedAt:   now,
	}, nil
}

// Delete removes a key, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("memory store: delete %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("memory store: delete %q: %w", key, err)
	}
	return n > 0, nil
}

// Clear removes all entries and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries`)
	if err != nil {
		return 0, fmt.Errorf("memory store: clear: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("memory store: clear: %w", err)
	}
	return int(n), nil
}

func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
