package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	entry, err := store.Write(ctx, "profile",
		map[string]any{"seat": "window", "meals": float64(2)},
		"traveler prefs",
		map[string]any{"source": "intake"})
	require.NoError(t, err)
	assert.Equal(t, "profile", entry.Key)
	assert.False(t, entry.UpdatedAt.IsZero())

	values, err := store.Read(ctx, []string{"profile"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"seat": "window", "meals": float64(2)}, values["profile"])
}

func TestStoreReadUnknownKeyIsOmitted(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	values, err := store.Read(ctx, []string{"nothing"})
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestStoreReadAll(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.Write(ctx, "a", "one", "", nil)
	require.NoError(t, err)
	_, err = store.Write(ctx, "b", "two", "", nil)
	require.NoError(t, err)

	values, err := store.Read(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "one", "b": "two"}, values)
}

func TestStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.Write(ctx, "k", "old", "first", nil)
	require.NoError(t, err)
	_, err = store.Write(ctx, "k", "new", "second", nil)
	require.NoError(t, err)

	values, err := store.Read(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Equal(t, "new", values["k"])

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Description)
}

func TestStoreCatalog(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	has, err := store.HasEntries(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = store.Write(ctx, "zebra", 1, "z", nil)
	require.NoError(t, err)
	_, err = store.Write(ctx, "apple", 2, "a", map[string]any{"tag": "fruit"})
	require.NoError(t, err)

	has, err = store.HasEntries(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "apple", entries[0].Key)
	assert.Equal(t, map[string]any{"tag": "fruit"}, entries[0].Metadata)
	assert.Equal(t, "zebra", entries[1].Key)
	assert.Nil(t, entries[1].Metadata)
}

func TestStoreDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.Write(ctx, "a", 1, "", nil)
	require.NoError(t, err)
	_, err = store.Write(ctx, "b", 2, "", nil)
	require.NoError(t, err)

	existed, err := store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, existed)

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memory.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Write(ctx, "k", "persisted", "", nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	values, err := store.Read(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Equal(t, "persisted", values["k"])
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
