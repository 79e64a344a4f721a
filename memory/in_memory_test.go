package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryWriteAndRead(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	entry, err := store.Write(ctx, "profile", map[string]any{"seat": "window"}, "traveler prefs", nil)
	require.NoError(t, err)
	assert.Equal(t, "profile", entry.Key)
	assert.Equal(t, "traveler prefs", entry.Description)
	assert.False(t, entry.UpdatedAt.IsZero())

	values, err := store.Read(ctx, []string{"profile", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"seat": "window"}, values["profile"])
	assert.NotContains(t, values, "missing", "unknown keys are omitted, not errors")
}

func TestInMemoryReadAllWithEmptyKeys(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	_, err := store.Write(ctx, "a", 1, "", nil)
	require.NoError(t, err)
	_, err = store.Write(ctx, "b", 2, "", nil)
	require.NoError(t, err)

	values, err := store.Read(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, values, 2)
}

func TestInMemoryWriteOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	_, err := store.Write(ctx, "k", "old", "", nil)
	require.NoError(t, err)
	_, err = store.Write(ctx, "k", "new", "", nil)
	require.NoError(t, err)

	values, err := store.Read(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Equal(t, "new", values["k"])
}

func TestInMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	has, err := store.HasEntries(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	for _, key := range []string{"zebra", "apple", "mango"} {
		_, err := store.Write(ctx, key, key, "about "+key, nil)
		require.NoError(t, err)
	}

	has, err = store.HasEntries(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "apple", entries[0].Key)
	assert.Equal(t, "mango", entries[1].Key)
	assert.Equal(t, "zebra", entries[2].Key)
}

func TestInMemoryDelete(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	_, err := store.Write(ctx, "k", "v", "", nil)
	require.NoError(t, err)

	existed, err := store.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestInMemoryClear(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	_, err := store.Write(ctx, "a", 1, "", nil)
	require.NoError(t, err)
	_, err = store.Write(ctx, "b", 2, "", nil)
	require.NoError(t, err)

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	has, err := store.HasEntries(ctx)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestInMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_, _ = store.Write(ctx, "shared", n, "", nil)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = store.Read(ctx, []string{"shared"})
		}()
	}
	wg.Wait()

	has, err := store.HasEntries(ctx)
	require.NoError(t, err)
	assert.True(t, has)
}
