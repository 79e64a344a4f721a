package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedRejectsEmptyFragments(t *testing.T) {
	a := New()

	assert.Nil(t, a.Feed(Chunk{Delta: nil}))
	assert.Nil(t, a.Feed(Chunk{Delta: ""}))
	assert.Nil(t, a.Feed(Chunk{Delta: nil, Path: "a.b"}))

	// Nothing mutated: finalize still reports empty.
	assert.Equal(t, KindEmpty, a.Finalize().Kind)
}

func TestFeedAccumulatesRootText(t *testing.T) {
	a := New()

	first := a.Feed(Chunk{Delta: "Hello"})
	require.NotNil(t, first)
	assert.Equal(t, "Hello", first.Text)

	second := a.Feed(Chunk{Delta: " world"})
	require.NotNil(t, second)
	assert.Equal(t, "Hello world", second.Text)

	result := a.Finalize()
	assert.Equal(t, KindText, result.Kind)
	assert.Equal(t, "Hello world", result.Text)
}

func TestStructuredReconstruction(t *testing.T) {
	a := New()

	a.Feed(Chunk{Delta: "3", Path: "a.b[0].x"})
	a.Feed(Chunk{Delta: true, Path: "a.b[0].y"})
	a.Feed(Chunk{Delta: "hi", Path: "a.b[0].z"})

	result := a.Finalize()
	require.Equal(t, KindStructured, result.Kind)
	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": []any{
				map[string]any{"x": int64(3), "y": true, "z": "hi"},
			},
		},
	}, result.Value)
}

func TestSingleNonStringFragmentKeepsNativeType(t *testing.T) {
	a := New()
	a.Feed(Chunk{Delta: 42, Path: "count"})
	a.Feed(Chunk{Delta: false, Path: "done"})

	result := a.Finalize()
	require.Equal(t, KindStructured, result.Kind)
	value := result.Value.(map[string]any)
	assert.Equal(t, 42, value["count"])
	assert.Equal(t, false, value["done"])
}

func TestMultiFragmentCoercion(t *testing.T) {
	a := New()
	a.Feed(Chunk{Delta: "12", Path: "n"})
	a.Feed(Chunk{Delta: "34", Path: "n"})
	a.Feed(Chunk{Delta: "tr", Path: "flag"})
	a.Feed(Chunk{Delta: "ue", Path: "flag"})
	a.Feed(Chunk{Delta: "3.", Path: "ratio"})
	a.Feed(Chunk{Delta: "14", Path: "ratio"})
	a.Feed(Chunk{Delta: "nu", Path: "missing"})
	a.Feed(Chunk{Delta: "ll", Path: "missing"})
	a.Feed(Chunk{Delta: "not a ", Path: "text"})
	a.Feed(Chunk{Delta: "number", Path: "text"})

	value := a.Finalize().Value.(map[string]any)
	assert.Equal(t, int64(1234), value["n"])
	assert.Equal(t, true, value["flag"])
	assert.Equal(t, 3.14, value["ratio"])
	assert.Nil(t, value["missing"])
	assert.Equal(t, "not a number", value["text"])
}

func TestArrayGapsFilledWithNulls(t *testing.T) {
	a := New()
	a.Feed(Chunk{Delta: "first", Path: "items[0]"})
	a.Feed(Chunk{Delta: "third", Path: "items[2]"})

	value := a.Finalize().Value.(map[string]any)
	assert.Equal(t, []any{"first", nil, "third"}, value["items"])
}

func TestNonNumericBracketTokenIsLiteralKey(t *testing.T) {
	a := New()
	a.Feed(Chunk{Delta: "v", Path: "m[key]"})

	value := a.Finalize().Value.(map[string]any)
	assert.Equal(t, map[string]any{"key": "v"}, value["m"])
}

func TestHugeIndexStaysObject(t *testing.T) {
	a := New()
	a.Feed(Chunk{Delta: "x", Path: "items[999999]"})

	value := a.Finalize().Value.(map[string]any)
	// An index past the array bound keeps the map form instead of allocating
	// a million-element slice.
	assert.Equal(t, map[string]any{"999999": "x"}, value["items"])
}

func TestFinalizeIdempotent(t *testing.T) {
	a := New()
	a.Feed(Chunk{Delta: "1", Path: "items[0]"})
	a.Feed(Chunk{Delta: "hello", Path: "greeting"})

	first := a.Finalize()
	second := a.Finalize()
	assert.Equal(t, first, second)
}

func TestFeedSnapshotIsIncrementalJSON(t *testing.T) {
	a := New()

	fed := a.Feed(Chunk{Delta: "Stock", Path: "city"})
	require.NotNil(t, fed)
	assert.JSONEq(t, `{"city":"Stock"}`, fed.Snapshot)

	fed = a.Feed(Chunk{Delta: "holm", Path: "city"})
	require.NotNil(t, fed)
	assert.JSONEq(t, `{"city":"Stockholm"}`, fed.Snapshot)

	fed = a.Feed(Chunk{Delta: 7, Path: "rank"})
	require.NotNil(t, fed)
	assert.JSONEq(t, `{"city":"Stockholm","rank":7}`, fed.Snapshot)
}

func TestSchemaValidationFailureReturnsUnvalidated(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
		"required": []string{"name"},
	}
	a := New(func(o *Options) { o.Schema = schema })
	a.Feed(Chunk{Delta: "42", Path: "other"})

	result := a.Finalize()
	require.Equal(t, KindStructured, result.Kind)
	assert.Equal(t, map[string]any{"other": int64(42)}, result.Value)
}

func TestRootTextMixedWithPathsIsStructured(t *testing.T) {
	a := New()
	a.Feed(Chunk{Delta: "thinking..."})
	a.Feed(Chunk{Delta: "42", Path: "answer"})

	result := a.Finalize()
	assert.Equal(t, KindStructured, result.Kind)
	assert.Equal(t, map[string]any{"answer": int64(42)}, result.Value)
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "2", "c"}, splitPath("a.b[2].c"))
	assert.Equal(t, []string{"a"}, splitPath("a"))
	assert.Equal(t, []string{"items", "0", "1"}, splitPath("items[0][1]"))
	assert.Equal(t, []string{"a", "b"}, splitPath("a..b"))
	assert.Empty(t, splitPath(""))
}

func TestArrayIndexRejectsNonCanonicalForms(t *testing.T) {
	_, ok := arrayIndex("01")
	assert.False(t, ok)
	_, ok = arrayIndex("+1")
	assert.False(t, ok)
	_, ok = arrayIndex("-1")
	assert.False(t, ok)

	n, ok := arrayIndex("0")
	assert.True(t, ok)
	assert.Equal(t, 0, n)
}
