package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecisionComplete(t *testing.T) {
	raw := []byte(`{
		"reasoning": "all data gathered",
		"tool_calls": [],
		"is_complete": true,
		"final_result": {"answer": 42}
	}`)

	d := ParseDecision(raw)
	assert.Equal(t, "all data gathered", d.Reasoning)
	assert.True(t, d.IsComplete)
	assert.False(t, d.Legacy)
	assert.Empty(t, d.ToolCalls)
	assert.Equal(t, map[string]any{"answer": float64(42)}, d.FinalResult)
}

func TestParseDecisionToolCalls(t *testing.T) {
	raw := []byte(`{
		"reasoning": "need the weather",
		"tool_calls": [
			{"id": "call-1", "name": "get_weather", "input": {"city": "Stockholm"}},
			{"name": "get_time", "arguments": {"zone": "CET"}}
		],
		"is_complete": false
	}`)

	d := ParseDecision(raw)
	require.Len(t, d.ToolCalls, 2)
	assert.Equal(t, "call-1", d.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", d.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"city": "Stockholm"}, d.ToolCalls[0].Input)

	// Missing ids are generated, "arguments" is accepted as an alias.
	assert.NotEmpty(t, d.ToolCalls[1].ID)
	assert.Equal(t, map[string]any{"zone": "CET"}, d.ToolCalls[1].Input)
	assert.False(t, d.IsComplete)
}

func TestParseDecisionCamelCaseFallback(t *testing.T) {
	raw := []byte(`{
		"thought": "camel case response",
		"toolCalls": [{"name": "lookup", "input": {"q": "x"}}],
		"isComplete": false
	}`)

	d := ParseDecision(raw)
	assert.Equal(t, "camel case response", d.Reasoning)
	require.Len(t, d.ToolCalls, 1)
	assert.Equal(t, "lookup", d.ToolCalls[0].Name)
	assert.False(t, d.Legacy)
}

func TestParseDecisionLegacyNoCompletionFields(t *testing.T) {
	noCalls := ParseDecision([]byte(`{"reasoning": "done", "tool_calls": []}`))
	assert.True(t, noCalls.Legacy)
	assert.True(t, noCalls.IsComplete)

	withCalls := ParseDecision([]byte(`{"reasoning": "working", "tool_calls": [{"name": "t"}]}`))
	assert.True(t, withCalls.Legacy)
	assert.False(t, withCalls.IsComplete)
}

func TestParseDecisionInvalidJSON(t *testing.T) {
	d := ParseDecision([]byte("I could not produce JSON, sorry."))
	assert.True(t, d.Legacy)
	assert.True(t, d.IsComplete)
	assert.Equal(t, "I could not produce JSON, sorry.", d.Reasoning)
	assert.Nil(t, d.FinalResult)
}

func TestParseDecisionMemoryOperations(t *testing.T) {
	raw := []byte(`{
		"reasoning": "store preferences",
		"memory_reads": ["profile", "settings"],
		"memory_updates": {
			"profile": {"value": {"seat": "window"}, "description": "travel prefs"},
			"counter": 3
		},
		"is_complete": false
	}`)

	d := ParseDecision(raw)
	assert.Equal(t, []string{"profile", "settings"}, d.MemoryReads)
	require.Len(t, d.MemoryUpdates, 2)

	profile := d.MemoryUpdates["profile"]
	assert.Equal(t, map[string]any{"seat": "window"}, profile.Value)
	assert.Equal(t, "travel prefs", profile.Description)

	// Bare values are shorthand for {value: ...}.
	assert.Equal(t, float64(3), d.MemoryUpdates["counter"].Value)
}
