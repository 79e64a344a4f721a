package core

import (
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// MemoryUpdate is one requested memory write: the value to store plus an
// optional description and metadata for the memory catalog.
type MemoryUpdate struct {
	Value       any            `json:"value"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Decision is the structured output of one model "think" call: reasoning,
// requested tool calls, memory operations, and an optional completion signal.
// It is ephemeral; the loop consumes it and records the outcome as a Cycle.
type Decision struct {
	Reasoning     string
	ToolCalls     []ToolCallRequest
	MemoryReads   []string
	MemoryUpdates map[string]MemoryUpdate
	IsComplete    bool
	FinalResult   any

	// Legacy marks a response that predates the completion fields. Under the
	// legacy contract an empty tool call list means the iteration is complete
	// and the loop falls through to a synthesis call; an inline final result
	// is never trusted.
	Legacy bool
}

// field reads a gjson field accepting both snake_case and camelCase keys.
// Models are prompted with snake_case but not all of them comply.
func field(root gjson.Result, snake, camel string) gjson.Result {
	if v := root.Get(snake); v.Exists() {
		return v
	}
	return root.Get(camel)
}

// ParseDecision leniently decodes a model response into a Decision. Invalid
// JSON is treated as a legacy plain-text response: complete, with the text
// kept as reasoning so the synthesis call still sees it.
func ParseDecision(raw []byte) *Decision {
	if !gjson.ValidBytes(raw) {
		return &Decision{
			Reasoning:  string(raw),
			IsComplete: true,
			Legacy:     true,
		}
	}

	root := gjson.ParseBytes(raw)
	d := &Decision{
		Reasoning: field(root, "reasoning", "thought").String(),
	}

	for _, tc := range field(root, "tool_calls", "toolCalls").Array() {
		call := ToolCallRequest{
			ID:   tc.Get("id").String(),
			Name: tc.Get("name").String(),
		}
		if call.ID == "" {
			call.ID = uuid.NewString()
		}
		if input, ok := tc.Get("input").Value().(map[string]any); ok {
			call.Input = input
		} else if args, ok := tc.Get("arguments").Value().(map[string]any); ok {
			call.Input = args
		}
		d.ToolCalls = append(d.ToolCalls, call)
	}

	for _, key := range field(root, "memory_reads", "memoryReads").Array() {
		d.MemoryReads = append(d.MemoryReads, key.String())
	}

	updates := field(root, "memory_updates", "memoryUpdates")
	if updates.IsObject() {
		d.MemoryUpdates = make(map[string]MemoryUpdate)
		updates.ForEach(func(key, value gjson.Result) bool {
			upd := MemoryUpdate{}
			if value.IsObject() && value.Get("value").Exists() {
				upd.Value = value.Get("value").Value()
				upd.Description = value.Get("description").String()
				if md, ok := value.Get("metadata").Value().(map[string]any); ok {
					upd.Metadata = md
				}
			} else {
				// Bare values are accepted as a shorthand for {value: ...}.
				upd.Value = value.Value()
			}
			d.MemoryUpdates[key.String()] = upd
			return true
		})
	}

	complete := field(root, "is_complete", "isComplete")
	final := field(root, "final_result", "finalResult")
	if !complete.Exists() && !final.Exists() {
		d.Legacy = true
		d.IsComplete = len(d.ToolCalls) == 0
		return d
	}

	d.IsComplete = complete.Bool()
	if final.Exists() {
		d.FinalResult = final.Value()
	}
	return d
}
