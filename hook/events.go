// Package hook implements the lifecycle event pipeline: a typed
// publish/subscribe registry keyed by a closed set of event names. Delivery
// is sequential and registration-ordered, and a failing handler never stops
// delivery to the remaining handlers or propagates to the emitter.
package hook

import (
	"encoding/json"

	"github.com/opper-ai/opper-agent-go/core"
)

// EventName identifies one of the 17 lifecycle events. The set is closed;
// emitting anything else is a programming error.
type EventName string

const (
	AgentStart    EventName = "agent:start"
	AgentEnd      EventName = "agent:end"
	LoopStart     EventName = "loop:start"
	LoopEnd       EventName = "loop:end"
	ModelCall     EventName = "model:call"
	ModelResponse EventName = "model:response"
	ThinkEnd      EventName = "think:end"
	ToolBefore    EventName = "tool:before"
	ToolAfter     EventName = "tool:after"
	ToolError     EventName = "tool:error"
	MemoryRead    EventName = "memory:read"
	MemoryWrite   EventName = "memory:write"
	MemoryError   EventName = "memory:error"
	StreamStart   EventName = "stream:start"
	StreamChunk   EventName = "stream:chunk"
	StreamEnd     EventName = "stream:end"
	StreamError   EventName = "stream:error"
)

// Event is the sealed payload union. Every variant carries the current
// ExecutionContext plus event-specific fields; handlers type-switch on the
// concrete payload they care about.
type Event interface {
	Name() EventName
	ExecutionContext() *core.ExecutionContext
}

// Base carries the field every payload shares.
type Base struct {
	Execution *core.ExecutionContext
}

// ExecutionContext returns the invocation's execution context.
func (b Base) ExecutionContext() *core.ExecutionContext { return b.Execution }

// AgentStartEvent fires once when an invocation begins.
type AgentStartEvent struct {
	Base
	Input any
}

// Name returns the event name.
func (AgentStartEvent) Name() EventName { return AgentStart }

// AgentEndEvent fires exactly once per invocation, error attached when the
// invocation terminated abnormally. It is delivered before the caller
// observes the result or error.
type AgentEndEvent struct {
	Base
	Result any
	Err    error
}

// Name returns the event name.
func (AgentEndEvent) Name() EventName { return AgentEnd }

// LoopStartEvent fires at the top of every iteration.
type LoopStartEvent struct {
	Base
	Iteration int
}

// Name returns the event name.
func (LoopStartEvent) Name() EventName { return LoopStart }

// LoopEndEvent fires unconditionally at the end of every iteration, even
// when the iteration failed.
type LoopEndEvent struct {
	Base
	Iteration int
	Err       error
}

// Name returns the event name.
func (LoopEndEvent) Name() EventName { return LoopEnd }

// ModelCallEvent fires before each model call, buffered or streamed.
type ModelCallEvent struct {
	Base
	CallName string
	Model    string
	Streamed bool
}

// Name returns the event name.
func (ModelCallEvent) Name() EventName { return ModelCall }

// ModelResponseEvent fires after each model call with the raw response and
// the usage recorded for it.
type ModelResponseEvent struct {
	Base
	CallName string
	Raw      json.RawMessage
	Usage    core.Usage
}

// Name returns the event name.
func (ModelResponseEvent) Name() EventName { return ModelResponse }

// ThinkEndEvent fires once the decision for an iteration has been parsed.
type ThinkEndEvent struct {
	Base
	Decision *core.Decision
}

// Name returns the event name.
func (ThinkEndEvent) Name() EventName { return ThinkEnd }

// ToolBeforeEvent fires after input validation, immediately before a tool is
// invoked.
type ToolBeforeEvent struct {
	Base
	CallID   string
	ToolName string
	Input    map[string]any
}

// Name returns the event name.
func (ToolBeforeEvent) Name() EventName { return ToolBefore }

// ToolAfterEvent fires with the normalized result of a tool call, on success
// or observed failure. On exceptional paths it follows a ToolErrorEvent for
// the same call, so observers must tolerate double notification.
type ToolAfterEvent struct {
	Base
	Result core.ToolResult
}

// Name returns the event name.
func (ToolAfterEvent) Name() EventName { return ToolAfter }

// ToolErrorEvent fires when a tool call faults: unknown tool, validation
// failure, thrown error, timeout or cancellation.
type ToolErrorEvent struct {
	Base
	CallID   string
	ToolName string
	Err      error
}

// Name returns the event name.
func (ToolErrorEvent) Name() EventName { return ToolError }

// MemoryReadEvent fires after a successful memory read.
type MemoryReadEvent struct {
	Base
	Keys   []string
	Values map[string]any
}

// Name returns the event name.
func (MemoryReadEvent) Name() EventName { return MemoryRead }

// MemoryWriteEvent fires after a successful memory write.
type MemoryWriteEvent struct {
	Base
	Key   string
	Entry *core.MemoryEntry
}

// Name returns the event name.
func (MemoryWriteEvent) Name() EventName { return MemoryWrite }

// MemoryErrorEvent fires when a memory operation fails. The loop records the
// failure and continues.
type MemoryErrorEvent struct {
	Base
	Op  string
	Key string
	Err error
}

// Name returns the event name.
func (MemoryErrorEvent) Name() EventName { return MemoryError }

// StreamStartEvent fires when a streamed model call opens.
type StreamStartEvent struct {
	Base
	CallName string
	SpanID   string
}

// Name returns the event name.
func (StreamStartEvent) Name() EventName { return StreamStart }

// StreamChunkEvent fires for every non-empty stream fragment.
type StreamChunkEvent struct {
	Base
	Path  string
	Delta any
}

// Name returns the event name.
func (StreamChunkEvent) Name() EventName { return StreamChunk }

// StreamEndEvent fires when the stream source is exhausted.
type StreamEndEvent struct {
	Base
	CallName string
}

// Name returns the event name.
func (StreamEndEvent) Name() EventName { return StreamEnd }

// StreamErrorEvent fires when the stream source fails.
type StreamErrorEvent struct {
	Base
	CallName string
	Err      error
}

// Name returns the event name.
func (StreamErrorEvent) Name() EventName { return StreamError }
