package core

import (
	"sync"
	"time"
)

// Cost breaks a call's monetary cost into its generation and platform parts.
type Cost struct {
	Generation float64 `json:"generation"`
	Platform   float64 `json:"platform"`
	Total      float64 `json:"total"`
}

func (c *Cost) add(o Cost) {
	c.Generation += o.Generation
	c.Platform += o.Platform
	c.Total += o.Total
}

// Usage accumulates model call counts, token totals and cost. All fields are
// monotonic: they only ever grow over the lifetime of an ExecutionContext.
type Usage struct {
	Requests     int  `json:"requests"`
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	TotalTokens  int  `json:"total_tokens"`
	Cost         Cost `json:"cost"`
}

func (u *Usage) add(o Usage) {
	u.Requests += o.Requests
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.TotalTokens += o.TotalTokens
	u.Cost.add(o.Cost)
}

// ToolCallRecord is the flat per-call record appended to the
// ExecutionContext. Output, Success and Error are filled when the call
// finishes; a record is only appended once complete so the sequence never
// holds half-written entries.
type ToolCallRecord struct {
	ID         string         `json:"id"`
	ToolName   string         `json:"tool_name"`
	Input      map[string]any `json:"input"`
	Output     any            `json:"output,omitempty"`
	Success    *bool          `json:"success,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// ToolCallRequest is a single tool invocation requested by a Decision.
type ToolCallRequest struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult is the normalized outcome of one tool invocation. Exactly one
// result is produced per request, whether the tool succeeded, failed, timed
// out or was never invoked at all.
type ToolResult struct {
	CallID   string        `json:"call_id"`
	ToolName string        `json:"tool_name"`
	Success  bool          `json:"success"`
	Output   any           `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Cycle is one completed iteration's record: the decision summary plus all
// memory and tool outcomes from that iteration. Cycles are append-only and
// never mutated after being added to the history.
type Cycle struct {
	Iteration    int              `json:"iteration"`
	ModelThought string           `json:"model_thought"`
	ToolCalls    []ToolCallRecord `json:"tool_calls"`
	Results      []ToolResult     `json:"results"`
	Timestamp    time.Time        `json:"timestamp"`
}

// ExecutionContext is the mutable per-invocation record. It is owned
// exclusively by the invocation that created it: only that invocation's
// iteration advances the counter or appends cycles, so no cross-invocation
// locking is needed. The internal mutex only serializes appends and usage
// updates from a parallel tool batch within a single iteration.
type ExecutionContext struct {
	Name         string
	SessionID    string
	ParentSpanID string

	// Metadata is free-form scratch space; the loop uses it to stash the
	// most-recently-loaded memory snapshot between cycles.
	Metadata map[string]any

	mu        sync.Mutex
	iteration int
	history   []Cycle
	toolCalls []ToolCallRecord
	usage     Usage
	breakdown map[string]*Usage
}

// NewExecutionContext creates the record owned by a single agent invocation.
func NewExecutionContext(name, sessionID, parentSpanID string) *ExecutionContext {
	return &ExecutionContext{
		Name:         name,
		SessionID:    sessionID,
		ParentSpanID: parentSpanID,
		Metadata:     make(map[string]any),
	}
}

// Iteration returns the count of completed cycles.
func (c *ExecutionContext) Iteration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iteration
}

// AdvanceIteration marks one more cycle as completed.
func (c *ExecutionContext) AdvanceIteration() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iteration++
}

// AppendCycle adds a completed cycle to the execution history.
func (c *ExecutionContext) AppendCycle(cycle Cycle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, cycle)
}

// History returns a copy of the ordered cycle log.
func (c *ExecutionContext) History() []Cycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Cycle, len(c.history))
	copy(out, c.history)
	return out
}

// RecordToolCall appends a finished tool call record. Appends from a parallel
// batch land in completion order; each append is atomic so records are never
// interleaved mid-entry.
func (c *ExecutionContext) RecordToolCall(rec ToolCallRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolCalls = append(c.toolCalls, rec)
}

// ToolCalls returns a copy of the flat tool call log.
func (c *ExecutionContext) ToolCalls() []ToolCallRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ToolCallRecord, len(c.toolCalls))
	copy(out, c.toolCalls)
	return out
}

// AddUsage accumulates usage attributed to the invocation itself.
func (c *ExecutionContext) AddUsage(u Usage) {
	c.AddUsageFromSource(c.Name, u)
}

// AddUsageFromSource accumulates usage attributed to a contributing source
// (a delegate agent or tool). The aggregate always equals the sum of all
// breakdown entries.
func (c *ExecutionContext) AddUsageFromSource(source string, u Usage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage.add(u)
	if c.breakdown == nil {
		c.breakdown = make(map[string]*Usage)
	}
	entry, ok := c.breakdown[source]
	if !ok {
		entry = &Usage{}
		c.breakdown[source] = entry
	}
	entry.add(u)
}

// Usage returns a snapshot of the aggregate totals.
func (c *ExecutionContext) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// UsageBreakdown returns per-source totals, or nil when the breakdown would
// only contain the invocation's own name. Delegation is the only case worth
// surfacing; a sole self-entry carries no information beyond Usage().
func (c *ExecutionContext) UsageBreakdown() map[string]Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.breakdown) == 0 {
		return nil
	}
	if len(c.breakdown) == 1 {
		if _, only := c.breakdown[c.Name]; only {
			return nil
		}
	}
	out := make(map[string]Usage, len(c.breakdown))
	for k, v := range c.breakdown {
		out[k] = *v
	}
	return out
}
