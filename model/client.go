// Package model defines the network collaborator contract the agent loop
// consumes: a buffered call, a streaming variant, and span lifecycle methods
// for distributed tracing. Provider adapters live in the subpackages
// (anthropic, openai); RetryClient adds exponential backoff for
// transient-class faults; MockClient is an in-memory scripted client for
// tests and examples.
package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opper-ai/opper-agent-go/core"
)

// TokenUsage captures token and cost figures for one model call.
type TokenUsage struct {
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         core.Cost `json:"cost"`
}

// CallRequest is the normalized input of one model call.
type CallRequest struct {
	// Name labels the call for tracing ("<agent>.think", "<agent>.synthesize").
	Name         string         `json:"name"`
	Instructions string         `json:"instructions"`
	Input        any            `json:"input"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
	Model        string         `json:"model,omitempty"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
}

// CallResponse is the buffered result of one model call. ParsedOutput is set
// when the provider produced structured output conforming to OutputSchema;
// Message carries the plain text response otherwise. Both may be set.
type CallResponse struct {
	ParsedOutput json.RawMessage `json:"parsed_output,omitempty"`
	Message      string          `json:"message,omitempty"`
	SpanID       string          `json:"span_id,omitempty"`
	Usage        TokenUsage      `json:"usage"`
}

// StreamEvent is one fragment of a streaming call. Path addresses the field
// the fragment belongs to; an empty path means plain root text. Usage, when
// present, carries the call's final (best-effort) token figures.
type StreamEvent struct {
	Delta     any         `json:"delta,omitempty"`
	Path      string      `json:"path,omitempty"`
	ChunkKind string      `json:"chunk_kind,omitempty"`
	SpanID    string      `json:"span_id,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}

// SpanOptions describe a new tracing span.
type SpanOptions struct {
	Name     string
	Input    any
	ParentID string
}

// Span is a created tracing span.
type Span struct {
	ID string
}

// SpanUpdate closes or annotates a span.
type SpanUpdate struct {
	Output    any
	Err       error
	StartTime time.Time
	EndTime   time.Time
	Meta      map[string]any
}

// Client is the model collaborator interface. Implementations must be safe
// for concurrent use; the loop may drive several invocations at once, each
// owning a disjoint ExecutionContext.
type Client interface {
	// Call performs one buffered model call.
	Call(ctx context.Context, req CallRequest) (*CallResponse, error)

	// Stream performs one streaming model call. The event channel is closed
	// when the source is exhausted; at most one error is sent on the error
	// channel, which is closed alongside.
	Stream(ctx context.Context, req CallRequest) (<-chan StreamEvent, <-chan error)

	// CreateSpan opens a tracing span.
	CreateSpan(ctx context.Context, opts SpanOptions) (*Span, error)

	// UpdateSpan closes or annotates a span.
	UpdateSpan(ctx context.Context, id string, update SpanUpdate) error
}
