package core

import (
	"context"

	"github.com/opper-ai/opper-agent-go/logging"
)

// Tool defines the interface for extending agent capabilities with external
// functions.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a JSON schema for their input when they need validation
//   - Be safe for concurrent use: one decision's calls may run in parallel
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is shown to the model to help it decide when to use the tool.
	Description() string

	// InputSchema returns a JSON schema describing the expected input, or nil
	// when the tool accepts arbitrary input.
	InputSchema() map[string]any

	// Execute runs the tool with validated input and the invocation's
	// ToolContext.
	Execute(tc *ToolContext, input map[string]any) (any, error)
}

// ToolContext carries the owning ExecutionContext, the cancellation context
// and a span identifier tools may use as a parent for their own nested spans.
type ToolContext struct {
	Execution *ExecutionContext
	CallID    string
	SpanID    string

	ctx    context.Context
	logger logging.Logger
}

// NewToolContext creates a context for one tool invocation.
func NewToolContext(ctx context.Context, execCtx *ExecutionContext, callID, spanID string, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		Execution: execCtx,
		CallID:    callID,
		SpanID:    spanID,
		ctx:       ctx,
		logger:    logger,
	}
}

// Context returns the cancellation context attached to this call. A deadline
// or cancellation on it aborts only this call, never the enclosing iteration.
func (tc *ToolContext) Context() context.Context {
	if tc.ctx == nil {
		return context.Background()
	}
	return tc.ctx
}

// Logger returns the logger for this invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }
