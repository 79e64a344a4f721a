package core

import (
	"fmt"
)

// ValidationError reports an input or output contract mismatch. It is fatal:
// Process surfaces it to the caller instead of continuing the loop.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// IterationLimitError is returned when the agent loop reaches its iteration
// budget without producing a final result.
type IterationLimitError struct {
	Agent         string
	MaxIterations int
}

// Error implements the error interface for IterationLimitError.
func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("agent %s reached the maximum of %d iterations without completing", e.Agent, e.MaxIterations)
}

// Tool error codes used to categorize failures uniformly across tools.
const (
	ToolErrorValidation = "VALIDATION_ERROR"
	ToolErrorExecution  = "EXECUTION_ERROR"
	ToolErrorTimeout    = "TIMEOUT"
	ToolErrorCancelled  = "CANCELLED"
	ToolErrorNotFound   = "NOT_FOUND"
)

// ToolError represents errors that occur during tool lookup or execution.
// Tool errors are recovered locally by the loop: they are recorded into the
// ExecutionContext and never abort the iteration.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Timeout reports whether the error was caused by an elapsed deadline.
func (e *ToolError) Timeout() bool { return e.Code == ToolErrorTimeout }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// MemoryError wraps a failed memory read or write. Like tool errors it is
// recovered locally: the loop records it and continues.
type MemoryError struct {
	Op  string // "read", "write", "list"
	Key string // affected key, empty for multi-key operations
	Err error
}

func (e *MemoryError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("memory %s failed for key %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("memory %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MemoryError) Unwrap() error { return e.Err }
