package tool

import (
	"github.com/opper-ai/opper-agent-go/core"
	"github.com/opper-ai/opper-agent-go/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// tool. It holds a minimal JSON-schema-like input specification, validates
// supplied input against it before execution, and normalizes errors into
// *core.ToolError with consistent codes:
//
//	VALIDATION_ERROR -> schema / input mismatch
//	EXECUTION_ERROR  -> underlying function returned an error
//	(custom codes preserved if the function returns *core.ToolError directly)
//
// A FunctionTool has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	schema      map[string]any
	fn          func(tc *core.ToolContext, input map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and
// function.
//
// Example:
//
//	sum := tool.NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(tc *core.ToolContext, input map[string]any) (any, error) {
//	    return input["a"].(float64) + input["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	schema map[string]any,
	fn func(tc *core.ToolContext, input map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the input schema from a struct via
// reflection, equivalent to passing util.CreateSchema(argsType) explicitly.
func NewFunctionToolFromStruct(
	name, description string,
	argsType any,
	fn func(tc *core.ToolContext, input map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(argsType), fn)
}

// Name returns the unique tool name used in decisions and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// InputSchema returns the minimal JSON schema describing expected input.
func (t *FunctionTool) InputSchema() map[string]any { return t.schema }

// Execute validates the input against the declared schema then invokes the
// underlying function, wrapping failures as *core.ToolError.
func (t *FunctionTool) Execute(tc *core.ToolContext, input map[string]any) (any, error) {
	if t.schema != nil {
		if err := util.ValidateParameters(input, t.schema); err != nil {
			return nil, &core.ToolError{
				Tool:    t.name,
				Message: err.Error(),
				Code:    core.ToolErrorValidation,
				Details: err,
			}
		}
	}

	result, err := t.fn(tc, input)
	if err != nil {
		if toolErr, ok := err.(*core.ToolError); ok {
			return nil, toolErr
		}
		return nil, &core.ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    core.ToolErrorExecution,
		}
	}
	return result, nil
}
