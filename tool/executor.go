package tool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opper-ai/opper-agent-go/core"
	"github.com/opper-ai/opper-agent-go/hook"
	"github.com/opper-ai/opper-agent-go/internal/util"
	"github.com/opper-ai/opper-agent-go/logging"
)

// Tracer records spans around tool executions. The model client satisfies
// this through a thin adapter; a nil tracer falls back to locally generated
// span identifiers so tools always receive a usable parent.
type Tracer interface {
	CreateSpan(ctx context.Context, name string, input any, parentID string) (string, error)
	UpdateSpan(ctx context.Context, id string, output any, callErr error) error
}

// Executor validates, invokes and records tool calls, normalizing every
// outcome into a core.ToolResult. Exactly one ToolCallRecord is appended to
// the ExecutionContext per call, whatever the outcome.
type Executor struct {
	registry *Registry
	hooks    *hook.Registry
	logger   logging.Logger
	tracer   Tracer
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Hooks  *hook.Registry
	Logger logging.Logger
	Tracer Tracer
}

// NewExecutor creates an executor over a tool registry.
func NewExecutor(registry *Registry, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Hooks == nil {
		opts.Hooks = hook.NewRegistry()
	}
	return &Executor{
		registry: registry,
		hooks:    opts.Hooks,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
	}
}

// ExecOptions are per-call execution options.
type ExecOptions struct {
	// Timeout, when positive, races the call against a timer. The underlying
	// goroutine is not killed when the timer wins; only its result is
	// discarded. Use context cancellation for true abandonment.
	Timeout time.Duration

	// ParentSpanID is the span under which per-call spans are created.
	ParentSpanID string
}

// BatchOptions configure ExecuteBatch.
type BatchOptions struct {
	ExecOptions

	// Parallel runs the batch concurrently. Results always preserve request
	// order regardless of completion order.
	Parallel bool

	// MaxParallel caps concurrency in parallel mode; 0 means unbounded.
	MaxParallel int
}

// Execute runs one tool call. An unknown name, a validation failure, a
// returned error, a panic, an elapsed deadline or an already-cancelled
// context all produce a failure result; nothing on this path ever aborts the
// caller.
func (e *Executor) Execute(ctx context.Context, call core.ToolCallRequest, execCtx *core.ExecutionContext, opts ExecOptions) core.ToolResult {
	started := time.Now()

	t, ok := e.registry.Lookup(call.Name)
	if !ok {
		err := core.NewToolError(call.Name, "unknown tool", core.ToolErrorNotFound)
		return e.fail(ctx, call, execCtx, started, err, false)
	}

	if schema := t.InputSchema(); schema != nil {
		if verr := util.ValidateParameters(call.Input, schema); verr != nil {
			err := &core.ToolError{
				Tool:    call.Name,
				Message: fmt.Sprintf("input validation failed: %v", verr),
				Code:    core.ToolErrorValidation,
				Details: verr,
			}
			return e.fail(ctx, call, execCtx, started, err, false)
		}
	}

	e.hooks.Emit(ctx, hook.ToolBeforeEvent{
		Base:     hook.Base{Execution: execCtx},
		CallID:   call.ID,
		ToolName: call.Name,
		Input:    call.Input,
	})

	if ctx.Err() != nil {
		err := core.NewToolError(call.Name, "call cancelled before execution", core.ToolErrorCancelled)
		return e.fail(ctx, call, execCtx, started, err, false)
	}

	spanID := e.startSpan(ctx, call, opts.ParentSpanID)
	toolCtx := core.NewToolContext(ctx, execCtx, call.ID, spanID, e.logger)

	type outcome struct {
		output any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				e.logger.Error("tool panicked", "tool", call.Name, "recover", rec, "stack", string(debug.Stack()))
				done <- outcome{err: core.NewToolError(call.Name, fmt.Sprintf("panic: %v", rec), core.ToolErrorExecution)}
			}
		}()
		output, err := t.Execute(toolCtx, call.Input)
		done <- outcome{output: output, err: err}
	}()

	var timer <-chan time.Time
	if opts.Timeout > 0 {
		tm := time.NewTimer(opts.Timeout)
		defer tm.Stop()
		timer = tm.C
	}

	var res core.ToolResult
	select {
	case o := <-done:
		if o.err != nil {
			e.endSpan(ctx, spanID, nil, o.err)
			return e.fail(ctx, call, execCtx, started, o.err, true)
		}
		res = core.ToolResult{
			CallID:   call.ID,
			ToolName: call.Name,
			Success:  true,
			Output:   o.output,
			Duration: time.Since(started),
		}
	case <-timer:
		err := core.NewToolError(call.Name, fmt.Sprintf("timed out after %s", opts.Timeout), core.ToolErrorTimeout)
		e.endSpan(ctx, spanID, nil, err)
		return e.fail(ctx, call, execCtx, started, err, true)
	case <-ctx.Done():
		err := core.NewToolError(call.Name, fmt.Sprintf("cancelled: %v", ctx.Err()), core.ToolErrorCancelled)
		e.endSpan(ctx, spanID, nil, err)
		return e.fail(ctx, call, execCtx, started, err, true)
	}

	e.endSpan(ctx, spanID, res.Output, nil)
	e.record(execCtx, call, started, res)
	e.hooks.Emit(ctx, hook.ToolAfterEvent{Base: hook.Base{Execution: execCtx}, Result: res})

	e.logger.Info("tool executed",
		"tool", call.Name,
		"call_id", call.ID,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}

// fail normalizes a fault into a failure result, records it, and emits
// tool:error followed by tool:after with the same result. Observers see both
// events on exceptional paths.
func (e *Executor) fail(ctx context.Context, call core.ToolCallRequest, execCtx *core.ExecutionContext, started time.Time, err error, invoked bool) core.ToolResult {
	res := core.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Success:  false,
		Error:    err.Error(),
		Duration: time.Since(started),
	}
	if toolErr, ok := err.(*core.ToolError); ok && toolErr.Timeout() {
		res.TimedOut = true
	}

	e.record(execCtx, call, started, res)

	e.hooks.Emit(ctx, hook.ToolErrorEvent{
		Base:     hook.Base{Execution: execCtx},
		CallID:   call.ID,
		ToolName: call.Name,
		Err:      err,
	})
	e.hooks.Emit(ctx, hook.ToolAfterEvent{Base: hook.Base{Execution: execCtx}, Result: res})

	e.logger.Warn("tool call failed",
		"tool", call.Name,
		"call_id", call.ID,
		"invoked", invoked,
		"error", err.Error(),
	)
	return res
}

func (e *Executor) record(execCtx *core.ExecutionContext, call core.ToolCallRequest, started time.Time, res core.ToolResult) {
	finished := time.Now()
	success := res.Success
	execCtx.RecordToolCall(core.ToolCallRecord{
		ID:         call.ID,
		ToolName:   call.Name,
		Input:      call.Input,
		Output:     res.Output,
		Success:    &success,
		Error:      res.Error,
		StartedAt:  started,
		FinishedAt: &finished,
	})
}

// ExecuteBatch runs the set of tool calls from one decision. Sequential mode
// executes one call at a time; parallel mode runs them concurrently under an
// optional semaphore. Either way every requested call produces a result and
// the returned slice preserves request order; the batch never
// short-circuits.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []core.ToolCallRequest, execCtx *core.ExecutionContext, opts BatchOptions) []core.ToolResult {
	n := len(calls)
	if n == 0 {
		return nil
	}

	results := make([]core.ToolResult, n)

	// Fast path: single call or sequential mode.
	if !opts.Parallel || n == 1 {
		for i, call := range calls {
			results[i] = e.Execute(ctx, call, execCtx, opts.ExecOptions)
		}
		return results
	}

	maxPar := opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}
	sem := make(chan struct{}, maxPar)

	var wg sync.WaitGroup
	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call core.ToolCallRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.Execute(ctx, call, execCtx, opts.ExecOptions)
		}(i, calls[i])
	}
	wg.Wait()

	return results
}

// RunSequence is the batch-runner variant for non-agent callers: it executes
// calls one at a time and aborts the remaining calls on the first failure,
// returning the results gathered so far together with the failing call's
// error. The agent loop does not use this; it always runs all requested
// calls.
func (e *Executor) RunSequence(ctx context.Context, calls []core.ToolCallRequest, execCtx *core.ExecutionContext, opts ExecOptions) ([]core.ToolResult, error) {
	var results []core.ToolResult
	for _, call := range calls {
		res := e.Execute(ctx, call, execCtx, opts)
		results = append(results, res)
		if !res.Success {
			return results, core.NewToolError(call.Name, res.Error, core.ToolErrorExecution)
		}
	}
	return results, nil
}

func (e *Executor) startSpan(ctx context.Context, call core.ToolCallRequest, parentID string) string {
	if e.tracer == nil {
		return uuid.NewString()
	}
	id, err := e.tracer.CreateSpan(ctx, "tool."+call.Name, call.Input, parentID)
	if err != nil {
		e.logger.Debug("span creation failed", "tool", call.Name, "error", err.Error())
		return uuid.NewString()
	}
	return id
}

func (e *Executor) endSpan(ctx context.Context, spanID string, output any, callErr error) {
	if e.tracer == nil || spanID == "" {
		return
	}
	if err := e.tracer.UpdateSpan(ctx, spanID, output, callErr); err != nil {
		e.logger.Debug("span update failed", "span_id", spanID, "error", err.Error())
	}
}
