package tool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opper-ai/opper-agent-go/core"
	"github.com/opper-ai/opper-agent-go/hook"
)

func newExecCtx() *core.ExecutionContext {
	return core.NewExecutionContext("test-agent", "session-1", "")
}

func sleepTool(name string, d time.Duration, output any) core.Tool {
	return NewFunctionTool(name, "sleeps then answers", nil,
		func(tc *core.ToolContext, input map[string]any) (any, error) {
			select {
			case <-time.After(d):
				return output, nil
			case <-tc.Context().Done():
				return nil, tc.Context().Err()
			}
		})
}

func TestExecuteUnknownTool(t *testing.T) {
	e := NewExecutor(NewRegistry())
	execCtx := newExecCtx()

	res := e.Execute(context.Background(), core.ToolCallRequest{ID: "c1", Name: "missing"}, execCtx, ExecOptions{})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown tool")

	records := execCtx.ToolCalls()
	require.Len(t, records, 1)
	assert.Equal(t, "missing", records[0].ToolName)
	require.NotNil(t, records[0].Success)
	assert.False(t, *records[0].Success)
}

func TestExecuteValidationFailureSkipsInvocation(t *testing.T) {
	invoked := false
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"q": map[string]any{"type": "string"},
		},
		"required": []string{"q"},
	}
	reg := NewRegistry()
	reg.Register(NewFunctionTool("lookup", "", schema,
		func(tc *core.ToolContext, input map[string]any) (any, error) {
			invoked = true
			return nil, nil
		}))
	e := NewExecutor(reg)
	execCtx := newExecCtx()

	res := e.Execute(context.Background(), core.ToolCallRequest{ID: "c1", Name: "lookup", Input: map[string]any{}}, execCtx, ExecOptions{})

	assert.False(t, res.Success)
	assert.False(t, invoked, "tool must not run on validation failure")
	assert.Len(t, execCtx.ToolCalls(), 1)
}

func TestExecuteFaultEmitsBothToolErrorAndToolAfter(t *testing.T) {
	hooks := hook.NewRegistry()
	var events []hook.EventName
	for _, name := range []hook.EventName{hook.ToolBefore, hook.ToolError, hook.ToolAfter} {
		name := name
		hooks.Register(name, func(_ context.Context, ev hook.Event) error {
			events = append(events, ev.Name())
			return nil
		})
	}

	reg := NewRegistry()
	reg.Register(NewFunctionTool("fails", "", nil,
		func(tc *core.ToolContext, input map[string]any) (any, error) {
			return nil, errors.New("boom")
		}))
	e := NewExecutor(reg, func(o *ExecutorOptions) { o.Hooks = hooks })

	res := e.Execute(context.Background(), core.ToolCallRequest{ID: "c1", Name: "fails"}, newExecCtx(), ExecOptions{})

	assert.False(t, res.Success)
	assert.Equal(t, []hook.EventName{hook.ToolBefore, hook.ToolError, hook.ToolAfter}, events)
}

func TestExecuteSuccessEmitsOnlyToolAfter(t *testing.T) {
	hooks := hook.NewRegistry()
	var events []hook.EventName
	for _, name := range []hook.EventName{hook.ToolError, hook.ToolAfter} {
		name := name
		hooks.Register(name, func(_ context.Context, ev hook.Event) error {
			events = append(events, ev.Name())
			return nil
		})
	}

	reg := NewRegistry()
	reg.Register(NewFunctionTool("ok", "", nil,
		func(tc *core.ToolContext, input map[string]any) (any, error) {
			return "done", nil
		}))
	e := NewExecutor(reg, func(o *ExecutorOptions) { o.Hooks = hooks })

	res := e.Execute(context.Background(), core.ToolCallRequest{ID: "c1", Name: "ok"}, newExecCtx(), ExecOptions{})

	assert.True(t, res.Success)
	assert.Equal(t, "done", res.Output)
	assert.Equal(t, []hook.EventName{hook.ToolAfter}, events)
}

func TestExecuteTimeoutSingleRecord(t *testing.T) {
	reg := NewRegistry()
	reg.Register(sleepTool("slow", 500*time.Millisecond, "late"))
	e := NewExecutor(reg)
	execCtx := newExecCtx()

	res := e.Execute(context.Background(), core.ToolCallRequest{ID: "c1", Name: "slow"}, execCtx, ExecOptions{Timeout: 20 * time.Millisecond})

	assert.False(t, res.Success)
	assert.True(t, res.TimedOut)
	assert.Len(t, execCtx.ToolCalls(), 1, "timeout must record exactly one entry")
}

func TestExecutePanicRecovered(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewFunctionTool("panics", "", nil,
		func(tc *core.ToolContext, input map[string]any) (any, error) {
			panic("tool exploded")
		}))
	e := NewExecutor(reg)

	var res core.ToolResult
	assert.NotPanics(t, func() {
		res = e.Execute(context.Background(), core.ToolCallRequest{ID: "c1", Name: "panics"}, newExecCtx(), ExecOptions{})
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "panic")
}

func TestExecuteCancelledContext(t *testing.T) {
	reg := NewRegistry()
	reg.Register(sleepTool("slow", time.Second, nil))
	e := NewExecutor(reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Execute(ctx, core.ToolCallRequest{ID: "c1", Name: "slow"}, newExecCtx(), ExecOptions{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "cancelled")
}

func TestExecuteBatchParallelPreservesRequestOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(sleepTool("slow", 80*time.Millisecond, "slow-result"))
	reg.Register(sleepTool("fast", 5*time.Millisecond, "fast-result"))
	e := NewExecutor(reg)

	calls := []core.ToolCallRequest{
		{ID: "c1", Name: "slow"},
		{ID: "c2", Name: "fast"},
	}
	results := e.ExecuteBatch(context.Background(), calls, newExecCtx(), BatchOptions{Parallel: true})

	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].CallID)
	assert.Equal(t, "slow-result", results[0].Output)
	assert.Equal(t, "c2", results[1].CallID)
	assert.Equal(t, "fast-result", results[1].Output)
}

func TestExecuteBatchDoesNotShortCircuit(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewFunctionTool("fails", "", nil,
		func(tc *core.ToolContext, input map[string]any) (any, error) {
			return nil, errors.New("boom")
		}))
	reg.Register(NewFunctionTool("ok", "", nil,
		func(tc *core.ToolContext, input map[string]any) (any, error) {
			return "fine", nil
		}))
	e := NewExecutor(reg)

	results := e.ExecuteBatch(context.Background(), []core.ToolCallRequest{
		{ID: "c1", Name: "fails"},
		{ID: "c2", Name: "ok"},
	}, newExecCtx(), BatchOptions{})

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
}

func TestExecuteBatchMaxParallelBound(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0

	reg := NewRegistry()
	reg.Register(NewFunctionTool("counted", "", nil,
		func(tc *core.ToolContext, input map[string]any) (any, error) {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return nil, nil
		}))
	e := NewExecutor(reg)

	calls := make([]core.ToolCallRequest, 6)
	for i := range calls {
		calls[i] = core.ToolCallRequest{ID: "c", Name: "counted"}
	}
	e.ExecuteBatch(context.Background(), calls, newExecCtx(), BatchOptions{Parallel: true, MaxParallel: 2})

	assert.LessOrEqual(t, peak, 2)
}

func TestRunSequenceAbortsOnFirstFailure(t *testing.T) {
	thirdRan := false
	reg := NewRegistry()
	reg.Register(NewFunctionTool("ok", "", nil,
		func(tc *core.ToolContext, input map[string]any) (any, error) { return "fine", nil }))
	reg.Register(NewFunctionTool("fails", "", nil,
		func(tc *core.ToolContext, input map[string]any) (any, error) { return nil, errors.New("boom") }))
	reg.Register(NewFunctionTool("third", "", nil,
		func(tc *core.ToolContext, input map[string]any) (any, error) {
			thirdRan = true
			return nil, nil
		}))
	e := NewExecutor(reg)

	results, err := e.RunSequence(context.Background(), []core.ToolCallRequest{
		{ID: "c1", Name: "ok"},
		{ID: "c2", Name: "fails"},
		{ID: "c3", Name: "third"},
	}, newExecCtx(), ExecOptions{})

	require.Error(t, err)
	assert.Len(t, results, 2)
	assert.False(t, thirdRan)
}
