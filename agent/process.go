package agent

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/opper-ai/opper-agent-go/core"
	"github.com/opper-ai/opper-agent-go/hook"
	"github.com/opper-ai/opper-agent-go/internal/util"
	"github.com/opper-ai/opper-agent-go/model"
	"github.com/opper-ai/opper-agent-go/tool"
)

// memoryMetadataKey is where the most-recently-loaded memory snapshot is
// stashed between cycles.
const memoryMetadataKey = "memory"

// Process runs the agent loop to completion.
//
// It fails with *core.ValidationError when input does not match the declared
// input schema (before any model call), with *core.IterationLimitError when
// the loop reaches its iteration budget, and re-raises faults from model
// calls and output validation. Tool, memory and hook failures are recovered
// locally: they are recorded into the ExecutionContext and the loop
// continues.
func (a *Agent) Process(ctx context.Context, input any) (any, error) {
	result, _, err := a.run(ctx, input)
	return result, err
}

// run is Process plus the finished ExecutionContext, used by AsTool to fold
// delegate usage into the parent invocation.
func (a *Agent) run(ctx context.Context, input any) (result any, execCtx *core.ExecutionContext, err error) {
	execCtx = core.NewExecutionContext(a.name, uuid.NewString(), "")

	// Input contract violations surface before any model call or lifecycle
	// event fires.
	if err = a.validateInput(input); err != nil {
		return nil, execCtx, err
	}

	started := time.Now()
	spanID := a.startSpan(ctx, input)
	execCtx.ParentSpanID = spanID

	a.hooks.Emit(ctx, hook.AgentStartEvent{Base: hook.Base{Execution: execCtx}, Input: input})
	defer func() {
		// The end event is always delivered, error attached, before the
		// caller observes the outcome.
		a.hooks.Emit(ctx, hook.AgentEndEvent{Base: hook.Base{Execution: execCtx}, Result: result, Err: err})
		a.endSpan(ctx, spanID, started, result, err)
	}()

	a.logger.Info("agent invocation started",
		"agent", a.name,
		"session_id", execCtx.SessionID,
		"max_iterations", a.maxIterations,
	)

	for execCtx.Iteration() < a.maxIterations {
		out := a.runIteration(ctx, execCtx, input, spanID)
		if out.err != nil {
			err = out.err
			return nil, execCtx, err
		}
		if out.hasResult {
			result = out.result
			return result, execCtx, nil
		}
		if out.complete {
			result, err = a.synthesize(ctx, execCtx, input, spanID)
			return result, execCtx, err
		}
	}

	err = &core.IterationLimitError{Agent: a.name, MaxIterations: a.maxIterations}
	return nil, execCtx, err
}

type iterationOutcome struct {
	result    any
	hasResult bool
	complete  bool
	err       error
}

// runIteration executes one cycle: think, fast-path completion check, memory
// resolution, tool execution, cycle recording. loop:end is emitted
// unconditionally, even when the think call fails.
func (a *Agent) runIteration(ctx context.Context, execCtx *core.ExecutionContext, input any, parentSpan string) (out iterationOutcome) {
	iteration := execCtx.Iteration()

	a.hooks.Emit(ctx, hook.LoopStartEvent{Base: hook.Base{Execution: execCtx}, Iteration: iteration})
	defer func() {
		a.hooks.Emit(ctx, hook.LoopEndEvent{Base: hook.Base{Execution: execCtx}, Iteration: iteration, Err: out.err})
	}()

	decision, err := a.think(ctx, execCtx, input, parentSpan)
	if err != nil {
		out.err = err
		return out
	}
	a.hooks.Emit(ctx, hook.ThinkEndEvent{Base: hook.Base{Execution: execCtx}, Decision: decision})

	cycle := core.Cycle{
		Iteration:    iteration,
		ModelThought: decision.Reasoning,
		Timestamp:    time.Now(),
	}

	// Single-round-trip optimization: an immediately complete decision with a
	// usable final result returns without any further model call. A result
	// that fails the output contract is not an error on this path; the loop
	// falls through to a synthesis call instead. That masks the contract
	// violation from the caller, so it is at least logged.
	if decision.IsComplete && !decision.Legacy && len(decision.ToolCalls) == 0 && len(decision.MemoryReads) == 0 && decision.FinalResult != nil {
		if verr := a.validateOutput(decision.FinalResult); verr == nil {
			// Requested memory updates still persist even when the answer
			// arrives inline.
			recordsBefore := len(execCtx.ToolCalls())
			a.resolveMemoryWrites(ctx, execCtx, decision)
			cycle.ToolCalls = execCtx.ToolCalls()[recordsBefore:]
			execCtx.AppendCycle(cycle)
			execCtx.AdvanceIteration()
			out.result = decision.FinalResult
			out.hasResult = true
			return out
		} else {
			a.logger.Warn("inline final result failed output validation, deferring to synthesis",
				"agent", a.name,
				"iteration", iteration,
				"error", verr.Error(),
			)
		}
	}

	recordsBefore := len(execCtx.ToolCalls())

	a.resolveMemoryReads(ctx, execCtx, decision)
	a.resolveMemoryWrites(ctx, execCtx, decision)

	var results []core.ToolResult
	if len(decision.ToolCalls) > 0 {
		results = a.executor.ExecuteBatch(ctx, decision.ToolCalls, execCtx, tool.BatchOptions{
			ExecOptions: tool.ExecOptions{
				Timeout:      a.toolTimeout,
				ParentSpanID: parentSpan,
			},
			Parallel:    a.parallelTools,
			MaxParallel: a.maxParallelTools,
		})
	}

	cycle.ToolCalls = execCtx.ToolCalls()[recordsBefore:]
	cycle.Results = results
	execCtx.AppendCycle(cycle)
	execCtx.AdvanceIteration()

	// The iteration is done when this cycle requested no tool calls and no
	// memory reads. A decision that requests tool calls is never complete,
	// even when it also sets the completion flag.
	out.complete = len(decision.ToolCalls) == 0 && len(decision.MemoryReads) == 0
	return out
}

// resolveMemoryReads loads requested keys into the metadata scratch space.
// Failures emit memory:error, are recorded as a failed pseudo tool call and
// never abort the iteration.
func (a *Agent) resolveMemoryReads(ctx context.Context, execCtx *core.ExecutionContext, decision *core.Decision) {
	if len(decision.MemoryReads) == 0 {
		return
	}
	if a.memory == nil {
		a.observeMemoryFault(ctx, execCtx, "read", "",
			map[string]any{"keys": decision.MemoryReads},
			fmt.Errorf("no memory configured"))
		return
	}

	values, err := a.memory.Read(ctx, decision.MemoryReads)
	if err != nil {
		a.observeMemoryFault(ctx, execCtx, "read", "",
			map[string]any{"keys": decision.MemoryReads},
			err)
		return
	}

	execCtx.Metadata[memoryMetadataKey] = values
	a.hooks.Emit(ctx, hook.MemoryReadEvent{
		Base:   hook.Base{Execution: execCtx},
		Keys:   decision.MemoryReads,
		Values: values,
	})
}

// resolveMemoryWrites applies requested updates in deterministic key order
// with the same try/observe/continue semantics as reads.
func (a *Agent) resolveMemoryWrites(ctx context.Context, execCtx *core.ExecutionContext, decision *core.Decision) {
	if len(decision.MemoryUpdates) == 0 {
		return
	}
	if a.memory == nil {
		a.observeMemoryFault(ctx, execCtx, "write", "",
			map[string]any{"keys": updateKeys(decision.MemoryUpdates)},
			fmt.Errorf("no memory configured"))
		return
	}

	for _, key := range updateKeys(decision.MemoryUpdates) {
		upd := decision.MemoryUpdates[key]
		entry, err := a.memory.Write(ctx, key, upd.Value, upd.Description, upd.Metadata)
		if err != nil {
			a.observeMemoryFault(ctx, execCtx, "write", key, map[string]any{"key": key}, err)
			continue
		}
		a.hooks.Emit(ctx, hook.MemoryWriteEvent{
			Base:  hook.Base{Execution: execCtx},
			Key:   key,
			Entry: entry,
		})
	}
}

func (a *Agent) observeMemoryFault(ctx context.Context, execCtx *core.ExecutionContext, op, key string, input map[string]any, cause error) {
	memErr := &core.MemoryError{Op: op, Key: key, Err: cause}

	a.hooks.Emit(ctx, hook.MemoryErrorEvent{
		Base: hook.Base{Execution: execCtx},
		Op:   op,
		Key:  key,
		Err:  memErr,
	})

	now := time.Now()
	failed := false
	execCtx.RecordToolCall(core.ToolCallRecord{
		ID:         uuid.NewString(),
		ToolName:   "memory." + op,
		Input:      input,
		Success:    &failed,
		Error:      memErr.Error(),
		StartedAt:  now,
		FinishedAt: &now,
	})

	a.logger.Warn("memory operation failed",
		"agent", a.name,
		"op", op,
		"key", key,
		"error", cause.Error(),
	)
}

func updateKeys(updates map[string]core.MemoryUpdate) []string {
	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (a *Agent) validateInput(input any) error {
	if a.inputSchema == nil {
		return nil
	}
	obj, ok := input.(map[string]any)
	if !ok {
		return &core.ValidationError{
			Value:   input,
			Message: fmt.Sprintf("input must be an object, got %T", input),
		}
	}
	return util.ValidateParameters(obj, a.inputSchema)
}

func (a *Agent) validateOutput(output any) error {
	if a.outputSchema == nil {
		return nil
	}
	obj, ok := output.(map[string]any)
	if !ok {
		return &core.ValidationError{
			Value:   output,
			Message: fmt.Sprintf("output must be an object, got %T", output),
		}
	}
	return util.ValidateParameters(obj, a.outputSchema)
}

func (a *Agent) startSpan(ctx context.Context, input any) string {
	span, err := a.client.CreateSpan(ctx, model.SpanOptions{Name: a.name, Input: input})
	if err != nil {
		a.logger.Debug("span creation failed", "agent", a.name, "error", err.Error())
		return ""
	}
	return span.ID
}

func (a *Agent) endSpan(ctx context.Context, spanID string, started time.Time, result any, callErr error) {
	if spanID == "" {
		return
	}
	err := a.client.UpdateSpan(ctx, spanID, model.SpanUpdate{
		Output:    result,
		Err:       callErr,
		StartTime: started,
		EndTime:   time.Now(),
	})
	if err != nil {
		a.logger.Debug("span update failed", "agent", a.name, "span_id", spanID, "error", err.Error())
	}
}
