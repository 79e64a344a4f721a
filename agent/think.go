package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opper-ai/opper-agent-go/core"
	"github.com/opper-ai/opper-agent-go/hook"
	"github.com/opper-ai/opper-agent-go/internal/util"
	"github.com/opper-ai/opper-agent-go/model"
	"github.com/opper-ai/opper-agent-go/stream"
)

// think asks the model for the next Decision. Exactly one usage increment is
// recorded per call, streamed or not, even when the provider reports no
// token figures.
func (a *Agent) think(ctx context.Context, execCtx *core.ExecutionContext, input any, parentSpan string) (*core.Decision, error) {
	req := model.CallRequest{
		Name:         a.name + ".think",
		Instructions: a.resolveInstructions(execCtx),
		Input:        a.buildThinkInput(ctx, execCtx, input),
		OutputSchema: decisionSchema(),
		Model:        a.model,
		ParentSpanID: parentSpan,
	}

	a.hooks.Emit(ctx, hook.ModelCallEvent{
		Base:     hook.Base{Execution: execCtx},
		CallName: req.Name,
		Model:    a.model,
		Streamed: a.streaming,
	})

	if a.streaming {
		return a.thinkStreamed(ctx, execCtx, req)
	}

	resp, err := a.client.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	execCtx.AddUsage(usageFor(resp.Usage))

	raw := resp.ParsedOutput
	if len(raw) == 0 {
		raw = []byte(resp.Message)
	}

	a.hooks.Emit(ctx, hook.ModelResponseEvent{
		Base:     hook.Base{Execution: execCtx},
		CallName: req.Name,
		Raw:      json.RawMessage(raw),
		Usage:    usageFor(resp.Usage),
	})

	return core.ParseDecision(raw), nil
}

// thinkStreamed consumes the event channel pair, feeding an Assembler and
// fanning fragments out as stream:chunk events. stream:start is deferred
// until the first event arrives so a call that fails before producing
// anything emits only stream:error.
func (a *Agent) thinkStreamed(ctx context.Context, execCtx *core.ExecutionContext, req model.CallRequest) (*core.Decision, error) {
	events, errs := a.client.Stream(ctx, req)

	asm := stream.New(func(o *stream.Options) {
		o.Schema = req.OutputSchema
		o.Logger = a.logger
	})

	var (
		started bool
		usage   *model.TokenUsage
	)
	for ev := range events {
		if !started {
			started = true
			a.hooks.Emit(ctx, hook.StreamStartEvent{
				Base:     hook.Base{Execution: execCtx},
				CallName: req.Name,
				SpanID:   ev.SpanID,
			})
		}
		if ev.Usage != nil {
			usage = ev.Usage
		}
		fed := asm.Feed(stream.Chunk{Delta: ev.Delta, Path: ev.Path})
		if fed == nil {
			continue
		}
		a.hooks.Emit(ctx, hook.StreamChunkEvent{
			Base:  hook.Base{Execution: execCtx},
			Path:  fed.Path,
			Delta: ev.Delta,
		})
	}

	if err := <-errs; err != nil {
		a.hooks.Emit(ctx, hook.StreamErrorEvent{
			Base:     hook.Base{Execution: execCtx},
			CallName: req.Name,
			Err:      err,
		})
		return nil, err
	}

	if started {
		a.hooks.Emit(ctx, hook.StreamEndEvent{
			Base:     hook.Base{Execution: execCtx},
			CallName: req.Name,
		})
	}

	// Streams that never report usage still count as one request.
	if usage != nil {
		execCtx.AddUsage(usageFor(*usage))
	} else {
		execCtx.AddUsage(core.Usage{Requests: 1})
	}

	final := asm.Finalize()
	switch final.Kind {
	case stream.KindStructured:
		raw, err := json.Marshal(final.Value)
		if err != nil {
			return nil, fmt.Errorf("encode streamed decision: %w", err)
		}
		return core.ParseDecision(raw), nil
	default:
		return core.ParseDecision([]byte(final.Text)), nil
	}
}

// synthesize performs the closing model call that turns the accumulated
// history into the final answer. Unlike the inline fast path, an output
// contract violation here is fatal.
func (a *Agent) synthesize(ctx context.Context, execCtx *core.ExecutionContext, input any, parentSpan string) (any, error) {
	req := model.CallRequest{
		Name:         a.name + ".synthesize",
		Instructions: a.resolveInstructions(execCtx) + "\n\nProduce the final answer for the user based on the work done so far.",
		Input: map[string]any{
			"input":   input,
			"history": execCtx.History(),
		},
		OutputSchema: a.outputSchema,
		Model:        a.model,
		ParentSpanID: parentSpan,
	}

	a.hooks.Emit(ctx, hook.ModelCallEvent{
		Base:     hook.Base{Execution: execCtx},
		CallName: req.Name,
		Model:    a.model,
	})

	resp, err := a.client.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	execCtx.AddUsage(usageFor(resp.Usage))

	a.hooks.Emit(ctx, hook.ModelResponseEvent{
		Base:     hook.Base{Execution: execCtx},
		CallName: req.Name,
		Raw:      json.RawMessage(resp.ParsedOutput),
		Usage:    usageFor(resp.Usage),
	})

	if a.outputSchema != nil {
		var out any
		if len(resp.ParsedOutput) == 0 {
			return nil, &core.ValidationError{
				Message: "model produced no structured output for the declared output schema",
			}
		}
		if err := json.Unmarshal(resp.ParsedOutput, &out); err != nil {
			return nil, &core.ValidationError{
				Value:   string(resp.ParsedOutput),
				Message: "structured output is not valid JSON: " + err.Error(),
			}
		}
		if verr := a.validateOutput(out); verr != nil {
			return nil, verr
		}
		return out, nil
	}

	if len(resp.ParsedOutput) > 0 {
		var out any
		if err := json.Unmarshal(resp.ParsedOutput, &out); err == nil {
			return out, nil
		}
	}
	return resp.Message, nil
}

// buildThinkInput assembles the model-facing view of the invocation: the
// original input, loop position, history so far, available tools and the
// memory catalog. Memory catalog failures degrade to an absent catalog.
func (a *Agent) buildThinkInput(ctx context.Context, execCtx *core.ExecutionContext, input any) map[string]any {
	thinkInput := map[string]any{
		"input":          input,
		"iteration":      execCtx.Iteration(),
		"max_iterations": a.maxIterations,
		"history":        execCtx.History(),
		"tools":          a.registry.Definitions(),
	}

	if loaded, ok := execCtx.Metadata[memoryMetadataKey]; ok {
		thinkInput["memory"] = loaded
	}

	if a.memory != nil {
		has, err := a.memory.HasEntries(ctx)
		switch {
		case err != nil:
			a.logger.Warn("memory catalog unavailable", "agent", a.name, "error", err.Error())
		case has:
			entries, err := a.memory.ListEntries(ctx)
			if err != nil {
				a.logger.Warn("memory catalog unavailable", "agent", a.name, "error", err.Error())
			} else {
				thinkInput["memory_catalog"] = entries
			}
		}
	}

	return thinkInput
}

// resolveInstructions renders template markers in the instructions against
// the metadata scratch space. Render failures fall back to the raw text.
func (a *Agent) resolveInstructions(execCtx *core.ExecutionContext) string {
	rendered, err := util.RenderTemplate(a.instructions, execCtx.Metadata)
	if err != nil {
		a.logger.Warn("instruction template render failed", "agent", a.name, "error", err.Error())
		return a.instructions
	}
	return rendered
}

func usageFor(u model.TokenUsage) core.Usage {
	return core.Usage{
		Requests:     1,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.InputTokens + u.OutputTokens,
		Cost:         u.Cost,
	}
}
