// Package metrics exposes Prometheus instrumentation fed by the hook
// pipeline. An Observer subscribes to lifecycle events and translates them
// into counters and histograms; it holds no agent state of its own.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opper-ai/opper-agent-go/hook"
)

// Observer records agent activity as Prometheus metrics.
type Observer struct {
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	iterationsTotal    *prometheus.CounterVec
	modelCallsTotal    *prometheus.CounterVec
	tokensTotal        *prometheus.CounterVec
	costTotal          *prometheus.CounterVec
	toolCallsTotal     *prometheus.CounterVec
	memoryErrorsTotal  *prometheus.CounterVec
}

// NewObserver registers the metric vectors with the given registerer. Pass
// prometheus.DefaultRegisterer to use the process-global registry.
func NewObserver(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		invocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_invocations_total",
				Help: "Total agent invocations by agent and status",
			},
			[]string{"agent", "status"},
		),
		invocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_invocation_duration_seconds",
				Help:    "Wall-clock duration of agent invocations",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"agent"},
		),
		iterationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_iterations_total",
				Help: "Total loop iterations by agent",
			},
			[]string{"agent"},
		),
		modelCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_model_calls_total",
				Help: "Total model calls by agent, call name and transport",
			},
			[]string{"agent", "call", "streamed"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_model_tokens_total",
				Help: "Total tokens consumed by model calls",
			},
			[]string{"agent", "type"},
		),
		costTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_model_cost_total",
				Help: "Total model cost in USD",
			},
			[]string{"agent"},
		),
		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tool_calls_total",
				Help: "Total tool executions by agent, tool and status",
			},
			[]string{"agent", "tool", "status"},
		),
		memoryErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_memory_errors_total",
				Help: "Total failed memory operations by agent and op",
			},
			[]string{"agent", "op"},
		),
	}
}

// Attach subscribes the observer to a hook registry. The returned function
// detaches all subscriptions.
func (o *Observer) Attach(hooks *hook.Registry) func() {
	// Several invocations can share a registry, so start times are guarded.
	var mu sync.Mutex
	starts := make(map[string]time.Time)

	unregisters := []func(){
		hooks.Register(hook.AgentStart, func(_ context.Context, ev hook.Event) error {
			mu.Lock()
			starts[ev.ExecutionContext().SessionID] = time.Now()
			mu.Unlock()
			return nil
		}),
		hooks.Register(hook.AgentEnd, func(_ context.Context, ev hook.Event) error {
			end, _ := ev.(hook.AgentEndEvent)
			execCtx := ev.ExecutionContext()

			status := "success"
			if end.Err != nil {
				status = "error"
			}
			o.invocationsTotal.WithLabelValues(execCtx.Name, status).Inc()

			mu.Lock()
			started, ok := starts[execCtx.SessionID]
			delete(starts, execCtx.SessionID)
			mu.Unlock()
			if ok {
				o.invocationDuration.WithLabelValues(execCtx.Name).Observe(time.Since(started).Seconds())
			}

			usage := execCtx.Usage()
			o.tokensTotal.WithLabelValues(execCtx.Name, "input").Add(float64(usage.InputTokens))
			o.tokensTotal.WithLabelValues(execCtx.Name, "output").Add(float64(usage.OutputTokens))
			o.costTotal.WithLabelValues(execCtx.Name).Add(usage.Cost.Total)
			return nil
		}),
		hooks.Register(hook.LoopEnd, func(_ context.Context, ev hook.Event) error {
			o.iterationsTotal.WithLabelValues(ev.ExecutionContext().Name).Inc()
			return nil
		}),
		hooks.Register(hook.ModelCall, func(_ context.Context, ev hook.Event) error {
			call, _ := ev.(hook.ModelCallEvent)
			streamed := "false"
			if call.Streamed {
				streamed = "true"
			}
			o.modelCallsTotal.WithLabelValues(ev.ExecutionContext().Name, call.CallName, streamed).Inc()
			return nil
		}),
		hooks.Register(hook.ToolAfter, func(_ context.Context, ev hook.Event) error {
			after, _ := ev.(hook.ToolAfterEvent)
			status := "success"
			if !after.Result.Success {
				status = "error"
				if after.Result.TimedOut {
					status = "timeout"
				}
			}
			o.toolCallsTotal.WithLabelValues(ev.ExecutionContext().Name, after.Result.ToolName, status).Inc()
			return nil
		}),
		hooks.Register(hook.MemoryError, func(_ context.Context, ev hook.Event) error {
			memErr, _ := ev.(hook.MemoryErrorEvent)
			o.memoryErrorsTotal.WithLabelValues(ev.ExecutionContext().Name, memErr.Op).Inc()
			return nil
		}),
	}

	return func() {
		for _, unregister := range unregisters {
			unregister()
		}
	}
}
