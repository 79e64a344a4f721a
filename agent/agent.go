// Package agent implements the bounded iteration loop at the heart of the
// SDK: it alternates between asking the model for a Decision and carrying out
// the requested actions (tool invocations, memory reads and writes), records
// every cycle into an ExecutionContext, publishes lifecycle events to hook
// observers, and terminates with a validated final result, an iteration
// limit error, or a re-raised fault.
package agent

import (
	"context"
	"time"

	"github.com/opper-ai/opper-agent-go/core"
	"github.com/opper-ai/opper-agent-go/hook"
	"github.com/opper-ai/opper-agent-go/logging"
	"github.com/opper-ai/opper-agent-go/model"
	"github.com/opper-ai/opper-agent-go/tool"
)

// DefaultMaxIterations bounds the loop when no explicit limit is configured.
const DefaultMaxIterations = 25

// Options configures an Agent. Use functional options with New to override
// defaults.
type Options struct {
	// Description is shown to parent agents when this agent is used as a tool.
	Description string

	// Instructions is the system prompt. It may contain Go template markers
	// resolved against the execution context's metadata on every think call.
	Instructions string

	// Model names the model the client should use, in whatever form the
	// client understands. Empty lets the client pick its default.
	Model string

	// MaxIterations bounds the loop; the invocation fails with
	// IterationLimitError when it is reached without completing.
	MaxIterations int

	// ParallelTools runs the tool calls of one decision concurrently.
	// Results always preserve request order.
	ParallelTools bool

	// MaxParallelTools caps concurrency in parallel mode; 0 means unbounded.
	MaxParallelTools int

	// EnableStreaming obtains decisions through the streaming variant of the
	// model client, reassembled by the stream package.
	EnableStreaming bool

	// ToolTimeout, when positive, is the deadline applied to each tool call.
	ToolTimeout time.Duration

	// InputSchema, when set, is validated against Process input before any
	// model call.
	InputSchema map[string]any

	// OutputSchema, when set, is validated against the final result.
	OutputSchema map[string]any

	// Tools pre-registers tools.
	Tools []core.Tool

	// Memory enables memory reads/writes requested by decisions.
	Memory core.Memory

	// Hooks receives the 17 lifecycle events. A fresh registry is created
	// when nil.
	Hooks *hook.Registry

	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Agent is the iteration state machine. It is safe for concurrent use: every
// Process call owns a disjoint ExecutionContext and the configuration is
// immutable after construction (register tools before sharing the agent).
type Agent struct {
	name             string
	description      string
	instructions     string
	model            string
	maxIterations    int
	parallelTools    bool
	maxParallelTools int
	streaming        bool
	toolTimeout      time.Duration
	inputSchema      map[string]any
	outputSchema     map[string]any

	client   model.Client
	memory   core.Memory
	hooks    *hook.Registry
	logger   logging.Logger
	registry *tool.Registry
	executor *tool.Executor
}

// New creates an agent driven by the given model client.
func New(name string, client model.Client, optFns ...func(o *Options)) *Agent {
	opts := Options{
		MaxIterations: DefaultMaxIterations,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Hooks == nil {
		opts.Hooks = hook.NewRegistry(func(o *hook.RegistryOptions) { o.Logger = opts.Logger })
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	a := &Agent{
		name:             name,
		description:      opts.Description,
		instructions:     opts.Instructions,
		model:            opts.Model,
		maxIterations:    opts.MaxIterations,
		parallelTools:    opts.ParallelTools,
		maxParallelTools: opts.MaxParallelTools,
		streaming:        opts.EnableStreaming,
		toolTimeout:      opts.ToolTimeout,
		inputSchema:      opts.InputSchema,
		outputSchema:     opts.OutputSchema,
		client:           client,
		memory:           opts.Memory,
		hooks:            opts.Hooks,
		logger:           opts.Logger,
		registry:         tool.NewRegistry(),
	}
	a.executor = tool.NewExecutor(a.registry, func(o *tool.ExecutorOptions) {
		o.Hooks = a.hooks
		o.Logger = a.logger
		o.Tracer = &clientTracer{client: client}
	})

	for _, t := range opts.Tools {
		a.registry.Register(t)
	}
	return a
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent's description.
func (a *Agent) Description() string { return a.description }

// Hooks returns the agent's hook registry for observer registration.
func (a *Agent) Hooks() *hook.Registry { return a.hooks }

// RegisterTool adds a tool to the agent's capability set.
func (a *Agent) RegisterTool(t core.Tool) { a.registry.Register(t) }

// RegisterTools adds multiple tools at once.
func (a *Agent) RegisterTools(tools ...core.Tool) {
	for _, t := range tools {
		a.registry.Register(t)
	}
}

// RegisterProvider adds every tool a provider contributes.
func (a *Agent) RegisterProvider(p tool.Provider) { a.registry.RegisterProvider(p) }

// clientTracer adapts the model client's span lifecycle to the tool
// executor's Tracer.
type clientTracer struct {
	client model.Client
}

func (t *clientTracer) CreateSpan(ctx context.Context, name string, input any, parentID string) (string, error) {
	span, err := t.client.CreateSpan(ctx, model.SpanOptions{Name: name, Input: input, ParentID: parentID})
	if err != nil {
		return "", err
	}
	return span.ID, nil
}

func (t *clientTracer) UpdateSpan(ctx context.Context, id string, output any, callErr error) error {
	return t.client.UpdateSpan(ctx, id, model.SpanUpdate{Output: output, Err: callErr, EndTime: time.Now()})
}
