// Package opperagent provides a high-level façade over the agent execution
// core. Most applications interact with this package by:
//  1. Creating an agent via New() (or FromConfig for YAML-driven setups)
//  2. Registering tools, hooks and optionally a durable memory store
//  3. Calling Process() with the task input
//
// The façade delegates the iteration loop to agent.Agent while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a real model client, a
// durable memory backend and a structured logger.
package opperagent

import (
	"fmt"
	"time"

	"github.com/opper-ai/opper-agent-go/agent"
	"github.com/opper-ai/opper-agent-go/config"
	"github.com/opper-ai/opper-agent-go/core"
	"github.com/opper-ai/opper-agent-go/logging"
	"github.com/opper-ai/opper-agent-go/memory"
	"github.com/opper-ai/opper-agent-go/memory/sqlite"
	"github.com/opper-ai/opper-agent-go/model"
	"github.com/opper-ai/opper-agent-go/model/anthropic"
	"github.com/opper-ai/opper-agent-go/model/openai"
)

// Options configures a façade-built agent. Zero values select safe defaults:
// in-memory memory, no-op logger, buffered (non-streaming) model calls.
type Options struct {
	Description      string
	Instructions     string
	Model            string
	MaxIterations    int
	ParallelTools    bool
	MaxParallelTools int
	EnableStreaming  bool
	ToolTimeout      time.Duration

	InputSchema  map[string]any
	OutputSchema map[string]any

	Tools  []core.Tool
	Memory core.Memory
	Logger logging.Logger

	// Retry, when set, wraps the model client with exponential backoff for
	// transient faults.
	Retry *model.RetryPolicy
}

// New creates an agent with in-memory defaults.
func New(name string, client model.Client, optFns ...func(o *Options)) *agent.Agent {
	opts := Options{
		Memory: memory.NewInMemory(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Retry != nil {
		client = model.NewRetryClient(client, func(o *model.RetryClientOptions) {
			o.Policy = *opts.Retry
			o.Logger = opts.Logger
		})
	}

	return agent.New(name, client, func(o *agent.Options) {
		o.Description = opts.Description
		o.Instructions = opts.Instructions
		o.Model = opts.Model
		o.MaxIterations = opts.MaxIterations
		o.ParallelTools = opts.ParallelTools
		o.MaxParallelTools = opts.MaxParallelTools
		o.EnableStreaming = opts.EnableStreaming
		o.ToolTimeout = opts.ToolTimeout
		o.InputSchema = opts.InputSchema
		o.OutputSchema = opts.OutputSchema
		o.Tools = opts.Tools
		o.Memory = opts.Memory
		o.Logger = opts.Logger
	})
}

// FromConfig builds an agent from a YAML config file: provider client,
// memory backend and loop settings all come from the document.
func FromConfig(path string, optFns ...func(o *Options)) (*agent.Agent, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return fromConfig(cfg, optFns...)
}

func fromConfig(cfg *config.Config, optFns ...func(o *Options)) (*agent.Agent, error) {
	client, err := buildClient(cfg.Model)
	if err != nil {
		return nil, err
	}

	mem, err := buildMemory(cfg.Memory)
	if err != nil {
		return nil, err
	}

	base := func(o *Options) {
		o.Description = cfg.Agent.Description
		o.Instructions = cfg.Agent.Instructions
		o.Model = cfg.Model.Model
		o.MaxIterations = cfg.Agent.MaxIterations
		o.ParallelTools = cfg.Agent.ParallelTools
		o.MaxParallelTools = cfg.Agent.MaxParallelTools
		o.EnableStreaming = cfg.Agent.Streaming
		o.ToolTimeout = cfg.Agent.ToolTimeout.Std()
		o.Memory = mem
		if cfg.Model.MaxRetries > 0 {
			policy := model.DefaultRetryPolicy()
			policy.MaxRetries = cfg.Model.MaxRetries
			o.Retry = &policy
		}
	}

	return New(cfg.Agent.Name, client, append([]func(o *Options){base}, optFns...)...), nil
}

func buildClient(cfg config.ModelConfig) (model.Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if key := cfg.ResolveAPIKey(); key != "" {
				o.APIKey = key
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		}), nil
	case "openai":
		return openai.New(func(o *openai.Options) {
			if key := cfg.ResolveAPIKey(); key != "" {
				o.APIKey = key
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		}), nil
	case "mock":
		return model.NewMockClient(), nil
	case "":
		return nil, fmt.Errorf("model.provider is required to build a client from config")
	default:
		return nil, fmt.Errorf("no model client for provider %q", cfg.Provider)
	}
}

func buildMemory(cfg config.MemoryConfig) (core.Memory, error) {
	switch cfg.Backend {
	case "", "inmemory":
		return memory.NewInMemory(), nil
	case "sqlite":
		return sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("no memory backend %q", cfg.Backend)
	}
}
