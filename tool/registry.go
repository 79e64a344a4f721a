// Package tool implements the tool execution façade: a registry of callable
// tools, schema validation of their inputs, and an executor that normalizes
// every outcome (return value, error, timeout, cancellation) into a uniform
// result while emitting before/after/error hook events around each call.
package tool

import (
	"sync"

	"github.com/opper-ai/opper-agent-go/core"
)

// Provider contributes a set of tools under one registration. Whether an
// entry is a single tool or a provider is decided at registration time and
// kept as an explicit tag, never inferred from runtime shape.
type Provider interface {
	// Name identifies the provider.
	Name() string

	// Tools returns the tools this provider contributes.
	Tools() []core.Tool
}

type entryKind int

const (
	entryTool entryKind = iota
	entryProvider
)

// entry is the tagged variant stored per registration.
type entry struct {
	kind     entryKind
	tool     core.Tool
	provider Provider
}

// Definition is the declarative description of a tool handed to the model.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Registry holds the tools available to one agent. Registration order is
// preserved for the definitions handed to the model; lookups go through a
// flat index resolved at registration time.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	index   map[string]core.Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]core.Tool)}
}

// Register adds a single tool. A tool with the same name replaces the
// earlier registration in the index.
func (r *Registry) Register(t core.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{kind: entryTool, tool: t})
	r.index[t.Name()] = t
}

// RegisterProvider adds every tool a provider contributes. The provider's
// tool set is resolved immediately.
func (r *Registry) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{kind: entryProvider, provider: p})
	for _, t := range p.Tools() {
		r.index[t.Name()] = t
	}
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.index[name]
	return t, ok
}

// Len returns the number of distinct tool names registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

// Tools lists the registered tools in registration order, providers expanded
// in place. Later registrations shadow earlier ones of the same name.
func (r *Registry) Tools() []core.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tools []core.Tool
	seen := make(map[string]bool)
	add := func(t core.Tool) {
		if seen[t.Name()] {
			return
		}
		seen[t.Name()] = true
		tools = append(tools, t)
	}
	for _, e := range r.entries {
		switch e.kind {
		case entryTool:
			add(e.tool)
		case entryProvider:
			for _, t := range e.provider.Tools() {
				add(t)
			}
		}
	}
	return tools
}

// Definitions lists the registered tools in registration order, providers
// expanded in place.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []Definition
	seen := make(map[string]bool)
	add := func(t core.Tool) {
		if seen[t.Name()] {
			return
		}
		seen[t.Name()] = true
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}

	for _, e := range r.entries {
		switch e.kind {
		case entryTool:
			add(e.tool)
		case entryProvider:
			for _, t := range e.provider.Tools() {
				add(t)
			}
		}
	}
	return defs
}
