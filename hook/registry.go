package hook

import (
	"context"
	"fmt"
	"sync"

	"github.com/opper-ai/opper-agent-go/logging"
)

// Handler processes one event. Errors (and panics) are logged and isolated:
// they never stop delivery to later handlers or reach the emitter.
type Handler func(ctx context.Context, ev Event) error

type registration struct {
	fn   Handler
	once bool
}

// Registry is the hook pipeline. Handlers for an event are delivered
// sequentially in registration order; registering or unregistering during an
// emit does not affect that emit's already-computed snapshot.
type Registry struct {
	mu       sync.Mutex
	handlers map[EventName][]*registration
	logger   logging.Logger
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// NewRegistry creates an empty hook registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		handlers: make(map[EventName][]*registration),
		logger:   opts.Logger,
	}
}

// Register subscribes a handler to an event and returns a function that
// removes it again. Unregistering twice is harmless.
func (r *Registry) Register(name EventName, fn Handler) func() {
	return r.register(name, fn, false)
}

// RegisterOnce subscribes a handler that is removed after its first delivery.
func (r *Registry) RegisterOnce(name EventName, fn Handler) func() {
	return r.register(name, fn, true)
}

func (r *Registry) register(name EventName, fn Handler, once bool) func() {
	reg := &registration{fn: fn, once: once}

	r.mu.Lock()
	r.handlers[name] = append(r.handlers[name], reg)
	r.mu.Unlock()

	return func() { r.remove(name, reg) }
}

func (r *Registry) remove(name EventName, reg *registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	regs := r.handlers[name]
	for i, candidate := range regs {
		if candidate == reg {
			r.handlers[name] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// HandlerCount returns the number of handlers currently subscribed to name.
func (r *Registry) HandlerCount(name EventName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[name])
}

// Emit delivers ev to a snapshot of the handlers registered for its name, in
// registration order, awaiting each before invoking the next. Emitting an
// event with zero handlers is a no-op. A handler that returns an error or
// panics is logged as a warning with the event name and handler index and
// does not affect the remaining handlers or the emitter.
func (r *Registry) Emit(ctx context.Context, ev Event) {
	name := ev.Name()

	r.mu.Lock()
	regs := r.handlers[name]
	snapshot := make([]*registration, len(regs))
	copy(snapshot, regs)
	// Once-handlers leave the registry before delivery so a re-entrant emit
	// from inside the handler cannot trigger them twice.
	for _, reg := range snapshot {
		if reg.once {
			r.removeLocked(name, reg)
		}
	}
	r.mu.Unlock()

	for i, reg := range snapshot {
		r.invoke(ctx, name, i, reg.fn, ev)
	}
}

func (r *Registry) removeLocked(name EventName, reg *registration) {
	regs := r.handlers[name]
	for i, candidate := range regs {
		if candidate == reg {
			r.handlers[name] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

func (r *Registry) invoke(ctx context.Context, name EventName, index int, fn Handler, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("hook handler panicked",
				"event", string(name),
				"handler_index", index,
				"panic", fmt.Sprintf("%v", rec),
			)
		}
	}()

	if err := fn(ctx, ev); err != nil {
		r.logger.Warn("hook handler failed",
			"event", string(name),
			"handler_index", index,
			"error", err.Error(),
		)
	}
}
