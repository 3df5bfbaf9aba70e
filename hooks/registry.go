package hooks

import (
	"sync"

	"github.com/rickchristie/docagent"
)

// Registry manages a collection of hooks and dispatches events to them.
//
// # Overview
//
// Registry is the central coordination point for hooks. It:
//   - Stores registered hooks in order
//   - Dispatches events to hooks that implement the relevant interface
//   - Passes the ExecutionContext to hooks for access to stats, data, and traces
//
// Hooks can implement any combination of hook interfaces; they only receive events for the
// interfaces they implement.
//
// # Creating and Using
//
//	registry := hooks.NewRegistry()
//	registry.Register(hooks.NewSlogHook(logger))
//	registry.Register(&MetricsHook{})
//
//	exec := executor.New(agent, executor.DefaultConfig()).WithHooks(registry)
//
// The executor installs the registry on every ExecutionContext it runs, so models, tool
// chains and agent loops reach the same hooks through execCtx.
//
// # Thread Safety
//
// Register and Clear are safe to call concurrently with Fire methods, but hooks are
// normally registered once before the first query. One registry may serve concurrent
// queries; hooks that keep state must synchronize it themselves.
type Registry struct {
	mu    sync.RWMutex
	hooks []any
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		hooks: make([]any, 0),
	}
}

// Register adds a hook to the registry. The hook can implement any combination of hook
// interfaces (BeforeExecutionHook, AfterToolCallHook, etc.).
//
// Hooks are called in the order they are registered.
func (r *Registry) Register(hook any) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
	return r
}

// snapshot returns the hooks registered at call time.
func (r *Registry) snapshot() []any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hooks
}

// FireBeforeExecution dispatches a BeforeExecutionEvent to all registered
// BeforeExecutionHook implementations.
func (r *Registry) FireBeforeExecution(
	execCtx *docagent.ExecutionContext,
	event *docagent.BeforeExecutionEvent,
) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(docagent.BeforeExecutionHook); ok {
			hook.OnBeforeExecution(execCtx, event)
		}
	}
}

// FireAfterExecution dispatches an AfterExecutionEvent to all registered
// AfterExecutionHook implementations.
func (r *Registry) FireAfterExecution(
	execCtx *docagent.ExecutionContext,
	event *docagent.AfterExecutionEvent,
) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(docagent.AfterExecutionHook); ok {
			hook.OnAfterExecution(execCtx, event)
		}
	}
}

// FireBeforeIteration dispatches a BeforeIterationEvent to all registered
// BeforeIterationHook implementations.
func (r *Registry) FireBeforeIteration(
	execCtx *docagent.ExecutionContext,
	event *docagent.BeforeIterationEvent,
) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(docagent.BeforeIterationHook); ok {
			hook.OnBeforeIteration(execCtx, event)
		}
	}
}

// FireAfterIteration dispatches an AfterIterationEvent to all registered
// AfterIterationHook implementations.
func (r *Registry) FireAfterIteration(
	execCtx *docagent.ExecutionContext,
	event *docagent.AfterIterationEvent,
) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(docagent.AfterIterationHook); ok {
			hook.OnAfterIteration(execCtx, event)
		}
	}
}

// FireError dispatches an ErrorEvent to all registered ErrorHook implementations.
// This is informational only.
func (r *Registry) FireError(execCtx *docagent.ExecutionContext, event *docagent.ErrorEvent) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(docagent.ErrorHook); ok {
			hook.OnError(execCtx, event)
		}
	}
}

// FireStateChange dispatches a StateChangeEvent to all registered StateChangeHook
// implementations.
func (r *Registry) FireStateChange(
	execCtx *docagent.ExecutionContext,
	event *docagent.StateChangeEvent,
) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(docagent.StateChangeHook); ok {
			hook.OnStateChange(execCtx, event)
		}
	}
}

// FireParseError dispatches a ParseErrorEvent to all registered ParseErrorHook
// implementations.
func (r *Registry) FireParseError(
	execCtx *docagent.ExecutionContext,
	event *docagent.ParseErrorEvent,
) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(docagent.ParseErrorHook); ok {
			hook.OnParseError(execCtx, event)
		}
	}
}

// FireBeforeModelCall dispatches a BeforeModelCallEvent to all registered
// BeforeModelCallHook implementations.
func (r *Registry) FireBeforeModelCall(
	execCtx *docagent.ExecutionContext,
	event *docagent.BeforeModelCallEvent,
) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(docagent.BeforeModelCallHook); ok {
			hook.OnBeforeModelCall(execCtx, event)
		}
	}
}

// FireAfterModelCall dispatches an AfterModelCallEvent to all registered
// AfterModelCallHook implementations.
func (r *Registry) FireAfterModelCall(
	execCtx *docagent.ExecutionContext,
	event *docagent.AfterModelCallEvent,
) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(docagent.AfterModelCallHook); ok {
			hook.OnAfterModelCall(execCtx, event)
		}
	}
}

// FireBeforeToolCall dispatches a BeforeToolCallEvent to all registered
// BeforeToolCallHook implementations.
// Hooks can modify event.Input to change the tool input.
func (r *Registry) FireBeforeToolCall(
	execCtx *docagent.ExecutionContext,
	event *docagent.BeforeToolCallEvent,
) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(docagent.BeforeToolCallHook); ok {
			hook.OnBeforeToolCall(execCtx, event)
		}
	}
}

// FireAfterToolCall dispatches an AfterToolCallEvent to all registered
// AfterToolCallHook implementations.
func (r *Registry) FireAfterToolCall(
	execCtx *docagent.ExecutionContext,
	event *docagent.AfterToolCallEvent,
) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(docagent.AfterToolCallHook); ok {
			hook.OnAfterToolCall(execCtx, event)
		}
	}
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks)
}

// Clear removes all registered hooks.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = make([]any, 0)
}

// Compile-time check that Registry implements HookFirer.
var _ docagent.HookFirer = (*Registry)(nil)
