// Package hooks provides a registry for managing execution lifecycle hooks, and a
// structured logging hook built on log/slog.
//
// Hooks allow you to observe and intercept events during agent execution. Each hook
// interface corresponds to a specific event type; implement only the interfaces you need.
//
// # Hook Interfaces
//
// Executor lifecycle hooks:
//   - [docagent.BeforeExecutionHook] - Called once before first iteration
//   - [docagent.AfterExecutionHook] - Called once after execution ends
//   - [docagent.BeforeIterationHook] - Called before each iteration
//   - [docagent.AfterIterationHook] - Called after each iteration
//   - [docagent.ErrorHook] - Called when the query fails
//
// Reasoning loop hooks:
//   - [docagent.StateChangeHook] - Called on every THINKING/ACTING/OBSERVING/DONE/FAILED move
//   - [docagent.ParseErrorHook] - Called when model output is malformed
//
// Model call hooks:
//   - [docagent.BeforeModelCallHook] - Called before each LLM call
//   - [docagent.AfterModelCallHook] - Called after each LLM call, including failed ones
//
// Tool call hooks:
//   - [docagent.BeforeToolCallHook] - Called before each tool execution (can modify input)
//   - [docagent.AfterToolCallHook] - Called after each dispatch, including unknown tools
//
// # Creating a Hook
//
// Create a hook by implementing any combination of interfaces:
//
//	type MetricsHook struct{}
//
//	func (h *MetricsHook) OnAfterToolCall(
//	    execCtx *docagent.ExecutionContext,
//	    event *docagent.AfterToolCallEvent,
//	) {
//	    metrics.RecordToolCall(event.ToolName, event.Duration)
//	}
//
//	// Compile-time check
//	var _ docagent.AfterToolCallHook = (*MetricsHook)(nil)
//
// # Registering Hooks
//
// Option 1: Register directly on the executor (simple cases):
//
//	exec := executor.New(agent, executor.DefaultConfig()).
//	    RegisterHook(hooks.NewSlogHook(logger)).
//	    RegisterHook(&MetricsHook{})
//
// Option 2: Use a shared registry (when sharing across executors):
//
//	registry := hooks.NewRegistry()
//	registry.Register(&SharedHook{})
//
//	exec1 := executor.New(agent1, executor.DefaultConfig()).WithHooks(registry)
//	exec2 := executor.New(agent2, executor.DefaultConfig()).WithHooks(registry)
//
// RegisterHook adds to the executor's existing registry, WithHooks replaces it.
package hooks
