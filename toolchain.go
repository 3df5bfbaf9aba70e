package docagent

// ToolChain manages a fixed, ordered collection of tools and dispatches parsed actions.
//
// # Responsibilities
//
//   - AvailableToolsPrompt: tool catalog placed in the prompt
//   - Names: tool names, in registration order, for the prompt's allowed-values list
//   - Dispatch: look up the tool, call it, and convert its outcome into an observation
//
// # Dispatch Contract
//
// Dispatch never panics. Unknown tools, tool errors and tool panics become observation
// text the model reads in the next iteration. The one exception is a failure wrapping
// [ErrUpstreamService]: a dependency that is down after its retries will not recover
// within the query, so Dispatch returns it and the query ends FAILED.
//
// Dispatch MUST fire tool call hooks and record tool stats:
//
//	execCtx.FireBeforeToolCall(&BeforeToolCallEvent{ToolName: name, Input: input})
//	output, err := tool.Call(WithExecutionContext(execCtx.Context(), execCtx), input)
//	execCtx.FireAfterToolCall(AfterToolCallEvent{...})
//
// The ExecutionContext's FireAfterToolCall updates [KeyToolCalls], [KeyToolCallsFor] and
// the error counters.
//
// # Available Implementations
//
//   - toolchain.NewRegistry(): exact-match, ordered registry
type ToolChain interface {
	// Names returns all registered tool names in registration order.
	Names() []string

	// AvailableToolsPrompt returns the tool catalog, one tool per line.
	AvailableToolsPrompt() string

	// Dispatch executes the action and returns the observation text. The error is non-nil
	// only for upstream service failures.
	// When execCtx is nil, the tool runs with context.Background() and nothing is traced.
	Dispatch(execCtx *ExecutionContext, action *Action) (string, error)
}
