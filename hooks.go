package docagent

// -----------------------------------------------------------------------------
// Hook Interfaces
// -----------------------------------------------------------------------------
//
// Hooks observe execution at fixed points. To use hooks:
//
//  1. Implement the desired hook interface(s)
//  2. Register with hooks.Registry (or executor.RegisterHook)
//  3. Run the executor; it installs the registry on the ExecutionContext
//
// Example:
//
//	type IterationPrinter struct{}
//
//	func (h *IterationPrinter) OnBeforeIteration(
//	    execCtx *docagent.ExecutionContext,
//	    event *docagent.BeforeIterationEvent,
//	) {
//	    fmt.Printf("iteration %d\n", event.Iteration)
//	}
//
//	exec := executor.New(agent, executor.DefaultConfig()).RegisterHook(&IterationPrinter{})
//
// # Hook Execution Order
//
// Hooks are called in registration order. AfterExecution is always called if
// BeforeExecution was called, even on error.
//
// # Error Handling
//
// Hooks do not return errors. A panicking hook propagates its panic to the caller.
// -----------------------------------------------------------------------------

// BeforeExecutionHook is called once before the first iteration.
type BeforeExecutionHook interface {
	OnBeforeExecution(execCtx *ExecutionContext, event *BeforeExecutionEvent)
}

// AfterExecutionHook is called once after the loop terminates, successfully or not.
type AfterExecutionHook interface {
	OnAfterExecution(execCtx *ExecutionContext, event *AfterExecutionEvent)
}

// BeforeIterationHook is called before each AgentLoop.Next call.
type BeforeIterationHook interface {
	OnBeforeIteration(execCtx *ExecutionContext, event *BeforeIterationEvent)
}

// AfterIterationHook is called after each AgentLoop.Next call that returned a result.
type AfterIterationHook interface {
	OnAfterIteration(execCtx *ExecutionContext, event *AfterIterationEvent)
}

// ErrorHook is called when an error ends execution. The error is still recorded in the
// ExecutionResult.
type ErrorHook interface {
	OnError(execCtx *ExecutionContext, event *ErrorEvent)
}

// StateChangeHook is called on every reasoning loop state transition.
type StateChangeHook interface {
	OnStateChange(execCtx *ExecutionContext, event *StateChangeEvent)
}

// ParseErrorHook is called when model output could not be parsed.
type ParseErrorHook interface {
	OnParseError(execCtx *ExecutionContext, event *ParseErrorEvent)
}

// BeforeModelCallHook is called before each model call.
type BeforeModelCallHook interface {
	OnBeforeModelCall(execCtx *ExecutionContext, event *BeforeModelCallEvent)
}

// AfterModelCallHook is called after each model call.
type AfterModelCallHook interface {
	OnAfterModelCall(execCtx *ExecutionContext, event *AfterModelCallEvent)
}

// BeforeToolCallHook is called before each tool execution.
// The hook can modify event.Input to change the tool input.
type BeforeToolCallHook interface {
	OnBeforeToolCall(execCtx *ExecutionContext, event *BeforeToolCallEvent)
}

// AfterToolCallHook is called after each dispatched action.
type AfterToolCallHook interface {
	OnAfterToolCall(execCtx *ExecutionContext, event *AfterToolCallEvent)
}

// HookFirer dispatches events raised below the executor (models, tool chains, agent loops)
// to registered hooks. hooks.Registry implements it; the executor installs it with
// ExecutionContext.SetHookFirer.
type HookFirer interface {
	FireStateChange(execCtx *ExecutionContext, event *StateChangeEvent)
	FireParseError(execCtx *ExecutionContext, event *ParseErrorEvent)
	FireBeforeModelCall(execCtx *ExecutionContext, event *BeforeModelCallEvent)
	FireAfterModelCall(execCtx *ExecutionContext, event *AfterModelCallEvent)
	FireBeforeToolCall(execCtx *ExecutionContext, event *BeforeToolCallEvent)
	FireAfterToolCall(execCtx *ExecutionContext, event *AfterToolCallEvent)
}
