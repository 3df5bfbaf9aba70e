package docagent

import "time"

// -----------------------------------------------------------------------------
// Executor Events
// -----------------------------------------------------------------------------

// BeforeExecutionEvent is emitted once before the first iteration begins.
type BeforeExecutionEvent struct {
	// Task is the question that started the loop.
	Task string
}

// AfterExecutionEvent is emitted once after execution terminates.
type AfterExecutionEvent struct {
	// TerminationReason indicates why execution ended.
	TerminationReason TerminationReason

	// Result is the final answer (empty unless successful).
	Result string

	// Error is the error if execution failed (nil on success).
	Error error
}

// BeforeIterationEvent is emitted before each AgentLoop.Next call.
type BeforeIterationEvent struct {
	// Iteration is the current iteration number (1-indexed).
	Iteration int
}

// AfterIterationEvent is emitted after each AgentLoop.Next call that did not fail.
type AfterIterationEvent struct {
	// Iteration is the current iteration number (1-indexed).
	Iteration int

	// Result is the AgentLoopResult from this iteration.
	Result *AgentLoopResult

	// Duration is how long this iteration took.
	Duration time.Duration
}

// ErrorEvent is emitted when an error ends execution.
type ErrorEvent struct {
	// Iteration is the iteration where the error occurred (0 if before first iteration).
	Iteration int

	// Err is the error that occurred.
	Err error
}

// StateChangeEvent is emitted on every reasoning loop state transition.
type StateChangeEvent struct {
	From State
	To   State
}

// ParseErrorEvent is emitted when model output could not be parsed.
type ParseErrorEvent struct {
	// Raw is the unparseable model output.
	Raw string

	// Err is the *MalformedOutputError.
	Err error

	// Consecutive is the number of malformed outputs in a row, including this one.
	Consecutive int
}

// -----------------------------------------------------------------------------
// Model Call Events
// -----------------------------------------------------------------------------

// BeforeModelCallEvent is emitted before each model call.
type BeforeModelCallEvent struct {
	// Model is the model identifier.
	Model string

	// Prompt is the rendered prompt being sent.
	Prompt string
}

// AfterModelCallEvent is emitted after each model call completes, successful or not.
type AfterModelCallEvent struct {
	// Model is the model identifier.
	Model string

	// Prompt is the rendered prompt that was sent.
	Prompt string

	// Response contains the full response from the model (nil on error).
	Response *ContentResponse

	// Duration is how long the call took, retries included.
	Duration time.Duration

	// Error is any error that occurred (nil if successful).
	Error error
}

// -----------------------------------------------------------------------------
// Tool Call Events
// -----------------------------------------------------------------------------

// BeforeToolCallEvent is emitted before each tool call execution.
// Hooks can modify Input to change what the tool receives.
type BeforeToolCallEvent struct {
	// ToolName is the name of the tool being called.
	ToolName string

	// Input is the string that will be passed to the tool.
	Input string
}

// AfterToolCallEvent is emitted after each dispatched action, including unknown tools.
type AfterToolCallEvent struct {
	// ToolName is the name of the tool that was called.
	ToolName string

	// Input is what was passed to the tool.
	Input string

	// Output is the observation text returned to the model.
	Output string

	// Duration is how long the tool call took.
	Duration time.Duration

	// Error is any error that occurred (nil if successful). Unknown tools report an
	// *UnknownToolError, failing tools a *ToolExecutionError.
	Error error
}
