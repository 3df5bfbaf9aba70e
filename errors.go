package docagent

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the agent's failure taxonomy. Typed errors below wrap these, so callers
// can use errors.Is for the category and errors.As for the details.
var (
	// ErrMalformedOutput means the model output followed neither the action protocol nor the
	// final answer protocol. Recovered inside the loop by a corrective observation.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrToolExecution means a tool failed internally. Recovered as an observation.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrUnknownTool means the parsed action names a tool that is not registered.
	// Recovered as an observation.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrUpstreamService means the LLM endpoint or the retrieval backend could not serve the
	// request after the allowed retries. Terminal.
	ErrUpstreamService = errors.New("upstream service error")

	// ErrIterationLimitExceeded means the loop ran out of allowed cycles, either through the
	// iteration cap or through too many consecutive malformed outputs. Terminal.
	ErrIterationLimitExceeded = errors.New("iteration limit exceeded")
)

// MalformedOutputError carries the raw model text that could not be parsed.
type MalformedOutputError struct {
	// Raw is the full model output that failed to parse.
	Raw string

	// Reason is a short, model-readable description of what was wrong.
	Reason string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedOutput, e.Reason)
}

func (e *MalformedOutputError) Unwrap() error {
	return ErrMalformedOutput
}

// NewMalformedOutputError creates a MalformedOutputError for the given raw output.
func NewMalformedOutputError(raw, reason string) *MalformedOutputError {
	return &MalformedOutputError{Raw: raw, Reason: reason}
}

// ToolExecutionError reports a failure inside a tool.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() []error {
	return []error{ErrToolExecution, e.Err}
}

// UnknownToolError reports a dispatch to a tool name that is not registered.
type UnknownToolError struct {
	Tool      string
	Available []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("%s is not a valid tool, try one of [%s].",
		e.Tool, strings.Join(e.Available, ", "))
}

func (e *UnknownToolError) Unwrap() error {
	return ErrUnknownTool
}

// UpstreamServiceError reports that a remote dependency failed after all attempts.
type UpstreamServiceError struct {
	// Service names the dependency, e.g. the model name.
	Service string

	// Attempts is how many calls were made before giving up.
	Attempts int

	Err error
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("%s %q failed after %d attempt(s): %v",
		ErrUpstreamService, e.Service, e.Attempts, e.Err)
}

func (e *UpstreamServiceError) Unwrap() []error {
	return []error{ErrUpstreamService, e.Err}
}
