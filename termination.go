package docagent

// TerminationReason indicates why execution terminated.
type TerminationReason string

const (
	// TerminationSuccess means the AgentLoop returned LATerminate with a final answer.
	TerminationSuccess TerminationReason = "success"

	// TerminationLimitExceeded means a configured limit was exceeded.
	// Use ExecutionContext.ExceededLimit() to see which one.
	TerminationLimitExceeded TerminationReason = "limit_exceeded"

	// TerminationError means the AgentLoop returned an error.
	TerminationError TerminationReason = "error"

	// TerminationContextCanceled means the caller's context was canceled.
	TerminationContextCanceled TerminationReason = "context_canceled"
)

// State returns the terminal state matching the reason. An empty reason means execution has
// not terminated yet and yields StateThinking.
func (r TerminationReason) State() State {
	switch r {
	case TerminationSuccess:
		return StateDone
	case "":
		return StateThinking
	default:
		return StateFailed
	}
}
