package docagent

// State is the position of a query in the reasoning loop.
//
//	THINKING -> ACTING -> OBSERVING -> THINKING ... -> DONE | FAILED
//
// THINKING is the initial state. DONE and FAILED are terminal.
type State int

const (
	// StateThinking renders the prompt, calls the model and parses its output.
	StateThinking State = iota

	// StateActing dispatches a parsed action to the tool chain.
	StateActing

	// StateObserving records the observation before returning to THINKING.
	StateObserving

	// StateDone means a final answer was produced.
	StateDone

	// StateFailed means the loop ended without a final answer.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateThinking:
		return "THINKING"
	case StateActing:
		return "ACTING"
	case StateObserving:
		return "OBSERVING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
