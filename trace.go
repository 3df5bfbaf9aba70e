package docagent

import "time"

// -----------------------------------------------------------------------------
// Trace Events
// -----------------------------------------------------------------------------

// TraceEvent is a marker interface for everything recorded in ExecutionContext.Events().
type TraceEvent interface {
	traceEvent()
}

// BaseTrace holds the fields common to all trace events. ExecutionContext.Trace fills them
// in when left zero.
type BaseTrace struct {
	Timestamp time.Time
	Iteration int
}

// IterationStartTrace is recorded when the executor starts an iteration.
type IterationStartTrace struct {
	BaseTrace
}

// IterationEndTrace is recorded when an iteration ends.
type IterationEndTrace struct {
	BaseTrace
	Duration time.Duration
	Action   LoopAction
}

// ModelCallTrace records a completed model call, including failed ones.
type ModelCallTrace struct {
	BaseTrace
	Model        string
	InputTokens  int
	OutputTokens int
	Attempts     int
	Duration     time.Duration
	Error        error
}

// ToolCallTrace records a dispatched action.
type ToolCallTrace struct {
	BaseTrace
	ToolName string
	Input    string
	Output   string
	Duration time.Duration
	Error    error
}

// ParseErrorTrace records model output that could not be parsed.
//
// Tracing it increments [KeyParseErrorTotal] and the [KeyParseErrorConsecutive] gauge.
type ParseErrorTrace struct {
	BaseTrace
	Raw    string
	Reason string
}

// StateTransitionTrace records a move between reasoning loop states.
type StateTransitionTrace struct {
	BaseTrace
	From State
	To   State
}

// LimitExceededTrace is recorded once, when the first limit is exceeded.
type LimitExceededTrace struct {
	BaseTrace
	Limit        Limit
	CurrentValue float64
	MatchedKey   StatKey
}

// CustomTrace lets callers record their own events.
type CustomTrace struct {
	BaseTrace
	Name string
	Data map[string]any
}

func (IterationStartTrace) traceEvent()  {}
func (IterationEndTrace) traceEvent()    {}
func (ModelCallTrace) traceEvent()       {}
func (ToolCallTrace) traceEvent()        {}
func (ParseErrorTrace) traceEvent()      {}
func (StateTransitionTrace) traceEvent() {}
func (LimitExceededTrace) traceEvent()   {}
func (CustomTrace) traceEvent()          {}

// -----------------------------------------------------------------------------
// Execution Result
// -----------------------------------------------------------------------------

// ExecutionResult is the outcome of a single query, available from
// ExecutionContext.Result() after the executor returns.
type ExecutionResult struct {
	// Result is the final answer text. Empty unless TerminationReason is TerminationSuccess.
	Result string

	// State is StateDone or StateFailed.
	State State

	// TerminationReason describes why execution ended.
	TerminationReason TerminationReason

	// ExceededLimit is the limit that stopped execution, if any.
	ExceededLimit *Limit

	// Error is the cause of a failed execution (nil on success).
	Error error
}
