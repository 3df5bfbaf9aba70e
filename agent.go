package docagent

// AgentLoop is responsible for:
//  1. Constructing the prompt to be sent to the LLM model.
//  2. Calling the LLM model with the constructed prompt.
//  3. Parsing the LLM output and processing it (tool calls, final answer, corrections).
//  4. Deciding whether to continue the loop or terminate with a result.
//
// The executor calls [AgentLoop.Next] repeatedly until it returns [LATerminate], an error, or
// a limit is exceeded. One call to Next is one THINKING step.
type AgentLoop interface {
	// Next performs one iteration of the agent loop.
	// The ExecutionContext provides access to LoopData via execCtx.Data(), stats, and hooks.
	Next(execCtx *ExecutionContext) (*AgentLoopResult, error)
}

// LoopData is the per-query state passed through each AgentLoop execution.
// It is never shared between queries.
type LoopData interface {
	// GetTask returns the original question that started the agent loop.
	GetTask() string

	// GetScratchPad returns the steps recorded so far, in order.
	GetScratchPad() []*Step

	// AppendStep appends a step to the scratchpad.
	AppendStep(step *Step)
}

type LoopAction string

const (
	LAContinue  LoopAction = "c"
	LATerminate LoopAction = "t"
)

type AgentLoopResult struct {
	// Action indicates whether to continue or terminate the loop.
	Action LoopAction

	// Observation is set when Action is [LAContinue]. It is the text appended to the
	// scratchpad in this iteration.
	Observation string

	// Result is only set when Action is [LATerminate].
	Result string
}
