package docagent

// Literal markers of the ReAct JSON text protocol. The model is prompted to produce these
// verbatim, so they must never change.
const (
	MarkerThought     = "Thought:"
	MarkerAction      = "Action:"
	MarkerObservation = "Observation:"
	MarkerFinalAnswer = "Final Answer:"

	// FieldAction and FieldActionInput are the two keys of the action blob.
	FieldAction      = "action"
	FieldActionInput = "action_input"

	// EndOfSequence is the end-of-sequence token some hosted models leave in their output.
	EndOfSequence = "</s>"
)

// ParseResult is the closed set of successful parse outcomes: *Action or *FinalAnswer.
// Parse failures are reported as errors (see [MalformedOutputError]).
type ParseResult interface {
	parseResult()
}

// Action is a single tool invocation requested by the model.
type Action struct {
	// Tool is the requested tool name, whitespace-trimmed.
	Tool string

	// Input is the single string input for the tool.
	Input string

	// Log is the raw model text that produced this action.
	Log string
}

func (*Action) parseResult() {}

// FinalAnswer is the terminal answer extracted after the [MarkerFinalAnswer] marker.
type FinalAnswer struct {
	Text string

	// Log is the raw model text that produced this answer.
	Log string
}

func (*FinalAnswer) parseResult() {}

// OutputParser converts raw model text into a ParseResult.
type OutputParser interface {
	// Parse returns *Action or *FinalAnswer. Unparseable text yields an error wrapping
	// [ErrMalformedOutput].
	Parse(text string) (ParseResult, error)

	// FormatInstructions describes the expected output protocol. Used when the model must be
	// told how to correct a malformed response.
	FormatInstructions() string
}

// Step is one Thought/Action/Observation cycle recorded in the scratchpad.
type Step struct {
	// Action is the dispatched action. Nil for corrective steps after malformed output.
	Action *Action

	// Log is the raw model text of this step.
	Log string

	// Observation is the tool result or the corrective feedback.
	Observation string
}
