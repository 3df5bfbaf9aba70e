package docagent

// StatKey identifies a counter or gauge in [ExecutionStats].
type StatKey string

// Standard key prefix for all docagent keys.
// Users should use their own prefix (e.g., "myapp:") for custom metrics
// to avoid collisions with docagent's standard keys.
const KeyPrefix = "docagent:"

// Iteration tracking.
// This key is protected - attempts to modify it via IncrCounter are silently ignored.
// Only the ExecutionContext increments it, when the executor starts an iteration.
const KeyIterations StatKey = "docagent:iterations"

// Model call tracking keys.
const (
	KeyModelCalls       StatKey = "docagent:model_calls"
	KeyModelCallErrors  StatKey = "docagent:model_call_errors"
	KeyInputTokens      StatKey = "docagent:input_tokens"
	KeyInputTokensFor   StatKey = "docagent:input_tokens:" // + model name
	KeyOutputTokens     StatKey = "docagent:output_tokens"
	KeyOutputTokensFor  StatKey = "docagent:output_tokens:" // + model name
)

// Tool call tracking keys.
const (
	KeyToolCalls           StatKey = "docagent:tool_calls"
	KeyToolCallsFor        StatKey = "docagent:tool_calls:" // + tool name
	KeyToolCallsErrorTotal StatKey = "docagent:tool_calls_error_total"
	KeyToolCallsErrorFor   StatKey = "docagent:tool_calls_error:" // + tool name
	KeyUnknownToolTotal    StatKey = "docagent:unknown_tool_total"
)

// Parse error tracking keys (model output that matched neither actions nor final answers).
//
// KeyParseErrorConsecutive is a gauge: it is reset to zero on every successful parse.
const (
	KeyParseErrorTotal       StatKey = "docagent:parse_error_total"
	KeyParseErrorConsecutive StatKey = "docagent:parse_error_consecutive"
)

// protectedKeys contains keys that cannot be modified by user code.
var protectedKeys = map[StatKey]bool{
	KeyIterations: true,
}

// isProtectedKey returns true if the key is protected from user modification.
func isProtectedKey(key StatKey) bool {
	return protectedKeys[key]
}
