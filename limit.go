package docagent

// LimitType specifies how to match keys for limit checking.
type LimitType string

const (
	// LimitExactKey matches an exact key.
	// Use for specific counters like KeyIterations or KeyInputTokens.
	LimitExactKey LimitType = "exact"

	// LimitKeyPrefix matches any key with the given prefix.
	// Use for limits across all models/tools (e.g., KeyToolCallsFor matches all tool calls).
	LimitKeyPrefix LimitType = "prefix"
)

// Limit defines a threshold that triggers execution termination.
//
// # How Limits Work
//
// Limits are checked automatically whenever stats are updated. When any limit is exceeded,
// the ExecutionContext is cancelled and the executor terminates with
// [TerminationLimitExceeded] before the next model call.
//
// # Exact Key Limits
//
//	// Stop after 15 Thought/Action/Observation cycles
//	{Type: LimitExactKey, Key: KeyIterations, MaxValue: 15}
//
//	// Stop after 3 malformed outputs in a row
//	{Type: LimitExactKey, Key: KeyParseErrorConsecutive, MaxValue: 3}
//
// # Prefix Limits
//
//	// Stop if ANY tool is called more than 20 times
//	{Type: LimitKeyPrefix, Key: KeyToolCallsFor, MaxValue: 20}
type Limit struct {
	// Type specifies how to match keys (exact or prefix).
	Type LimitType

	// Key is the exact key or prefix to match.
	Key StatKey

	// MaxValue is the threshold. Execution terminates when the value exceeds this.
	// The comparison is: currentValue > MaxValue (not >=).
	MaxValue float64
}

// Default limit values.
const (
	DefaultMaxIterations          = 15
	DefaultMaxConsecutiveMalformed = 3
)

// DefaultLimits returns the default limits:
//   - 15 iterations max
//   - 3 consecutive malformed outputs
//
// Override with ExecutionContext.SetLimits(), or build a set with [NewLimits].
func DefaultLimits() []Limit {
	return NewLimits(DefaultMaxIterations, DefaultMaxConsecutiveMalformed)
}

// NewLimits returns the iteration cap and the consecutive malformed output cap as limits.
// Non-positive values fall back to the defaults.
func NewLimits(maxIterations, maxConsecutiveMalformed int) []Limit {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if maxConsecutiveMalformed <= 0 {
		maxConsecutiveMalformed = DefaultMaxConsecutiveMalformed
	}
	return []Limit{
		{Type: LimitExactKey, Key: KeyIterations, MaxValue: float64(maxIterations)},
		{Type: LimitExactKey, Key: KeyParseErrorConsecutive, MaxValue: float64(maxConsecutiveMalformed)},
	}
}
