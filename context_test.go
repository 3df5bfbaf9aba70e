package docagent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFirer struct {
	mu          sync.Mutex
	states      []StateChangeEvent
	parseErrors []ParseErrorEvent
	toolCalls   []string
}

func (r *recordingFirer) FireStateChange(_ *ExecutionContext, e *StateChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, *e)
}

func (r *recordingFirer) FireParseError(_ *ExecutionContext, e *ParseErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parseErrors = append(r.parseErrors, *e)
}

func (r *recordingFirer) FireAfterToolCall(_ *ExecutionContext, e *AfterToolCallEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCalls = append(r.toolCalls, e.ToolName)
}

func (r *recordingFirer) FireBeforeModelCall(*ExecutionContext, *BeforeModelCallEvent) {}
func (r *recordingFirer) FireAfterModelCall(*ExecutionContext, *AfterModelCallEvent)   {}
func (r *recordingFirer) FireBeforeToolCall(*ExecutionContext, *BeforeToolCallEvent)   {}

var _ HookFirer = (*recordingFirer)(nil)

func limitTraces(execCtx *ExecutionContext) []LimitExceededTrace {
	var out []LimitExceededTrace
	for _, event := range execCtx.Events() {
		if e, ok := event.(LimitExceededTrace); ok {
			out = append(out, e)
		}
	}
	return out
}

func TestLimitExceeded_Counter(t *testing.T) {
	type input struct {
		limitKey   StatKey
		limitMax   float64
		counterVal int64
	}

	type expected struct {
		exceeded     bool
		currentValue float64
		matchedKey   StatKey
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:  "counter above limit",
			input: input{limitKey: "test:counter", limitMax: 5, counterVal: 6},
			expected: expected{
				exceeded:     true,
				currentValue: 6,
				matchedKey:   "test:counter",
			},
		},
		{
			name:     "counter equal to limit is allowed",
			input:    input{limitKey: "test:counter", limitMax: 5, counterVal: 5},
			expected: expected{exceeded: false},
		},
		{
			name:     "counter below limit",
			input:    input{limitKey: "test:counter", limitMax: 5, counterVal: 3},
			expected: expected{exceeded: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execCtx := NewExecutionContext(context.Background(), "test", nil)
			execCtx.SetLimits([]Limit{
				{Type: LimitExactKey, Key: tt.input.limitKey, MaxValue: tt.input.limitMax},
			})

			execCtx.Stats().IncrCounter(tt.input.limitKey, tt.input.counterVal)

			traces := limitTraces(execCtx)
			if !tt.expected.exceeded {
				assert.Empty(t, traces)
				assert.Nil(t, execCtx.ExceededLimit())
				assert.NoError(t, execCtx.Context().Err())
				return
			}
			require.Len(t, traces, 1)
			assert.Equal(t, tt.expected.currentValue, traces[0].CurrentValue)
			assert.Equal(t, tt.expected.matchedKey, traces[0].MatchedKey)
			require.NotNil(t, execCtx.ExceededLimit())
			assert.Equal(t, tt.input.limitKey, execCtx.ExceededLimit().Key)
			assert.ErrorIs(t, execCtx.Context().Err(), context.Canceled)
		})
	}
}

func TestLimitExceeded_PrefixMatchesSpecificKey(t *testing.T) {
	execCtx := NewExecutionContext(context.Background(), "test", nil)
	execCtx.SetLimits([]Limit{{Type: LimitKeyPrefix, Key: KeyToolCallsFor, MaxValue: 2}})

	execCtx.Stats().IncrCounter(KeyToolCallsFor+"calculator", 2)
	execCtx.Stats().IncrCounter(KeyToolCallsFor+"wikipedia", 1)
	assert.Nil(t, execCtx.ExceededLimit())

	execCtx.Stats().IncrCounter(KeyToolCallsFor+"wikipedia", 2)
	traces := limitTraces(execCtx)
	require.Len(t, traces, 1)
	assert.Equal(t, KeyToolCallsFor+"wikipedia", traces[0].MatchedKey)
	assert.Equal(t, float64(3), traces[0].CurrentValue)
}

func TestLimitExceeded_OnlyRecordedOnce(t *testing.T) {
	execCtx := NewExecutionContext(context.Background(), "test", nil)
	execCtx.SetLimits([]Limit{{Type: LimitExactKey, Key: "test:counter", MaxValue: 2}})

	execCtx.Stats().IncrCounter("test:counter", 3)
	execCtx.Stats().IncrCounter("test:counter", 1)
	execCtx.Stats().IncrCounter("test:counter", 1)

	assert.Len(t, limitTraces(execCtx), 1)
}

func TestIterations(t *testing.T) {
	type expected struct {
		exceededAt int
	}

	tests := []struct {
		name     string
		limits   []Limit
		starts   int
		expected expected
	}{
		{name: "default cap allows 15", limits: DefaultLimits(), starts: 15, expected: expected{}},
		{name: "default cap trips on 16", limits: DefaultLimits(), starts: 16, expected: expected{exceededAt: 16}},
		{name: "custom cap of 3", limits: NewLimits(3, 3), starts: 5, expected: expected{exceededAt: 4}},
		{name: "non-positive falls back to defaults", limits: NewLimits(0, -1), starts: 15, expected: expected{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execCtx := NewExecutionContext(context.Background(), "test", nil)
			execCtx.SetLimits(tt.limits)

			exceededAt := 0
			for i := 1; i <= tt.starts; i++ {
				execCtx.StartIteration()
				if exceededAt == 0 && execCtx.ExceededLimit() != nil {
					exceededAt = i
				}
			}
			assert.Equal(t, tt.expected.exceededAt, exceededAt)
			assert.Equal(t, tt.starts, execCtx.Iteration())
			assert.Equal(t, int64(tt.starts), execCtx.Stats().GetIterations())
		})
	}
}

func TestStats_ProtectedKeys(t *testing.T) {
	execCtx := NewExecutionContext(context.Background(), "test", nil)
	execCtx.Stats().IncrCounter(KeyIterations, 10)
	assert.Zero(t, execCtx.Stats().GetIterations())

	assert.Panics(t, func() { execCtx.Stats().IncrCounter("test:counter", -1) })
}

func TestParseErrors(t *testing.T) {
	firer := &recordingFirer{}
	execCtx := NewExecutionContext(context.Background(), "test", nil)
	execCtx.SetHookFirer(firer)

	execCtx.RecordParseError("garbage", NewMalformedOutputError("garbage", "no action or final answer"))
	execCtx.RecordParseError("garbage", NewMalformedOutputError("garbage", "no action or final answer"))
	assert.Equal(t, float64(2), execCtx.Stats().GetGauge(KeyParseErrorConsecutive))

	execCtx.RecordParseSuccess()
	assert.Zero(t, execCtx.Stats().GetGauge(KeyParseErrorConsecutive))

	for range 3 {
		execCtx.RecordParseError("garbage", errors.New("bad"))
	}
	assert.Nil(t, execCtx.ExceededLimit())

	execCtx.RecordParseError("garbage", errors.New("bad"))
	require.NotNil(t, execCtx.ExceededLimit())
	assert.Equal(t, KeyParseErrorConsecutive, execCtx.ExceededLimit().Key)
	assert.Equal(t, int64(6), execCtx.Stats().GetParseErrorTotal())

	require.Len(t, firer.parseErrors, 6)
	assert.Equal(t, 1, firer.parseErrors[0].Consecutive)
	assert.Equal(t, 4, firer.parseErrors[5].Consecutive)

	var reasons []string
	for _, event := range execCtx.Events() {
		if e, ok := event.(ParseErrorTrace); ok {
			reasons = append(reasons, e.Reason)
		}
	}
	require.Len(t, reasons, 6)
	assert.Equal(t, "no action or final answer", reasons[0])
	assert.Equal(t, "bad", reasons[5])
}

func TestSetState(t *testing.T) {
	firer := &recordingFirer{}
	execCtx := NewExecutionContext(context.Background(), "test", nil)
	execCtx.SetHookFirer(firer)

	assert.Equal(t, StateThinking, execCtx.State())
	execCtx.SetState(StateThinking)
	execCtx.SetState(StateActing)
	execCtx.SetState(StateObserving)
	execCtx.SetState(StateThinking)
	execCtx.SetTermination(TerminationSuccess, "45", nil)
	execCtx.SetState(StateThinking)

	assert.Equal(t, StateDone, execCtx.State())
	assert.Equal(t, []StateChangeEvent{
		{From: StateThinking, To: StateActing},
		{From: StateActing, To: StateObserving},
		{From: StateObserving, To: StateThinking},
		{From: StateThinking, To: StateDone},
	}, firer.states)

	result := execCtx.Result()
	assert.Equal(t, "45", result.Result)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, TerminationSuccess, result.TerminationReason)
	assert.NoError(t, result.Error)
	assert.ErrorIs(t, execCtx.Context().Err(), context.Canceled)
}

func TestTerminationState(t *testing.T) {
	tests := []struct {
		reason   TerminationReason
		expected State
	}{
		{reason: TerminationSuccess, expected: StateDone},
		{reason: TerminationLimitExceeded, expected: StateFailed},
		{reason: TerminationError, expected: StateFailed},
		{reason: TerminationContextCanceled, expected: StateFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.reason.State())
			assert.True(t, tt.expected.Terminal())
		})
	}
}

func TestToolCallStats(t *testing.T) {
	firer := &recordingFirer{}
	execCtx := NewExecutionContext(context.Background(), "test", nil)
	execCtx.SetHookFirer(firer)

	execCtx.FireAfterToolCall(&AfterToolCallEvent{ToolName: "calculator", Input: "2 + 2", Output: "4"})
	execCtx.FireAfterToolCall(&AfterToolCallEvent{
		ToolName: "calculator", Input: "2 +* 2",
		Error: &ToolExecutionError{Tool: "calculator", Err: errors.New("syntax error")},
	})
	execCtx.FireAfterToolCall(&AfterToolCallEvent{
		ToolName: "translate", Error: &UnknownToolError{Tool: "translate"},
	})

	stats := execCtx.Stats()
	assert.Equal(t, int64(3), stats.GetToolCallCount())
	assert.Equal(t, int64(2), stats.GetCounter(KeyToolCallsFor+"calculator"))
	assert.Equal(t, int64(1), stats.GetCounter(KeyToolCallsErrorFor+"calculator"))
	assert.Equal(t, int64(1), stats.GetCounter(KeyToolCallsErrorTotal))
	assert.Equal(t, int64(1), stats.GetCounter(KeyUnknownToolTotal))
	assert.Zero(t, stats.GetCounter(KeyToolCallsFor+"translate"))
	assert.Equal(t, []string{"calculator", "calculator", "translate"}, firer.toolCalls)
}

func TestModelCallStats(t *testing.T) {
	execCtx := NewExecutionContext(context.Background(), "test", nil)

	execCtx.FireAfterModelCall(&AfterModelCallEvent{
		Model: "mistral",
		Response: &ContentResponse{
			Choices: []*ContentChoice{{Content: "Final Answer: 4"}},
			Info:    &GenerationInfo{InputTokens: 100, OutputTokens: 20, Attempts: 1},
		},
		Duration: time.Millisecond,
	})
	execCtx.FireAfterModelCall(&AfterModelCallEvent{
		Model: "mistral",
		Error: &UpstreamServiceError{Service: "mistral", Attempts: 3, Err: errors.New("503")},
	})

	stats := execCtx.Stats()
	assert.Equal(t, int64(2), stats.GetCounter(KeyModelCalls))
	assert.Equal(t, int64(1), stats.GetCounter(KeyModelCallErrors))
	assert.Equal(t, int64(100), stats.GetTotalInputTokens())
	assert.Equal(t, int64(20), stats.GetTotalOutputTokens())
	assert.Equal(t, int64(100), stats.GetCounter(KeyInputTokensFor+"mistral"))

	var attempts []int
	for _, event := range execCtx.Events() {
		if e, ok := event.(ModelCallTrace); ok {
			attempts = append(attempts, e.Attempts)
		}
	}
	assert.Equal(t, []int{1, 3}, attempts)
}

func TestParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	execCtx := NewExecutionContext(parent, "test", nil)
	require.NoError(t, execCtx.Context().Err())

	cancel()
	assert.ErrorIs(t, execCtx.Context().Err(), context.Canceled)
	assert.Nil(t, execCtx.ExceededLimit())
}
