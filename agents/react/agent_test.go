package react

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rickchristie/docagent"
	"github.com/rickchristie/docagent/internal/tt"
	"github.com/rickchristie/docagent/parser"
	"github.com/rickchristie/docagent/toolchain"
	"github.com/rickchristie/docagent/tools/calculator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func newTestToolChain() *toolchain.Registry {
	return toolchain.NewRegistry().
		Register(calculator.New()).
		Register(tt.NewMockTool("wikipedia", "Paris is the capital of France.").
			WithDescription("Looks up one concept on Wikipedia."))
}

// ----------------------------------------------------------------------------
// Prompt rendering
// ----------------------------------------------------------------------------

func TestAgent_RenderPrompt(t *testing.T) {
	type input struct {
		question string
		steps    []*docagent.Step
	}

	type expected struct {
		contains []string
		suffix   string
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:  "empty scratchpad ends on thought cue",
			input: input{question: "What is 15 times 3?"},
			expected: expected{
				contains: []string{
					"calculator: " + calculator.New().Description(),
					"wikipedia: Looks up one concept on Wikipedia.",
					"The only values that should be in the \"action\" field are: calculator, wikipedia",
					"Question: What is 15 times 3?",
				},
				suffix: "Question: What is 15 times 3?\nThought: ",
			},
		},
		{
			name: "scratchpad steps are appended in order",
			input: input{
				question: "What is 15 times 3?",
				steps: []*docagent.Step{
					{Log: "first", Observation: "one"},
					{Log: "second", Observation: "two"},
				},
			},
			expected: expected{
				contains: []string{"first\nObservation: one\nThought: second\nObservation: two"},
				suffix:   "Thought: first\nObservation: one\nThought: second\nObservation: two\nThought: ",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			agent := NewAgent(tt.NewMockModel()).WithToolChain(newTestToolChain())
			data := NewLoopData(tc.input.question)
			for _, step := range tc.input.steps {
				data.AppendStep(step)
			}

			prompt, err := agent.RenderPrompt(data)
			require.NoError(t, err)

			for _, want := range tc.expected.contains {
				assert.Contains(t, prompt, want)
			}
			assert.True(t, strings.HasSuffix(prompt, tc.expected.suffix),
				"prompt should end with %q, got tail %q", tc.expected.suffix,
				prompt[max(0, len(prompt)-len(tc.expected.suffix)-20):])
		})
	}
}

func TestAgent_RenderPrompt_Idempotent(t *testing.T) {
	agent := NewAgent(tt.NewMockModel()).WithToolChain(newTestToolChain())
	data := NewLoopData("Who wrote Dune?")
	data.AppendStep(&docagent.Step{
		Log:         tt.ActionOutput("Look it up", "wikipedia", "Dune"),
		Observation: "Dune is a novel by Frank Herbert.",
	})

	first, err := agent.RenderPrompt(data)
	require.NoError(t, err)
	second, err := agent.RenderPrompt(data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAgent_WithTemplateString(t *testing.T) {
	agent := NewAgent(tt.NewMockModel())

	_, err := agent.WithTemplateString("{{.Input")
	require.Error(t, err)

	_, err = agent.WithTemplateString("Q: {{.Input}}\nThought: {{.AgentScratchpad}}")
	require.NoError(t, err)

	prompt, err := agent.RenderPrompt(NewLoopData("hello"))
	require.NoError(t, err)
	assert.Equal(t, "Q: hello\nThought: ", prompt)
}

// ----------------------------------------------------------------------------
// Next
// ----------------------------------------------------------------------------

func TestAgent_Next(t *testing.T) {
	type input struct {
		output   string
		modelErr error
	}

	type expected struct {
		action        docagent.LoopAction
		result        string
		observation   string
		obsPrefix     string
		steps         int
		stepHasAction bool
		state         docagent.State
		parseErrors   int64
		consecutive   float64
		toolCalls     int64
		errIs         error
		errContains   string
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:  "final answer terminates",
			input: input{output: tt.FinalAnswerOutput("45")},
			expected: expected{
				action: docagent.LATerminate,
				result: "45",
				state:  docagent.StateThinking,
			},
		},
		{
			name:  "final answer with end of sequence token",
			input: input{output: "Thought: done\nFinal Answer:  Paris </s>"},
			expected: expected{
				action: docagent.LATerminate,
				result: "Paris",
				state:  docagent.StateThinking,
			},
		},
		{
			name:  "action is dispatched and observed",
			input: input{output: tt.ActionOutput("I need to multiply", "calculator", "15 * 3")},
			expected: expected{
				action:        docagent.LAContinue,
				observation:   "45",
				steps:         1,
				stepHasAction: true,
				state:         docagent.StateObserving,
				toolCalls:     1,
			},
		},
		{
			name:  "unknown tool becomes observation",
			input: input{output: tt.ActionOutput("Translate it", "translate", "bonjour")},
			expected: expected{
				action:        docagent.LAContinue,
				observation:   "translate is not a valid tool, try one of [calculator, wikipedia].",
				steps:         1,
				stepHasAction: true,
				state:         docagent.StateObserving,
				toolCalls:     1,
			},
		},
		{
			name: "hallucinated observation is cut before parsing",
			input: input{
				output: tt.ActionOutput("I need to multiply", "calculator", "15 * 3") +
					"\nObservation: 99\nThought: I now know the final answer\nFinal Answer: 99",
			},
			expected: expected{
				action:        docagent.LAContinue,
				observation:   "45",
				steps:         1,
				stepHasAction: true,
				state:         docagent.StateObserving,
				toolCalls:     1,
			},
		},
		{
			name:  "malformed output gets corrective observation",
			input: input{output: "I am not sure what to do."},
			expected: expected{
				action:      docagent.LAContinue,
				obsPrefix:   "Invalid or incomplete response: ",
				steps:       1,
				state:       docagent.StateThinking,
				parseErrors: 1,
				consecutive: 1,
			},
		},
		{
			name:  "none action is malformed",
			input: input{output: tt.ActionOutput("Nothing to do", "none", "")},
			expected: expected{
				action:      docagent.LAContinue,
				obsPrefix:   "Invalid or incomplete response: \"none\" is not a tool",
				steps:       1,
				state:       docagent.StateThinking,
				parseErrors: 1,
				consecutive: 1,
			},
		},
		{
			name:  "model error is returned",
			input: input{modelErr: errors.New("connection refused")},
			expected: expected{
				state:       docagent.StateThinking,
				errContains: "model call failed: connection refused",
			},
		},
		{
			name: "upstream error keeps its category",
			input: input{modelErr: &docagent.UpstreamServiceError{
				Service: "m", Attempts: 3, Err: errors.New("503"),
			}},
			expected: expected{
				state: docagent.StateThinking,
				errIs: docagent.ErrUpstreamService,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			model := tt.NewMockModel()
			if tc.input.modelErr != nil {
				model.AddError(tc.input.modelErr)
			} else {
				model.AddResponse(tc.input.output, 100, 20)
			}

			agent := NewAgent(model).WithToolChain(newTestToolChain())
			data := NewLoopData("What is 15 times 3?")
			execCtx := docagent.NewExecutionContext(context.Background(), "test", data)

			result, err := agent.Next(execCtx)

			if tc.expected.errContains != "" || tc.expected.errIs != nil {
				require.Error(t, err)
				if tc.expected.errContains != "" {
					assert.Contains(t, err.Error(), tc.expected.errContains)
				}
				if tc.expected.errIs != nil {
					assert.ErrorIs(t, err, tc.expected.errIs)
				}
				assert.Nil(t, result)
				assert.Empty(t, data.GetScratchPad())
				return
			}
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.Equal(t, tc.expected.action, result.Action)
			assert.Equal(t, tc.expected.result, result.Result)
			if tc.expected.obsPrefix != "" {
				assert.True(t, strings.HasPrefix(result.Observation, tc.expected.obsPrefix),
					"observation %q should start with %q", result.Observation, tc.expected.obsPrefix)
				assert.Contains(t, result.Observation, parser.NewReActJSON().FormatInstructions())
			} else {
				assert.Equal(t, tc.expected.observation, result.Observation)
			}

			steps := data.GetScratchPad()
			require.Len(t, steps, tc.expected.steps)
			if tc.expected.steps > 0 {
				assert.Equal(t, result.Observation, steps[0].Observation)
				assert.Equal(t, tc.expected.stepHasAction, steps[0].Action != nil)
				assert.NotContains(t, steps[0].Log, "\nObservation")
			}

			stats := execCtx.Stats()
			assert.Equal(t, tc.expected.state, execCtx.State())
			assert.Equal(t, tc.expected.parseErrors, stats.GetParseErrorTotal())
			assert.Equal(t, tc.expected.consecutive, stats.GetGauge(docagent.KeyParseErrorConsecutive))
			assert.Equal(t, tc.expected.toolCalls, stats.GetToolCallCount())
			assert.Equal(t, int64(1), stats.GetCounter(docagent.KeyModelCalls))
		})
	}
}

func TestAgent_Next_SuccessfulParseResetsConsecutiveErrors(t *testing.T) {
	model := tt.NewMockModel().
		AddResponse("garbage", 10, 5).
		AddResponse("more garbage", 10, 5).
		AddResponse(tt.ActionOutput("multiply", "calculator", "2 + 2"), 10, 5)

	agent := NewAgent(model).WithToolChain(newTestToolChain())
	data := NewLoopData("What is 2 + 2?")
	execCtx := docagent.NewExecutionContext(context.Background(), "test", data)

	for i := 0; i < 2; i++ {
		_, err := agent.Next(execCtx)
		require.NoError(t, err)
	}
	assert.Equal(t, float64(2), execCtx.Stats().GetGauge(docagent.KeyParseErrorConsecutive))

	result, err := agent.Next(execCtx)
	require.NoError(t, err)
	assert.Equal(t, "4", result.Observation)
	assert.Equal(t, float64(0), execCtx.Stats().GetGauge(docagent.KeyParseErrorConsecutive))
	assert.Equal(t, int64(2), execCtx.Stats().GetParseErrorTotal())

	// The third prompt carries both corrective steps.
	prompts := model.Prompts()
	require.Len(t, prompts, 3)
	assert.Equal(t, 2, strings.Count(prompts[2], "Invalid or incomplete response"))
}

func TestAgent_Next_ToolUpstreamFailureEndsQuery(t *testing.T) {
	model := tt.NewMockModel().
		AddResponse(tt.ActionOutput("Check the document", "research", "What is it about?"), 10, 5)
	chain := toolchain.NewRegistry().
		Register(tt.NewMockToolFunc("research", func(context.Context, string) (string, error) {
			return "", &docagent.UpstreamServiceError{Service: "retriever", Attempts: 3, Err: errors.New("timeout")}
		})).
		Register(tt.NewMockToolFunc("wikipedia", func(context.Context, string) (string, error) {
			return "", errors.New("page not found")
		}))

	agent := NewAgent(model).WithToolChain(chain)
	data := NewLoopData("What is it about?")
	execCtx := docagent.NewExecutionContext(context.Background(), "test", data)

	result, err := agent.Next(execCtx)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, docagent.ErrUpstreamService)
	assert.Contains(t, err.Error(), "dispatch research")
	assert.Empty(t, data.GetScratchPad())
	assert.Equal(t, int64(1), execCtx.Stats().GetCounter(docagent.KeyToolCallsErrorFor+"research"))

	model.AddResponse(tt.ActionOutput("Try Wikipedia", "wikipedia", "GPU"), 10, 5)
	result, err = agent.Next(docagent.NewExecutionContext(context.Background(), "test", NewLoopData("q")))
	require.NoError(t, err)
	assert.Equal(t, "Error: tool wikipedia failed: page not found", result.Observation)
}

func TestAgent_Next_CallOptions(t *testing.T) {
	model := tt.NewMockModel().AddResponse(tt.FinalAnswerOutput("ok"), 1, 1)
	agent := NewAgent(model).
		WithGenerationOptions(docagent.GenerationOptions{MaxTokens: 5000, Temperature: 0.3}).
		WithCallOptions(llms.WithRepetitionPenalty(1.03))

	execCtx := docagent.NewExecutionContext(context.Background(), "test", NewLoopData("hi"))
	_, err := agent.Next(execCtx)
	require.NoError(t, err)

	require.Len(t, model.CapturedOptions, 1)
	opts := model.CapturedOptions[0]
	assert.Equal(t, 5000, opts.MaxTokens)
	assert.Equal(t, 5000, opts.MaxLength)
	assert.Equal(t, 0.3, opts.Temperature)
	assert.Equal(t, 1, opts.TopK)
	assert.Equal(t, 1.03, opts.RepetitionPenalty)
	assert.Equal(t, []string{DefaultStopSequence}, opts.StopWords)
}

func TestAgent_Next_PromptGrowsWithObservation(t *testing.T) {
	model := tt.NewMockModel().
		AddResponse(tt.ActionOutput("I need to multiply", "calculator", "15 * 3"), 10, 5).
		AddResponse(tt.FinalAnswerOutput("45"), 10, 5)

	agent := NewAgent(model).WithToolChain(newTestToolChain())
	data := NewLoopData("What is 15 times 3?")
	execCtx := docagent.NewExecutionContext(context.Background(), "test", data)

	_, err := agent.Next(execCtx)
	require.NoError(t, err)
	result, err := agent.Next(execCtx)
	require.NoError(t, err)
	assert.Equal(t, "45", result.Result)

	prompts := model.Prompts()
	require.Len(t, prompts, 2)
	assert.True(t, strings.HasPrefix(prompts[1], prompts[0]))
	assert.True(t, strings.HasSuffix(prompts[1], "\nObservation: 45\nThought: "))
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

func TestTruncateAtObservation(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no observation", input: "Thought: hi", expected: "Thought: hi"},
		{name: "cut at observation", input: "a\nObservation: b\nc", expected: "a"},
		{name: "inline word kept", input: "an Observation: here", expected: "an Observation: here"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, TruncateAtObservation(tc.input))
		})
	}
}

func TestCorrectiveObservation(t *testing.T) {
	err := docagent.NewMalformedOutputError("raw", "missing blob")
	got := CorrectiveObservation(err, "FORMAT")
	assert.Equal(t, "Invalid or incomplete response: missing blob.\nFORMAT", got)
}
