package react

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/rickchristie/docagent"
	"github.com/rickchristie/docagent/parser"
	"github.com/rickchristie/docagent/toolchain"
	"github.com/tmc/langchaingo/llms"
)

// DefaultStopSequence ends generation where the model would start inventing an observation.
const DefaultStopSequence = "\nObservation"

// LoopData implements docagent.LoopData for the ReAct agent loop.
// One LoopData belongs to exactly one query.
type LoopData struct {
	task       string
	scratchpad []*docagent.Step
}

// NewLoopData creates a new LoopData with an empty scratchpad.
func NewLoopData(task string) *LoopData {
	return &LoopData{
		task:       task,
		scratchpad: make([]*docagent.Step, 0),
	}
}

// GetTask returns the original question.
func (d *LoopData) GetTask() string {
	return d.task
}

// GetScratchPad returns the steps taken so far.
func (d *LoopData) GetScratchPad() []*docagent.Step {
	return d.scratchpad
}

// AppendStep records a step.
func (d *LoopData) AppendStep(step *docagent.Step) {
	d.scratchpad = append(d.scratchpad, step)
}

// Compile-time check that LoopData implements docagent.LoopData.
var _ docagent.LoopData = (*LoopData)(nil)

// ----------------------------------------------------------------------------
// Agent - ReAct AgentLoop Implementation
// ----------------------------------------------------------------------------

// Agent implements the ReAct (Reasoning and Acting) agent loop over a text-completion
// model. Flow: Think -> Act -> Observe -> Repeat until a final answer.
//
// The whole conversation is a single prompt: the template, the question, and the
// scratchpad of previous steps. Rendering is a pure function of the tool chain, the
// question and the scratchpad.
//
// The Agent holds no per-query state and can serve concurrent queries, each with its own
// LoopData and ExecutionContext.
type Agent struct {
	model       docagent.Model
	toolChain   docagent.ToolChain
	parser      docagent.OutputParser
	template    *template.Template
	callOptions []llms.CallOption
	stopWords   []string
}

// NewAgent creates a new Agent with the given model and default settings.
// Defaults:
//   - ToolChain: empty toolchain.NewRegistry()
//   - Parser: parser.NewReActJSON()
//   - Template: DefaultTemplate
//   - Stop words: DefaultStopSequence
func NewAgent(model docagent.Model) *Agent {
	return &Agent{
		model:     model,
		toolChain: toolchain.NewRegistry(),
		parser:    parser.NewReActJSON(),
		template:  DefaultTemplate,
		stopWords: []string{DefaultStopSequence},
	}
}

// WithToolChain sets the tool chain.
func (r *Agent) WithToolChain(tc docagent.ToolChain) *Agent {
	r.toolChain = tc
	return r
}

// WithParser sets the output parser.
func (r *Agent) WithParser(p docagent.OutputParser) *Agent {
	r.parser = p
	return r
}

// WithTemplate sets a custom prompt template. It is executed with PromptData and should
// end with a "Thought: " cue followed by {{.AgentScratchpad}}.
func (r *Agent) WithTemplate(tmpl *template.Template) *Agent {
	r.template = tmpl
	return r
}

// WithTemplateString sets a custom prompt template from a string.
// Returns error if the template string is invalid.
func (r *Agent) WithTemplateString(tmplStr string) (*Agent, error) {
	tmpl, err := template.New("react").Parse(tmplStr)
	if err != nil {
		return r, fmt.Errorf("failed to parse template: %w", err)
	}
	r.template = tmpl
	return r, nil
}

// WithGenerationOptions sets the sampling options passed on every model call.
func (r *Agent) WithGenerationOptions(opts docagent.GenerationOptions) *Agent {
	r.callOptions = opts.CallOptions()
	return r
}

// WithCallOptions appends raw LangChainGo call options passed on every model call.
func (r *Agent) WithCallOptions(opts ...llms.CallOption) *Agent {
	r.callOptions = append(r.callOptions, opts...)
	return r
}

// WithStopWords replaces the stop sequences. Model output is also truncated at the first
// hallucinated observation, whether or not the provider honors stop sequences.
func (r *Agent) WithStopWords(words ...string) *Agent {
	r.stopWords = words
	return r
}

// ToolChain returns the agent's tool chain.
func (r *Agent) ToolChain() docagent.ToolChain {
	return r.toolChain
}

// RenderPrompt renders the prompt for the next model call.
func (r *Agent) RenderPrompt(data docagent.LoopData) (string, error) {
	return ExecuteTemplate(r.template, PromptData{
		Tools:           r.toolChain.AvailableToolsPrompt(),
		ToolNames:       strings.Join(r.toolChain.Names(), ", "),
		Input:           data.GetTask(),
		AgentScratchpad: FormatScratchpad(data.GetScratchPad()),
	})
}

// Next executes one THINKING step of the ReAct loop:
//  1. Render the prompt and call the model
//  2. Parse the output
//  3. Final answer: terminate with it
//  4. Action: dispatch it (ACTING), record the observation (OBSERVING), continue
//  5. Malformed output: record a corrective observation and continue
//
// Model errors and upstream failures inside tools are returned; the executor ends the
// query as FAILED.
func (r *Agent) Next(execCtx *docagent.ExecutionContext) (*docagent.AgentLoopResult, error) {
	data := execCtx.Data()
	execCtx.SetState(docagent.StateThinking)

	prompt, err := r.RenderPrompt(data)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	options := r.callOptions
	if len(r.stopWords) > 0 {
		options = append(append([]llms.CallOption(nil), r.callOptions...),
			llms.WithStopWords(r.stopWords))
	}

	response, err := r.model.GenerateContent(execCtx.Context(), execCtx, prompt, options...)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	output := TruncateAtObservation(response.Text())

	parsed, err := r.parser.Parse(output)
	if err != nil {
		return r.recoverFromParseError(execCtx, output, err)
	}
	execCtx.RecordParseSuccess()

	switch result := parsed.(type) {
	case *docagent.FinalAnswer:
		return &docagent.AgentLoopResult{
			Action: docagent.LATerminate,
			Result: result.Text,
		}, nil

	case *docagent.Action:
		execCtx.SetState(docagent.StateActing)
		observation, err := r.toolChain.Dispatch(execCtx, result)
		if err != nil {
			return nil, fmt.Errorf("dispatch %s: %w", result.Tool, err)
		}
		data.AppendStep(&docagent.Step{
			Action:      result,
			Log:         output,
			Observation: observation,
		})
		execCtx.SetState(docagent.StateObserving)
		return &docagent.AgentLoopResult{
			Action:      docagent.LAContinue,
			Observation: observation,
		}, nil

	default:
		return nil, fmt.Errorf("parser returned unsupported result %T", parsed)
	}
}

// recoverFromParseError feeds the formatting problem back to the model as an observation.
// The consecutive malformed output limit bounds how often this can happen.
func (r *Agent) recoverFromParseError(
	execCtx *docagent.ExecutionContext,
	output string,
	parseErr error,
) (*docagent.AgentLoopResult, error) {
	if !errors.Is(parseErr, docagent.ErrMalformedOutput) {
		return nil, fmt.Errorf("parse model output: %w", parseErr)
	}
	execCtx.RecordParseError(output, parseErr)

	observation := CorrectiveObservation(parseErr, r.parser.FormatInstructions())
	execCtx.Data().AppendStep(&docagent.Step{
		Log:         output,
		Observation: observation,
	})
	return &docagent.AgentLoopResult{
		Action:      docagent.LAContinue,
		Observation: observation,
	}, nil
}

// CorrectiveObservation explains a malformed output to the model.
func CorrectiveObservation(parseErr error, instructions string) string {
	reason := parseErr.Error()
	var malformed *docagent.MalformedOutputError
	if errors.As(parseErr, &malformed) {
		reason = malformed.Reason
	}
	return fmt.Sprintf("Invalid or incomplete response: %s.\n%s", reason, instructions)
}

// TruncateAtObservation cuts model output at the first observation the model wrote for
// itself. Observations only ever come from tools.
func TruncateAtObservation(output string) string {
	if idx := strings.Index(output, DefaultStopSequence); idx >= 0 {
		return output[:idx]
	}
	return output
}

// Compile-time check that Agent implements docagent.AgentLoop.
var _ docagent.AgentLoop = (*Agent)(nil)
