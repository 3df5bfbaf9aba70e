package react

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"

	"github.com/rickchristie/docagent"
)

//go:embed react.tmpl
var reactTemplateContent string

// PromptData contains the data passed to the ReAct prompt template.
type PromptData struct {
	// Tools is the tool catalog, one "name: description" line per tool.
	Tools string

	// ToolNames is the comma-separated list of valid action names.
	ToolNames string

	// Input is the user's question.
	Input string

	// AgentScratchpad is the serialized history of previous steps. The template places it
	// right after the final "Thought: " cue.
	AgentScratchpad string
}

// DefaultTemplate is the ReAct JSON prompt. It lists the tools, explains the fenced JSON
// action protocol, and ends with "Thought: " followed by the scratchpad, so the rendered
// prompt always ends on a Thought cue.
//
// The template file is located at agents/react/react.tmpl.
// Replace it with Agent.WithTemplate().
var DefaultTemplate = template.Must(
	template.New("react").Parse(strings.TrimRight(reactTemplateContent, "\n")),
)

// ExecuteTemplate executes a template with the given data and returns the result.
func ExecuteTemplate(tmpl *template.Template, data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatScratchpad serializes steps in the order they were taken. Each step is the raw
// model text followed by its observation and a fresh Thought cue:
//
//	<log>
//	Observation: <observation>
//	Thought:
//
// A non-empty scratchpad therefore always ends with "Thought: ".
func FormatScratchpad(steps []*docagent.Step) string {
	var sb strings.Builder
	for _, step := range steps {
		sb.WriteString(step.Log)
		sb.WriteString("\n")
		sb.WriteString(docagent.MarkerObservation)
		sb.WriteString(" ")
		sb.WriteString(step.Observation)
		sb.WriteString("\n")
		sb.WriteString(docagent.MarkerThought)
		sb.WriteString(" ")
	}
	return sb.String()
}
