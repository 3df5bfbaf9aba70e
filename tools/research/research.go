// Package research provides the agent's document question-answering tool.
package research

import (
	"context"
	"fmt"

	"github.com/rickchristie/docagent"
)

// Name is the tool name the model uses in actions.
const Name = "research"

const description = "Useful when you need to answer questions about research related " +
	"topics, specific research papers, pdf documents, or any other qualitative question " +
	"that could be answered using semantic search. Not useful for answering objective " +
	"questions that involve counting, percentages, aggregations, or listing facts. Use the " +
	"entire prompt as input to the tool. For instance, if the prompt is \"What is the title " +
	"of this paper?\", the input should be \"What is the title of this paper?\". Only use " +
	"when other tools fail. Also, do NOT summarize the results from this tool when you " +
	"give your final response."

// Answerer answers a natural-language question from the indexed document.
// rag.Answerer implements it.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Tool forwards questions verbatim to an Answerer.
type Tool struct {
	answerer Answerer
}

// New creates the research tool.
func New(answerer Answerer) *Tool {
	return &Tool{answerer: answerer}
}

func (t *Tool) Name() string {
	return Name
}

func (t *Tool) Description() string {
	return description
}

// Call returns the answerer's prose answer for the question.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	answer, err := t.answerer.Answer(ctx, input)
	if err != nil {
		return "", fmt.Errorf("answering from document: %w", err)
	}
	return answer, nil
}

// Compile-time check that Tool implements docagent.Tool.
var _ docagent.Tool = (*Tool)(nil)
