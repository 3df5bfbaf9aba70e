package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rickchristie/docagent"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
)

// RetrieverService names the retrieval backend in upstream errors.
const RetrieverService = "retriever"

// DefaultRetrieverRetries is the number of immediate retries after a failed retrieval.
const DefaultRetrieverRetries = 2

// AnswerTemplate is the grounded answer prompt in the Mistral instruction format.
const AnswerTemplate = `<s> [INST] Use the following pieces of context to answer the question at the end. Please follow the following rules:
1. If you don't know the answer, don't try to make up an answer. Just say "I can't find the final answer".
2. Read the context carefully in detail to come up with the answer.
3. If you find the answer, write the answer in a concise way with five sentences maximum.
4. Give your answer in a paragraph. DO NOT use bullet points or a list. [/INST] </s>

[INST] Context: {context}

Question: {question}

Answer: [/INST]
`

// DefaultPrompt renders [AnswerTemplate].
var DefaultPrompt = prompts.PromptTemplate{
	Template:       AnswerTemplate,
	InputVariables: []string{"context", "question"},
	TemplateFormat: prompts.TemplateFormatFString,
}

// Answerer answers a question from the chunks a retriever returns for it.
// It holds no per-question state and is safe for concurrent use.
type Answerer struct {
	retriever   schema.Retriever
	model       docagent.Model
	prompt      prompts.PromptTemplate
	callOptions []llms.CallOption
	maxRetries  int
}

// NewAnswerer creates an Answerer with [DefaultPrompt].
func NewAnswerer(retriever schema.Retriever, model docagent.Model) *Answerer {
	return &Answerer{
		retriever:  retriever,
		model:      model,
		prompt:     DefaultPrompt,
		maxRetries: DefaultRetrieverRetries,
	}
}

// WithRetrieverRetries sets how many times a failed retrieval is retried.
func (a *Answerer) WithRetrieverRetries(retries int) *Answerer {
	a.maxRetries = max(retries, 0)
	return a
}

// WithPrompt replaces the answer prompt. It must accept "context" and "question".
func (a *Answerer) WithPrompt(prompt prompts.PromptTemplate) *Answerer {
	a.prompt = prompt
	return a
}

// WithGenerationOptions sets the sampling options of the answer model.
func (a *Answerer) WithGenerationOptions(opts docagent.GenerationOptions) *Answerer {
	a.callOptions = opts.CallOptions()
	return a
}

// Answer retrieves context for the question and asks the model to answer from it.
// Retrieval that still fails after its retries is reported as
// *docagent.UpstreamServiceError. When ctx carries an ExecutionContext, the model call is
// traced into it.
func (a *Answerer) Answer(ctx context.Context, question string) (string, error) {
	docs, err := a.retrieve(ctx, question)
	if err != nil {
		return "", err
	}

	prompt, err := a.Prompt(question, docs)
	if err != nil {
		return "", err
	}

	response, err := a.model.GenerateContent(ctx, docagent.ExecutionContextFrom(ctx), prompt, a.callOptions...)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(response.Text()), nil
}

// retrieve calls the retriever, retrying immediately until it succeeds, the retries run
// out, or ctx is done.
func (a *Answerer) retrieve(ctx context.Context, question string) ([]schema.Document, error) {
	var (
		docs     []schema.Document
		err      error
		attempts int
	)
	for attempts < a.maxRetries+1 {
		attempts++
		docs, err = a.retriever.GetRelevantDocuments(ctx, question)
		if err == nil {
			return docs, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Join(ctx.Err(), err)
		}
	}
	return nil, &docagent.UpstreamServiceError{
		Service:  RetrieverService,
		Attempts: attempts,
		Err:      err,
	}
}

// Prompt renders the answer prompt for the question and retrieved documents.
func (a *Answerer) Prompt(question string, docs []schema.Document) (string, error) {
	prompt, err := a.prompt.Format(map[string]any{
		"context":  FormatDocuments(docs),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("format answer prompt: %w", err)
	}
	return prompt, nil
}

// FormatDocuments joins document contents with blank lines, in retrieval order.
func FormatDocuments(docs []schema.Document) string {
	contents := make([]string, len(docs))
	for i, doc := range docs {
		contents[i] = doc.PageContent
	}
	return strings.Join(contents, "\n\n")
}
