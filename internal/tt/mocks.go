// Package tt provides test helpers and mocks for docagent packages.
package tt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rickchristie/docagent"
	"github.com/tmc/langchaingo/llms"
)

// -----------------------------------------------------------------------------
// MockModel - implements docagent.Model with proper hook firing
// -----------------------------------------------------------------------------

// MockModel is a scripted docagent.Model. Responses and errors are returned in the order
// they were queued. It fires BeforeModelCall and AfterModelCall as required by the
// interface.
type MockModel struct {
	mu        sync.Mutex
	name      string
	responses []*docagent.ContentResponse
	errors    []error
	callCount int

	// CapturedPrompts stores the prompt passed to each GenerateContent call.
	CapturedPrompts []string

	// CapturedOptions stores the resolved call options of each call.
	CapturedOptions []llms.CallOptions
}

// NewMockModel creates a new MockModel with the default name "test-model".
func NewMockModel() *MockModel {
	return &MockModel{name: "test-model"}
}

// WithName sets the model name used in hook events.
func (m *MockModel) WithName(name string) *MockModel {
	m.name = name
	return m
}

// AddResponse queues a response with the specified content and token counts.
func (m *MockModel) AddResponse(content string, inputTokens, outputTokens int) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, &docagent.ContentResponse{
		Choices: []*docagent.ContentChoice{{Content: content}},
		Info: &docagent.GenerationInfo{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalTokens:  inputTokens + outputTokens,
			Attempts:     1,
		},
	})
	m.errors = append(m.errors, nil)
	return m
}

// AddError queues an error for the next call.
func (m *MockModel) AddError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	m.errors = append(m.errors, err)
	return m
}

// CallCount returns the number of times GenerateContent has been called.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns a copy of all captured prompts.
func (m *MockModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CapturedPrompts...)
}

// GenerateContent returns the next queued response or error. When the script runs out,
// it returns a response that never parses, so over-calling shows up in assertions.
func (m *MockModel) GenerateContent(
	ctx context.Context,
	execCtx *docagent.ExecutionContext,
	prompt string,
	options ...llms.CallOption,
) (*docagent.ContentResponse, error) {
	m.mu.Lock()
	idx := m.callCount
	m.callCount++
	m.CapturedPrompts = append(m.CapturedPrompts, prompt)
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}
	m.CapturedOptions = append(m.CapturedOptions, opts)

	var (
		resp *docagent.ContentResponse
		err  error
	)
	if idx < len(m.errors) {
		resp, err = m.responses[idx], m.errors[idx]
	} else {
		resp = &docagent.ContentResponse{
			Choices: []*docagent.ContentChoice{{Content: "unscripted model call"}},
			Info:    &docagent.GenerationInfo{Attempts: 1},
		}
	}
	m.mu.Unlock()

	if execCtx != nil {
		execCtx.FireBeforeModelCall(&docagent.BeforeModelCallEvent{Model: m.name, Prompt: prompt})
	}
	startTime := time.Now()
	if err == nil && ctx.Err() != nil {
		resp, err = nil, ctx.Err()
	}
	if execCtx != nil {
		execCtx.FireAfterModelCall(&docagent.AfterModelCallEvent{
			Model:    m.name,
			Prompt:   prompt,
			Response: resp,
			Duration: time.Since(startTime),
			Error:    err,
		})
	}
	return resp, err
}

var _ docagent.Model = (*MockModel)(nil)

// -----------------------------------------------------------------------------
// MockTool - implements docagent.Tool
// -----------------------------------------------------------------------------

// MockTool is a docagent.Tool backed by a function that records its inputs.
type MockTool struct {
	mu          sync.Mutex
	name        string
	description string
	fn          func(ctx context.Context, input string) (string, error)

	// Inputs stores the input of every call.
	Inputs []string
}

// NewMockTool creates a tool that returns output for every input.
func NewMockTool(name, output string) *MockTool {
	return NewMockToolFunc(name, func(context.Context, string) (string, error) {
		return output, nil
	})
}

// NewMockToolFunc creates a tool backed by fn.
func NewMockToolFunc(
	name string,
	fn func(ctx context.Context, input string) (string, error),
) *MockTool {
	return &MockTool{
		name:        name,
		description: "Mock tool " + name + ".",
		fn:          fn,
	}
}

// WithDescription overrides the default description.
func (t *MockTool) WithDescription(description string) *MockTool {
	t.description = description
	return t
}

func (t *MockTool) Name() string        { return t.name }
func (t *MockTool) Description() string { return t.description }

// Call records the input and calls the backing function.
func (t *MockTool) Call(ctx context.Context, input string) (string, error) {
	t.mu.Lock()
	t.Inputs = append(t.Inputs, input)
	t.mu.Unlock()
	return t.fn(ctx, input)
}

// CallCount returns the number of calls.
func (t *MockTool) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Inputs)
}

var _ docagent.Tool = (*MockTool)(nil)

// -----------------------------------------------------------------------------
// MockLLM - implements langchaingo llms.Model
// -----------------------------------------------------------------------------

// MockLLM is a scripted LangChainGo llms.Model for testing wrappers around it.
type MockLLM struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	errors    []error
	callCount int

	// Delay is waited (respecting ctx) before each call returns.
	Delay time.Duration

	// CapturedMessages stores the messages of every call.
	CapturedMessages [][]llms.MessageContent

	// CapturedOptions stores the resolved call options of every call.
	CapturedOptions []llms.CallOptions
}

// NewMockLLM creates an empty MockLLM.
func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// AddResponse queues a text response with generation info.
func (m *MockLLM) AddResponse(content string, generationInfo map[string]any) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:        content,
			StopReason:     "stop",
			GenerationInfo: generationInfo,
		}},
	})
	m.errors = append(m.errors, nil)
	return m
}

// AddError queues an error.
func (m *MockLLM) AddError(err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	m.errors = append(m.errors, err)
	return m
}

// CallCount returns the number of GenerateContent calls.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// GenerateContent implements llms.Model.
func (m *MockLLM) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	m.mu.Lock()
	idx := m.callCount
	m.callCount++
	m.CapturedMessages = append(m.CapturedMessages, messages)
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}
	m.CapturedOptions = append(m.CapturedOptions, opts)
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if idx >= len(m.errors) {
		return nil, fmt.Errorf("mock llm: unscripted call %d", idx+1)
	}
	return m.responses[idx], m.errors[idx]
}

// Call implements llms.Model.
func (m *MockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

var _ llms.Model = (*MockLLM)(nil)

// -----------------------------------------------------------------------------
// MockEmbedder - implements langchaingo embeddings.Embedder
// -----------------------------------------------------------------------------

// MockEmbedder embeds text as keyword counts over a fixed vocabulary, so similarity
// search in tests is deterministic and meaningful.
type MockEmbedder struct {
	Vocabulary []string
}

// NewMockEmbedder creates an embedder over the given vocabulary.
func NewMockEmbedder(vocabulary ...string) *MockEmbedder {
	return &MockEmbedder{Vocabulary: vocabulary}
}

// EmbedDocuments embeds each text.
func (e *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// EmbedQuery embeds a single text. A constant last dimension keeps vectors non-zero.
func (e *MockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	v := make([]float32, len(e.Vocabulary)+1)
	for i, word := range e.Vocabulary {
		v[i] = float32(strings.Count(lower, strings.ToLower(word)))
	}
	v[len(e.Vocabulary)] = 0.01
	return v, nil
}
