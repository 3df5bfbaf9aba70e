package models

import (
	"context"
	"errors"
	"time"

	"github.com/rickchristie/docagent"
	"github.com/tmc/langchaingo/llms"
)

// Default call bounds.
const (
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 2
)

// LCGWrapper wraps an llms.Model and implements docagent's Model interface.
// It sends the rendered prompt as a single human message, bounds every attempt with a
// timeout, retries failed attempts a fixed number of times, normalizes token usage across
// providers, and automatically traces model calls when an ExecutionContext is provided.
//
// Example usage:
//
//	llm, _ := huggingface.New(huggingface.WithToken(token))
//	model := models.NewLCGWrapper(llm).
//		WithModelName("mistralai/Mistral-7B-Instruct-v0.3").
//		WithTimeout(30 * time.Second)
//
//	// With ExecutionContext (automatic tracing)
//	response, err := model.GenerateContent(ctx, execCtx, prompt)
//
//	// Without ExecutionContext (no tracing)
//	response, err := model.GenerateContent(ctx, nil, prompt)
type LCGWrapper struct {
	model      llms.Model
	modelName  string // Optional model name for tracing
	timeout    time.Duration
	maxRetries int
}

// NewLCGWrapper creates a new LCGWrapper wrapping the given llms.Model, with
// [DefaultTimeout] and [DefaultMaxRetries].
func NewLCGWrapper(model llms.Model) *LCGWrapper {
	return &LCGWrapper{
		model:      model,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
	}
}

// WithModelName sets the model name used in trace events and errors.
// Returns the model for chaining.
func (m *LCGWrapper) WithModelName(name string) *LCGWrapper {
	m.modelName = name
	return m
}

// WithTimeout bounds each attempt. Zero disables the per-attempt timeout.
func (m *LCGWrapper) WithTimeout(timeout time.Duration) *LCGWrapper {
	m.timeout = timeout
	return m
}

// WithMaxRetries sets how many times a failed attempt is retried immediately.
// Negative values are treated as zero.
func (m *LCGWrapper) WithMaxRetries(retries int) *LCGWrapper {
	m.maxRetries = max(retries, 0)
	return m
}

// ModelName returns the configured model name.
func (m *LCGWrapper) ModelName() string {
	return m.modelName
}

// Unwrap returns the underlying llms.Model.
func (m *LCGWrapper) Unwrap() llms.Model {
	return m.model
}

// GenerateContent implements docagent.Model.GenerateContent.
//
// Failed attempts, including attempts that hit the per-attempt timeout, are retried up to
// the configured number of times. When ctx itself is done, the call stops immediately and
// the context error is returned. When every attempt fails, the last error is returned
// inside a *docagent.UpstreamServiceError.
func (m *LCGWrapper) GenerateContent(
	ctx context.Context,
	execCtx *docagent.ExecutionContext,
	prompt string,
	options ...llms.CallOption,
) (*docagent.ContentResponse, error) {
	if execCtx != nil {
		execCtx.FireBeforeModelCall(&docagent.BeforeModelCallEvent{
			Model:  m.modelName,
			Prompt: prompt,
		})
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	startTime := time.Now()
	var (
		lcgResponse *llms.ContentResponse
		err         error
		attempts    int
	)
	for attempts < m.maxRetries+1 {
		attempts++
		lcgResponse, err = m.attempt(ctx, messages, options)
		if err == nil || ctx.Err() != nil {
			break
		}
	}
	duration := time.Since(startTime)

	var response *docagent.ContentResponse
	switch {
	case err == nil:
		response = convertLCGResponse(lcgResponse, duration, attempts)
	case ctx.Err() != nil:
		err = errors.Join(ctx.Err(), err)
	default:
		err = &docagent.UpstreamServiceError{
			Service:  m.modelName,
			Attempts: attempts,
			Err:      err,
		}
	}

	if execCtx != nil {
		execCtx.FireAfterModelCall(&docagent.AfterModelCallEvent{
			Model:    m.modelName,
			Prompt:   prompt,
			Response: response,
			Duration: duration,
			Error:    err,
		})
	}

	return response, err
}

func (m *LCGWrapper) attempt(
	ctx context.Context,
	messages []llms.MessageContent,
	options []llms.CallOption,
) (*llms.ContentResponse, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	response, err := m.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return nil, err
	}
	if response == nil || len(response.Choices) == 0 {
		return nil, errors.New("empty response")
	}
	return response, nil
}

// convertLCGResponse converts an llms.ContentResponse to docagent.ContentResponse with
// normalized tokens.
func convertLCGResponse(
	lcgResponse *llms.ContentResponse,
	duration time.Duration,
	attempts int,
) *docagent.ContentResponse {
	response := &docagent.ContentResponse{
		Choices: make([]*docagent.ContentChoice, len(lcgResponse.Choices)),
		Info:    &docagent.GenerationInfo{Duration: duration, Attempts: attempts},
	}

	for i, choice := range lcgResponse.Choices {
		response.Choices[i] = &docagent.ContentChoice{
			Content:    choice.Content,
			StopReason: choice.StopReason,
		}
	}

	// Extract and normalize token info from the first choice's GenerationInfo
	if len(lcgResponse.Choices) > 0 && lcgResponse.Choices[0].GenerationInfo != nil {
		rawInfo := lcgResponse.Choices[0].GenerationInfo
		response.Info.RawGenerationInfo = rawInfo
		response.Info.InputTokens = extractInputTokens(rawInfo)
		response.Info.OutputTokens = extractOutputTokens(rawInfo)
		response.Info.TotalTokens = extractTotalTokens(
			rawInfo,
			response.Info.InputTokens,
			response.Info.OutputTokens,
		)
	}

	return response
}

// extractInputTokens extracts input/prompt token count from GenerationInfo.
// Handles different key names used by different providers.
func extractInputTokens(info map[string]any) int {
	// OpenAI / TGI
	if v := getIntFromMap(info, "PromptTokens"); v > 0 {
		return v
	}
	// Anthropic
	if v := getIntFromMap(info, "InputTokens"); v > 0 {
		return v
	}
	// Google / Bedrock
	if v := getIntFromMap(info, "input_tokens"); v > 0 {
		return v
	}
	return 0
}

// extractOutputTokens extracts output/completion token count from GenerationInfo.
func extractOutputTokens(info map[string]any) int {
	// OpenAI / TGI
	if v := getIntFromMap(info, "CompletionTokens"); v > 0 {
		return v
	}
	// Anthropic
	if v := getIntFromMap(info, "OutputTokens"); v > 0 {
		return v
	}
	// Google / Bedrock
	if v := getIntFromMap(info, "output_tokens"); v > 0 {
		return v
	}
	return 0
}

// extractTotalTokens extracts total token count or computes it.
func extractTotalTokens(info map[string]any, input, output int) int {
	if v := getIntFromMap(info, "TotalTokens"); v > 0 {
		return v
	}
	if v := getIntFromMap(info, "total_tokens"); v > 0 {
		return v
	}
	return input + output
}

// getIntFromMap extracts an int value from a map, handling various numeric types.
func getIntFromMap(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}

// Compile-time check that LCGWrapper implements docagent.Model.
var _ docagent.Model = (*LCGWrapper)(nil)
