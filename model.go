package docagent

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Model is docagent's model interface. It wraps LangChainGo's llms.Model as a text-completion
// endpoint: the caller sends one fully rendered prompt and receives one completion, with
// normalized token usage information and automatic tracing.
//
// When an ExecutionContext is provided, the model fires model call hooks and traces the call.
// If execCtx is nil, tracing is skipped.
type Model interface {
	// GenerateContent completes the given prompt.
	GenerateContent(
		ctx context.Context,
		execCtx *ExecutionContext,
		prompt string,
		options ...llms.CallOption,
	) (
		*ContentResponse,
		error,
	)
}

// ContentResponse is the response from a GenerateContent call.
type ContentResponse struct {
	// Choices contains the generated content choices.
	Choices []*ContentChoice

	// Info contains generation metadata including normalized token counts.
	Info *GenerationInfo
}

// Text returns the content of the first choice, or "" if there is none.
func (r *ContentResponse) Text() string {
	if r == nil || len(r.Choices) == 0 || r.Choices[0] == nil {
		return ""
	}
	return r.Choices[0].Content
}

// ContentChoice is a single content choice from the model.
type ContentChoice struct {
	// Content is the textual content of the response.
	Content string

	// StopReason is the reason the model stopped generating.
	StopReason string
}

// GenerationInfo contains metadata about the generation including normalized token counts.
type GenerationInfo struct {
	// InputTokens is the number of input/prompt tokens used.
	// This is normalized across providers:
	//   - OpenAI / Hugging Face TGI: PromptTokens
	//   - Anthropic: InputTokens
	//   - Google / Bedrock: input_tokens
	InputTokens int

	// OutputTokens is the number of output/completion tokens generated.
	OutputTokens int

	// TotalTokens is the total token count (InputTokens + OutputTokens).
	// Some providers return this directly; otherwise it's computed.
	TotalTokens int

	// RawGenerationInfo contains the original provider-specific GenerationInfo map.
	RawGenerationInfo map[string]any

	// Duration is how long the generation took, across all attempts.
	Duration time.Duration

	// Attempts is how many calls were made to obtain this response.
	Attempts int
}

// GenerationOptions are the sampling knobs exposed through configuration.
type GenerationOptions struct {
	// MaxTokens is the maximum number of new tokens to generate. It is sent both as
	// max_tokens and as the Hugging Face max_length parameter.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature"`

	// Sampling enables stochastic decoding. When false the model decodes greedily.
	Sampling bool `yaml:"sampling"`

	// RepetitionPenalty penalizes repeated tokens. Zero leaves the provider default.
	RepetitionPenalty float64 `yaml:"repetition_penalty"`
}

// CallOptions converts the options to LangChainGo call options.
// Greedy decoding is expressed as top-k 1, since hosted text-generation endpoints ignore the
// temperature when sampling is disabled.
func (o GenerationOptions) CallOptions() []llms.CallOption {
	var opts []llms.CallOption
	if o.MaxTokens > 0 {
		// Hugging Face text generation reads the length from MaxLength only.
		opts = append(opts, llms.WithMaxTokens(o.MaxTokens), llms.WithMaxLength(o.MaxTokens))
	}
	opts = append(opts, llms.WithTemperature(o.Temperature))
	if !o.Sampling {
		opts = append(opts, llms.WithTopK(1))
	}
	if o.RepetitionPenalty > 0 {
		opts = append(opts, llms.WithRepetitionPenalty(o.RepetitionPenalty))
	}
	return opts
}
