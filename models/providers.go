package models

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	hfembeddings "github.com/tmc/langchaingo/embeddings/huggingface"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/huggingface"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported providers.
const (
	// ProviderHuggingFace uses the Hugging Face inference API (text generation and
	// feature extraction).
	ProviderHuggingFace = "huggingface"

	// ProviderOpenAI uses the OpenAI API or any OpenAI-compatible endpoint.
	ProviderOpenAI = "openai"
)

// ProviderConfig selects and authenticates an LLM or embedding endpoint.
type ProviderConfig struct {
	// Provider is ProviderHuggingFace or ProviderOpenAI.
	Provider string `yaml:"provider"`

	// Model is the provider's model identifier, e.g. "mistralai/Mistral-7B-Instruct-v0.3".
	Model string `yaml:"model"`

	// Token is the API token. Required by both hosted providers.
	Token string `yaml:"token"`

	// BaseURL overrides the provider endpoint, e.g. a self-hosted TGI server or an
	// OpenAI-compatible gateway.
	BaseURL string `yaml:"base_url"`
}

// NewLLM creates the LangChainGo model for the provider.
//
// Example:
//
//	llm, err := models.NewLLM(models.ProviderConfig{
//	    Provider: models.ProviderHuggingFace,
//	    Model:    "mistralai/Mistral-7B-Instruct-v0.3",
//	    Token:    os.Getenv("HUGGINGFACEHUB_API_TOKEN"),
//	})
func NewLLM(cfg ProviderConfig) (llms.Model, error) {
	switch cfg.Provider {
	case ProviderHuggingFace:
		opts := []huggingface.Option{
			huggingface.WithModel(cfg.Model),
			huggingface.WithToken(cfg.Token),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, huggingface.WithURL(cfg.BaseURL))
		}
		llm, err := huggingface.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create huggingface model %q: %w", cfg.Model, err)
		}
		return llm, nil

	case ProviderOpenAI:
		llm, err := newOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		return llm, nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// NewModel creates an LCGWrapper for the provider, named after the configured model.
func NewModel(cfg ProviderConfig) (*LCGWrapper, error) {
	llm, err := NewLLM(cfg)
	if err != nil {
		return nil, err
	}
	return NewLCGWrapper(llm).WithModelName(cfg.Model), nil
}

// NewEmbedder creates an embeddings.Embedder for the provider.
func NewEmbedder(cfg ProviderConfig) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case ProviderHuggingFace:
		opts := []huggingface.Option{huggingface.WithToken(cfg.Token)}
		if cfg.BaseURL != "" {
			opts = append(opts, huggingface.WithURL(cfg.BaseURL))
		}
		client, err := huggingface.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create huggingface client: %w", err)
		}
		embedder, err := hfembeddings.NewHuggingface(
			hfembeddings.WithClient(*client),
			hfembeddings.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create huggingface embedder %q: %w", cfg.Model, err)
		}
		return embedder, nil

	case ProviderOpenAI:
		llm, err := openai.New(
			openai.WithToken(cfg.Token),
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithBaseURL(orDefault(cfg.BaseURL, "https://api.openai.com/v1")),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder %q: %w", cfg.Model, err)
		}
		embedder, err := embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder %q: %w", cfg.Model, err)
		}
		return embedder, nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newOpenAI(cfg ProviderConfig) (*openai.LLM, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.Token),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai model %q: %w", cfg.Model, err)
	}
	return llm, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
