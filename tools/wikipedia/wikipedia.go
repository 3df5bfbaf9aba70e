// Package wikipedia provides the agent's encyclopedia tool.
//
// Lookups go through LangChainGo's Wikipedia tool behind a rate limiter, so concurrent
// queries sharing one tool stay polite to the public API. The tool expects a single
// concept per call; the description tells the model to split comparisons into separate
// calls, and nothing else enforces it.
package wikipedia

import (
	"context"
	"fmt"
	"strings"

	"github.com/rickchristie/docagent"
	lcgwikipedia "github.com/tmc/langchaingo/tools/wikipedia"
	"golang.org/x/time/rate"
)

// Name is the tool name the model uses in actions.
const Name = "wikipedia"

// NoResultMessage is the observation when a search finds nothing.
const NoResultMessage = "No good Wikipedia Search Result was found"

const description = "Use when you need to search for information that you do not know " +
	"about. NEVER EVER search for more than one concept at a single step. If you need to " +
	"compare two concepts, search for each one individually one by one. " +
	"Syntax: string with a simple concept"

// Config holds the Wikipedia lookup settings.
type Config struct {
	// TopK is how many pages are fetched per search.
	TopK int `yaml:"top_k"`

	// DocMaxChars truncates each page's content.
	DocMaxChars int `yaml:"doc_max_chars"`

	// LanguageCode selects the Wikipedia edition (e.g., "en").
	LanguageCode string `yaml:"language_code"`

	// UserAgent identifies the client to the Wikipedia API.
	UserAgent string `yaml:"user_agent"`

	// RequestsPerSecond limits lookups across all queries. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		TopK:              3,
		DocMaxChars:       2500,
		LanguageCode:      "en",
		UserAgent:         "docagent/1.0 (https://github.com/rickchristie/docagent)",
		RequestsPerSecond: 2,
	}
}

// Searcher performs the actual lookup. LangChainGo's wikipedia.Tool satisfies it.
type Searcher interface {
	Call(ctx context.Context, input string) (string, error)
}

// Tool is the rate-limited Wikipedia tool.
type Tool struct {
	searcher Searcher
	limiter  *rate.Limiter
}

// New creates a Tool backed by LangChainGo's Wikipedia client. Zero config fields take
// their values from DefaultConfig.
func New(cfg Config) *Tool {
	def := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.DocMaxChars <= 0 {
		cfg.DocMaxChars = def.DocMaxChars
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = def.LanguageCode
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	client := lcgwikipedia.New(cfg.UserAgent)
	client.TopK = cfg.TopK
	client.DocMaxChars = cfg.DocMaxChars
	client.LanguageCode = cfg.LanguageCode

	return NewWithSearcher(client, cfg.RequestsPerSecond)
}

// NewWithSearcher creates a Tool over any Searcher.
func NewWithSearcher(searcher Searcher, requestsPerSecond float64) *Tool {
	t := &Tool{searcher: searcher}
	if requestsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return t
}

func (t *Tool) Name() string {
	return Name
}

func (t *Tool) Description() string {
	return description
}

// Call looks up a single concept.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "Wikipedia needs a concept to search for. Try again with a simple concept.", nil
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wikipedia rate limiter: %w", err)
		}
	}

	result, err := t.searcher.Call(ctx, query)
	if err != nil {
		return "", fmt.Errorf("wikipedia search %q: %w", query, err)
	}
	if strings.TrimSpace(result) == "" {
		return NoResultMessage, nil
	}
	return result, nil
}

// Compile-time check that Tool implements docagent.Tool.
var _ docagent.Tool = (*Tool)(nil)
