// Package config loads docagent settings from YAML, with ${VAR} expansion and .env support.
//
// Loading order:
//
//  1. Default() values
//  2. .env files (missing files are ignored), then the process environment
//  3. the YAML file, after os.ExpandEnv
//  4. tokens still empty are filled from HUGGINGFACEHUB_API_TOKEN / OPENAI_API_KEY
//
// Example config:
//
//	agent:
//	  model:
//	    provider: huggingface
//	    model: mistralai/Mistral-7B-Instruct-v0.3
//	    token: ${HUGGINGFACEHUB_API_TOKEN}
//	    generation:
//	      max_tokens: 5000
//	      temperature: 0.3
//	      repetition_penalty: 1.03
//	  max_iterations: 15
//	rag:
//	  chunk_size: 1000
//	  chunk_overlap: 100
//	  top_k: 5
//	server:
//	  addr: ":8080"
//	log:
//	  level: info
//	  format: json
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rickchristie/docagent"
	"github.com/rickchristie/docagent/models"
	"github.com/rickchristie/docagent/rag"
	"github.com/rickchristie/docagent/tools/wikipedia"
)

// Environment variables consulted for tokens left empty by the YAML file.
const (
	EnvHuggingFaceToken = "HUGGINGFACEHUB_API_TOKEN"
	EnvOpenAIToken      = "OPENAI_API_KEY"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the complete docagent configuration.
type Config struct {
	Agent     AgentConfig      `yaml:"agent"`
	RAG       RAGConfig        `yaml:"rag"`
	Wikipedia wikipedia.Config `yaml:"wikipedia"`
	Server    ServerConfig     `yaml:"server"`
	Log       LogConfig        `yaml:"log"`
}

// ModelConfig is one LLM endpoint together with its decoding and call bounds.
type ModelConfig struct {
	models.ProviderConfig `yaml:",inline"`

	Generation docagent.GenerationOptions `yaml:"generation"`

	// Timeout bounds each attempt.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of immediate retries after a failed attempt.
	MaxRetries int `yaml:"max_retries"`
}

// AgentConfig configures the ReAct agent.
type AgentConfig struct {
	Model ModelConfig `yaml:"model"`

	MaxIterations           int `yaml:"max_iterations"`
	MaxConsecutiveMalformed int `yaml:"max_consecutive_malformed"`
}

// RAGConfig configures chunking, retrieval, embeddings and the answer model.
type RAGConfig struct {
	rag.Config `yaml:",inline"`

	// Model answers research questions. Its max_retries also bounds retrieval retries.
	Model     ModelConfig           `yaml:"model"`
	Embedding models.ProviderConfig `yaml:"embedding"`

	// Database is the DuckDB file holding chunk vectors. Empty means in-memory.
	Database string `yaml:"database"`
}

// ServerConfig configures `docagent serve`.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	// MaxDocuments caps the ingested documents kept in memory. The oldest is dropped first.
	MaxDocuments int `yaml:"max_documents"`

	// MaxAssistants caps the assistants cached per API key. The least recently used is
	// closed first, together with its documents.
	MaxAssistants int `yaml:"max_assistants"`

	// AllowedOrigins enables CORS for these origins. Empty disables CORS.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Agent: AgentConfig{
			Model: ModelConfig{
				ProviderConfig: models.ProviderConfig{
					Provider: models.ProviderHuggingFace,
					Model:    "mistralai/Mistral-7B-Instruct-v0.3",
				},
				Generation: docagent.GenerationOptions{
					MaxTokens:         5000,
					Temperature:       0.3,
					Sampling:          false,
					RepetitionPenalty: 1.03,
				},
				Timeout:    models.DefaultTimeout,
				MaxRetries: models.DefaultMaxRetries,
			},
			MaxIterations:           docagent.DefaultMaxIterations,
			MaxConsecutiveMalformed: docagent.DefaultMaxConsecutiveMalformed,
		},
		RAG: RAGConfig{
			Config: rag.DefaultConfig(),
			Model: ModelConfig{
				ProviderConfig: models.ProviderConfig{
					Provider: models.ProviderHuggingFace,
					Model:    "mistralai/Mistral-7B-Instruct-v0.2",
				},
				Generation: docagent.GenerationOptions{
					MaxTokens:         1024,
					Temperature:       0.7,
					Sampling:          true,
					RepetitionPenalty: 1.03,
				},
				Timeout:    models.DefaultTimeout,
				MaxRetries: models.DefaultMaxRetries,
			},
			Embedding: models.ProviderConfig{
				Provider: models.ProviderHuggingFace,
				Model:    "BAAI/bge-base-en-v1.5",
			},
		},
		Wikipedia: wikipedia.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 32 << 20,
			MaxDocuments:   20,
			MaxAssistants:  8,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
	}
}

// Load reads the YAML file at path on top of Default(). An empty path skips the file and
// returns the defaults with environment tokens applied. envFiles are loaded first with
// godotenv; when none are given, ".env" is tried. Missing .env files are not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		rawBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		contentWithEnv := os.ExpandEnv(string(rawBytes))
		if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvTokens()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		// godotenv.Load never overrides variables already set in the process.
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", file, err)
		}
	}
	return nil
}

func (c *Config) applyEnvTokens() {
	for _, p := range c.providers() {
		if p.Token == "" {
			p.Token = os.Getenv(tokenEnv(p.Provider))
		}
	}
}

// providers returns pointers to every provider block, so callers can fill them in.
func (c *Config) providers() []*models.ProviderConfig {
	return []*models.ProviderConfig{
		&c.Agent.Model.ProviderConfig,
		&c.RAG.Model.ProviderConfig,
		&c.RAG.Embedding,
	}
}

func tokenEnv(provider string) string {
	if provider == models.ProviderOpenAI {
		return EnvOpenAIToken
	}
	return EnvHuggingFaceToken
}

// Validate rejects impossible values. Missing tokens are not checked here, see
// MissingCredentials.
func (c *Config) Validate() error {
	var errs []error

	blocks := []struct {
		name string
		cfg  models.ProviderConfig
	}{
		{"agent.model", c.Agent.Model.ProviderConfig},
		{"rag.model", c.RAG.Model.ProviderConfig},
		{"rag.embedding", c.RAG.Embedding},
	}
	for _, b := range blocks {
		switch b.cfg.Provider {
		case models.ProviderHuggingFace, models.ProviderOpenAI:
		default:
			errs = append(errs, fmt.Errorf("%s.provider: unknown provider %q", b.name, b.cfg.Provider))
		}
		if b.cfg.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", b.name))
		}
	}

	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations))
	}
	if c.Agent.MaxConsecutiveMalformed <= 0 {
		errs = append(errs, fmt.Errorf(
			"agent.max_consecutive_malformed must be positive, got %d", c.Agent.MaxConsecutiveMalformed))
	}
	for name, m := range map[string]ModelConfig{"agent.model": c.Agent.Model, "rag.model": c.RAG.Model} {
		if m.Timeout < 0 {
			errs = append(errs, fmt.Errorf("%s.timeout must not be negative", name))
		}
		if m.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("%s.max_retries must not be negative", name))
		}
	}

	if err := c.RAG.Config.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("rag: %w", err))
	}

	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive"))
	}
	if c.Server.MaxDocuments <= 0 {
		errs = append(errs, fmt.Errorf("server.max_documents must be positive"))
	}
	if c.Server.MaxAssistants <= 0 {
		errs = append(errs, fmt.Errorf("server.max_assistants must be positive"))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// MissingCredentials returns the environment variables that would supply the tokens the
// configured hosted providers still lack. A provider with a BaseURL is assumed to be
// self-hosted and needs no token.
func (c *Config) MissingCredentials() []string {
	var missing []string
	seen := map[string]bool{}
	for _, p := range c.providers() {
		if p.Token != "" || p.BaseURL != "" {
			continue
		}
		env := tokenEnv(p.Provider)
		if !seen[env] {
			seen[env] = true
			missing = append(missing, env)
		}
	}
	return missing
}

// WithToken returns a copy whose providers of the given kind all use token.
func (c Config) WithToken(provider, token string) Config {
	for _, p := range c.providers() {
		if p.Provider == provider {
			p.Token = token
		}
	}
	return c
}

// ---
// Logging

// ParseLevel maps "debug", "info", "warn" and "error" (case-insensitive) to slog levels.
// Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", level)
	}
}

// NewLogger builds the slog logger described by the config, writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
