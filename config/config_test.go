package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickchristie/docagent/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "mistralai/Mistral-7B-Instruct-v0.3", cfg.Agent.Model.Model)
	assert.Equal(t, 5000, cfg.Agent.Model.Generation.MaxTokens)
	assert.False(t, cfg.Agent.Model.Generation.Sampling)
	assert.Equal(t, 0.3, cfg.Agent.Model.Generation.Temperature)
	assert.Equal(t, 1.03, cfg.Agent.Model.Generation.RepetitionPenalty)
	assert.Equal(t, 15, cfg.Agent.MaxIterations)
	assert.Equal(t, 3, cfg.Agent.MaxConsecutiveMalformed)
	assert.Equal(t, 60*time.Second, cfg.Agent.Model.Timeout)
	assert.Equal(t, 2, cfg.Agent.Model.MaxRetries)

	assert.Equal(t, "mistralai/Mistral-7B-Instruct-v0.2", cfg.RAG.Model.Model)
	assert.True(t, cfg.RAG.Model.Generation.Sampling)
	assert.Equal(t, 0.7, cfg.RAG.Model.Generation.Temperature)
	assert.Equal(t, "BAAI/bge-base-en-v1.5", cfg.RAG.Embedding.Model)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 100, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopK)

	assert.Equal(t, 3, cfg.Wikipedia.TopK)
	assert.Equal(t, 2500, cfg.Wikipedia.DocMaxChars)

	assert.Equal(t, 20, cfg.Server.MaxDocuments)
	assert.Equal(t, 8, cfg.Server.MaxAssistants)

	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	type input struct {
		yaml string
		env  map[string]string
	}

	type expected struct {
		err   string
		check func(t *testing.T, cfg *Config)
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "partial file keeps defaults",
			input: input{
				yaml: "rag:\n  top_k: 8\nserver:\n  addr: \":9090\"\n",
			},
			expected: expected{
				check: func(t *testing.T, cfg *Config) {
					assert.Equal(t, 8, cfg.RAG.TopK)
					assert.Equal(t, 1000, cfg.RAG.ChunkSize)
					assert.Equal(t, ":9090", cfg.Server.Addr)
					assert.Equal(t, "mistralai/Mistral-7B-Instruct-v0.3", cfg.Agent.Model.Model)
				},
			},
		},
		{
			name: "env expansion and durations",
			input: input{
				yaml: "agent:\n" +
					"  model:\n" +
					"    provider: openai\n" +
					"    model: ${DOCAGENT_TEST_MODEL}\n" +
					"    timeout: 15s\n" +
					"    max_retries: 0\n" +
					"    generation:\n" +
					"      sampling: true\n" +
					"  max_iterations: 4\n",
				env: map[string]string{"DOCAGENT_TEST_MODEL": "gpt-4o-mini", EnvOpenAIToken: "sk-test"},
			},
			expected: expected{
				check: func(t *testing.T, cfg *Config) {
					assert.Equal(t, models.ProviderOpenAI, cfg.Agent.Model.Provider)
					assert.Equal(t, "gpt-4o-mini", cfg.Agent.Model.Model)
					assert.Equal(t, "sk-test", cfg.Agent.Model.Token)
					assert.Equal(t, 15*time.Second, cfg.Agent.Model.Timeout)
					assert.Equal(t, 0, cfg.Agent.Model.MaxRetries)
					assert.True(t, cfg.Agent.Model.Generation.Sampling)
					assert.Equal(t, 5000, cfg.Agent.Model.Generation.MaxTokens)
					assert.Equal(t, 4, cfg.Agent.MaxIterations)
				},
			},
		},
		{
			name: "token from environment",
			input: input{
				yaml: "log:\n  level: debug\n",
				env:  map[string]string{EnvHuggingFaceToken: "hf_abc"},
			},
			expected: expected{
				check: func(t *testing.T, cfg *Config) {
					assert.Equal(t, "hf_abc", cfg.Agent.Model.Token)
					assert.Equal(t, "hf_abc", cfg.RAG.Model.Token)
					assert.Equal(t, "hf_abc", cfg.RAG.Embedding.Token)
					assert.Empty(t, cfg.MissingCredentials())
				},
			},
		},
		{
			name: "overlap not smaller than chunk size",
			input: input{
				yaml: "rag:\n  chunk_size: 100\n  chunk_overlap: 100\n",
			},
			expected: expected{err: "chunk overlap 100 must be smaller than chunk size 100"},
		},
		{
			name: "unknown provider",
			input: input{
				yaml: "rag:\n  embedding:\n    provider: cohere\n",
			},
			expected: expected{err: `rag.embedding.provider: unknown provider "cohere"`},
		},
		{
			name: "bad log format",
			input: input{
				yaml: "log:\n  format: xml\n",
			},
			expected: expected{err: `log.format: unknown format "xml"`},
		},
		{
			name: "no cached assistants",
			input: input{
				yaml: "server:\n  max_assistants: 0\n",
			},
			expected: expected{err: "server.max_assistants must be positive"},
		},
		{
			name: "invalid yaml",
			input: input{
				yaml: "rag: [\n",
			},
			expected: expected{err: "parse config file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvHuggingFaceToken, "")
			t.Setenv(EnvOpenAIToken, "")
			for k, v := range tt.input.env {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			path := writeFile(t, dir, "docagent.yaml", tt.input.yaml)

			cfg, err := Load(path, filepath.Join(dir, "missing.env"))
			if tt.expected.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expected.err)
				return
			}
			require.NoError(t, err)
			tt.expected.check(t, cfg)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "DOCAGENT_TEST_DOTENV_TOKEN"
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	t.Setenv(EnvHuggingFaceToken, "")

	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", key+"=hf_from_dotenv\n")
	path := writeFile(t, dir, "docagent.yaml",
		"agent:\n  model:\n    token: ${"+key+"}\n")

	cfg, err := Load(path, envPath)
	require.NoError(t, err)
	assert.Equal(t, "hf_from_dotenv", cfg.Agent.Model.Token)
	assert.Empty(t, cfg.RAG.Model.Token)
	assert.Equal(t, []string{EnvHuggingFaceToken}, cfg.MissingCredentials())
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "nope.yaml"), filepath.Join(dir, "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoadNoPath(t *testing.T) {
	t.Setenv(EnvHuggingFaceToken, "hf_xyz")
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "hf_xyz", cfg.RAG.Embedding.Token)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestMissingCredentials(t *testing.T) {
	type expected struct {
		missing []string
	}

	tests := []struct {
		name     string
		input    func() Config
		expected expected
	}{
		{
			name:     "nothing set",
			input:    Default,
			expected: expected{missing: []string{EnvHuggingFaceToken}},
		},
		{
			name: "mixed providers",
			input: func() Config {
				cfg := Default()
				cfg.Agent.Model.Provider = models.ProviderOpenAI
				return cfg
			},
			expected: expected{missing: []string{EnvOpenAIToken, EnvHuggingFaceToken}},
		},
		{
			name: "self-hosted endpoints need no token",
			input: func() Config {
				cfg := Default()
				cfg.Agent.Model.BaseURL = "http://tgi:8080"
				cfg.RAG.Model.BaseURL = "http://tgi:8080"
				cfg.RAG.Embedding.BaseURL = "http://tei:8080"
				return cfg
			},
			expected: expected{},
		},
		{
			name: "token override",
			input: func() Config {
				return Default().WithToken(models.ProviderHuggingFace, "hf_user")
			},
			expected: expected{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.input()
			assert.Equal(t, tt.expected.missing, cfg.MissingCredentials())
		})
	}
}

func TestWithTokenCopies(t *testing.T) {
	base := Default()
	withToken := base.WithToken(models.ProviderHuggingFace, "hf_user")

	assert.Empty(t, base.Agent.Model.Token)
	assert.Equal(t, "hf_user", withToken.Agent.Model.Token)
	assert.Equal(t, "hf_user", withToken.RAG.Embedding.Token)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "", expected: slog.LevelInfo},
		{input: "INFO", expected: slog.LevelInfo},
		{input: "warning", expected: slog.LevelWarn},
		{input: " error ", expected: slog.LevelError},
		{input: "verbose", expected: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: LogFormatJSON}.NewLogger(&buf)

	logger.Info("dropped")
	logger.Warn("kept", "document", "paper.pdf")

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "paper.pdf", record["document"])
}
