package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rickchristie/docagent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		records = append(records, record)
	}
	return records
}

func TestSlogHook(t *testing.T) {
	type input struct {
		level slog.Level
		fire  func(h *SlogHook, execCtx *docagent.ExecutionContext)
	}

	type expected struct {
		messages []string
		attrs    map[string]any
		levels   []string
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "tool call success",
			input: input{
				level: slog.LevelInfo,
				fire: func(h *SlogHook, execCtx *docagent.ExecutionContext) {
					h.OnBeforeToolCall(execCtx, &docagent.BeforeToolCallEvent{
						ToolName: "calculator", Input: "2 + 2",
					})
					h.OnAfterToolCall(execCtx, &docagent.AfterToolCallEvent{
						ToolName: "calculator", Input: "2 + 2", Output: "4",
						Duration: time.Millisecond,
					})
				},
			},
			expected: expected{
				messages: []string{"tool call finished"},
				attrs:    map[string]any{"tool": "calculator", "input": "2 + 2", "execution": "test"},
				levels:   []string{"INFO"},
			},
		},
		{
			name: "tool call failure",
			input: input{
				level: slog.LevelInfo,
				fire: func(h *SlogHook, execCtx *docagent.ExecutionContext) {
					h.OnAfterToolCall(execCtx, &docagent.AfterToolCallEvent{
						ToolName: "wikipedia",
						Error:    errors.New("timeout"),
					})
				},
			},
			expected: expected{
				messages: []string{"tool call failed"},
				attrs:    map[string]any{"tool": "wikipedia", "error": "timeout"},
				levels:   []string{"WARN"},
			},
		},
		{
			name: "parse error with raw output at debug",
			input: input{
				level: slog.LevelDebug,
				fire: func(h *SlogHook, execCtx *docagent.ExecutionContext) {
					h.OnParseError(execCtx, &docagent.ParseErrorEvent{
						Raw:         "nonsense",
						Err:         docagent.NewMalformedOutputError("nonsense", "no blob"),
						Consecutive: 2,
					})
				},
			},
			expected: expected{
				messages: []string{"malformed model output", "malformed model output raw"},
				attrs:    map[string]any{"consecutive": float64(2)},
				levels:   []string{"WARN", "DEBUG"},
			},
		},
		{
			name: "model call with token usage",
			input: input{
				level: slog.LevelInfo,
				fire: func(h *SlogHook, execCtx *docagent.ExecutionContext) {
					h.OnAfterModelCall(execCtx, &docagent.AfterModelCallEvent{
						Model: "mistral",
						Response: &docagent.ContentResponse{
							Choices: []*docagent.ContentChoice{{Content: "Final Answer: 4"}},
							Info: &docagent.GenerationInfo{
								InputTokens: 120, OutputTokens: 8, Attempts: 1,
							},
						},
					})
				},
			},
			expected: expected{
				messages: []string{"model call finished"},
				attrs: map[string]any{
					"model":         "mistral",
					"input_tokens":  float64(120),
					"output_tokens": float64(8),
				},
				levels: []string{"INFO"},
			},
		},
		{
			name: "failed execution logs error",
			input: input{
				level: slog.LevelInfo,
				fire: func(h *SlogHook, execCtx *docagent.ExecutionContext) {
					h.OnAfterExecution(execCtx, &docagent.AfterExecutionEvent{
						TerminationReason: docagent.TerminationLimitExceeded,
						Error:             docagent.ErrIterationLimitExceeded,
					})
				},
			},
			expected: expected{
				messages: []string{"execution failed"},
				attrs: map[string]any{
					"termination_reason": "limit_exceeded",
					"error":              "iteration limit exceeded",
				},
				levels: []string{"ERROR"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: tc.input.level}))
			hook := NewSlogHook(logger)
			execCtx := docagent.NewExecutionContext(context.Background(), "test", nil)

			tc.input.fire(hook, execCtx)

			records := decodeRecords(t, &buf)
			require.Len(t, records, len(tc.expected.messages))
			for i, record := range records {
				assert.Equal(t, tc.expected.messages[i], record["msg"])
				assert.Equal(t, tc.expected.levels[i], record["level"])
			}
			for key, value := range tc.expected.attrs {
				assert.Equal(t, value, records[0][key], "attribute %s", key)
			}
		})
	}
}

func TestNewSlogHook_NilLogger(t *testing.T) {
	hook := NewSlogHook(nil)
	assert.NotNil(t, hook.logger)
}
