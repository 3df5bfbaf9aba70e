package hooks

import (
	"context"
	"log/slog"

	"github.com/rickchristie/docagent"
)

// SlogHook logs every execution event as a structured slog record.
//
// Levels:
//   - Debug: iterations, state changes, model and tool call starts
//   - Info: execution start and end, completed model and tool calls
//   - Warn: malformed model output, failed tool calls
//   - Error: execution errors and failed model calls
//
// Prompts and raw model output are only logged at Debug.
type SlogHook struct {
	logger *slog.Logger
}

// NewSlogHook creates a SlogHook. A nil logger uses slog.Default().
func NewSlogHook(logger *slog.Logger) *SlogHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogHook{logger: logger}
}

func (h *SlogHook) log(
	execCtx *docagent.ExecutionContext,
	level slog.Level,
	msg string,
	attrs ...slog.Attr,
) {
	ctx := context.Background()
	if execCtx != nil {
		attrs = append(attrs,
			slog.String("execution", execCtx.Name()),
			slog.Int("iteration", execCtx.Iteration()),
		)
	}
	h.logger.LogAttrs(ctx, level, msg, attrs...)
}

// ----------------------------------------------------------------------------
// Executor lifecycle
// ----------------------------------------------------------------------------

func (h *SlogHook) OnBeforeExecution(
	execCtx *docagent.ExecutionContext,
	event *docagent.BeforeExecutionEvent,
) {
	h.log(execCtx, slog.LevelInfo, "execution started", slog.String("task", event.Task))
}

func (h *SlogHook) OnAfterExecution(
	execCtx *docagent.ExecutionContext,
	event *docagent.AfterExecutionEvent,
) {
	stats := execCtx.Stats()
	attrs := []slog.Attr{
		slog.String("termination_reason", string(event.TerminationReason)),
		slog.Duration("duration", execCtx.Duration()),
		slog.Int64("model_calls", stats.GetCounter(docagent.KeyModelCalls)),
		slog.Int64("tool_calls", stats.GetToolCallCount()),
		slog.Int64("parse_errors", stats.GetParseErrorTotal()),
		slog.Int64("input_tokens", stats.GetTotalInputTokens()),
		slog.Int64("output_tokens", stats.GetTotalOutputTokens()),
	}
	if event.Error != nil {
		attrs = append(attrs, slog.String("error", event.Error.Error()))
		h.log(execCtx, slog.LevelError, "execution failed", attrs...)
		return
	}
	h.log(execCtx, slog.LevelInfo, "execution finished", attrs...)
}

func (h *SlogHook) OnBeforeIteration(
	execCtx *docagent.ExecutionContext,
	_ *docagent.BeforeIterationEvent,
) {
	h.log(execCtx, slog.LevelDebug, "iteration started")
}

func (h *SlogHook) OnAfterIteration(
	execCtx *docagent.ExecutionContext,
	event *docagent.AfterIterationEvent,
) {
	attrs := []slog.Attr{slog.Duration("duration", event.Duration)}
	if event.Result != nil {
		attrs = append(attrs, slog.String("action", string(event.Result.Action)))
	}
	h.log(execCtx, slog.LevelDebug, "iteration finished", attrs...)
}

func (h *SlogHook) OnError(execCtx *docagent.ExecutionContext, event *docagent.ErrorEvent) {
	h.log(execCtx, slog.LevelError, "execution error", slog.String("error", event.Err.Error()))
}

func (h *SlogHook) OnStateChange(
	execCtx *docagent.ExecutionContext,
	event *docagent.StateChangeEvent,
) {
	h.log(execCtx, slog.LevelDebug, "state changed",
		slog.String("from", event.From.String()),
		slog.String("to", event.To.String()),
	)
}

func (h *SlogHook) OnParseError(
	execCtx *docagent.ExecutionContext,
	event *docagent.ParseErrorEvent,
) {
	h.log(execCtx, slog.LevelWarn, "malformed model output",
		slog.String("error", event.Err.Error()),
		slog.Int("consecutive", event.Consecutive),
	)
	h.log(execCtx, slog.LevelDebug, "malformed model output raw", slog.String("raw", event.Raw))
}

// ----------------------------------------------------------------------------
// Model calls
// ----------------------------------------------------------------------------

func (h *SlogHook) OnBeforeModelCall(
	execCtx *docagent.ExecutionContext,
	event *docagent.BeforeModelCallEvent,
) {
	h.log(execCtx, slog.LevelDebug, "model call started",
		slog.String("model", event.Model),
		slog.Int("prompt_chars", len(event.Prompt)),
	)
}

func (h *SlogHook) OnAfterModelCall(
	execCtx *docagent.ExecutionContext,
	event *docagent.AfterModelCallEvent,
) {
	attrs := []slog.Attr{
		slog.String("model", event.Model),
		slog.Duration("duration", event.Duration),
	}
	if event.Error != nil {
		attrs = append(attrs, slog.String("error", event.Error.Error()))
		h.log(execCtx, slog.LevelError, "model call failed", attrs...)
		return
	}
	if info := event.Response.Info; info != nil {
		attrs = append(attrs,
			slog.Int("input_tokens", info.InputTokens),
			slog.Int("output_tokens", info.OutputTokens),
			slog.Int("attempts", info.Attempts),
		)
	}
	h.log(execCtx, slog.LevelInfo, "model call finished", attrs...)
	h.log(execCtx, slog.LevelDebug, "model output", slog.String("text", event.Response.Text()))
}

// ----------------------------------------------------------------------------
// Tool calls
// ----------------------------------------------------------------------------

func (h *SlogHook) OnBeforeToolCall(
	execCtx *docagent.ExecutionContext,
	event *docagent.BeforeToolCallEvent,
) {
	h.log(execCtx, slog.LevelDebug, "tool call started",
		slog.String("tool", event.ToolName),
		slog.String("input", event.Input),
	)
}

func (h *SlogHook) OnAfterToolCall(
	execCtx *docagent.ExecutionContext,
	event *docagent.AfterToolCallEvent,
) {
	attrs := []slog.Attr{
		slog.String("tool", event.ToolName),
		slog.String("input", event.Input),
		slog.Duration("duration", event.Duration),
	}
	if event.Error != nil {
		attrs = append(attrs, slog.String("error", event.Error.Error()))
		h.log(execCtx, slog.LevelWarn, "tool call failed", attrs...)
		return
	}
	h.log(execCtx, slog.LevelInfo, "tool call finished", attrs...)
}

// Compile-time checks that SlogHook implements every hook interface.
var (
	_ docagent.BeforeExecutionHook = (*SlogHook)(nil)
	_ docagent.AfterExecutionHook  = (*SlogHook)(nil)
	_ docagent.BeforeIterationHook = (*SlogHook)(nil)
	_ docagent.AfterIterationHook  = (*SlogHook)(nil)
	_ docagent.ErrorHook           = (*SlogHook)(nil)
	_ docagent.StateChangeHook     = (*SlogHook)(nil)
	_ docagent.ParseErrorHook      = (*SlogHook)(nil)
	_ docagent.BeforeModelCallHook = (*SlogHook)(nil)
	_ docagent.AfterModelCallHook  = (*SlogHook)(nil)
	_ docagent.BeforeToolCallHook  = (*SlogHook)(nil)
	_ docagent.AfterToolCallHook   = (*SlogHook)(nil)
)
