package docagent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ExecutionContext is the per-query context passed through everything in the framework.
// It carries the Go context, the LoopData, the reasoning loop state, stats with limit
// enforcement, and the trace log.
//
// All framework components (Model, ToolChain, AgentLoop, hooks) receive the
// ExecutionContext, so tracing and limit checks need no manual wiring.
//
// # Limits
//
// Limits are checked whenever stats change. When one is exceeded, the internal context is
// cancelled and [ExecutionContext.ExceededLimit] reports which limit fired. The executor
// observes this before the next model call.
//
// # Thread Safety
//
// All methods are safe for concurrent use. One ExecutionContext serves exactly one query.
type ExecutionContext struct {
	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	// Execution name (e.g., "ask", "chat")
	name string

	// Per-query loop data
	data LoopData

	iteration int
	state     State

	// All trace events (append-only log)
	events []TraceEvent

	stats         *ExecutionStats
	limits        []Limit
	exceededLimit *Limit

	hookFirer HookFirer

	startTime time.Time
	endTime   time.Time

	terminationReason TerminationReason
	finalResult       string
	err               error
}

// NewExecutionContext creates an ExecutionContext with [DefaultLimits].
// Cancelling ctx aborts the query at the next check point.
func NewExecutionContext(ctx context.Context, name string, data LoopData) *ExecutionContext {
	if ctx == nil {
		ctx = context.Background()
	}
	inner, cancel := context.WithCancel(ctx)
	execCtx := &ExecutionContext{
		ctx:       inner,
		cancel:    cancel,
		name:      name,
		data:      data,
		state:     StateThinking,
		events:    make([]TraceEvent, 0),
		limits:    DefaultLimits(),
		startTime: time.Now(),
	}
	execCtx.stats = newExecutionStatsWithContext(execCtx)
	return execCtx
}

// -----------------------------------------------------------------------------
// Data Access
// -----------------------------------------------------------------------------

// Context returns the Go context for blocking calls. It is cancelled when the parent is
// cancelled, when a limit is exceeded, or when execution terminates.
func (ctx *ExecutionContext) Context() context.Context {
	return ctx.ctx
}

type execCtxKey struct{}

// WithExecutionContext returns a copy of parent carrying execCtx. Tool chains pass it to
// tools so model calls made inside a tool are attributed to the same query.
func WithExecutionContext(parent context.Context, execCtx *ExecutionContext) context.Context {
	return context.WithValue(parent, execCtxKey{}, execCtx)
}

// ExecutionContextFrom returns the ExecutionContext carried by ctx, or nil.
func ExecutionContextFrom(ctx context.Context) *ExecutionContext {
	execCtx, _ := ctx.Value(execCtxKey{}).(*ExecutionContext)
	return execCtx
}

// Data returns the LoopData.
func (ctx *ExecutionContext) Data() LoopData {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.data
}

// Name returns the name of this execution context.
func (ctx *ExecutionContext) Name() string {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.name
}

// Stats returns the live stats. Modifying them triggers limit checks.
func (ctx *ExecutionContext) Stats() *ExecutionStats {
	return ctx.stats
}

// -----------------------------------------------------------------------------
// Limits
// -----------------------------------------------------------------------------

// SetLimits replaces the limits. Call before execution starts.
func (ctx *ExecutionContext) SetLimits(limits []Limit) {
	ctx.mu.Lock()
	ctx.limits = append([]Limit(nil), limits...)
	ctx.mu.Unlock()
	ctx.checkLimits()
}

// Limits returns a copy of the configured limits.
func (ctx *ExecutionContext) Limits() []Limit {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return append([]Limit(nil), ctx.limits...)
}

// ExceededLimit returns the first limit that was exceeded, or nil.
func (ctx *ExecutionContext) ExceededLimit() *Limit {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.exceededLimit
}

// checkLimits compares stats against limits and cancels execution on the first violation.
// Must be called without ctx.mu held.
func (ctx *ExecutionContext) checkLimits() {
	ctx.mu.Lock()
	if ctx.exceededLimit != nil {
		ctx.mu.Unlock()
		return
	}

	for i := range ctx.limits {
		limit := ctx.limits[i]
		key, value, exceeded := ctx.evaluateLimit(limit)
		if !exceeded {
			continue
		}
		ctx.exceededLimit = &limit
		ctx.appendEventLocked(LimitExceededTrace{
			BaseTrace:    ctx.baseTraceLocked(),
			Limit:        limit,
			CurrentValue: value,
			MatchedKey:   key,
		})
		ctx.mu.Unlock()
		ctx.cancel()
		return
	}
	ctx.mu.Unlock()
}

func (ctx *ExecutionContext) evaluateLimit(limit Limit) (StatKey, float64, bool) {
	switch limit.Type {
	case LimitKeyPrefix:
		var (
			matched  StatKey
			value    float64
			exceeded bool
		)
		ctx.stats.forEach(func(key StatKey, v float64) {
			if exceeded || !strings.HasPrefix(string(key), string(limit.Key)) {
				return
			}
			if v > limit.MaxValue {
				matched, value, exceeded = key, v, true
			}
		})
		return matched, value, exceeded
	default:
		v, ok := ctx.stats.value(limit.Key)
		return limit.Key, v, ok && v > limit.MaxValue
	}
}

// -----------------------------------------------------------------------------
// Iteration & State
// -----------------------------------------------------------------------------

// Iteration returns the current iteration number (1-indexed).
// Returns 0 if no iteration has started.
func (ctx *ExecutionContext) Iteration() int {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.iteration
}

// StartIteration begins a new iteration: it increments [KeyIterations] (which may exceed
// the iteration limit) and records an IterationStartTrace.
// Called by the Executor at the start of each iteration.
func (ctx *ExecutionContext) StartIteration() {
	ctx.mu.Lock()
	ctx.iteration++
	ctx.appendEventLocked(IterationStartTrace{BaseTrace: ctx.baseTraceLocked()})
	ctx.mu.Unlock()

	ctx.stats.incrCounterInternal(KeyIterations, 1)
}

// EndIteration records an IterationEndTrace.
// Called by the Executor at the end of each iteration.
func (ctx *ExecutionContext) EndIteration(action LoopAction, duration time.Duration) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.appendEventLocked(IterationEndTrace{
		BaseTrace: ctx.baseTraceLocked(),
		Duration:  duration,
		Action:    action,
	})
}

// State returns the current reasoning loop state.
func (ctx *ExecutionContext) State() State {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.state
}

// SetState moves the reasoning loop to the given state, tracing the transition and firing
// StateChange hooks. Setting the current state again is a no-op, as is leaving a terminal
// state.
func (ctx *ExecutionContext) SetState(to State) {
	ctx.mu.Lock()
	from := ctx.state
	if from == to || from.Terminal() {
		ctx.mu.Unlock()
		return
	}
	ctx.state = to
	ctx.appendEventLocked(StateTransitionTrace{
		BaseTrace: ctx.baseTraceLocked(),
		From:      from,
		To:        to,
	})
	firer := ctx.hookFirer
	ctx.mu.Unlock()

	if firer != nil {
		firer.FireStateChange(ctx, &StateChangeEvent{From: from, To: to})
	}
}

// -----------------------------------------------------------------------------
// Tracing
// -----------------------------------------------------------------------------

// Trace records a trace event. Zero BaseTrace fields are filled from the context.
func (ctx *ExecutionContext) Trace(event TraceEvent) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.appendEventLocked(ctx.populateBaseTrace(event))
}

// TraceCustom is a convenience method for recording custom trace events.
func (ctx *ExecutionContext) TraceCustom(name string, data map[string]any) {
	ctx.Trace(CustomTrace{Name: name, Data: data})
}

// Events returns a copy of all recorded trace events.
func (ctx *ExecutionContext) Events() []TraceEvent {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	result := make([]TraceEvent, len(ctx.events))
	copy(result, ctx.events)
	return result
}

func (ctx *ExecutionContext) populateBaseTrace(event TraceEvent) TraceEvent {
	fill := func(b *BaseTrace) {
		if b.Timestamp.IsZero() {
			b.Timestamp = time.Now()
		}
		if b.Iteration == 0 {
			b.Iteration = ctx.iteration
		}
	}
	switch e := event.(type) {
	case ModelCallTrace:
		fill(&e.BaseTrace)
		return e
	case ToolCallTrace:
		fill(&e.BaseTrace)
		return e
	case ParseErrorTrace:
		fill(&e.BaseTrace)
		return e
	case CustomTrace:
		fill(&e.BaseTrace)
		return e
	}
	return event
}

// appendEventLocked appends an event to the log. Must be called with lock held.
func (ctx *ExecutionContext) appendEventLocked(event TraceEvent) {
	ctx.events = append(ctx.events, event)
}

// baseTraceLocked creates a BaseTrace with current context. Must be called with lock held.
func (ctx *ExecutionContext) baseTraceLocked() BaseTrace {
	return BaseTrace{
		Timestamp: time.Now(),
		Iteration: ctx.iteration,
	}
}

// -----------------------------------------------------------------------------
// Hook Firing
// -----------------------------------------------------------------------------

// SetHookFirer installs the hook dispatcher. Called by the Executor.
func (ctx *ExecutionContext) SetHookFirer(firer HookFirer) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.hookFirer = firer
}

func (ctx *ExecutionContext) firer() HookFirer {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.hookFirer
}

// FireBeforeModelCall fires BeforeModelCall hooks.
func (ctx *ExecutionContext) FireBeforeModelCall(event *BeforeModelCallEvent) {
	if f := ctx.firer(); f != nil {
		f.FireBeforeModelCall(ctx, event)
	}
}

// FireAfterModelCall records model stats and a ModelCallTrace, then fires AfterModelCall
// hooks.
func (ctx *ExecutionContext) FireAfterModelCall(event *AfterModelCallEvent) {
	trace := ModelCallTrace{
		Model:    event.Model,
		Duration: event.Duration,
		Error:    event.Error,
	}
	ctx.stats.IncrCounter(KeyModelCalls, 1)
	if event.Error != nil {
		ctx.stats.IncrCounter(KeyModelCallErrors, 1)
	}
	if event.Response != nil && event.Response.Info != nil {
		info := event.Response.Info
		trace.InputTokens = info.InputTokens
		trace.OutputTokens = info.OutputTokens
		trace.Attempts = info.Attempts
		ctx.stats.IncrCounter(KeyInputTokens, int64(info.InputTokens))
		ctx.stats.IncrCounter(KeyOutputTokens, int64(info.OutputTokens))
		if event.Model != "" {
			ctx.stats.IncrCounter(KeyInputTokensFor+StatKey(event.Model), int64(info.InputTokens))
			ctx.stats.IncrCounter(KeyOutputTokensFor+StatKey(event.Model), int64(info.OutputTokens))
		}
	}
	var upstream *UpstreamServiceError
	if errors.As(event.Error, &upstream) {
		trace.Attempts = upstream.Attempts
	}
	ctx.Trace(trace)

	if f := ctx.firer(); f != nil {
		f.FireAfterModelCall(ctx, event)
	}
}

// FireBeforeToolCall fires BeforeToolCall hooks. Hooks may rewrite event.Input.
func (ctx *ExecutionContext) FireBeforeToolCall(event *BeforeToolCallEvent) {
	if f := ctx.firer(); f != nil {
		f.FireBeforeToolCall(ctx, event)
	}
}

// FireAfterToolCall records tool stats and a ToolCallTrace, then fires AfterToolCall hooks.
func (ctx *ExecutionContext) FireAfterToolCall(event *AfterToolCallEvent) {
	ctx.stats.IncrCounter(KeyToolCalls, 1)
	switch {
	case errors.Is(event.Error, ErrUnknownTool):
		ctx.stats.IncrCounter(KeyUnknownToolTotal, 1)
	case event.Error != nil:
		ctx.stats.IncrCounter(KeyToolCallsFor+StatKey(event.ToolName), 1)
		ctx.stats.IncrCounter(KeyToolCallsErrorTotal, 1)
		ctx.stats.IncrCounter(KeyToolCallsErrorFor+StatKey(event.ToolName), 1)
	default:
		ctx.stats.IncrCounter(KeyToolCallsFor+StatKey(event.ToolName), 1)
	}
	ctx.Trace(ToolCallTrace{
		ToolName: event.ToolName,
		Input:    event.Input,
		Output:   event.Output,
		Duration: event.Duration,
		Error:    event.Error,
	})

	if f := ctx.firer(); f != nil {
		f.FireAfterToolCall(ctx, event)
	}
}

// RecordParseError traces malformed model output, increments [KeyParseErrorTotal] and the
// [KeyParseErrorConsecutive] gauge (which may exceed its limit), and fires ParseError hooks.
func (ctx *ExecutionContext) RecordParseError(raw string, err error) {
	reason := err.Error()
	var malformed *MalformedOutputError
	if errors.As(err, &malformed) {
		reason = malformed.Reason
	}
	ctx.Trace(ParseErrorTrace{Raw: raw, Reason: reason})
	ctx.stats.IncrCounter(KeyParseErrorTotal, 1)
	ctx.stats.IncrGauge(KeyParseErrorConsecutive, 1)

	if f := ctx.firer(); f != nil {
		f.FireParseError(ctx, &ParseErrorEvent{
			Raw:         raw,
			Err:         err,
			Consecutive: int(ctx.stats.GetGauge(KeyParseErrorConsecutive)),
		})
	}
}

// RecordParseSuccess resets the [KeyParseErrorConsecutive] gauge.
func (ctx *ExecutionContext) RecordParseSuccess() {
	ctx.stats.ResetGauge(KeyParseErrorConsecutive)
}

// -----------------------------------------------------------------------------
// Termination
// -----------------------------------------------------------------------------

// SetTermination records why execution ended, moves the state to DONE or FAILED, and
// releases the internal context. Called by the Executor when execution ends.
func (ctx *ExecutionContext) SetTermination(reason TerminationReason, result string, err error) {
	ctx.mu.Lock()
	ctx.terminationReason = reason
	ctx.finalResult = result
	ctx.err = err
	ctx.endTime = time.Now()
	ctx.mu.Unlock()

	ctx.SetState(reason.State())
	ctx.cancel()
}

// TerminationReason returns why execution terminated, or "" while running.
func (ctx *ExecutionContext) TerminationReason() TerminationReason {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.terminationReason
}

// FinalResult returns the final answer (if terminated successfully).
func (ctx *ExecutionContext) FinalResult() string {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.finalResult
}

// Error returns the error (if terminated with error).
func (ctx *ExecutionContext) Error() error {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.err
}

// Result returns a snapshot of the execution outcome.
func (ctx *ExecutionContext) Result() *ExecutionResult {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return &ExecutionResult{
		Result:            ctx.finalResult,
		State:             ctx.state,
		TerminationReason: ctx.terminationReason,
		ExceededLimit:     ctx.exceededLimit,
		Error:             ctx.err,
	}
}

// StartTime returns when execution began.
func (ctx *ExecutionContext) StartTime() time.Time {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.startTime
}

// Duration returns the total execution duration.
// If execution is still in progress, returns duration since start.
func (ctx *ExecutionContext) Duration() time.Duration {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	if ctx.endTime.IsZero() {
		return time.Since(ctx.startTime)
	}
	return ctx.endTime.Sub(ctx.startTime)
}
