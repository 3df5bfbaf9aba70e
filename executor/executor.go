package executor

import (
	"fmt"
	"time"

	"github.com/rickchristie/docagent"
	"github.com/rickchristie/docagent/hooks"
)

// Config holds configuration options for the Executor.
type Config struct {
	// Limits, when non-nil, replace the ExecutionContext's limits at the start of every
	// execution. Leave nil to keep the limits configured on the ExecutionContext
	// (docagent.DefaultLimits unless changed with SetLimits).
	Limits []docagent.Limit
}

// DefaultConfig returns a config that keeps each ExecutionContext's own limits.
func DefaultConfig() Config {
	return Config{}
}

// Executor drives the reasoning loop state machine of one query, managing the lifecycle,
// hooks, and termination bookkeeping via ExecutionContext.
//
// The Executor is responsible for:
//   - Running the AgentLoop repeatedly until it returns [docagent.LATerminate]
//   - Invoking lifecycle hooks at appropriate points
//   - Moving the query to DONE or FAILED when it ends
//   - Handling context cancellation and limit exceeded signals
//
// An Executor holds no per-query state and may run concurrent queries, each with its own
// ExecutionContext.
type Executor struct {
	loop   docagent.AgentLoop
	config Config
	hooks  *hooks.Registry
}

// New creates a new Executor with the given AgentLoop and configuration.
func New(loop docagent.AgentLoop, config Config) *Executor {
	return &Executor{
		loop:   loop,
		config: config,
		hooks:  hooks.NewRegistry(),
	}
}

// WithHooks replaces the executor's hook registry with the provided one.
// Use this when you need to share a registry across multiple executors.
//
// Example:
//
//	sharedRegistry := hooks.NewRegistry()
//	sharedRegistry.Register(hooks.NewSlogHook(logger))
//
//	exec1 := executor.New(agent1, config).WithHooks(sharedRegistry)
//	exec2 := executor.New(agent2, config).WithHooks(sharedRegistry)
func (e *Executor) WithHooks(h *hooks.Registry) *Executor {
	e.hooks = h
	return e
}

// RegisterHook adds a hook to the executor's existing hook registry.
// The hook can implement any combination of hook interfaces
// (BeforeExecutionHook, AfterToolCallHook, etc.).
//
// Example:
//
//	exec := executor.New(agent, config).
//	    RegisterHook(hooks.NewSlogHook(logger)).
//	    RegisterHook(&MetricsHook{})
func (e *Executor) RegisterHook(hook any) *Executor {
	e.hooks.Register(hook)
	return e
}

// Execute runs the AgentLoop until termination.
//
// The execution flow:
//  1. Call BeforeExecution hooks
//  2. Repeatedly start an iteration and call AgentLoop.Next until:
//     - It returns LATerminate (DONE)
//     - A limit is exceeded (FAILED, checked before the model is called)
//     - The context is canceled (FAILED)
//     - Next returns an error (FAILED)
//  3. Call AfterExecution hooks
//
// The outcome is available from execCtx.Result() after Execute returns.
//
// Example:
//
//	execCtx := docagent.NewExecutionContext(ctx, "ask", react.NewLoopData(question))
//	exec.Execute(execCtx)
//	result := execCtx.Result()
//	if result.Error != nil {
//	    // handle error
//	}
func (e *Executor) Execute(execCtx *docagent.ExecutionContext) {
	if e.config.Limits != nil {
		execCtx.SetLimits(e.config.Limits)
	}
	if e.hooks != nil {
		execCtx.SetHookFirer(e.hooks)
	}

	// AfterExecution is always called once BeforeExecution was called
	defer func() {
		if e.hooks == nil {
			return
		}
		if err := execCtx.Error(); err != nil {
			e.hooks.FireError(execCtx, &docagent.ErrorEvent{
				Iteration: execCtx.Iteration(),
				Err:       err,
			})
		}
		e.hooks.FireAfterExecution(execCtx, &docagent.AfterExecutionEvent{
			TerminationReason: execCtx.TerminationReason(),
			Result:            execCtx.FinalResult(),
			Error:             execCtx.Error(),
		})
	}()

	if e.hooks != nil {
		var task string
		if data := execCtx.Data(); data != nil {
			task = data.GetTask()
		}
		e.hooks.FireBeforeExecution(execCtx, &docagent.BeforeExecutionEvent{Task: task})
	}

	for {
		// Handles both user cancel and limit exceeded
		if execCtx.Context().Err() != nil {
			e.terminateInterrupted(execCtx)
			return
		}

		// Increments the iteration counter, which may exceed the iteration limit. The check
		// below guarantees the model is never called for an iteration over the cap.
		execCtx.StartIteration()
		if execCtx.ExceededLimit() != nil {
			e.terminateInterrupted(execCtx)
			return
		}
		iterStart := time.Now()

		if e.hooks != nil {
			e.hooks.FireBeforeIteration(execCtx, &docagent.BeforeIterationEvent{
				Iteration: execCtx.Iteration(),
			})
		}

		loopResult, loopErr := e.loop.Next(execCtx)
		iterDuration := time.Since(iterStart)

		if loopErr != nil {
			execCtx.EndIteration(docagent.LATerminate, iterDuration)
			if execCtx.ExceededLimit() != nil || execCtx.Context().Err() != nil {
				e.terminateInterrupted(execCtx)
			} else {
				execErr := fmt.Errorf("AgentLoop.Next (iteration %d): %w",
					execCtx.Iteration(), loopErr)
				execCtx.SetTermination(docagent.TerminationError, "", execErr)
			}
			return
		}

		execCtx.EndIteration(loopResult.Action, iterDuration)

		if e.hooks != nil {
			e.hooks.FireAfterIteration(execCtx, &docagent.AfterIterationEvent{
				Iteration: execCtx.Iteration(),
				Result:    loopResult,
				Duration:  iterDuration,
			})
		}

		if loopResult.Action == docagent.LATerminate {
			execCtx.SetTermination(docagent.TerminationSuccess, loopResult.Result, nil)
			return
		}
	}
}

// terminateInterrupted ends the query after a limit fired or the caller canceled.
func (e *Executor) terminateInterrupted(execCtx *docagent.ExecutionContext) {
	if limit := execCtx.ExceededLimit(); limit != nil {
		execCtx.SetTermination(
			docagent.TerminationLimitExceeded,
			"",
			fmt.Errorf("%w: %s > %v",
				docagent.ErrIterationLimitExceeded, limit.Key, limit.MaxValue),
		)
		return
	}
	execCtx.SetTermination(
		docagent.TerminationContextCanceled,
		"",
		execCtx.Context().Err(),
	)
}
