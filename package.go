// Package docagent answers questions about a PDF with a tool-using ReAct agent.
//
// The root package holds the shared contracts: the agent loop, models, tools, the parsed
// action types, the error taxonomy, and the ExecutionContext that carries state, stats,
// limits and traces through a single query. Subpackages implement them.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//
//	    "github.com/rickchristie/docagent"
//	    "github.com/rickchristie/docagent/agents/react"
//	    "github.com/rickchristie/docagent/executor"
//	    "github.com/rickchristie/docagent/models"
//	    "github.com/rickchristie/docagent/toolchain"
//	    "github.com/rickchristie/docagent/tools/calculator"
//	)
//
//	func main() {
//	    // 1. Wrap a LangChainGo model
//	    model := models.NewLCGWrapper(llm).WithModelName("mistral")
//
//	    // 2. Register tools
//	    tc := toolchain.NewRegistry().Register(calculator.New())
//
//	    // 3. Build the agent
//	    agent := react.NewAgent(model).WithToolChain(tc)
//
//	    // 4. Run one query
//	    data := react.NewLoopData("What is 15 * 3?")
//	    execCtx := docagent.NewExecutionContext(context.Background(), "main", data)
//	    executor.New(agent, executor.DefaultConfig()).Execute(execCtx)
//
//	    result := execCtx.Result()
//	    fmt.Println(result.State, result.Result) // DONE 45
//	}
//
// # Reasoning Loop
//
// Each iteration is one THINKING step: the agent renders the prompt, calls the model and
// parses the output. An action moves the loop through ACTING and OBSERVING back to
// THINKING; a final answer ends it in DONE. Malformed output is fed back to the model as
// an observation. The loop ends in FAILED when a limit is exceeded, the model keeps
// failing, or the caller cancels.
//
// # Limits
//
// [DefaultLimits] caps a query at 15 iterations and 3 consecutive malformed outputs.
// Limits are enforced by the ExecutionContext as stats change, so the model is never
// called once a limit has been exceeded.
//
// # Packages
//
//   - agents/react: ReAct agent loop and prompt template
//   - executor: drives an AgentLoop to termination
//   - parser: ReAct JSON output parser
//   - toolchain: tool registry and dispatch
//   - tools/calculator, tools/wikipedia, tools/research: the agent's tools
//   - models: LangChainGo model wrapper with timeout and retry
//   - rag: PDF ingestion, retrieval and answering
//   - vectorstore/duckdb: DuckDB-backed vector store
//   - hooks: hook registry and slog logging hook
//   - config, assistant, server: configuration, entry point and web form
package docagent
