// Package toolchain holds the agent's tools and dispatches parsed actions to them.
//
// # Overview
//
// A ToolChain is responsible for:
//  1. Explaining to the model which tools exist (AvailableToolsPrompt, Names)
//  2. Looking up the tool named by a parsed action
//  3. Calling it and turning every outcome into observation text
//
// Lookup is an exact, case-sensitive match on the tool name. The parser only trims
// surrounding whitespace, so "Calculator" does not dispatch to "calculator"; the model
// sees the unknown-tool observation and corrects itself.
//
// # Observations
//
// Each outcome maps to text the model reads in its next iteration:
//
//	success        the tool output, verbatim
//	unknown tool   translate is not a valid tool, try one of [wikipedia, calculator, research].
//	tool error     Error: tool calculator failed: <error>
//	tool panic     Error: tool calculator failed: panic: <value>
//
// Tool errors wrapping docagent.ErrUpstreamService are additionally returned from
// Dispatch, which ends the query. A retriever or model that is still failing after its
// retries is not something the model can work around.
//
// Tools receive a context carrying the query's ExecutionContext
// (docagent.ExecutionContextFrom), so nested model calls are traced with the query.
//
// # Example Usage
//
//	tc := toolchain.NewRegistry().
//	    Register(wikipedia.New(wikipedia.Config{})).
//	    Register(calculator.New()).
//	    Register(research.New(answerer))
//
//	agent := react.NewAgent(model).WithToolChain(tc)
//
// A Registry is read-only after registration and safe to share between concurrent
// queries.
package toolchain
