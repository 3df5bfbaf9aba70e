// Package react implements the ReAct (Reasoning and Acting) agent loop over a
// text-completion model.
//
// # Overview
//
// The ReAct pattern alternates between thinking and acting. Each call to [Agent.Next] is
// one THINKING step: the agent renders the whole conversation into one prompt, asks the
// model for a continuation, and parses it.
//
//	THINKING --action--> ACTING --tool result--> OBSERVING --> THINKING
//	THINKING --final answer--> DONE
//	THINKING --malformed--> THINKING (corrective observation)
//
// The executor drives the loop and moves the query to FAILED when a limit is exceeded or
// the model cannot be reached.
//
// # Output Protocol
//
// The model must answer in one of two shapes. A tool call:
//
//	Thought: I need to multiply
//	Action:
//	```
//	{"action": "calculator", "action_input": "15 * 3"}
//	```
//
// or a final answer:
//
//	Thought: I now know the final answer
//	Final Answer: 45
//
// "Final Answer:" wins when both appear. Parsing is done by [parser.ReActJSON] unless
// another parser is configured.
//
// # Malformed Output
//
// Output that matches neither shape does not end the query. The agent appends a
// corrective step whose observation names the problem and repeats the format
// instructions, then continues. The consecutive malformed output gauge is bounded by a
// limit (default 3, see docagent.DefaultLimits).
//
// # Hallucinated Observations
//
// Models often keep writing after the action blob and invent the tool's answer. The
// agent passes "\nObservation" as a stop sequence and also truncates the output there,
// so only real tool observations ever reach the scratchpad.
//
// # Configuration
//
// The agent can be configured with:
//   - WithToolChain: tools available to the model (default: empty registry)
//   - WithParser: output parser (default: parser.NewReActJSON())
//   - WithTemplate / WithTemplateString: prompt template (default: DefaultTemplate)
//   - WithGenerationOptions / WithCallOptions: sampling options for every call
//   - WithStopWords: stop sequences (default: "\nObservation")
//
// # Example
//
//	tc := toolchain.NewRegistry().
//		Register(calculator.New()).
//		Register(wikipedia.New(wikipedia.DefaultConfig()))
//
//	agent := react.NewAgent(model).WithToolChain(tc)
//	data := react.NewLoopData("What is 15 times 3?")
//	execCtx := docagent.NewExecutionContext(ctx, "ask", data)
//	executor.New(agent, executor.DefaultConfig()).Execute(execCtx)
//	fmt.Println(execCtx.FinalResult())
package react
