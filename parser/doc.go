// Package parser converts raw model text into docagent parse results.
//
// # ReAct JSON Protocol
//
// The model answers in one of two shapes. A tool call is a single fenced JSON blob:
//
//	Thought: I need to multiply.
//	Action:
//	```json
//	{"action": "calculator", "action_input": "15 * 3"}
//	```
//
// A final answer is introduced by the Final Answer marker:
//
//	Thought: I now know the final answer
//	Final Answer: 45
//
// # Rules
//
//  1. Final Answer takes precedence. The answer is the text after the last marker,
//     trimmed, with a trailing end-of-sequence token removed.
//  2. Otherwise the fenced blob must decode to an object with exactly the keys "action"
//     and "action_input". Slightly broken JSON is repaired once before giving up.
//  3. Arrays and multiple fenced actions are rejected: one action per step.
//  4. An action named "none" (or "null", or blank) is rejected.
//
// Every rejection is a *docagent.MalformedOutputError carrying the raw text.
package parser
