package tt

import "fmt"

// ActionOutput renders model output that calls a tool in the ReAct JSON protocol.
func ActionOutput(thought, tool, input string) string {
	return fmt.Sprintf("%s\nAction:\n```json\n{\"action\": %q, \"action_input\": %q}\n```",
		thought, tool, input)
}

// FinalAnswerOutput renders model output that gives a final answer.
func FinalAnswerOutput(answer string) string {
	return "I now know the final answer\nFinal Answer: " + answer
}
