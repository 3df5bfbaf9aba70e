package docagent

import (
	"context"
)

// Tool represents a single callable capability with a single-string input and a
// single-string output.
//
// Responsibility design:
//   - Tool: accept the input string, execute logic, return the result text
//   - ToolChain: list tools for the LLM, dispatch parsed actions, turn failures into
//     observations
//
// Tools should trap expected failures themselves and describe them in the returned text.
// Returned errors are still safe: the ToolChain converts them into observations, so a tool
// failure never ends the loop.
type Tool interface {
	// Name returns the tool's identifier used in the prompt listing and for action matching.
	Name() string

	// Description returns a human-readable description for the LLM.
	Description() string

	// Call executes the tool with the given input.
	Call(ctx context.Context, input string) (string, error)
}

// ToolFunc is a convenience type for creating tools from functions.
type ToolFunc struct {
	name        string
	description string
	fn          func(ctx context.Context, input string) (string, error)
}

// NewToolFunc creates a new ToolFunc.
func NewToolFunc(
	name, description string,
	fn func(ctx context.Context, input string) (string, error),
) *ToolFunc {
	return &ToolFunc{
		name:        name,
		description: description,
		fn:          fn,
	}
}

// Name returns the tool's identifier.
func (t *ToolFunc) Name() string {
	return t.name
}

// Description returns a human-readable description for the LLM.
func (t *ToolFunc) Description() string {
	return t.description
}

// Call executes the tool function with the given input.
func (t *ToolFunc) Call(ctx context.Context, input string) (string, error) {
	return t.fn(ctx, input)
}

// Compile-time check that ToolFunc implements Tool.
var _ Tool = (*ToolFunc)(nil)
