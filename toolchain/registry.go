package toolchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rickchristie/docagent"
)

// Registry is an ordered, exact-match collection of tools.
type Registry struct {
	tools   []docagent.Tool
	toolMap map[string]docagent.Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make([]docagent.Tool, 0),
		toolMap: make(map[string]docagent.Tool),
	}
}

// Register adds a tool. Registration order is the order tools are listed to the model.
//
// Panics if the tool is nil, has an empty name, or reuses a registered name. Register all
// tools before the first query.
func (r *Registry) Register(tool docagent.Tool) *Registry {
	if tool == nil {
		panic("toolchain: Register called with nil tool")
	}
	name := tool.Name()
	if strings.TrimSpace(name) == "" {
		panic("toolchain: Register called with a tool without a name")
	}
	if _, exists := r.toolMap[name]; exists {
		panic(fmt.Sprintf("toolchain: tool %q registered twice", name))
	}
	r.tools = append(r.tools, tool)
	r.toolMap[name] = tool
	return r
}

// Lookup returns the tool registered under exactly this name.
func (r *Registry) Lookup(name string) (docagent.Tool, bool) {
	tool, ok := r.toolMap[name]
	return tool, ok
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, tool := range r.tools {
		names[i] = tool.Name()
	}
	return names
}

// AvailableToolsPrompt returns one "name: description" line per tool.
func (r *Registry) AvailableToolsPrompt() string {
	lines := make([]string, len(r.tools))
	for i, tool := range r.tools {
		lines[i] = fmt.Sprintf("%s: %s", tool.Name(), tool.Description())
	}
	return strings.Join(lines, "\n")
}

// Dispatch runs the action's tool and returns the observation. Unknown tools, tool errors
// and tool panics are reported as observation text. Tool errors wrapping
// docagent.ErrUpstreamService are also returned, as a *docagent.ToolExecutionError.
func (r *Registry) Dispatch(
	execCtx *docagent.ExecutionContext,
	action *docagent.Action,
) (string, error) {
	ctx := context.Background()
	if execCtx != nil {
		ctx = docagent.WithExecutionContext(execCtx.Context(), execCtx)
	}

	tool, ok := r.toolMap[action.Tool]
	if !ok {
		err := &docagent.UnknownToolError{Tool: action.Tool, Available: r.Names()}
		observation := err.Error()
		if execCtx != nil {
			execCtx.FireAfterToolCall(&docagent.AfterToolCallEvent{
				ToolName: action.Tool,
				Input:    action.Input,
				Output:   observation,
				Error:    err,
			})
		}
		return observation, nil
	}

	// Fire BeforeToolCall hook (may modify input)
	beforeEvent := &docagent.BeforeToolCallEvent{
		ToolName: action.Tool,
		Input:    action.Input,
	}
	if execCtx != nil {
		execCtx.FireBeforeToolCall(beforeEvent)
	}
	input := beforeEvent.Input

	startTime := time.Now()
	output, err := callTool(ctx, tool, input)
	duration := time.Since(startTime)

	observation := output
	if err != nil {
		err = &docagent.ToolExecutionError{Tool: action.Tool, Err: err}
		observation = "Error: " + err.Error()
	}

	if execCtx != nil {
		execCtx.FireAfterToolCall(&docagent.AfterToolCallEvent{
			ToolName: action.Tool,
			Input:    input,
			Output:   observation,
			Duration: duration,
			Error:    err,
		})
	}
	if errors.Is(err, docagent.ErrUpstreamService) {
		return observation, err
	}
	return observation, nil
}

// callTool calls the tool, converting a panic into an error.
func callTool(ctx context.Context, tool docagent.Tool, input string) (output string, err error) {
	defer func() {
		if p := recover(); p != nil {
			output, err = "", fmt.Errorf("panic: %v", p)
		}
	}()
	return tool.Call(ctx, input)
}

// Compile-time check that Registry implements ToolChain.
var _ docagent.ToolChain = (*Registry)(nil)
