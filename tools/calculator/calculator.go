// Package calculator provides the agent's arithmetic tool.
//
// Expressions are evaluated by the Starlark interpreter with the Starlark math module in
// scope, so standard arithmetic and common functions work:
//
//	15 * 3              -> 45
//	10 / 4              -> 2.5
//	2 ** 10             -> 1024
//	sqrt(16) + pow(2,3) -> 12.0
//	round(pi * 2)       -> 6.0
//
// The ** operator is rewritten to an exact integer power before evaluation.
//
// Functions are also reachable through the module name (math.sqrt). Evaluation never
// fails the tool: any syntax or runtime error yields [InvalidSyntaxMessage].
package calculator

import (
	"context"
	"strings"

	"github.com/rickchristie/docagent"
	"go.starlark.net/lib/math"
	"go.starlark.net/starlark"
)

// Name is the tool name the model uses in actions.
const Name = "calculator"

// InvalidSyntaxMessage is the observation for any expression that cannot be evaluated.
const InvalidSyntaxMessage = "This is not a valid expression syntax. Try a different syntax."

// DefaultMaxSteps bounds the work a single expression may do.
const DefaultMaxSteps = 100_000

const description = "Use this tool for math operations. Input is a single arithmetic " +
	"expression such as 15 * 3, 2 ** 8 or sqrt(16) + pow(2, 3). Use it always you need to solve " +
	"any math operation. Be sure syntax is correct."

// Calculator evaluates arithmetic expressions.
type Calculator struct {
	maxSteps uint64
	env      starlark.StringDict
}

// New creates a Calculator with [DefaultMaxSteps].
func New() *Calculator {
	env := make(starlark.StringDict, len(math.Module.Members)+2)
	for name, value := range math.Module.Members {
		env[name] = value
	}
	env["math"] = math.Module
	env[powName] = starlark.NewBuiltin(powName, power)
	return &Calculator{
		maxSteps: DefaultMaxSteps,
		env:      env,
	}
}

// WithMaxSteps overrides the execution step budget.
func (c *Calculator) WithMaxSteps(steps uint64) *Calculator {
	c.maxSteps = steps
	return c
}

func (c *Calculator) Name() string {
	return Name
}

func (c *Calculator) Description() string {
	return description
}

// Call evaluates the expression. It never returns an error.
func (c *Calculator) Call(ctx context.Context, input string) (string, error) {
	result, err := c.Evaluate(ctx, input)
	if err != nil {
		return InvalidSyntaxMessage, nil
	}
	return result, nil
}

// Evaluate returns the expression's value as text, or the interpreter's error.
func (c *Calculator) Evaluate(ctx context.Context, expression string) (string, error) {
	expression = strings.TrimSpace(strings.Trim(strings.TrimSpace(expression), "`"))
	expression, err := rewritePower(expression)
	if err != nil {
		return "", err
	}

	thread := &starlark.Thread{Name: Name}
	thread.SetMaxExecutionSteps(c.maxSteps)
	stop := context.AfterFunc(ctx, func() { thread.Cancel(ctx.Err().Error()) })
	defer stop()

	value, err := starlark.Eval(thread, "input", expression, c.env)
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// Compile-time check that Calculator implements Tool.
var _ docagent.Tool = (*Calculator)(nil)
