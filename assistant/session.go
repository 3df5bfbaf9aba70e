package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/vectorstores"

	"github.com/rickchristie/docagent"
	"github.com/rickchristie/docagent/agents/react"
	"github.com/rickchristie/docagent/executor"
	"github.com/rickchristie/docagent/parser"
	"github.com/rickchristie/docagent/rag"
)

// User-visible messages for queries that did not produce an answer.
const (
	// MessageNoAnswer is returned when the agent ran out of iterations or kept producing
	// malformed output.
	MessageNoAnswer = "I couldn't reach a final answer. Please try rephrasing your question."

	// MessageFailure is returned for every other failure.
	MessageFailure = "Oops! There seems to be an issue. Try again. Maybe try changing the prompt."
)

// Response is the outcome of one question.
type Response struct {
	// Answer is always safe to show to the user.
	Answer string

	// Result holds the termination details, including the underlying error.
	Result *docagent.ExecutionResult

	Iterations int
	Duration   time.Duration
}

// OK reports whether Answer came from the model's final answer.
func (r *Response) OK() bool {
	return r.Result != nil && r.Result.TerminationReason == docagent.TerminationSuccess
}

// Session answers questions about one ingested document.
type Session struct {
	index    *rag.Index
	store    vectorstores.VectorStore
	executor *executor.Executor
	logger   *slog.Logger
}

// Title returns the PDF's title, or "" when the document has none.
func (s *Session) Title() string {
	return s.index.Title()
}

// Index returns the document index.
func (s *Session) Index() *rag.Index {
	return s.index
}

// Ask runs the agent on query and maps the outcome to a user-visible answer.
func (s *Session) Ask(ctx context.Context, query string) *Response {
	execCtx := docagent.NewExecutionContext(ctx, "ask", react.NewLoopData(query))
	s.executor.Execute(execCtx)

	result := execCtx.Result()
	resp := &Response{
		Result:     result,
		Iterations: execCtx.Iteration(),
		Duration:   execCtx.Duration(),
	}

	switch result.TerminationReason {
	case docagent.TerminationSuccess:
		resp.Answer = parser.CleanAnswer(result.Result)
		if resp.Answer == "" {
			resp.Answer = MessageNoAnswer
		}
	case docagent.TerminationLimitExceeded:
		s.logger.Warn("no final answer",
			slog.String("query", query),
			slog.Int("iterations", resp.Iterations),
			slog.Any("error", result.Error),
		)
		resp.Answer = MessageNoAnswer
	default:
		s.logger.Error("query failed",
			slog.String("query", query),
			slog.String("reason", string(result.TerminationReason)),
			slog.Any("error", result.Error),
		)
		resp.Answer = MessageFailure
	}
	return resp
}

// Close removes the document's chunks from the store, when the store supports it.
func (s *Session) Close(ctx context.Context) error {
	deleter, ok := s.store.(interface {
		DeleteNamespace(ctx context.Context, namespace string) error
	})
	if !ok {
		return nil
	}
	if err := deleter.DeleteNamespace(ctx, s.index.Namespace()); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}
