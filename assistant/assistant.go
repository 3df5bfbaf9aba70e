// Package assistant wires the document index, the research tool and the ReAct agent into
// the entry point used by the CLI and the web server.
//
// An Assistant owns the models, the vector store and the non-document tools. Ingesting a
// PDF produces a Session bound to that document; a Session answers any number of
// questions, concurrently if needed, each with its own ExecutionContext.
//
//	a, err := assistant.FromConfig(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	session, err := a.Ingest(ctx, "paper.pdf")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(session.Ask(ctx, "What is the title of this paper?").Answer)
//
// Ask never returns an error. Failures are logged and mapped to one of two fixed messages,
// [MessageNoAnswer] and [MessageFailure].
package assistant

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/tmc/langchaingo/vectorstores"

	"github.com/rickchristie/docagent"
	"github.com/rickchristie/docagent/agents/react"
	"github.com/rickchristie/docagent/config"
	"github.com/rickchristie/docagent/executor"
	"github.com/rickchristie/docagent/hooks"
	"github.com/rickchristie/docagent/models"
	"github.com/rickchristie/docagent/rag"
	"github.com/rickchristie/docagent/toolchain"
	"github.com/rickchristie/docagent/tools/calculator"
	"github.com/rickchristie/docagent/tools/research"
	"github.com/rickchristie/docagent/tools/wikipedia"
	"github.com/rickchristie/docagent/vectorstore/duckdb"
)

// Assistant builds document Sessions. It is safe for concurrent use.
type Assistant struct {
	agentModel docagent.Model
	ragModel   docagent.Model
	store      vectorstores.VectorStore

	tools        []docagent.Tool
	ragConfig    rag.Config
	agentOptions docagent.GenerationOptions
	ragOptions   docagent.GenerationOptions
	ragRetries   int
	limits       []docagent.Limit
	logger       *slog.Logger
	hooks        *hooks.Registry
}

// New creates an Assistant over the given models and vector store. The agent gets the
// calculator tool by default; replace the set with WithTools.
func New(agentModel, ragModel docagent.Model, store vectorstores.VectorStore) *Assistant {
	logger := slog.Default()
	return &Assistant{
		agentModel: agentModel,
		ragModel:   ragModel,
		store:      store,
		tools:      []docagent.Tool{calculator.New()},
		ragConfig:  rag.DefaultConfig(),
		ragRetries: rag.DefaultRetrieverRetries,
		limits:     docagent.DefaultLimits(),
		logger:     logger,
		hooks:      hooks.NewRegistry().Register(hooks.NewSlogHook(logger)),
	}
}

// FromConfig builds the models, embedder, DuckDB store and tools described by cfg.
// Call Close when done to release the store.
func FromConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Assistant, error) {
	agentModel, err := newModel(cfg.Agent.Model)
	if err != nil {
		return nil, fmt.Errorf("agent model: %w", err)
	}
	ragModel, err := newModel(cfg.RAG.Model)
	if err != nil {
		return nil, fmt.Errorf("rag model: %w", err)
	}
	embedder, err := models.NewEmbedder(cfg.RAG.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	store, err := duckdb.New(ctx, cfg.RAG.Database, embedder)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	a := New(agentModel, ragModel, store).
		WithTools(wikipedia.New(cfg.Wikipedia), calculator.New()).
		WithRAGConfig(cfg.RAG.Config).
		WithAgentGeneration(cfg.Agent.Model.Generation).
		WithRAGGeneration(cfg.RAG.Model.Generation).
		WithRetrieverRetries(cfg.RAG.Model.MaxRetries).
		WithLimits(cfg.Agent.MaxIterations, cfg.Agent.MaxConsecutiveMalformed)
	if logger != nil {
		a = a.WithLogger(logger)
	}
	return a, nil
}

func newModel(cfg config.ModelConfig) (*models.LCGWrapper, error) {
	model, err := models.NewModel(cfg.ProviderConfig)
	if err != nil {
		return nil, err
	}
	return model.WithTimeout(cfg.Timeout).WithMaxRetries(cfg.MaxRetries), nil
}

// WithTools replaces the non-document tools, in prompt order. The research tool is always
// appended per Session.
func (a *Assistant) WithTools(tools ...docagent.Tool) *Assistant {
	a.tools = tools
	return a
}

// WithRAGConfig sets chunking and retrieval parameters.
func (a *Assistant) WithRAGConfig(cfg rag.Config) *Assistant {
	a.ragConfig = cfg
	return a
}

// WithAgentGeneration sets the decoding parameters of the agent model.
func (a *Assistant) WithAgentGeneration(opts docagent.GenerationOptions) *Assistant {
	a.agentOptions = opts
	return a
}

// WithRAGGeneration sets the decoding parameters of the answer model.
func (a *Assistant) WithRAGGeneration(opts docagent.GenerationOptions) *Assistant {
	a.ragOptions = opts
	return a
}

// WithLimits sets the iteration cap and the consecutive malformed output cap.
func (a *Assistant) WithLimits(maxIterations, maxConsecutiveMalformed int) *Assistant {
	a.limits = docagent.NewLimits(maxIterations, maxConsecutiveMalformed)
	return a
}

// WithRetrieverRetries sets how many times a failed document retrieval is retried before
// the query fails.
func (a *Assistant) WithRetrieverRetries(retries int) *Assistant {
	a.ragRetries = retries
	return a
}

// WithLogger replaces the logger used for the assistant's own records and for the
// execution hooks. Hooks registered earlier are dropped, so call it first.
func (a *Assistant) WithLogger(logger *slog.Logger) *Assistant {
	a.logger = logger
	a.hooks = hooks.NewRegistry().Register(hooks.NewSlogHook(logger))
	return a
}

// RegisterHook adds a hook to every Session created afterwards.
func (a *Assistant) RegisterHook(hook any) *Assistant {
	a.hooks.Register(hook)
	return a
}

// Ingest indexes the PDF at path and returns a Session answering questions about it.
func (a *Assistant) Ingest(ctx context.Context, path string) (*Session, error) {
	index, err := rag.Ingest(ctx, a.store, path, a.ragConfig)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}
	a.logger.Info("document ingested",
		slog.String("path", path),
		slog.String("title", index.Title()),
		slog.Int("chunks", index.Chunks()),
		slog.String("namespace", index.Namespace()),
	)
	return a.newSession(index), nil
}

func (a *Assistant) newSession(index *rag.Index) *Session {
	answerer := rag.NewAnswerer(index.Retriever(), a.ragModel).
		WithGenerationOptions(a.ragOptions).
		WithRetrieverRetries(a.ragRetries)

	registry := toolchain.NewRegistry()
	for _, tool := range a.tools {
		registry.Register(tool)
	}
	registry.Register(research.New(answerer))

	agent := react.NewAgent(a.agentModel).
		WithToolChain(registry).
		WithGenerationOptions(a.agentOptions)

	exec := executor.New(agent, executor.Config{Limits: a.limits}).WithHooks(a.hooks)

	return &Session{
		index:    index,
		store:    a.store,
		executor: exec,
		logger:   a.logger.With(slog.String("document", index.Namespace())),
	}
}

// Answer ingests the PDF at path and answers a single query about it. It never fails: any
// error becomes MessageFailure. The document's chunks are removed afterwards.
func (a *Assistant) Answer(ctx context.Context, path, query string) string {
	session, err := a.Ingest(ctx, path)
	if err != nil {
		a.logger.Error("ingestion failed", slog.String("path", path), slog.Any("error", err))
		return MessageFailure
	}
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("removing document chunks", slog.Any("error", err))
		}
	}()
	return session.Ask(ctx, query).Answer
}

// Close releases the vector store when it holds resources.
func (a *Assistant) Close() error {
	if closer, ok := a.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
