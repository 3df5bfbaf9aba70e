// Package duckdb implements a LangChainGo vector store on an embedded DuckDB database.
//
// Chunks are stored in a single table with their embedding as a FLOAT[] column and ranked
// with DuckDB's list_cosine_similarity. The vector index is exact (a full scan per query),
// which is what a handful of uploaded PDFs needs.
//
// Chunks are grouped by namespace. Pass vectorstores.WithNameSpace to AddDocuments and
// SimilaritySearch to keep documents apart in one store.
package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" driver
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// DefaultTable is the table chunks are stored in.
const DefaultTable = "chunks"

var (
	// ErrMissingEmbedder is returned when the store has no embedder.
	ErrMissingEmbedder = errors.New("duckdb vector store: embedder is required")

	// ErrEmbeddingCount is returned when the embedder returns the wrong number of vectors.
	ErrEmbeddingCount = errors.New("duckdb vector store: embedder returned wrong number of vectors")

	tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Store is a vectorstores.VectorStore backed by DuckDB.
// It is safe for concurrent use; database/sql serializes access to the connection pool.
type Store struct {
	db       *sql.DB
	embedder embeddings.Embedder
	table    string
}

// Option configures a Store.
type Option func(*Store)

// WithTable overrides [DefaultTable].
func WithTable(table string) Option {
	return func(s *Store) {
		s.table = table
	}
}

// New opens (or creates) the DuckDB database at dsn and prepares the chunk table.
// An empty dsn opens an in-memory database.
func New(ctx context.Context, dsn string, embedder embeddings.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, ErrMissingEmbedder
	}
	s := &Store{embedder: embedder, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	if !tableNamePattern.MatchString(s.table) {
		return nil, fmt.Errorf("duckdb vector store: invalid table name %q", s.table)
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// An in-memory database lives as long as its connection.
	if dsn == "" {
		db.SetMaxOpenConns(1)
	}
	s.db = db

	if err := s.migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         VARCHAR PRIMARY KEY,
			namespace  VARCHAR NOT NULL,
			content    VARCHAR NOT NULL,
			metadata   VARCHAR NOT NULL,
			embedding  FLOAT[] NOT NULL
		)`, s.table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddDocuments embeds and stores the documents, returning their generated ids.
func (s *Store) AddDocuments(
	ctx context.Context,
	docs []schema.Document,
	options ...vectorstores.Option,
) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	opts := s.resolveOptions(options)

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	vectors, err := opts.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("%w: got %d for %d documents", ErrEmbeddingCount, len(vectors), len(docs))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, namespace, content, metadata, embedding)
		 VALUES (?, ?, ?, ?, CAST(? AS FLOAT[]))`, s.table))
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	ids := make([]string, len(docs))
	for i, doc := range docs {
		metadata, err := json.Marshal(nonNilMetadata(doc.Metadata))
		if err != nil {
			return nil, fmt.Errorf("encode metadata of document %d: %w", i, err)
		}
		ids[i] = uuid.NewString()
		_, err = stmt.ExecContext(ctx,
			ids[i],
			opts.NameSpace,
			doc.PageContent,
			string(metadata),
			vectorLiteral(vectors[i]),
		)
		if err != nil {
			return nil, fmt.Errorf("insert document %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

// SimilaritySearch returns the numDocuments chunks most similar to query, best first.
// Each document's Score is its cosine similarity to the query. vectorstores.WithScoreThreshold
// drops chunks scoring below the threshold.
func (s *Store) SimilaritySearch(
	ctx context.Context,
	query string,
	numDocuments int,
	options ...vectorstores.Option,
) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return nil, nil
	}
	opts := s.resolveOptions(options)

	vector, err := opts.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT content, metadata, score FROM (
			SELECT content, metadata,
			       list_cosine_similarity(embedding, CAST(? AS FLOAT[])) AS score
			FROM %s
			WHERE namespace = ?
		)
		WHERE score >= ?
		ORDER BY score DESC
		LIMIT ?`, s.table),
		vectorLiteral(vector),
		opts.NameSpace,
		minScore(opts.ScoreThreshold),
		numDocuments,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	docs := make([]schema.Document, 0, numDocuments)
	for rows.Next() {
		var (
			content  string
			metadata string
			score    float64
		)
		if err := rows.Scan(&content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		doc := schema.Document{PageContent: content, Score: float32(score)}
		if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode chunk metadata: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	return docs, nil
}

// Count returns the number of chunks stored in the namespace.
func (s *Store) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE namespace = ?`, s.table),
		namespace,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// DeleteNamespace removes every chunk of the namespace.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE namespace = ?`, s.table),
		namespace,
	)
	if err != nil {
		return fmt.Errorf("delete namespace %q: %w", namespace, err)
	}
	return nil
}

func (s *Store) resolveOptions(options []vectorstores.Option) vectorstores.Options {
	opts := vectorstores.Options{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Embedder == nil {
		opts.Embedder = s.embedder
	}
	return opts
}

// vectorLiteral renders a vector as a DuckDB list literal, e.g. [0.5,1,-2].
func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// minScore returns the lowest accepted similarity. Without a threshold every chunk is
// accepted, since cosine similarity is never below -1.
func minScore(threshold float32) float64 {
	if threshold <= 0 {
		return -1
	}
	return float64(threshold)
}

func nonNilMetadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Compile-time check that Store implements vectorstores.VectorStore.
var _ vectorstores.VectorStore = (*Store)(nil)
