package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// Index is one ingested document in a vector store.
// It is read-only after Ingest and safe for concurrent retrieval.
type Index struct {
	store     vectorstores.VectorStore
	namespace string
	title     string
	chunks    int
	topK      int
}

// Ingest loads the PDF at path, splits it, and stores the embedded chunks in store under a
// fresh namespace.
func Ingest(
	ctx context.Context,
	store vectorstores.VectorStore,
	path string,
	cfg Config,
) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pages, err := LoadPDF(ctx, path)
	if err != nil {
		return nil, err
	}
	for i := range pages {
		if pages[i].Metadata == nil {
			pages[i].Metadata = map[string]any{}
		}
		pages[i].Metadata[MetadataSource] = path
	}
	chunks, err := Split(pages, cfg)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("pdf %s contains no extractable text", path)
	}

	// A PDF without a readable info dictionary is still a valid document.
	title, _ := Title(path)

	namespace := uuid.NewString()
	if _, err := store.AddDocuments(ctx, chunks, vectorstores.WithNameSpace(namespace)); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}

	return &Index{
		store:     store,
		namespace: namespace,
		title:     title,
		chunks:    len(chunks),
		topK:      cfg.TopK,
	}, nil
}

// NewIndex wraps chunks already stored under namespace.
func NewIndex(store vectorstores.VectorStore, namespace string, topK int) *Index {
	return &Index{store: store, namespace: namespace, topK: topK}
}

// Namespace returns the vector store namespace holding this document's chunks.
func (i *Index) Namespace() string {
	return i.namespace
}

// Title returns the PDF title, or "" when the PDF has none.
func (i *Index) Title() string {
	return i.title
}

// Chunks returns the number of chunks stored at ingestion.
func (i *Index) Chunks() int {
	return i.chunks
}

// Retriever returns a retriever over this document's chunks returning the top k matches.
func (i *Index) Retriever() schema.Retriever {
	return vectorstores.ToRetriever(i.store, i.topK, vectorstores.WithNameSpace(i.namespace))
}

// Retrieve returns the k chunks most similar to query, best first.
func (i *Index) Retrieve(ctx context.Context, query string, k int) ([]schema.Document, error) {
	docs, err := i.store.SimilaritySearch(ctx, query, k, vectorstores.WithNameSpace(i.namespace))
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	return docs, nil
}
