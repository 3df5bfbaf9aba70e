// Package rag answers questions from an uploaded PDF: ingestion (load, split, embed, store),
// retrieval, and a grounded answer prompt.
//
// Pipeline:
//
//	PDF --documentloaders.NewPDF--> pages --RecursiveCharacter--> chunks --Embedder--> store
//	question --Retriever (top k)--> chunks --"\n\n" join--> prompt --Model--> answer
package rag

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// Metadata keys set on chunks.
const (
	MetadataStartIndex = "start_index"
	MetadataSource     = "source"
)

// Config controls chunking and retrieval.
type Config struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap int `yaml:"chunk_overlap"`

	// TopK is how many chunks are retrieved per question.
	TopK int `yaml:"top_k"`
}

// DefaultConfig returns 1000 character chunks overlapping by 100, and top 5 retrieval.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 100,
		TopK:         5,
	}
}

// Validate rejects impossible settings.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	case c.ChunkOverlap < 0:
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.ChunkOverlap)
	case c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d",
			c.ChunkOverlap, c.ChunkSize)
	case c.TopK <= 0:
		return fmt.Errorf("top k must be positive, got %d", c.TopK)
	}
	return nil
}

// LoadPDF extracts the text of every page of the PDF at path, one document per page.
func LoadPDF(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", path, err)
	}
	return docs, nil
}

// Title returns the document title from the PDF's info dictionary, or "" when the PDF has
// none.
func Title(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close() //nolint:errcheck

	return strings.TrimSpace(reader.Trailer().Key("Info").Key("Title").Text()), nil
}

// Split cuts documents into overlapping chunks. Every chunk keeps its document's metadata
// and records where it starts in the document's text under [MetadataStartIndex].
func Split(docs []schema.Document, cfg Config) ([]schema.Document, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
	)

	chunks := make([]schema.Document, 0, len(docs))
	for _, doc := range docs {
		texts, err := splitter.SplitText(doc.PageContent)
		if err != nil {
			return nil, fmt.Errorf("split document: %w", err)
		}

		searchFrom := 0
		for _, text := range texts {
			start := indexFrom(doc.PageContent, text, searchFrom)
			if start >= 0 {
				searchFrom = start + 1
			}

			metadata := make(map[string]any, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			metadata[MetadataStartIndex] = start

			chunks = append(chunks, schema.Document{
				PageContent: text,
				Metadata:    metadata,
			})
		}
	}
	return chunks, nil
}

// indexFrom returns the index of substr in s at or after from, or -1.
func indexFrom(s, substr string, from int) int {
	if from > len(s) {
		return -1
	}
	idx := strings.Index(s[from:], substr)
	if idx < 0 {
		return -1
	}
	return from + idx
}
