package duckdb

import (
	"context"
	"errors"
	"testing"

	"github.com/rickchristie/docagent/internal/tt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	embedder := tt.NewMockEmbedder("photosynthesis", "rocket", "tax", "invoice")
	store, err := New(context.Background(), "", embedder)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() }) //nolint:errcheck
	return store
}

func seedDocuments() []schema.Document {
	return []schema.Document{
		{
			PageContent: "Photosynthesis converts light into chemical energy. Photosynthesis happens in leaves.",
			Metadata:    map[string]any{"start_index": 0},
		},
		{
			PageContent: "A rocket engine burns propellant.",
			Metadata:    map[string]any{"start_index": 120},
		},
		{
			PageContent: "The invoice lists the tax due.",
			Metadata:    map[string]any{"start_index": 240},
		},
	}
}

func TestStore_SimilaritySearch(t *testing.T) {
	type input struct {
		query   string
		k       int
		options []vectorstores.Option
	}

	type expected struct {
		first string
		count int
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "best match first",
			input:    input{query: "how does photosynthesis work", k: 2},
			expected: expected{first: "Photosynthesis", count: 2},
		},
		{
			name:     "k larger than corpus",
			input:    input{query: "rocket", k: 10},
			expected: expected{first: "A rocket", count: 3},
		},
		{
			name:     "zero k",
			input:    input{query: "rocket", k: 0},
			expected: expected{count: 0},
		},
		{
			name: "score threshold drops weak matches",
			input: input{
				query:   "invoice tax",
				k:       3,
				options: []vectorstores.Option{vectorstores.WithScoreThreshold(0.5)},
			},
			expected: expected{first: "The invoice", count: 1},
		},
		{
			name: "other namespace is empty",
			input: input{
				query:   "rocket",
				k:       3,
				options: []vectorstores.Option{vectorstores.WithNameSpace("other")},
			},
			expected: expected{count: 0},
		},
	}

	store := newTestStore(t)
	ids, err := store.AddDocuments(context.Background(), seedDocuments())
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[1])

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			docs, err := store.SimilaritySearch(context.Background(),
				tc.input.query, tc.input.k, tc.input.options...)
			require.NoError(t, err)
			require.Len(t, docs, tc.expected.count)
			if tc.expected.count == 0 {
				return
			}
			assert.Contains(t, docs[0].PageContent, tc.expected.first)
			for i := 1; i < len(docs); i++ {
				assert.GreaterOrEqual(t, docs[i-1].Score, docs[i].Score)
			}
		})
	}
}

func TestStore_MetadataRoundTrip(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddDocuments(context.Background(), seedDocuments()[1:2])
	require.NoError(t, err)

	docs, err := store.SimilaritySearch(context.Background(), "rocket", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, float64(120), docs[0].Metadata["start_index"])
}

func TestStore_Namespaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, seedDocuments()[:1], vectorstores.WithNameSpace("doc-a"))
	require.NoError(t, err)
	_, err = store.AddDocuments(ctx, seedDocuments()[1:], vectorstores.WithNameSpace("doc-b"))
	require.NoError(t, err)

	n, err := store.Count(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := store.SimilaritySearch(ctx, "rocket", 5, vectorstores.WithNameSpace("doc-a"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].PageContent, "Photosynthesis")

	require.NoError(t, store.DeleteNamespace(ctx, "doc-b"))
	n, err = store.Count(ctx, "doc-b")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_Retriever(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddDocuments(context.Background(), seedDocuments())
	require.NoError(t, err)

	retriever := vectorstores.ToRetriever(store, 1)
	docs, err := retriever.GetRelevantDocuments(context.Background(), "rocket engine")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].PageContent, "rocket")
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}

func TestStore_Errors(t *testing.T) {
	_, err := New(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrMissingEmbedder)

	_, err = New(context.Background(), "", tt.NewMockEmbedder("a"), WithTable("bad-name;"))
	assert.Error(t, err)

	store, err := New(context.Background(), "", failingEmbedder{})
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck

	_, err = store.AddDocuments(context.Background(), seedDocuments())
	assert.ErrorContains(t, err, "embedding service down")

	_, err = store.SimilaritySearch(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "embedding service down")
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", vectorLiteral(nil))
	assert.Equal(t, "[0.5,1,-2]", vectorLiteral([]float32{0.5, 1, -2}))
}
