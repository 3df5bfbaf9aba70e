package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnswerer struct {
	questions []string
	answer    string
	err       error
}

func (f *fakeAnswerer) Answer(_ context.Context, question string) (string, error) {
	f.questions = append(f.questions, question)
	return f.answer, f.err
}

func TestTool_Call_ForwardsQuestionVerbatim(t *testing.T) {
	answerer := &fakeAnswerer{answer: "The paper introduces the transformer architecture."}
	tool := New(answerer)

	output, err := tool.Call(context.Background(), "What is the title of this paper? ")

	require.NoError(t, err)
	assert.Equal(t, "The paper introduces the transformer architecture.", output)
	assert.Equal(t, []string{"What is the title of this paper? "}, answerer.questions)
}

func TestTool_Call_WrapsAnswererError(t *testing.T) {
	cause := errors.New("vector store closed")
	tool := New(&fakeAnswerer{err: cause})

	output, err := tool.Call(context.Background(), "What is it about?")

	assert.Empty(t, output)
	assert.ErrorIs(t, err, cause)
}

func TestTool_Metadata(t *testing.T) {
	tool := New(&fakeAnswerer{})

	assert.Equal(t, "research", tool.Name())
	assert.Contains(t, tool.Description(), "Use the entire prompt as input to the tool.")
}
