package qa

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/sitebot/ai/mock"
	"github.com/poiesic/sitebot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct {
	results []*core.SearchResult
	err     error
	limit   int
}

func (s *stubRetriever) Search(_ context.Context, _ string, _ string, limit int) ([]*core.SearchResult, error) {
	s.limit = limit
	return s.results, s.err
}

func result(text, source string, score float32) *core.SearchResult {
	return &core.SearchResult{Point: &core.Point{Text: text, Source: source}, Score: score}
}

func TestNewResponder(t *testing.T) {
	_, err := NewResponder(nil, mock.NewMockGenerator())
	assert.ErrorIs(t, err, ErrRetrieverRequired)

	_, err = NewResponder(&stubRetriever{}, nil)
	assert.ErrorIs(t, err, ErrGeneratorRequired)

	r, err := NewResponder(&stubRetriever{}, mock.NewMockGenerator(), WithContextChunks(0), WithSystemPrompt(" "))
	require.NoError(t, err)
	assert.Equal(t, 1, r.chunks)
	assert.Equal(t, DefaultSystemPrompt, r.system)
}

func TestAsk(t *testing.T) {
	retriever := &stubRetriever{results: []*core.SearchResult{
		result("We open at nine.", "http://shop.example/hours", 0.9),
		result("Closed on Sundays.", "http://shop.example/hours", 0.8),
		result("Call us any time.", "http://shop.example/contact", 0.5),
	}}
	generator := mock.NewMockGenerator()
	generator.GenerateFunc = func(ctx context.Context, system, prompt string) (string, error) {
		return "  We open at nine, except Sundays.\n", nil
	}

	r, err := NewResponder(retriever, generator)
	require.NoError(t, err)

	answer, err := r.Ask(context.Background(), "shop", "  When do you open?  ")
	require.NoError(t, err)

	assert.Equal(t, "We open at nine, except Sundays.", answer.Text)
	assert.Equal(t, []string{"http://shop.example/hours", "http://shop.example/contact"}, answer.Sources)
	assert.Len(t, answer.Context, 3)
	assert.Equal(t, DefaultContextChunks, retriever.limit)

	system, prompt := generator.LastPrompt()
	assert.Equal(t, DefaultSystemPrompt, system)
	assert.Equal(t, "Context:\n[1] We open at nine.\n[2] Closed on Sundays.\n[3] Call us any time.\n\nQuestion: When do you open?", prompt)
}

func TestAsk_NoContext(t *testing.T) {
	generator := mock.NewMockGenerator()
	r, err := NewResponder(&stubRetriever{}, generator)
	require.NoError(t, err)

	answer, err := r.Ask(context.Background(), "shop", "Anything?")
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, answer.Text)
	assert.Zero(t, generator.CallCount())
}

func TestAsk_Errors(t *testing.T) {
	t.Run("empty question", func(t *testing.T) {
		r, err := NewResponder(&stubRetriever{}, mock.NewMockGenerator())
		require.NoError(t, err)
		_, err = r.Ask(context.Background(), "shop", " ")
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	})

	t.Run("retrieval failure", func(t *testing.T) {
		cause := errors.New("store closed")
		r, err := NewResponder(&stubRetriever{err: cause}, mock.NewMockGenerator())
		require.NoError(t, err)
		_, err = r.Ask(context.Background(), "shop", "hours?")
		assert.ErrorIs(t, err, cause)
	})

	t.Run("generation failure", func(t *testing.T) {
		cause := errors.New("model offline")
		generator := mock.NewMockGenerator()
		generator.GenerateFunc = func(ctx context.Context, system, prompt string) (string, error) {
			return "", cause
		}
		retriever := &stubRetriever{results: []*core.SearchResult{result("text", "src", 1)}}
		r, err := NewResponder(retriever, generator)
		require.NoError(t, err)
		_, err = r.Ask(context.Background(), "shop", "hours?")
		assert.ErrorIs(t, err, cause)
	})
}
