package mock

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "goodbye")
	require.NoError(t, err)

	assert.Len(t, a, 384)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_ConcurrentCounts(t *testing.T) {
	m := NewMockEmbedder()
	m.Dimension = 8

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectors, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
			assert.NoError(t, err)
			assert.Len(t, vectors[0], 8)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, m.CallCount())
	assert.Equal(t, 40, m.TextCount())

	m.Reset()
	assert.Zero(t, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)

	out, err := p.Generator().Generate(context.Background(), "sys", "first line\nsecond")
	require.NoError(t, err)
	assert.Equal(t, "first line", out)

	system, prompt := p.GetMockGenerator().LastPrompt()
	assert.Equal(t, "sys", system)
	assert.Equal(t, "first line\nsecond", prompt)
	assert.Equal(t, 1, p.GetMockGenerator().CallCount())
	assert.NoError(t, p.Close())
}
