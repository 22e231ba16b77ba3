package mock

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicVector(t *testing.T) {
	a := DeterministicVector("dragons and wizards", 16)
	b := DeterministicVector("dragons and wizards", 16)
	c := DeterministicVector("love letters", 16)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	require.Len(t, a, 16)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_EmbedTexts(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder().WithDims(8)

	vectors, err := m.EmbedTexts(ctx, []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 8)

	single, err := m.EmbedText(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, vectors[1], single)
	assert.Equal(t, 2, m.CallCount())
}

func TestMockEmbedder_InjectedFunc(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	m := NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, boom
		}
		return []float32{1, 0}, nil
	}

	v, err := m.EmbedText(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)

	_, err = m.EmbedTexts(ctx, []string{"good", "bad"})
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	assert.Nil(t, m.EmbedTextFunc)
}

func TestMockEmbedder_ConcurrentCalls(t *testing.T) {
	m := NewMockEmbedder().WithDims(4)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EmbedText(context.Background(), "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	assert.Equal(t, MockModelID, p.ModelID())
	assert.Equal(t, DefaultDims, p.Dimensions())

	mp, ok := p.(*MockProvider)
	require.True(t, ok)
	assert.Same(t, mp.GetMockEmbedder(), p.Embedder())
	require.NoError(t, p.Close())
	assert.True(t, mp.Closed())
}
