package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/moodshelf/ai/mock"
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/dataset"
	"github.com/poiesic/moodshelf/storage/badger"
	"github.com/poiesic/moodshelf/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog(n int) []dataset.RawBook {
	raw := make([]dataset.RawBook, 0, n)
	for i := 0; i < n; i++ {
		raw = append(raw, dataset.RawBook{
			ISBN13:        fmt.Sprintf("978%07d", i),
			Title:         fmt.Sprintf("Book %d", i),
			Authors:       fmt.Sprintf("Author %d", i),
			Description:   fmt.Sprintf("Description number %d about something", i),
			AverageRating: float64(i%5) + 0.5,
		})
	}
	return raw
}

func newTestBuilder(t *testing.T, embedder *mock.MockEmbedder, opts ...Option) *Builder {
	t.Helper()
	b, err := NewBuilder(mock.NewMockProviderWithEmbedder(embedder), opts...)
	require.NoError(t, err)
	t.Cleanup(b.Release)
	return b
}

func TestNewBuilder_RequiresProvider(t *testing.T) {
	_, err := NewBuilder(nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func TestNewBuilder_InvalidOptions(t *testing.T) {
	provider := mock.NewMockProvider()

	_, err := NewBuilder(provider, WithBatchSize(0))
	assert.Error(t, err)

	_, err = NewBuilder(provider, WithRetry(0, time.Millisecond))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	_, err = NewBuilder(provider, WithIndexKind("ivf"))
	assert.ErrorIs(t, err, vectorindex.ErrUnknownKind)
}

func TestClean(t *testing.T) {
	raw := []dataset.RawBook{
		{Title: "A", Authors: "x", Description: "first"},
		{Title: "", Authors: "x", Description: "no title"},
		{Title: "C", Authors: "x", Description: "third"},
		{Title: "D", Authors: "", Description: "no authors"},
		{Title: "E", Authors: "x", Description: ""},
		{Title: "F", Authors: "x", Description: "sixth"},
	}

	books, skipped := Clean(raw)
	assert.Equal(t, 3, skipped)
	require.Len(t, books, 3)
	assert.Equal(t, "A", books[0].Title)
	assert.Equal(t, "C", books[1].Title)
	assert.Equal(t, "F", books[2].Title)
	for _, b := range books {
		assert.Equal(t, b.StableID(), b.Id)
	}
}

func TestBuild_RowPositionInvariant(t *testing.T) {
	embedder := mock.NewMockEmbedder().WithDims(16)
	b := newTestBuilder(t, embedder, WithBatchSize(7), WithPoolSize(4))

	raw := sampleCatalog(50)
	raw[10].Description = ""

	result, err := b.Build(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, 49, result.Index.Len())
	assert.Len(t, result.Books, 49)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, mock.MockModelID, result.Model)

	for i, book := range result.Books {
		want := vectorindex.Normalized(mock.DeterministicVector(book.Description, 16))
		got := result.Index.Vector(i)
		require.Len(t, got, 16)
		for j := range want {
			assert.InDelta(t, want[j], got[j], 1e-6, "position %d", i)
		}
	}
}

func TestBuild_VectorsAreUnitLength(t *testing.T) {
	embedder := mock.NewMockEmbedder().WithDims(8)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		// deliberately not normalized
		return []float32{float32(len(text)), 1, 2, 3, 4, 5, 6, 7}, nil
	}
	b := newTestBuilder(t, embedder)

	result, err := b.Build(context.Background(), sampleCatalog(12))
	require.NoError(t, err)

	for i := 0; i < result.Index.Len(); i++ {
		var sum float64
		for _, f := range result.Index.Vector(i) {
			sum += float64(f) * float64(f)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	raw := sampleCatalog(40)
	query := vectorindex.Normalized(mock.DeterministicVector("something about number 7", 16))

	for _, kind := range []vectorindex.Kind{vectorindex.KindFlat, vectorindex.KindHNSW} {
		t.Run(string(kind), func(t *testing.T) {
			var (
				hits  [][]vectorindex.Neighbor
				blobs [][]byte
			)
			for run := 0; run < 2; run++ {
				b := newTestBuilder(t, mock.NewMockEmbedder().WithDims(16), WithIndexKind(kind), WithPoolSize(3), WithBatchSize(5))
				result, err := b.Build(context.Background(), raw)
				require.NoError(t, err)

				h, err := result.Index.Search(query, 10)
				require.NoError(t, err)
				hits = append(hits, h)

				var buf bytes.Buffer
				require.NoError(t, vectorindex.Write(&buf, result.Index))
				blobs = append(blobs, buf.Bytes())
			}
			assert.Equal(t, hits[0], hits[1])
			if kind == vectorindex.KindFlat {
				assert.Equal(t, blobs[0], blobs[1])
			}
		})
	}
}

func TestBuild_NoCompleteRecords(t *testing.T) {
	b := newTestBuilder(t, mock.NewMockEmbedder())

	_, err := b.Build(context.Background(), []dataset.RawBook{{Title: "only title"}})
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
	assert.ErrorIs(t, err, ErrNoBooks)
}

func TestBuild_EmbeddingFailureAborts(t *testing.T) {
	boom := errors.New("model crashed")
	embedder := mock.NewMockEmbedder().WithDims(4)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "number 33") {
			return nil, boom
		}
		return mock.DeterministicVector(text, 4), nil
	}
	b := newTestBuilder(t, embedder, WithBatchSize(4))

	result, err := b.Build(context.Background(), sampleCatalog(60))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
	assert.ErrorIs(t, err, boom)
}

func TestBuild_WrongDimensions(t *testing.T) {
	embedder := mock.NewMockEmbedder().WithDims(8)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 2, 3}, nil
	}
	b := newTestBuilder(t, embedder)

	_, err := b.Build(context.Background(), sampleCatalog(3))
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
}

func TestBuild_ZeroVectorRejected(t *testing.T) {
	embedder := mock.NewMockEmbedder().WithDims(4)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "number 1 ") {
			return []float32{0, 0, 0, 0}, nil
		}
		return mock.DeterministicVector(text, 4), nil
	}
	b := newTestBuilder(t, embedder)

	_, err := b.Build(context.Background(), sampleCatalog(3))
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
	assert.ErrorIs(t, err, ErrZeroVector)
}

func TestBuild_ShortBatchResult(t *testing.T) {
	embedder := mock.NewMockEmbedder().WithDims(4)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0, 0, 0}}, nil
	}
	b := newTestBuilder(t, embedder, WithBatchSize(3))

	_, err := b.Build(context.Background(), sampleCatalog(3))
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
}

func TestBuild_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	embedder := mock.NewMockEmbedder().WithDims(4)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, 4)
		}
		return out, nil
	}
	b := newTestBuilder(t, embedder, WithPoolSize(1), WithBatchSize(100), WithRetry(3, time.Millisecond))

	result, err := b.Build(context.Background(), sampleCatalog(5))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Index.Len())
	assert.Equal(t, int32(2), calls.Load())
}

func TestBuild_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	embedder := mock.NewMockEmbedder().WithDims(4)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls.Add(1)
		return nil, errors.New("transient")
	}
	b := newTestBuilder(t, embedder, WithPoolSize(1), WithBatchSize(100))

	_, err := b.Build(context.Background(), sampleCatalog(5))
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBuild_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := newTestBuilder(t, mock.NewMockEmbedder().WithDims(4))

	_, err := b.Build(ctx, sampleCatalog(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_UsesCache(t *testing.T) {
	cache, backend, err := badger.NewMemoryEmbeddingCache()
	require.NoError(t, err)
	defer backend.Close()

	raw := sampleCatalog(20)
	embedder := mock.NewMockEmbedder().WithDims(8)
	b := newTestBuilder(t, embedder, WithCache(cache), WithBatchSize(5))

	first, err := b.Build(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 0, first.CacheHits)
	calls := embedder.CallCount()
	assert.Equal(t, 4, calls)

	count, err := cache.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, count)

	raw = append(raw, sampleCatalog(21)[20])
	second, err := b.Build(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 20, second.CacheHits)
	assert.Equal(t, calls+1, embedder.CallCount())

	for i := 0; i < first.Index.Len(); i++ {
		assert.Equal(t, first.Index.Vector(i), second.Index.Vector(i))
	}
}

func TestBuild_Progress(t *testing.T) {
	var out bytes.Buffer
	b := newTestBuilder(t, mock.NewMockEmbedder().WithDims(4), WithProgress(&out), WithPoolSize(1), WithBatchSize(5))

	_, err := b.Build(context.Background(), sampleCatalog(10))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Embedding: 10/10 (100.0%)")
}

func TestBuildFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.csv")
	src := "isbn13,title,authors,description,average_rating\n" +
		"1,Alpha,Ann,A joyful tale,4.1\n" +
		"2,Beta,,Missing authors,3.0\n" +
		"3,Gamma,Gus,A dark secret,3.9\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	b := newTestBuilder(t, mock.NewMockEmbedder().WithDims(4))
	result, err := b.BuildFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, result.Books, 2)
	assert.Equal(t, "Alpha", result.Books[0].Title)
	assert.Equal(t, "Gamma", result.Books[1].Title)
	assert.Equal(t, 1, result.Skipped)

	_, err = b.BuildFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
}
