package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/poiesic/moodshelf/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeServer answers /v1/embeddings with vectors of length dims whose
// first element is the length of the input text.
func newFakeServer(t *testing.T, dims int, batches *[]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if batches != nil {
			*batches = append(*batches, len(req.Input))
		}

		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			v := make([]float32, dims)
			v[0] = float32(len(text))
			data[i] = map[string]any{"object": "embedding", "embedding": v, "index": i}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	var batches []int
	srv := newFakeServer(t, 4, &batches)

	embedder, err := NewEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(srv.URL),
		ai.WithDimensions(4),
		ai.WithBatchSize(2),
	))
	require.NoError(t, err)

	texts := []string{"a", "bb", "ccc"}
	vectors, err := embedder.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, v := range vectors {
		assert.Len(t, v, 4)
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
	assert.Equal(t, []int{2, 1}, batches)
}

func TestEmbedder_EmbedTextStripsNewlines(t *testing.T) {
	srv := newFakeServer(t, 4, nil)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL), ai.WithDimensions(4)))
	require.NoError(t, err)

	v, err := embedder.EmbedText(context.Background(), "line one\nline two")
	require.NoError(t, err)
	assert.Equal(t, float32(len("line one line two")), v[0])
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	srv := newFakeServer(t, 3, nil)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL), ai.WithDimensions(4)))
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "text")
	assert.ErrorIs(t, err, ai.ErrDimensionMismatch)
}

func TestEmbedder_AnyDimensions(t *testing.T) {
	srv := newFakeServer(t, 3, nil)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL), ai.WithDimensions(0)))
	require.NoError(t, err)

	v, err := embedder.EmbedText(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, v, 3)
}

func TestEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"model not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL)))
	require.NoError(t, err)

	_, err = embedder.EmbedTexts(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "404"), err.Error())
}

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider(ai.NewConfig(ai.WithEmbeddingModel("nomic-embed-text"), ai.WithDimensions(768)))
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, "nomic-embed-text", provider.ModelID())
	assert.Equal(t, 768, provider.Dimensions())
	assert.NotNil(t, provider.Embedder())

	_, err = NewProvider(ai.NewConfig(ai.WithEmbeddingModel("")))
	assert.Error(t, err)
}

func TestEmbedder_DoesNotModifyInput(t *testing.T) {
	srv := newFakeServer(t, 4, nil)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL), ai.WithDimensions(4)))
	require.NoError(t, err)

	texts := []string{"first\nsecond"}
	_, err = embedder.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", texts[0])
}
