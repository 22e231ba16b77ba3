package storage

import "context"

// EmbeddingCache stores embedding vectors keyed by model and text so that an
// unchanged catalog can be re-indexed without calling the model again.
// Implementations must be thread-safe and support concurrent access.
type EmbeddingCache interface {
	// GetEmbeddings looks up cached vectors for texts under model.
	// The result has one entry per text, nil where the text is not cached.
	GetEmbeddings(ctx context.Context, model string, texts []string) ([][]float32, error)

	// PutEmbeddings stores vectors for texts under model. texts and vectors
	// must have the same length.
	PutEmbeddings(ctx context.Context, model string, texts []string, vectors [][]float32) error

	// Count returns the number of cached vectors across all models.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the cache.
	Close() error
}
