package ai

import "errors"

var (
	// ErrNoEmbedding is returned when the embedding service answers with fewer
	// vectors than texts submitted.
	ErrNoEmbedding = errors.New("embedding service returned no vector")

	// ErrDimensionMismatch is returned when a produced vector does not have
	// the configured length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
