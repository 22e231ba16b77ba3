package vectorindex

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the index dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnknownKind is returned for an index kind other than flat or hnsw.
	ErrUnknownKind = errors.New("unknown index kind")

	// ErrCorrupt is returned when a persisted index cannot be decoded.
	ErrCorrupt = errors.New("corrupt index data")
)

// NoMatch is the position reported for an empty slot.
const NoMatch = -1

// Kind names an index implementation.
type Kind string

const (
	KindFlat Kind = "flat"
	KindHNSW Kind = "hnsw"
)

// ParseKind converts a user-supplied name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFlat, "":
		return KindFlat, nil
	case KindHNSW:
		return KindHNSW, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Neighbor is one search hit.
type Neighbor struct {
	Position int
	Distance float32 // squared Euclidean
}

// Index stores fixed-dimension vectors by position and answers k-nearest
// neighbor queries. Implementations are safe for concurrent Search calls.
type Index interface {
	// Add appends vectors; the first gets position Len().
	Add(vectors ...[]float32) error

	// Search returns up to k neighbors of query ordered by ascending
	// distance, ties broken by ascending position. k larger than Len()
	// returns every vector.
	Search(query []float32, k int) ([]Neighbor, error)

	// Vector returns the stored vector at position, or nil if out of range.
	Vector(position int) []float32

	Len() int
	Dims() int
	Kind() Kind
}

// New creates an empty index of the given kind.
func New(kind Kind, dims int, opts ...HNSWOption) (Index, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: dims must be positive, got %d", ErrDimensionMismatch, dims)
	}
	switch kind {
	case KindFlat, "":
		return NewFlat(dims), nil
	case KindHNSW:
		return NewHNSW(dims, opts...), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func checkDims(dims int, vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, index has %d", ErrDimensionMismatch, i, len(v), dims)
		}
	}
	return nil
}

// compareNeighbors orders by ascending distance then ascending position.
func compareNeighbors(a, b Neighbor) int {
	switch {
	case a.Distance < b.Distance:
		return -1
	case a.Distance > b.Distance:
		return 1
	}
	return a.Position - b.Position
}
