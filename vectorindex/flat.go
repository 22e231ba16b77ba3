package vectorindex

import (
	"slices"
	"sync"
)

// Flat performs exact exhaustive nearest neighbor search.
// Thread-safe. Suitable for catalogs up to tens of thousands of vectors.
type Flat struct {
	mu   sync.RWMutex
	dims int
	data []float32 // row-major, len == count*dims
}

var _ Index = (*Flat)(nil)

// NewFlat creates an empty flat index.
func NewFlat(dims int) *Flat {
	return &Flat{dims: dims}
}

// Add appends vectors to the index.
func (f *Flat) Add(vectors ...[]float32) error {
	if err := checkDims(f.dims, vectors...); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

// Search scans every vector.
func (f *Flat) Search(query []float32, k int) ([]Neighbor, error) {
	if err := checkDims(f.dims, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	count := len(f.data) / f.dims
	if count == 0 {
		return nil, nil
	}

	results := make([]Neighbor, count)
	for i := 0; i < count; i++ {
		results[i] = Neighbor{
			Position: i,
			Distance: SquaredL2(query, f.row(i)),
		}
	}
	slices.SortFunc(results, compareNeighbors)

	if k > count {
		k = count
	}
	return results[:k], nil
}

// Vector returns the stored vector at position.
func (f *Flat) Vector(position int) []float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if position < 0 || position >= len(f.data)/f.dims {
		return nil
	}
	return slices.Clone(f.row(position))
}

func (f *Flat) row(i int) []float32 {
	return f.data[i*f.dims : (i+1)*f.dims]
}

// Len returns the number of vectors in the index.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data) / f.dims
}

// Dims returns the vector length.
func (f *Flat) Dims() int {
	return f.dims
}

// Kind returns KindFlat.
func (f *Flat) Kind() Kind {
	return KindFlat
}
