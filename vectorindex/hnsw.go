package vectorindex

import (
	"math/rand"
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWConfig holds configuration parameters for HNSW.
type HNSWConfig struct {
	// M is the maximum number of neighbors per node. Default: 16.
	M int

	// EfSearch is the number of candidates considered during search. Default: 100.
	EfSearch int

	// Ml is the level generation factor. Default: 0.25.
	Ml float64

	// Seed drives level assignment so identical inputs build identical graphs.
	Seed int64
}

// HNSWOption configures an HNSW index.
type HNSWOption func(*HNSWConfig)

// WithM sets the maximum neighbors per node.
func WithM(m int) HNSWOption {
	return func(c *HNSWConfig) { c.M = m }
}

// WithEfSearch sets the search candidate list size.
func WithEfSearch(ef int) HNSWOption {
	return func(c *HNSWConfig) { c.EfSearch = ef }
}

// WithSeed sets the level generation seed.
func WithSeed(seed int64) HNSWOption {
	return func(c *HNSWConfig) { c.Seed = seed }
}

func (c HNSWConfig) withDefaults() HNSWConfig {
	if c.M == 0 {
		c.M = 16
	}
	if c.EfSearch == 0 {
		c.EfSearch = 100
	}
	if c.Ml == 0 {
		c.Ml = 0.25
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	return c
}

// HNSW performs approximate nearest neighbor search using a Hierarchical
// Navigable Small World graph. Keys in the graph are positions.
// Vectors are also kept in a shadow slice so hits can be re-scored exactly
// and so the index can be persisted alongside the graph.
type HNSW struct {
	mu      sync.RWMutex
	cfg     HNSWConfig
	dims    int
	graph   *hnsw.Graph[int]
	vectors [][]float32
}

var _ Index = (*HNSW)(nil)

// NewHNSW creates an empty HNSW index.
func NewHNSW(dims int, opts ...HNSWOption) *HNSW {
	var cfg HNSWConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()
	return &HNSW{
		cfg:   cfg,
		dims:  dims,
		graph: newGraph(cfg),
	}
}

func newGraph(cfg HNSWConfig) *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = cfg.Ml
	g.Distance = hnsw.EuclideanDistance
	g.Rng = rand.New(rand.NewSource(cfg.Seed))
	return g
}

// Add inserts vectors into the graph.
func (h *HNSW) Add(vectors ...[]float32) error {
	if err := checkDims(h.dims, vectors...); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	nodes := make([]hnsw.Node[int], 0, len(vectors))
	for _, v := range vectors {
		cp := slices.Clone(v)
		position := len(h.vectors)
		h.vectors = append(h.vectors, cp)
		nodes = append(nodes, hnsw.MakeNode(position, cp))
	}
	h.graph.Add(nodes...)
	return nil
}

// Search returns approximate neighbors re-scored with exact distances.
func (h *HNSW) Search(query []float32, k int) ([]Neighbor, error) {
	if err := checkDims(h.dims, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.vectors) == 0 {
		return nil, nil
	}
	if k > len(h.vectors) {
		k = len(h.vectors)
	}

	nodes := h.graph.Search(query, k)
	results := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, Neighbor{
			Position: n.Key,
			Distance: SquaredL2(query, h.vectors[n.Key]),
		})
	}
	slices.SortFunc(results, compareNeighbors)
	return results, nil
}

// Vector returns the stored vector at position.
func (h *HNSW) Vector(position int) []float32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if position < 0 || position >= len(h.vectors) {
		return nil
	}
	return slices.Clone(h.vectors[position])
}

// Len returns the number of vectors in the index.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors)
}

// Dims returns the vector length.
func (h *HNSW) Dims() int {
	return h.dims
}

// Kind returns KindHNSW.
func (h *HNSW) Kind() Kind {
	return KindHNSW
}
