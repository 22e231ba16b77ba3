// Package vectorindex provides nearest neighbor search over book embeddings.
//
// Vectors are addressed by position: the i-th vector added to an index is
// position i, and positions line up with the rows of the metadata table
// built next to it. Distances are squared Euclidean; for unit vectors this
// equals 2 - 2*cos, so ascending distance is descending cosine similarity.
//
// Two implementations are available:
//
//   - Flat: exact exhaustive search, the default for catalogs of a few
//     thousand books.
//   - HNSW: approximate search over a Hierarchical Navigable Small World
//     graph backed by github.com/coder/hnsw, for larger catalogs.
//
// Both persist through Write and Read, which share a mus-encoded header.
package vectorindex
