// Package indexer turns a raw book catalog into a vector index and the
// metadata table that lines up with it.
//
// A build runs in four steps:
//
//  1. Clean drops rows missing a title, authors or a description and keeps
//     the order of the rest. That order is the position of each book.
//  2. Descriptions are embedded in batches on an ants worker pool. Each
//     batch writes into its own slice range, so completion order does not
//     affect positions. Vectors already in the optional embedding cache are
//     reused.
//  3. Every vector is scaled to unit length.
//  4. Vectors are added to a fresh index in position order.
//
// Any failure aborts the whole build; there are no partial results.
// Persisting the result is the job of package artifact.
package indexer
