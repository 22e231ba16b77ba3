// Package dataset reads the raw book catalog and reads and writes the
// metadata table that sits next to a vector index.
//
// The raw catalog is header-mapped: columns may appear in any order and
// unknown columns are ignored. The metadata table has a fixed column order
// (MetadataColumns) and its row order is the index's position order.
package dataset
