// Package artifact persists built indexes as versioned artifact pairs.
//
// Each version lives in its own directory:
//
//	<dir>/versions/<uuid>/index.bin      vector index
//	<dir>/versions/<uuid>/books.csv      metadata table, row i = position i
//	<dir>/versions/<uuid>/manifest.yaml  counts, dimensions and checksums
//	<dir>/CURRENT                        name of the version being served
//
// Publish writes a version under a temporary name, renames it into place
// and only then swaps CURRENT, so readers never observe a half-written pair.
// Load verifies that the index and the table agree before returning them.
package artifact
