package artifact

import "errors"

var (
	// ErrCountMismatch is returned when the index and the metadata table
	// disagree on the number of books.
	ErrCountMismatch = errors.New("index and metadata row counts differ")

	// ErrChecksumMismatch is returned when a file or the ordered book IDs do
	// not match the manifest.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrInvalidVersion is returned for a version name that is not a UUID.
	ErrInvalidVersion = errors.New("invalid version")
)
