package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSnapshotNotFound means the vocabulary location does not contain a usable snapshot.
	ErrSnapshotNotFound = errors.New("vocabulary snapshot not found")
	// ErrEnrichmentPrecondition means mapping enrichment was requested without a loaded snapshot.
	// Unlike the read paths, enrichment must fail loudly rather than write an empty derived set.
	ErrEnrichmentPrecondition = errors.New("mapping enrichment requires a loaded vocabulary snapshot")
)
