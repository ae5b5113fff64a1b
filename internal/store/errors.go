package store

import "errors"

// Domain errors for the store package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, store.ErrNotFound) {
//	    // handle missing record
//	}
var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrWriteFailed is returned when a durable write did not complete.
	// It is retryable: callers keep their in-memory state and flag
	// degraded durability rather than treating the mutation as lost.
	ErrWriteFailed = errors.New("store: write failed")

	// ErrCorrupt is returned when the backing medium fails validation
	// (bad magic, mismatched geometry, truncated slot region).
	ErrCorrupt = errors.New("store: corrupt")

	// ErrFull is returned when the backing medium has no free slot left.
	ErrFull = errors.New("store: full")
)
