package store

import "context"

// Record is one persisted unit: an identifier and its opaque payload.
type Record struct {
	ID   string
	Data []byte
}

// Store is the persistence adapter contract for card records.
//
// Implementations must write each record as a self-contained unit: a
// failed or interrupted write may lose that record but must never corrupt
// neighbouring records. No multi-record atomicity is required or assumed.
//
// Write failures are reported as errors wrapping ErrWriteFailed; callers
// treat them as retryable and non-fatal (the in-memory state is kept and
// durability is flagged as degraded).
type Store interface {
	// Put durably writes data under id, replacing any previous value.
	Put(ctx context.Context, id string, data []byte) error

	// Get returns the data stored under id.
	// Returns ErrNotFound if the id is absent.
	Get(ctx context.Context, id string) ([]byte, error)

	// Delete removes the record stored under id.
	// Returns ErrNotFound if the id is absent.
	Delete(ctx context.Context, id string) error

	// Enumerate returns all stored records. Order is unspecified.
	Enumerate(ctx context.Context) ([]Record, error)

	// Close releases any resources held by the store.
	Close() error
}
