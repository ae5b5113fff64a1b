package registry

import "errors"

// Domain errors for the registry package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, registry.ErrRegistryFull) {
//	    // handle capacity rejection
//	}
var (
	// ErrRegistryFull is returned when enrolling a new card at capacity.
	// The registry is unchanged.
	ErrRegistryFull = errors.New("registry: full")

	// ErrCardNotFound is returned when unenrolling an identifier that is
	// not enrolled. The registry is unchanged.
	ErrCardNotFound = errors.New("registry: card not found")

	// ErrInvalidUID is returned by boundary validation for identifiers
	// that are not normalised uppercase hex.
	ErrInvalidUID = errors.New("registry: invalid identifier")
)
