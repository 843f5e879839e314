package repository

import "errors"

// Error taxonomy for repository operations. Callers classify with errors.Is
// and map to transport codes centrally.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for duplicate run IDs and illegal status
	// transitions.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable is returned when the data store cannot be reached.
	ErrUnavailable = errors.New("store unavailable")

	// ErrDataCorrupt is returned when stored data violates model
	// invariants (roster of the wrong size, negative rates).
	ErrDataCorrupt = errors.New("data corrupt")
)
