package registry

import "errors"

// Domain errors for the registry package.
//
// Callers classify failures with errors.Is:
//
//	if errors.Is(err, registry.ErrInvalidInput) {
//	    // reject the request, do not retry
//	}
var (
	// ErrInvalidInput is returned when an identifier or address is empty or
	// too long, or a status value is not recognised. Never retried.
	ErrInvalidInput = errors.New("registry: invalid input")

	// ErrStoreUnavailable wraps any failure of the underlying store engine.
	// Request paths surface it to the caller; the sweeper logs and skips it.
	ErrStoreUnavailable = errors.New("registry: store unavailable")
)
