package registry

import (
	"context"
	"time"
)

// Store is the authoritative set of device records.
//
// Every method is atomic with respect to every other method on the same
// Store. Engine failures are returned wrapping ErrStoreUnavailable.
type Store interface {
	// Upsert inserts the record or replaces its address, status and
	// lastSeen. The identifier is stored byte for byte. An empty or
	// all-whitespace identifier, an empty address, or an unknown status
	// fail with ErrInvalidInput.
	Upsert(ctx context.Context, identifier, address string, status Status, seenAt time.Time) error

	// ListAll returns a snapshot of every record sorted by identifier.
	// An empty registry yields an empty, non-nil slice.
	ListAll(ctx context.Context) ([]DeviceRecord, error)

	// Remove deletes the record if present. Removing an unknown
	// identifier is not an error; an empty one fails with ErrInvalidInput.
	Remove(ctx context.Context, identifier string) error

	// MarkStaleOffline sets every online record whose lastSeen is more than
	// offlineTimeout before now to offline, and returns how many changed.
	MarkStaleOffline(ctx context.Context, now time.Time, offlineTimeout time.Duration) (int, error)

	// CountByStatus returns the number of records per status. Every
	// status in AllStatuses is present in the result.
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
