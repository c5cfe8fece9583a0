package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// lastSeenLayout is the stored form of lastSeen. It is fixed width and always
// UTC, so comparing the text in SQL orders the same way as comparing times.
const lastSeenLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is a Store backed by the devices table.
//
// Each method is a single SQL statement. With the connection pool limited
// to one connection this makes every method atomic.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Upsert inserts the record or replaces address, status and last_seen.
func (s *SQLiteStore) Upsert(ctx context.Context, identifier, address string, status Status, seenAt time.Time) error {
	id, addr, err := validateUpsert(identifier, address, status)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO devices (identifier, address, status, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			address = excluded.address,
			status = excluded.status,
			last_seen = excluded.last_seen`

	if _, err := s.db.ExecContext(ctx, query, id, addr, string(status), formatLastSeen(seenAt)); err != nil {
		return fmt.Errorf("%w: upserting device %q: %w", ErrStoreUnavailable, id, err)
	}
	return nil
}

// ListAll returns every record sorted by identifier.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]DeviceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT identifier, address, status, last_seen FROM devices ORDER BY identifier")
	if err != nil {
		return nil, fmt.Errorf("%w: listing devices: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	records := make([]DeviceRecord, 0)
	for rows.Next() {
		var (
			rec      DeviceRecord
			status   string
			lastSeen sql.NullString
		)
		if err := rows.Scan(&rec.Identifier, &rec.Address, &status, &lastSeen); err != nil {
			return nil, fmt.Errorf("%w: scanning device: %w", ErrStoreUnavailable, err)
		}
		rec.Status = Status(status)
		if lastSeen.Valid {
			t, err := time.Parse(lastSeenLayout, lastSeen.String)
			if err != nil {
				return nil, fmt.Errorf("%w: parsing last_seen for %q: %w", ErrStoreUnavailable, rec.Identifier, err)
			}
			rec.LastSeen = t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating devices: %w", ErrStoreUnavailable, err)
	}
	return records, nil
}

// Remove deletes the record for identifier, if any.
func (s *SQLiteStore) Remove(ctx context.Context, identifier string) error {
	if err := checkIdentifier(identifier); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM devices WHERE identifier = ?", identifier); err != nil {
		return fmt.Errorf("%w: removing device %q: %w", ErrStoreUnavailable, identifier, err)
	}
	return nil
}

// MarkStaleOffline transitions stale online records to offline.
//
// now - last_seen > timeout is evaluated as last_seen < now - timeout.
func (s *SQLiteStore) MarkStaleOffline(ctx context.Context, now time.Time, offlineTimeout time.Duration) (int, error) {
	cutoff := formatLastSeen(now.Add(-offlineTimeout))

	result, err := s.db.ExecContext(ctx, `
		UPDATE devices SET status = ?
		WHERE status = ? AND last_seen IS NOT NULL AND last_seen < ?`,
		string(StatusOffline), string(StatusOnline), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: marking stale devices: %w", ErrStoreUnavailable, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: counting stale devices: %w", ErrStoreUnavailable, err)
	}
	return int(n), nil
}

// CountByStatus returns the number of records per status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM devices GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("%w: counting devices: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	counts := make(map[Status]int, len(AllStatuses))
	for _, st := range AllStatuses {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%w: scanning count: %w", ErrStoreUnavailable, err)
		}
		counts[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating counts: %w", ErrStoreUnavailable, err)
	}
	return counts, nil
}

func formatLastSeen(t time.Time) string {
	return t.UTC().Format(lastSeenLayout)
}
