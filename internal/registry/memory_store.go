package registry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a Store held in process memory.
// Its contents are lost when the process exits.
//
// All methods are thread-safe.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]DeviceRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]DeviceRecord)}
}

// Upsert inserts or replaces the record for identifier.
func (s *MemoryStore) Upsert(_ context.Context, identifier, address string, status Status, seenAt time.Time) error {
	id, addr, err := validateUpsert(identifier, address, status)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[id] = DeviceRecord{
		Identifier: id,
		Address:    addr,
		Status:     status,
		LastSeen:   seenAt.UTC(),
	}
	return nil
}

// ListAll returns every record sorted by identifier.
func (s *MemoryStore) ListAll(_ context.Context) ([]DeviceRecord, error) {
	s.mu.RLock()
	records := make([]DeviceRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Identifier < records[j].Identifier
	})
	return records, nil
}

// Remove deletes the record for identifier, if any.
func (s *MemoryStore) Remove(_ context.Context, identifier string) error {
	if err := checkIdentifier(identifier); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, identifier)
	s.mu.Unlock()
	return nil
}

// MarkStaleOffline transitions stale online records to offline.
func (s *MemoryStore) MarkStaleOffline(_ context.Context, now time.Time, offlineTimeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, rec := range s.records {
		if !isStale(rec, now, offlineTimeout) {
			continue
		}
		rec.Status = StatusOffline
		s.records[id] = rec
		count++
	}
	return count, nil
}

// CountByStatus returns the number of records per status.
func (s *MemoryStore) CountByStatus(_ context.Context) (map[Status]int, error) {
	counts := make(map[Status]int, len(AllStatuses))
	for _, st := range AllStatuses {
		counts[st] = 0
	}

	s.mu.RLock()
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	s.mu.RUnlock()

	return counts, nil
}
