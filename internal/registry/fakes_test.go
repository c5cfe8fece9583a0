package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var errEngine = errors.New("disk I/O error")

// faultyStore wraps a Store and injects failures.
type faultyStore struct {
	Store

	mu            sync.Mutex
	failUpsert    bool
	failList      bool
	failRemove    bool
	failSweeps    int // number of upcoming MarkStaleOffline calls to fail
	sweepDelay    time.Duration
	honourCtx     bool // fail a pass whose context ends during the delay
	sweepCalls    atomic.Int32
	activeSweeps  atomic.Int32
	maxConcurrent atomic.Int32
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: NewMemoryStore()}
}

func unavailable(op string) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, errEngine)
}

func (f *faultyStore) Upsert(ctx context.Context, identifier, address string, status Status, seenAt time.Time) error {
	f.mu.Lock()
	fail := f.failUpsert
	f.mu.Unlock()
	if fail {
		return unavailable("upsert")
	}
	return f.Store.Upsert(ctx, identifier, address, status, seenAt)
}

func (f *faultyStore) ListAll(ctx context.Context) ([]DeviceRecord, error) {
	f.mu.Lock()
	fail := f.failList
	f.mu.Unlock()
	if fail {
		return nil, unavailable("list")
	}
	return f.Store.ListAll(ctx)
}

func (f *faultyStore) Remove(ctx context.Context, identifier string) error {
	f.mu.Lock()
	fail := f.failRemove
	f.mu.Unlock()
	if fail {
		return unavailable("remove")
	}
	return f.Store.Remove(ctx, identifier)
}

func (f *faultyStore) MarkStaleOffline(ctx context.Context, now time.Time, offlineTimeout time.Duration) (int, error) {
	f.sweepCalls.Add(1)

	active := f.activeSweeps.Add(1)
	defer f.activeSweeps.Add(-1)
	for {
		current := f.maxConcurrent.Load()
		if active <= current || f.maxConcurrent.CompareAndSwap(current, active) {
			break
		}
	}

	f.mu.Lock()
	fail := f.failSweeps > 0
	if fail {
		f.failSweeps--
	}
	delay := f.sweepDelay
	honourCtx := f.honourCtx
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if honourCtx && ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if fail {
		return 0, unavailable("sweep")
	}
	return f.Store.MarkStaleOffline(ctx, now, offlineTimeout)
}

// recordingNotifier collects events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingNotifier) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// recordingLogger counts log calls by level.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}
