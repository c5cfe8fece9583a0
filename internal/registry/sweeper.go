package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// sweepKey is the singleflight key shared by every sweep trigger.
const sweepKey = "sweep"

// SweeperConfig controls the liveness sweep cadence.
type SweeperConfig struct {
	// Interval is the wait between the end of one pass and the start of the next.
	Interval time.Duration

	// OfflineTimeout is how long an online device may stay silent.
	OfflineTimeout time.Duration
}

// SweepReport summarises one successful sweep pass.
type SweepReport struct {
	At           time.Time
	Transitioned int
	Online       int
	Offline      int
	Duration     time.Duration
}

// SweepRecorder receives a report after each successful pass.
type SweepRecorder interface {
	RecordSweep(SweepReport)
}

// SweepRecorderFunc adapts a function to the SweepRecorder interface.
type SweepRecorderFunc func(SweepReport)

// RecordSweep calls f(r).
func (f SweepRecorderFunc) RecordSweep(r SweepReport) { f(r) }

// Sweeper periodically marks silent devices offline.
//
// A pass runs as soon as the sweeper starts, then again Interval after each
// pass completes, so scheduled passes never overlap. SweepNow shares an
// in-flight pass instead of starting a second one. Pass failures are logged
// and the loop keeps going.
//
// Setters must be called before Start.
type Sweeper struct {
	store Store
	clock clockwork.Clock
	cfg   SweeperConfig

	logger    Logger
	notifier  Notifier
	metrics   *Metrics
	recorders []SweepRecorder

	group singleflight.Group

	// Lifecycle
	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSweeper creates a sweeper over store. A nil clock means the real clock.
func NewSweeper(store Store, clock clockwork.Clock, cfg SweeperConfig) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{
		store:    store,
		clock:    clock,
		cfg:      cfg,
		logger:   noopLogger{},
		notifier: noopNotifier{},
	}
}

// SetLogger sets the logger for the sweeper.
func (s *Sweeper) SetLogger(logger Logger) {
	s.logger = logger
}

// SetNotifier sets the sink for devices.swept events.
func (s *Sweeper) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	s.notifier = n
}

// SetMetrics sets the Prometheus collectors. Nil disables metrics.
func (s *Sweeper) SetMetrics(m *Metrics) {
	s.metrics = m
}

// AddRecorder adds a sink for sweep reports.
func (s *Sweeper) AddRecorder(r SweepRecorder) {
	if r != nil {
		s.recorders = append(s.recorders, r)
	}
}

// Start launches the sweep loop. It returns once the loop is running.
// The loop ends when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %v", s.cfg.Interval)
	}
	if s.cfg.OfflineTimeout <= 0 {
		return fmt.Errorf("offline timeout must be positive, got %v", s.cfg.OfflineTimeout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.New("sweeper already stopped")
	}
	if s.started {
		return errors.New("sweeper already started")
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(loopCtx)

	s.logger.Info("liveness sweeper started",
		"interval", s.cfg.Interval.String(),
		"offline_timeout", s.cfg.OfflineTimeout.String(),
	)
	return nil
}

// Stop ends the loop and waits for an in-flight pass to return.
// Safe to call multiple times, and before Start.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		s.wg.Wait()
		s.logger.Info("liveness sweeper stopped")
	})
}

// SweepNow runs a pass immediately and returns the number of devices
// marked offline. If a pass is already running, SweepNow waits for it and
// returns its result.
//
// The pass may be shared with other callers, so it is detached from the
// caller's cancellation.
func (s *Sweeper) SweepNow(ctx context.Context) (int, error) {
	return s.sweepShared(context.WithoutCancel(ctx))
}

// sweepShared runs one pass, coalescing concurrent requests.
func (s *Sweeper) sweepShared(ctx context.Context) (int, error) {
	v, err, _ := s.group.Do(sweepKey, func() (any, error) {
		return s.sweep(ctx)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil //nolint:forcetypeassert // sweep always returns int
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		if _, err := s.sweepShared(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("liveness sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.cfg.Interval):
		}
	}
}

// sweep performs one pass against the store.
func (s *Sweeper) sweep(ctx context.Context) (int, error) {
	start := s.clock.Now()

	n, err := s.store.MarkStaleOffline(ctx, start, s.cfg.OfflineTimeout)
	if err != nil {
		s.metrics.observeSweepError()
		return 0, fmt.Errorf("marking stale devices: %w", err)
	}

	at := start.UTC()
	if n > 0 {
		s.logger.Info("devices marked offline", "count", n)
		s.notifier.Notify(Event{
			Type:         EventDevicesSwept,
			Transitioned: n,
			Timestamp:    at,
		})
	}

	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		// The transitions are committed; only the report is lost.
		s.metrics.observeSweepError()
		s.logger.Warn("counting devices after sweep failed", "error", err)
		return n, nil
	}

	report := SweepReport{
		At:           at,
		Transitioned: n,
		Online:       counts[StatusOnline],
		Offline:      counts[StatusOffline],
		Duration:     s.clock.Since(start),
	}
	s.metrics.RecordSweep(report)
	for _, r := range s.recorders {
		r.RecordSweep(report)
	}

	s.logger.Debug("liveness sweep complete",
		"transitioned", n,
		"online", report.Online,
		"offline", report.Offline,
	)
	return n, nil
}
