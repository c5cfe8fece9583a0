package registry

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
)

// Service is the request-facing façade over a Store.
//
// Register stamps lastSeen from the injected clock, the same clock the
// Sweeper uses to judge staleness. Store failures are returned to the
// caller unchanged and are never retried.
//
// Setters must be called before the service is shared between goroutines.
type Service struct {
	store    Store
	clock    clockwork.Clock
	logger   Logger
	notifier Notifier
	metrics  *Metrics
}

// NewService creates a service over store. A nil clock means the real clock.
func NewService(store Store, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		store:    store,
		clock:    clock,
		logger:   noopLogger{},
		notifier: noopNotifier{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetNotifier sets the sink for device.registered and device.removed events.
func (s *Service) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	s.notifier = n
}

// SetMetrics sets the Prometheus collectors. Nil disables metrics.
func (s *Service) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Register records that a device is present at an address.
//
// An empty status means online. Empty identifier or address, or an unknown
// status, fail with ErrInvalidInput and leave the store untouched.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	err := s.register(ctx, req)
	s.metrics.observeRegistration(err)
	return err
}

func (s *Service) register(ctx context.Context, req RegisterRequest) error {
	id := req.Identifier
	if err := checkIdentifier(id); err != nil {
		return err
	}
	addr, err := normaliseAddress(req.Address)
	if err != nil {
		return err
	}
	status := req.Status
	if status == "" {
		status = StatusOnline
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	now := s.clock.Now().UTC()
	if err := s.store.Upsert(ctx, id, addr, status, now); err != nil {
		return err
	}

	s.logger.Debug("device registered", "identifier", id, "address", addr, "status", string(status))
	s.notifier.Notify(Event{
		Type:       EventDeviceRegistered,
		Identifier: id,
		Address:    addr,
		Status:     status,
		Timestamp:  now,
	})
	return nil
}

// List returns every record sorted by identifier.
// Statuses are as of the last sweep or registration.
func (s *Service) List(ctx context.Context) ([]DeviceRecord, error) {
	return s.store.ListAll(ctx)
}

// ListByStatus returns the records with the given status, sorted by identifier.
func (s *Service) ListByStatus(ctx context.Context, status Status) ([]DeviceRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]DeviceRecord, 0, len(all))
	for _, rec := range all {
		if rec.Status == status {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// Deregister removes a device. Unknown identifiers succeed.
func (s *Service) Deregister(ctx context.Context, identifier string) error {
	if err := checkIdentifier(identifier); err != nil {
		return err
	}

	if err := s.store.Remove(ctx, identifier); err != nil {
		return err
	}

	s.metrics.observeDeregistration()
	s.logger.Debug("device deregistered", "identifier", identifier)
	s.notifier.Notify(Event{
		Type:       EventDeviceRemoved,
		Identifier: identifier,
		Timestamp:  s.clock.Now().UTC(),
	})
	return nil
}
