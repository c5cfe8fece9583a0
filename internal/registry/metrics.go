package registry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration results used as the "result" label.
const (
	resultOK      = "ok"
	resultInvalid = "invalid"
	resultError   = "error"
)

// Metrics holds the Prometheus collectors for the registry.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registrations    *prometheus.CounterVec
	Deregistrations  prometheus.Counter
	Sweeps           *prometheus.CounterVec
	SweepTransitions prometheus.Counter
	SweepDuration    prometheus.Histogram
	Devices          *prometheus.GaugeVec
}

// NewMetrics creates the registry collectors and registers them with reg.
// Passing prometheus.DefaultRegisterer exposes them on promhttp.Handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lanregistry_registrations_total",
			Help: "Total number of registration requests by result",
		}, []string{"result"}),
		Deregistrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "lanregistry_deregistrations_total",
			Help: "Total number of successful deregistrations",
		}),
		Sweeps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lanregistry_sweeps_total",
			Help: "Total number of liveness sweeps by result",
		}, []string{"result"}),
		SweepTransitions: factory.NewCounter(prometheus.CounterOpts{
			Name: "lanregistry_sweep_transitions_total",
			Help: "Total number of devices marked offline by sweeps",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lanregistry_sweep_duration_seconds",
			Help:    "Duration of liveness sweeps",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		Devices: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lanregistry_devices",
			Help: "Number of registered devices by status, as of the last sweep",
		}, []string{"status"}),
	}
}

// observeRegistration counts a registration attempt by its outcome.
func (m *Metrics) observeRegistration(err error) {
	if m == nil {
		return
	}
	result := resultOK
	switch {
	case errors.Is(err, ErrInvalidInput):
		result = resultInvalid
	case err != nil:
		result = resultError
	}
	m.Registrations.WithLabelValues(result).Inc()
}

func (m *Metrics) observeDeregistration() {
	if m == nil {
		return
	}
	m.Deregistrations.Inc()
}

func (m *Metrics) observeSweepError() {
	if m == nil {
		return
	}
	m.Sweeps.WithLabelValues(resultError).Inc()
}

// RecordSweep records a successful sweep pass.
func (m *Metrics) RecordSweep(r SweepReport) {
	if m == nil {
		return
	}
	m.Sweeps.WithLabelValues(resultOK).Inc()
	m.SweepTransitions.Add(float64(r.Transitioned))
	m.SweepDuration.Observe(r.Duration.Seconds())
	m.Devices.WithLabelValues(string(StatusOnline)).Set(float64(r.Online))
	m.Devices.WithLabelValues(string(StatusOffline)).Set(float64(r.Offline))
}
