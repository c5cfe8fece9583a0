package registry

import "time"

// Event types emitted by the registry.
const (
	EventDeviceRegistered = "device.registered"
	EventDeviceRemoved    = "device.removed"
	EventDevicesSwept     = "devices.swept"
)

// Event describes a change to the registry.
//
// Device events carry the identifier; sweep events carry only the number of
// devices that went offline.
type Event struct {
	Type         string    `json:"type"`
	Identifier   string    `json:"identifier,omitempty"`
	Address      string    `json:"address,omitempty"`
	Status       Status    `json:"status,omitempty"`
	Transitioned int       `json:"transitioned,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier receives registry events.
//
// Notify must not block for long; it is called on the request path.
// Delivery is best effort.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

// Notify delivers e to every non-nil notifier.
func (ns Notifiers) Notify(e Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(e)
		}
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(Event) {}
