package announce

import (
	"sync"

	"github.com/nerrad567/lanregistry/internal/infrastructure/mqtt"
	"github.com/nerrad567/lanregistry/internal/registry"
)

// defaultEventBuffer is the queue length used when none is given.
const defaultEventBuffer = 256

// Publisher is the subset of mqtt.Client the event publisher needs.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// EventPublisher forwards registry events to MQTT.
//
// Notify only enqueues; a single goroutine publishes in order. When the
// queue is full the event is dropped and a warning logged, so a slow or
// disconnected broker never stalls registrations.
type EventPublisher struct {
	pub    Publisher
	events chan registry.Event
	logger Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewEventPublisher creates a publisher with a queue of buffer events.
func NewEventPublisher(pub Publisher, buffer int) *EventPublisher {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &EventPublisher{
		pub:    pub,
		events: make(chan registry.Event, buffer),
		logger: noopLogger{},
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for the publisher.
func (p *EventPublisher) SetLogger(logger Logger) {
	p.logger = logger
}

// Start launches the publishing goroutine.
func (p *EventPublisher) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop ends the publishing goroutine. Queued events are discarded.
// Safe to call multiple times.
func (p *EventPublisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

// Notify queues e for publishing. It never blocks.
func (p *EventPublisher) Notify(e registry.Event) {
	select {
	case p.events <- e:
	default:
		p.logger.Warn("MQTT event queue full, dropping event", "type", e.Type, "identifier", e.Identifier)
	}
}

func (p *EventPublisher) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case e := <-p.events:
			if err := p.pub.PublishJSON(mqtt.Topics{}.Event(e.Type), e); err != nil {
				p.logger.Warn("publishing event to MQTT failed", "type", e.Type, "error", err)
			}
		}
	}
}
