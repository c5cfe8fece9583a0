package announce

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lanregistry/internal/registry"
)

// fakePublisher records published messages.
type fakePublisher struct {
	mu        sync.Mutex
	topics    []string
	published chan struct{}
	block     chan struct{}
	err       error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(chan struct{}, 64)}
}

func (f *fakePublisher) PublishJSON(topic string, _ any) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.topics = append(f.topics, topic)
	f.mu.Unlock()
	f.published <- struct{}{}
	return f.err
}

func (f *fakePublisher) Topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...)
}

func waitPublished(t *testing.T, f *fakePublisher, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.published:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for publish %d of %d", i+1, n)
		}
	}
}

func TestEventPublisher_PublishesInOrder(t *testing.T) {
	pub := newFakePublisher()
	p := NewEventPublisher(pub, 8)
	p.Start()
	defer p.Stop()

	p.Notify(registry.Event{Type: registry.EventDeviceRegistered, Identifier: "a"})
	p.Notify(registry.Event{Type: registry.EventDeviceRemoved, Identifier: "a"})
	p.Notify(registry.Event{Type: registry.EventDevicesSwept, Transitioned: 2})
	waitPublished(t, pub, 3)

	want := []string{
		"lanregistry/event/device.registered",
		"lanregistry/event/device.removed",
		"lanregistry/event/devices.swept",
	}
	got := pub.Topics()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("topic[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEventPublisher_DropsWhenFull(t *testing.T) {
	pub := newFakePublisher()
	pub.block = make(chan struct{})
	p := NewEventPublisher(pub, 1)
	p.Start()

	done := make(chan struct{})
	go func() {
		// One in flight, one queued, the rest dropped; none may block.
		for i := 0; i < 10; i++ {
			p.Notify(registry.Event{Type: registry.EventDeviceRegistered})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}

	close(pub.block)
	waitPublished(t, pub, 1)
	p.Stop()

	if got := len(pub.Topics()); got > 2 {
		t.Errorf("published %d events, want at most 2", got)
	}
}

func TestEventPublisher_ErrorsDoNotStop(t *testing.T) {
	pub := newFakePublisher()
	pub.err = errors.New("broker unavailable")
	p := NewEventPublisher(pub, 0)
	p.Start()
	defer p.Stop()

	p.Notify(registry.Event{Type: registry.EventDeviceRegistered})
	p.Notify(registry.Event{Type: registry.EventDeviceRegistered})
	waitPublished(t, pub, 2)
}

func TestEventPublisher_StopIdempotent(t *testing.T) {
	p := NewEventPublisher(newFakePublisher(), 4)
	p.Start()
	p.Stop()
	p.Stop()

	// Notify after Stop must not block or panic.
	p.Notify(registry.Event{Type: registry.EventDeviceRemoved})
}
