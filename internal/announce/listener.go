package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/lanregistry/internal/infrastructure/mqtt"
	"github.com/nerrad567/lanregistry/internal/registry"
)

// handlerTimeout bounds the registry call made for one message.
const handlerTimeout = 5 * time.Second

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registrar is the subset of registry.Service the listener drives.
type Registrar interface {
	Register(ctx context.Context, req registry.RegisterRequest) error
	Deregister(ctx context.Context, identifier string) error
}

// Subscriber is the subset of mqtt.Client the listener needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// announcement is the JSON body of an announce message.
type announcement struct {
	Identifier string `json:"identifier"`
	DeviceName string `json:"device_name"`
	Address    string `json:"address"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
}

// Listener turns MQTT announce and remove messages into registry calls.
type Listener struct {
	registrar Registrar
	logger    Logger
}

// NewListener creates a listener that applies messages through r.
func NewListener(r Registrar) *Listener {
	return &Listener{registrar: r, logger: noopLogger{}}
}

// SetLogger sets the logger for the listener.
func (l *Listener) SetLogger(logger Logger) {
	l.logger = logger
}

// Subscribe registers the announce and remove handlers on sub.
func (l *Listener) Subscribe(sub Subscriber, qos byte) error {
	topics := mqtt.Topics{}

	if err := sub.Subscribe(topics.AllAnnounce(), qos, l.HandleAnnounce); err != nil {
		return fmt.Errorf("subscribing to announcements: %w", err)
	}
	if err := sub.Subscribe(topics.AllRemove(), qos, l.HandleRemove); err != nil {
		return fmt.Errorf("subscribing to removals: %w", err)
	}

	l.logger.Info("listening for MQTT announcements",
		"announce", topics.AllAnnounce(),
		"remove", topics.AllRemove(),
	)
	return nil
}

// HandleAnnounce registers the device named by the topic or payload.
// Malformed or invalid messages are returned as errors and dropped.
func (l *Listener) HandleAnnounce(topic string, payload []byte) error {
	var msg announcement
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding announcement on %s: %w", topic, err)
	}

	status, err := registry.ParseStatus(msg.Status)
	if err != nil {
		return err
	}

	req := registry.RegisterRequest{
		Identifier: firstNonEmpty(mqtt.LastSegment(topic), msg.Identifier, msg.DeviceName),
		Address:    firstNonEmpty(msg.Address, msg.IP),
		Status:     status,
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := l.registrar.Register(ctx, req); err != nil {
		return fmt.Errorf("registering %q from MQTT: %w", req.Identifier, err)
	}
	l.logger.Debug("device announced over MQTT", "identifier", req.Identifier, "address", req.Address)
	return nil
}

// HandleRemove deregisters the device named by the topic.
func (l *Listener) HandleRemove(topic string, _ []byte) error {
	identifier := mqtt.LastSegment(topic)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := l.registrar.Deregister(ctx, identifier); err != nil {
		return fmt.Errorf("deregistering %q from MQTT: %w", identifier, err)
	}
	l.logger.Debug("device removed over MQTT", "identifier", identifier)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
