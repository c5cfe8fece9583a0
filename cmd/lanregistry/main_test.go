package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/lanregistry/internal/infrastructure/config"
	"github.com/nerrad567/lanregistry/internal/infrastructure/logging"
	"github.com/nerrad567/lanregistry/internal/infrastructure/mqtt"
	"github.com/nerrad567/lanregistry/internal/registry"
)

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestParseFlags(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(configEnv, "")
		opts, err := parseFlags(nil)
		if err != nil {
			t.Fatalf("parseFlags() error = %v", err)
		}
		if opts.configPath != defaultConfigPath || opts.explicitPath {
			t.Errorf("opts = %+v, want default path", opts)
		}
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv(configEnv, "/etc/lanregistry/config.yaml")
		opts, err := parseFlags(nil)
		if err != nil {
			t.Fatalf("parseFlags() error = %v", err)
		}
		if opts.configPath != "/etc/lanregistry/config.yaml" || !opts.explicitPath {
			t.Errorf("opts = %+v, want env path", opts)
		}
	})

	t.Run("flag wins over env", func(t *testing.T) {
		t.Setenv(configEnv, "/etc/lanregistry/config.yaml")
		opts, err := parseFlags([]string{"--config", "/tmp/custom.yaml"})
		if err != nil {
			t.Fatalf("parseFlags() error = %v", err)
		}
		if opts.configPath != "/tmp/custom.yaml" {
			t.Errorf("configPath = %q, want /tmp/custom.yaml", opts.configPath)
		}
	})

	t.Run("unknown flag", func(t *testing.T) {
		if _, err := parseFlags([]string{"--bogus"}); err == nil {
			t.Error("parseFlags(--bogus) expected error")
		}
	})
}

func TestLoadConfig_MissingDefaultFallsBack(t *testing.T) {
	cfg, err := loadConfig(options{configPath: filepath.Join(t.TempDir(), "absent.yaml")})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Registry.OfflineTimeout != 90*time.Second {
		t.Errorf("OfflineTimeout = %v, want default 90s", cfg.Registry.OfflineTimeout)
	}
}

func TestRun_Version(t *testing.T) {
	if err := run(context.Background(), []string{"--version"}); err != nil {
		t.Errorf("run(--version) error = %v", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, []string{"--config", "/nonexistent/path/config.yaml"})
	if err == nil {
		t.Fatal("run() should fail with a missing explicit config path")
	}
}

func TestRun_InvalidRegistryTiming(t *testing.T) {
	path := writeConfig(t, `
registry:
  backend: memory
  offline_timeout: 10s
  sweep_interval: 30s
`)

	err := run(context.Background(), []string{"--config", path})
	if err == nil || !strings.Contains(err.Error(), "sweep_interval") {
		t.Fatalf("run() error = %v, want sweep_interval validation failure", err)
	}
}

func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	port := freePort(t)
	path := writeConfig(t, fmt.Sprintf(`
database:
  path: %q
  wal_mode: true
  busy_timeout: 5

registry:
  backend: sqlite
  offline_timeout: 90s
  sweep_interval: 15s

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: %d
  timeouts:
    read: 5
    write: 5
    idle: 5
`, filepath.Join(tmpDir, "devices.db"), port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"--config", path})
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitForHealthy(t, base+"/api/v1/health", done)

	resp, err := http.Post(base+"/register", "application/json",
		strings.NewReader(`{"device_name":"esp32-hall","ip":"192.168.1.50"}`))
	if err != nil {
		t.Fatalf("POST /register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /register status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(base + "/api/v1/devices")
	if err != nil {
		t.Fatalf("GET /api/v1/devices: %v", err)
	}
	var list struct {
		Count int `json:"count"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if decodeErr != nil {
		t.Fatalf("decode: %v", decodeErr)
	}
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want clean shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func waitForHealthy(t *testing.T, url string, done <-chan error) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-done:
			t.Fatalf("run() exited during startup: %v", err)
		default:
		}
		resp, err := http.Get(url) //nolint:gosec,noctx // Test-only polling of a local URL
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("server did not become healthy")
}

// fakeTransport stands in for the MQTT client. Like a broker holding a
// retained message, it delivers an announcement the moment the announce
// subscription is made.
type fakeTransport struct {
	mu         sync.Mutex
	subscribed []string
	failTopic  string
	published  chan registry.Event
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{published: make(chan registry.Event, 16)}
}

func (f *fakeTransport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if topic == f.failTopic {
		return errors.New("not authorised")
	}
	f.mu.Lock()
	f.subscribed = append(f.subscribed, topic)
	f.mu.Unlock()

	if topic == (mqtt.Topics{}).AllAnnounce() {
		go handler((mqtt.Topics{}).Announce("esp32-hall"), []byte(`{"ip":"192.168.1.50"}`)) //nolint:errcheck // Checked via published events
	}
	return nil
}

func (f *fakeTransport) PublishJSON(_ string, v any) error {
	if e, ok := v.(registry.Event); ok {
		f.published <- e
	}
	return nil
}

func (f *fakeTransport) QoS() byte { return 1 }

// eventSink records events delivered to a base notifier.
type eventSink chan registry.Event

func (s eventSink) Notify(e registry.Event) { s <- e }

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func newBridgeDeps() (*registry.Service, *registry.Sweeper) {
	store := registry.NewMemoryStore()
	clock := clockwork.NewRealClock()
	service := registry.NewService(store, clock)
	sweeper := registry.NewSweeper(store, clock, registry.SweeperConfig{
		Interval:       15 * time.Second,
		OfflineTimeout: 90 * time.Second,
	})
	return service, sweeper
}

func TestStartMQTTBridge_NotifiersReadyBeforeFirstAnnouncement(t *testing.T) {
	service, sweeper := newBridgeDeps()
	transport := newFakeTransport()
	sink := make(eventSink, 16)

	publisher, err := startMQTTBridge(transport, service, sweeper, registry.Notifiers{sink}, testLogger())
	if err != nil {
		t.Fatalf("startMQTTBridge() error = %v", err)
	}
	defer publisher.Stop()

	for name, ch := range map[string]<-chan registry.Event{"base notifier": sink, "MQTT publisher": transport.published} {
		select {
		case e := <-ch:
			if e.Type != registry.EventDeviceRegistered || e.Identifier != "esp32-hall" {
				t.Errorf("%s got %+v, want device.registered for esp32-hall", name, e)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("%s never saw the retained announcement", name)
		}
	}

	devices, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 1 || devices[0].Address != "192.168.1.50" {
		t.Errorf("devices = %+v, want esp32-hall at 192.168.1.50", devices)
	}
}

func TestStartMQTTBridge_SubscribeFailure(t *testing.T) {
	service, sweeper := newBridgeDeps()
	transport := newFakeTransport()
	transport.failTopic = (mqtt.Topics{}).AllAnnounce()

	publisher, err := startMQTTBridge(transport, service, sweeper, nil, testLogger())
	if err == nil {
		publisher.Stop()
		t.Fatal("startMQTTBridge() expected subscribe error")
	}
	if !strings.Contains(err.Error(), "not authorised") {
		t.Errorf("error = %v, want the broker reason", err)
	}
}
