package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
service:
  id: "test-registry"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
registry:
  backend: sqlite
  offline_timeout: 2m
  sweep_interval: 20s
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.ID != "test-registry" {
		t.Errorf("Service.ID = %q, want %q", cfg.Service.ID, "test-registry")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Registry.OfflineTimeout != 2*time.Minute {
		t.Errorf("Registry.OfflineTimeout = %v, want %v", cfg.Registry.OfflineTimeout, 2*time.Minute)
	}
	if cfg.Registry.SweepInterval != 20*time.Second {
		t.Errorf("Registry.SweepInterval = %v, want %v", cfg.Registry.SweepInterval, 20*time.Second)
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, "service:\n  name: only-a-name\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Registry.Backend != BackendSQLite {
		t.Errorf("Registry.Backend = %q, want %q", cfg.Registry.Backend, BackendSQLite)
	}
	if cfg.Registry.OfflineTimeout != 90*time.Second {
		t.Errorf("Registry.OfflineTimeout = %v, want 90s", cfg.Registry.OfflineTimeout)
	}
	if cfg.Registry.SweepInterval != 15*time.Second {
		t.Errorf("Registry.SweepInterval = %v, want 15s", cfg.Registry.SweepInterval)
	}
	if cfg.API.Port != 5000 {
		t.Errorf("API.Port = %d, want 5000", cfg.API.Port)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = true, want false by default")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LANREGISTRY_DATABASE_PATH", "/var/lib/lanregistry/devices.db")
	t.Setenv("LANREGISTRY_OFFLINE_TIMEOUT", "5m")
	t.Setenv("LANREGISTRY_SWEEP_INTERVAL", "30s")
	t.Setenv("LANREGISTRY_API_PORT", "9090")
	t.Setenv("LANREGISTRY_MQTT_HOST", "broker.lan")

	cfg, err := Load(writeConfig(t, "service:\n  id: env-test\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/var/lib/lanregistry/devices.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Registry.OfflineTimeout != 5*time.Minute {
		t.Errorf("Registry.OfflineTimeout = %v, want 5m", cfg.Registry.OfflineTimeout)
	}
	if cfg.Registry.SweepInterval != 30*time.Second {
		t.Errorf("Registry.SweepInterval = %v, want 30s", cfg.Registry.SweepInterval)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.MQTT.Broker.Host != "broker.lan" {
		t.Errorf("MQTT.Broker.Host = %q, want broker.lan", cfg.MQTT.Broker.Host)
	}
}

func TestLoad_InvalidEnvDuration(t *testing.T) {
	t.Setenv("LANREGISTRY_OFFLINE_TIMEOUT", "ninety")

	_, err := Load(writeConfig(t, "service:\n  id: env-test\n"))
	if err == nil {
		t.Fatal("Load() expected error for unparseable duration")
	}
	if !strings.Contains(err.Error(), "LANREGISTRY_OFFLINE_TIMEOUT") {
		t.Errorf("error %q does not name the variable", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:    "missing service id",
			modify:  func(c *Config) { c.Service.ID = "" },
			wantErr: "service.id",
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Registry.Backend = "redis" },
			wantErr: "registry.backend",
		},
		{
			name:    "sqlite without path",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name: "memory backend without path",
			modify: func(c *Config) {
				c.Registry.Backend = BackendMemory
				c.Database.Path = ""
			},
		},
		{
			name:    "zero offline timeout",
			modify:  func(c *Config) { c.Registry.OfflineTimeout = 0 },
			wantErr: "offline_timeout",
		},
		{
			name:    "negative sweep interval",
			modify:  func(c *Config) { c.Registry.SweepInterval = -time.Second },
			wantErr: "sweep_interval",
		},
		{
			name: "sweep interval not shorter than timeout",
			modify: func(c *Config) {
				c.Registry.SweepInterval = 90 * time.Second
				c.Registry.OfflineTimeout = 90 * time.Second
			},
			wantErr: "shorter than",
		},
		{
			name:    "invalid qos",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name: "mqtt enabled without host",
			modify: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Broker.Host = ""
			},
			wantErr: "mqtt.broker.host",
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "influxdb enabled without url",
			modify:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name:    "metrics path without slash",
			modify:  func(c *Config) { c.Metrics.Path = "metrics" },
			wantErr: "metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.API.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.API.GetWriteTimeout(); got != 30*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 30s", got)
	}
	if got := cfg.API.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
}
