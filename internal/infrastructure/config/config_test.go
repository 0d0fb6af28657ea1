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
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
service:
  host: "brewhost"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
sync:
  poll_interval: 250ms
  command_delay: 2s
controllers:
  serial:
    enabled: false
  tcp:
    endpoints:
      - "192.168.0.54:6666"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.Host != "brewhost" {
		t.Errorf("Service.Host = %q, want %q", cfg.Service.Host, "brewhost")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.Sync.PollInterval != 250*time.Millisecond {
		t.Errorf("Sync.PollInterval = %v, want 250ms", cfg.Sync.PollInterval)
	}
	if cfg.Sync.CommandDelay != 2*time.Second {
		t.Errorf("Sync.CommandDelay = %v, want 2s", cfg.Sync.CommandDelay)
	}
	// Untouched values keep their defaults
	if cfg.Sync.ConnectDelay != time.Second {
		t.Errorf("Sync.ConnectDelay = %v, want default 1s", cfg.Sync.ConnectDelay)
	}
	if cfg.Controllers.Serial.Enabled {
		t.Error("Controllers.Serial.Enabled = true, want false")
	}
	if len(cfg.Controllers.TCP.Endpoints) != 1 || cfg.Controllers.TCP.Endpoints[0] != "192.168.0.54:6666" {
		t.Errorf("Controllers.TCP.Endpoints = %v", cfg.Controllers.TCP.Endpoints)
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

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for empty database.path, got nil")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error = %v, want mention of database.path", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BREWPI_DATABASE_PATH", "/env/brewpi.db")
	t.Setenv("BREWPI_MQTT_HOST", "env-broker")
	t.Setenv("BREWPI_SERVICE_HOST", "env-host")
	t.Setenv("BREWPI_TCP_ENDPOINTS", "10.0.0.1:6666, 10.0.0.2:6666,")

	cfg, err := Load(writeConfig(t, "database:\n  path: /file/brewpi.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/env/brewpi.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.Service.Host != "env-host" {
		t.Errorf("Service.Host = %q, want env override", cfg.Service.Host)
	}
	want := []string{"10.0.0.1:6666", "10.0.0.2:6666"}
	if len(cfg.Controllers.TCP.Endpoints) != len(want) {
		t.Fatalf("Controllers.TCP.Endpoints = %v, want %v", cfg.Controllers.TCP.Endpoints, want)
	}
	for i := range want {
		if cfg.Controllers.TCP.Endpoints[i] != want[i] {
			t.Errorf("Endpoints[%d] = %q, want %q", i, cfg.Controllers.TCP.Endpoints[i], want[i])
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			modify:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing database path",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "mqtt enabled without client id",
			modify:  func(c *Config) { c.MQTT.Broker.ClientID = "" },
			wantErr: true,
		},
		{
			name: "mqtt disabled without client id",
			modify: func(c *Config) {
				c.MQTT.Enabled = false
				c.MQTT.Broker.ClientID = ""
			},
			wantErr: false,
		},
		{
			name:    "influxdb enabled without url",
			modify:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			modify:  func(c *Config) { c.Sync.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "negative command delay",
			modify:  func(c *Config) { c.Sync.CommandDelay = -time.Second },
			wantErr: true,
		},
		{
			name:    "retry max below initial",
			modify:  func(c *Config) { c.Sync.RetryMaxDelay = 100 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "forget after zero",
			modify:  func(c *Config) { c.Sync.ForgetAfter = 0 },
			wantErr: true,
		},
		{
			name:    "bad usb id",
			modify:  func(c *Config) { c.Controllers.Serial.USBIDs = []string{"2341"} },
			wantErr: true,
		},
		{
			name:    "bad tcp endpoint",
			modify:  func(c *Config) { c.Controllers.TCP.Endpoints = []string{"photon.local"} },
			wantErr: true,
		},
		{
			name: "serial disabled ignores baud rate",
			modify: func(c *Config) {
				c.Controllers.Serial.Enabled = false
				c.Controllers.Serial.BaudRate = 0
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
