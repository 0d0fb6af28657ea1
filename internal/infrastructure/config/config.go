package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the BrewPi service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service     ServiceConfig     `yaml:"service"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Sync        SyncConfig        `yaml:"sync"`
	Controllers ControllersConfig `yaml:"controllers"`
}

// ServiceConfig contains service identity settings.
type ServiceConfig struct {
	Name string `yaml:"name"`

	// Host overrides the host name used to build controller URIs.
	// If empty, os.Hostname() is used.
	Host string `yaml:"host"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SyncConfig controls the controller synchronisation loop cadence.
type SyncConfig struct {
	// PollInterval is the pause at the end of every loop iteration.
	// Default: 500ms
	PollInterval time.Duration `yaml:"poll_interval"`

	// CommandDelay is how long to wait after sending the device listing
	// command before reading the controller's replies.
	// Default: 1s
	CommandDelay time.Duration `yaml:"command_delay"`

	// ConnectDelay is the pause before connecting a newly discovered controller.
	// Default: 1s
	ConnectDelay time.Duration `yaml:"connect_delay"`

	// HealthInterval is how often the loop health status is published.
	// Default: 30s
	HealthInterval time.Duration `yaml:"health_interval"`

	// RetryInitialDelay is the first reconnect backoff for a failed controller.
	// Default: 1s
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay"`

	// RetryMaxDelay caps the reconnect backoff.
	// Default: 2m
	RetryMaxDelay time.Duration `yaml:"retry_max_delay"`

	// ForgetAfter is how many discovery rounds in a row a disconnected
	// controller may be missing before it is dropped (e.g. an unplugged board).
	// Default: 5
	ForgetAfter int `yaml:"forget_after"`
}

// ControllersConfig describes where BrewPi controllers are looked for.
type ControllersConfig struct {
	Serial SerialConfig `yaml:"serial"`
	TCP    TCPConfig    `yaml:"tcp"`
}

// SerialConfig contains serial port discovery settings.
type SerialConfig struct {
	Enabled  bool `yaml:"enabled"`
	BaudRate int  `yaml:"baud_rate"`

	// Ports are always treated as controllers, whether or not they are
	// found by USB enumeration (e.g. "/dev/ttyAMA0").
	Ports []string `yaml:"ports"`

	// USBIDs lists "VID:PID" pairs (hex) identifying BrewPi boards during
	// USB enumeration.
	USBIDs []string `yaml:"usb_ids"`
}

// TCPConfig contains network controller settings.
type TCPConfig struct {
	// Endpoints are "host:port" pairs of controllers reachable over TCP
	// (e.g. a WiFi-connected Photon on "192.168.0.54:6666").
	Endpoints []string `yaml:"endpoints"`

	// DialTimeout bounds each TCP connect attempt.
	// Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BREWPI_SECTION_KEY
// For example: BREWPI_DATABASE_PATH, BREWPI_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "brewpi-service",
		},
		Database: DatabaseConfig{
			Path:        "./data/brewpi.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "brewpi-service",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Sync: SyncConfig{
			PollInterval:      500 * time.Millisecond,
			CommandDelay:      time.Second,
			ConnectDelay:      time.Second,
			HealthInterval:    30 * time.Second,
			RetryInitialDelay: time.Second,
			RetryMaxDelay:     2 * time.Minute,
			ForgetAfter:       5,
		},
		Controllers: ControllersConfig{
			Serial: SerialConfig{
				Enabled:  true,
				BaudRate: 57600,
				USBIDs: []string{
					"2341:0043", // Arduino Uno
					"2341:8036", // Arduino Leonardo
					"1D50:607D", // Spark Core
					"2B04:C006", // Particle Photon
					"2B04:C008", // Particle P1
				},
			},
			TCP: TCPConfig{
				DialTimeout: 5 * time.Second,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BREWPI_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BREWPI_SERVICE_HOST"); v != "" {
		cfg.Service.Host = v
	}

	if v := os.Getenv("BREWPI_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("BREWPI_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BREWPI_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BREWPI_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("BREWPI_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Comma separated, replaces the file value entirely
	if v := os.Getenv("BREWPI_TCP_ENDPOINTS"); v != "" {
		var endpoints []string
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				endpoints = append(endpoints, e)
			}
		}
		cfg.Controllers.TCP.Endpoints = endpoints
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Sync.PollInterval <= 0 {
		errs = append(errs, "sync.poll_interval must be positive")
	}
	if c.Sync.CommandDelay < 0 || c.Sync.ConnectDelay < 0 {
		errs = append(errs, "sync delays must not be negative")
	}
	if c.Sync.RetryInitialDelay <= 0 || c.Sync.RetryMaxDelay < c.Sync.RetryInitialDelay {
		errs = append(errs, "sync.retry_max_delay must be at least sync.retry_initial_delay (both positive)")
	}
	if c.Sync.ForgetAfter < 1 {
		errs = append(errs, "sync.forget_after must be at least 1")
	}

	if c.Controllers.Serial.Enabled && c.Controllers.Serial.BaudRate <= 0 {
		errs = append(errs, "controllers.serial.baud_rate must be positive")
	}
	for _, id := range c.Controllers.Serial.USBIDs {
		if _, _, ok := strings.Cut(id, ":"); !ok {
			errs = append(errs, fmt.Sprintf("controllers.serial.usb_ids: %q is not VID:PID", id))
		}
	}
	for _, ep := range c.Controllers.TCP.Endpoints {
		if !strings.Contains(ep, ":") {
			errs = append(errs, fmt.Sprintf("controllers.tcp.endpoints: %q is not host:port", ep))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
