package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Latchkey Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Controller ControllerConfig `yaml:"controller"`
	Store      StoreConfig      `yaml:"store"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ControllerConfig contains the access-control engine settings.
type ControllerConfig struct {
	// Channels is the number of independently controllable output channels.
	// Permission masks are bitsets over this count, so the limit is 8.
	Channels int `yaml:"channels"`

	// MaxCards bounds the card registry size.
	MaxCards int `yaml:"max_cards"`

	// ModeTimeout is how long Enroll/Unenroll mode stays armed without a
	// qualifying scan before reverting to Normal (seconds).
	ModeTimeout int `yaml:"mode_timeout"`

	// PulseMs is the auto-off duration for granted channel pulses (milliseconds).
	PulseMs int `yaml:"pulse_ms"`

	// TickMs is the control loop tick interval (milliseconds).
	TickMs int `yaml:"tick_ms"`

	// LogCapacity is the audit ring size in entries.
	LogCapacity int `yaml:"log_capacity"`
}

// StoreConfig selects and configures the card persistence adapter.
type StoreConfig struct {
	// Backend is "sqlite" or "flatfile".
	Backend string `yaml:"backend"`

	// Flatfile configures the fixed-slot file adapter.
	Flatfile FlatfileConfig `yaml:"flatfile"`
}

// FlatfileConfig contains fixed-slot file store settings.
type FlatfileConfig struct {
	Path string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// Store backend identifiers.
const (
	StoreBackendSQLite   = "sqlite"
	StoreBackendFlatfile = "flatfile"
)

// maxChannels is the widest supported permission mask.
const maxChannels = 8

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LATCHKEY_SECTION_KEY
// For example: LATCHKEY_DATABASE_PATH, LATCHKEY_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Latchkey",
		},
		Controller: ControllerConfig{
			Channels:    2,
			MaxCards:    64,
			ModeTimeout: 20,
			PulseMs:     5000,
			TickMs:      50,
			LogCapacity: 40,
		},
		Store: StoreConfig{
			Backend: StoreBackendSQLite,
			Flatfile: FlatfileConfig{
				Path: "./data/cards.slots",
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/latchkey.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "latchkey-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LATCHKEY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("LATCHKEY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Store
	if v := os.Getenv("LATCHKEY_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("LATCHKEY_STORE_FLATFILE_PATH"); v != "" {
		cfg.Store.Flatfile.Path = v
	}

	// MQTT
	if v := os.Getenv("LATCHKEY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LATCHKEY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LATCHKEY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("LATCHKEY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("LATCHKEY_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("LATCHKEY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Controller validation. The permission mask is a byte-wide bitset, so
	// the channel count is capped at 8.
	if c.Controller.Channels < 1 || c.Controller.Channels > maxChannels {
		errs = append(errs, fmt.Sprintf("controller.channels must be between 1 and %d", maxChannels))
	}
	if c.Controller.MaxCards < 1 {
		errs = append(errs, "controller.max_cards must be at least 1")
	}
	if c.Controller.ModeTimeout < 1 {
		errs = append(errs, "controller.mode_timeout must be at least 1 second")
	}
	if c.Controller.PulseMs < 1 {
		errs = append(errs, "controller.pulse_ms must be at least 1")
	}
	if c.Controller.TickMs < 1 {
		errs = append(errs, "controller.tick_ms must be at least 1")
	}
	if c.Controller.LogCapacity < 1 {
		errs = append(errs, "controller.log_capacity must be at least 1")
	}

	// Store validation
	switch c.Store.Backend {
	case StoreBackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite store backend")
		}
	case StoreBackendFlatfile:
		if c.Store.Flatfile.Path == "" {
			errs = append(errs, "store.flatfile.path is required for the flatfile store backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be %q or %q", StoreBackendSQLite, StoreBackendFlatfile))
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ModeTimeoutDuration returns the enrollment mode timeout as a Duration.
func (c *ControllerConfig) ModeTimeoutDuration() time.Duration {
	return time.Duration(c.ModeTimeout) * time.Second
}

// PulseDuration returns the grant pulse duration as a Duration.
func (c *ControllerConfig) PulseDuration() time.Duration {
	return time.Duration(c.PulseMs) * time.Millisecond
}

// TickInterval returns the control loop tick interval as a Duration.
func (c *ControllerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
