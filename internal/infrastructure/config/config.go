package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for HOTAS Relay Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service        ServiceConfig         `yaml:"service"`
	Engine         EngineConfig          `yaml:"engine"`
	VirtualDevices []VirtualDeviceConfig `yaml:"virtual_devices"`
	Database       DatabaseConfig        `yaml:"database"`
	MQTT           MQTTConfig            `yaml:"mqtt"`
	API            APIConfig             `yaml:"api"`
	WebSocket      WebSocketConfig       `yaml:"websocket"`
	InfluxDB       InfluxDBConfig        `yaml:"influxdb"`
	Logging        LoggingConfig         `yaml:"logging"`
	Security       SecurityConfig        `yaml:"security"`
}

// ServiceConfig contains instance-specific information.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// EngineConfig contains rebind engine loop settings.
type EngineConfig struct {
	// TickRate is the evaluation frequency in Hz.
	TickRate int `yaml:"tick_rate"`

	// SaveInterval is how often persisted transform state (trim bias,
	// toggle latches) is flushed to the database, in seconds. 0 disables
	// periodic flushing; state is still saved on shutdown.
	SaveInterval int `yaml:"save_interval"`

	// DevMode commits write-sets to an in-memory sink instead of MQTT.
	DevMode bool `yaml:"dev_mode"`
}

// VirtualDeviceConfig declares one virtual device and its channel
// counts. The engine only writes channels that exist, so devices must
// be declared up front; a rebind targeting an undeclared device faults.
type VirtualDeviceConfig struct {
	ID      string `yaml:"id"`
	Buttons int    `yaml:"buttons"`
	Axes    int    `yaml:"axes"`
	Hats    int    `yaml:"hats"`
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
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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

	// TickBroadcastDivisor throttles per-tick summaries: a summary is
	// broadcast every N ticks. 0 disables tick summaries entirely.
	TickBroadcastDivisor int `yaml:"tick_broadcast_divisor"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
// When Secret is empty the API runs unauthenticated; this is the expected
// mode for a single-user instance bound to localhost.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOTASRELAY_SECTION_KEY
// For example: HOTASRELAY_DATABASE_PATH, HOTASRELAY_ENGINE_TICK_RATE
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
		Service: ServiceConfig{
			ID:   "relay-001",
			Name: "HOTAS Relay",
		},
		Engine: EngineConfig{
			TickRate:     250,
			SaveInterval: 30,
		},
		VirtualDevices: []VirtualDeviceConfig{
			{ID: "vjoy-1", Buttons: 32, Axes: 8, Hats: 1},
		},
		Database: DatabaseConfig{
			Path:        "./data/hotasrelay.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hotasrelay-core",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8087,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:                 "/ws",
			MaxMessageSize:       8192,
			PingInterval:         30,
			PongTimeout:          10,
			TickBroadcastDivisor: 25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 1440,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOTASRELAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("HOTASRELAY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Engine
	if v := os.Getenv("HOTASRELAY_ENGINE_TICK_RATE"); v != "" {
		if rate, err := strconv.Atoi(v); err == nil {
			cfg.Engine.TickRate = rate
		}
	}

	// MQTT
	if v := os.Getenv("HOTASRELAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOTASRELAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOTASRELAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HOTASRELAY_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HOTASRELAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("HOTASRELAY_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// Logging
	if v := os.Getenv("HOTASRELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Engine.TickRate <= 0 {
		return fmt.Errorf("engine.tick_rate must be positive, got %d", c.Engine.TickRate)
	}
	if c.Engine.TickRate > 1000 {
		return fmt.Errorf("engine.tick_rate must be at most 1000, got %d", c.Engine.TickRate)
	}
	if c.Engine.SaveInterval < 0 {
		return fmt.Errorf("engine.save_interval must not be negative, got %d", c.Engine.SaveInterval)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be 1-65535, got %d", c.API.Port)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		return fmt.Errorf("api.tls requires cert_file and key_file when enabled")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		return fmt.Errorf("influxdb.url is required when influxdb is enabled")
	}
	for i, dev := range c.VirtualDevices {
		if dev.ID == "" {
			return fmt.Errorf("virtual_devices[%d].id is required", i)
		}
		if dev.Buttons < 0 || dev.Axes < 0 || dev.Hats < 0 {
			return fmt.Errorf("virtual_devices[%d] channel counts must not be negative", i)
		}
	}
	return nil
}

// TickInterval returns the engine tick period derived from the tick rate.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Engine.TickRate)
}

// GetReadTimeout returns the HTTP read timeout as a time.Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a time.Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a time.Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
