package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Poll rate bounds the bridge will run at.
const (
	MinPollRateHz = 0.1
	MaxPollRateHz = 1000.0
)

// Config is the root configuration structure for the I/O bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	OSC         OSCConfig          `yaml:"osc"`
	Poll        PollConfig         `yaml:"poll"`
	I2C         I2CConfig          `yaml:"i2c"`
	Peripherals []PeripheralConfig `yaml:"peripherals"`
	Database    DatabaseConfig     `yaml:"database"`
	MQTT        MQTTConfig         `yaml:"mqtt"`
	API         APIConfig          `yaml:"api"`
	WebSocket   WebSocketConfig    `yaml:"websocket"`
	InfluxDB    InfluxDBConfig     `yaml:"influxdb"`
	Logging     LoggingConfig      `yaml:"logging"`
}

// OSCConfig contains the UDP endpoints shared with the Pure Data patch.
type OSCConfig struct {
	// Listen is the local address inbound commands arrive on.
	Listen string `yaml:"listen"`
	// Target is where reading bundles are sent.
	Target string `yaml:"target"`
	// MaxPacketSize bounds a single inbound datagram.
	MaxPacketSize int `yaml:"max_packet_size"`
}

// PollConfig contains the sampling loop settings.
type PollConfig struct {
	RateHz float64 `yaml:"rate_hz"`
}

// I2CConfig selects the bus the drivers talk on.
type I2CConfig struct {
	Enabled bool `yaml:"enabled"`
	// Bus is a periph.io bus name or number ("" or "1" on a Raspberry Pi).
	Bus string `yaml:"bus"`
	// SpeedKHz sets the clock when non-zero. The Pi default is 100.
	SpeedKHz int `yaml:"speed_khz"`
}

// PeripheralConfig describes a peripheral to create at startup.
type PeripheralConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Address string `yaml:"address"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
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
	Enabled  bool             `yaml:"enabled"`
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IOBRIDGE_SECTION_KEY
// For example: IOBRIDGE_OSC_TARGET, IOBRIDGE_POLL_RATE_HZ
//
// An empty path skips the file and yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
// The OSC ports match the ones the Pure Data patches expect.
func defaultConfig() *Config {
	return &Config{
		OSC: OSCConfig{
			Listen:        "127.0.0.1:8880",
			Target:        "127.0.0.1:6662",
			MaxPacketSize: 65507,
		},
		Poll: PollConfig{
			RateHz: 10,
		},
		I2C: I2CConfig{
			Enabled: true,
		},
		Database: DatabaseConfig{
			Path:        "./data/iobridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "iobridge",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			TopicPrefix: "iobridge",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
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
		InfluxDB: InfluxDBConfig{
			Bucket:        "iobridge",
			BatchSize:     500,
			FlushInterval: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/iobridge.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IOBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// OSC
	if v := os.Getenv("IOBRIDGE_OSC_LISTEN"); v != "" {
		cfg.OSC.Listen = v
	}
	if v := os.Getenv("IOBRIDGE_OSC_TARGET"); v != "" {
		cfg.OSC.Target = v
	}

	// Poll
	if v := os.Getenv("IOBRIDGE_POLL_RATE_HZ"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("IOBRIDGE_POLL_RATE_HZ: %w", err)
		}
		cfg.Poll.RateHz = rate
	}

	// I2C
	if v := os.Getenv("IOBRIDGE_I2C_BUS"); v != "" {
		cfg.I2C.Bus = v
	}

	// Database
	if v := os.Getenv("IOBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("IOBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IOBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IOBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("IOBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("IOBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("IOBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// All problems are collected so a broken file is reported in one pass.
func (c *Config) Validate() error {
	var errs []string

	// OSC validation
	if _, _, err := net.SplitHostPort(c.OSC.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("osc.listen %q is not host:port", c.OSC.Listen))
	}
	if _, _, err := net.SplitHostPort(c.OSC.Target); err != nil {
		errs = append(errs, fmt.Sprintf("osc.target %q is not host:port", c.OSC.Target))
	}
	if c.OSC.MaxPacketSize < 64 || c.OSC.MaxPacketSize > 65507 {
		errs = append(errs, "osc.max_packet_size must be between 64 and 65507")
	}

	// Poll validation
	if !(c.Poll.RateHz >= MinPollRateHz && c.Poll.RateHz <= MaxPollRateHz) {
		errs = append(errs, fmt.Sprintf("poll.rate_hz must be between %g and %g", MinPollRateHz, MaxPollRateHz))
	}

	// I2C validation
	if c.I2C.SpeedKHz != 0 && (c.I2C.SpeedKHz < 10 || c.I2C.SpeedKHz > 3400) {
		errs = append(errs, "i2c.speed_khz must be 0 or between 10 and 3400")
	}

	// Peripheral validation
	seen := make(map[string]bool, len(c.Peripherals))
	for i, p := range c.Peripherals {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("peripherals[%d].name is required", i))
		} else if strings.ContainsAny(p.Name, "/ ") {
			errs = append(errs, fmt.Sprintf("peripherals[%d].name %q must not contain '/' or spaces", i, p.Name))
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("peripherals[%d].name %q is duplicated", i, p.Name))
		}
		seen[p.Name] = true
		if p.Type == "" {
			errs = append(errs, fmt.Sprintf("peripherals[%d].type is required", i))
		}
		if p.Address == "" {
			errs = append(errs, fmt.Sprintf("peripherals[%d].address is required", i))
		}
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the configured poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.Poll.RateHz)
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
