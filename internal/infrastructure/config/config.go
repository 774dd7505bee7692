package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendInfluxDB        = "influxdb"
	BackendVictoriaMetrics = "victoriametrics"
)

// ArchiveIntervals lists the archive periods a Vantage console supports,
// in minutes.
var ArchiveIntervals = []int{1, 5, 10, 15, 30, 60, 120}

// Retry delay bounds in seconds.
const (
	MinRetryDelay = 30
	MaxRetryDelay = 60
)

// Config is the root configuration structure for vantage-sync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Station  StationConfig  `yaml:"station"`
	Console  ConsoleConfig  `yaml:"console"`
	Store    StoreConfig    `yaml:"store"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Database DatabaseConfig `yaml:"database"`
	History  HistoryConfig  `yaml:"history"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StationConfig identifies the weather station.
type StationConfig struct {
	// Name labels MQTT topics and the status API.
	Name string `yaml:"name"`

	// Timezone is the console's IANA zone ("Local" for the host zone).
	Timezone string `yaml:"timezone"`
}

// ConsoleConfig contains weather console connection settings.
type ConsoleConfig struct {
	Driver          string `yaml:"driver"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ArchiveInterval int    `yaml:"archive_interval"` // minutes
	RetryDelay      int    `yaml:"retry_delay"`      // seconds
	DriftTolerance  int    `yaml:"drift_tolerance"`  // seconds
	DriftCorrection bool   `yaml:"drift_correction"`
}

// StoreConfig contains time-series store settings.
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Token selects the InfluxDB v2 API; without it the v1 API is used.
	Token string `yaml:"token"`
	Org   string `yaml:"org"`

	// Database is the InfluxDB database (v1) or bucket (v2).
	Database string `yaml:"database"`

	// Measurement is the wide-mode measurement name, or "auto" for one
	// measurement per field.
	Measurement string `yaml:"measurement"`

	// ResumeMeasurement is queried for the resume point in "auto" mode.
	// Default: the canonical name of Barometer.
	ResumeMeasurement string `yaml:"resume_measurement"`

	Tags         map[string]string `yaml:"tags"`
	LookbackDays int               `yaml:"lookback_days"`
	Timeout      int               `yaml:"timeout"` // seconds
}

// ArchiveConfig contains field mapping settings.
type ArchiveConfig struct {
	WindSpeedUnit  string            `yaml:"wind_speed_unit"` // kmh, ms
	UnmappedFields string            `yaml:"unmapped_fields"` // error, skip
	Rename         map[string]string `yaml:"rename"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig contains sync history settings.
type HistoryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// APIConfig contains status API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. .env file (optional; never overrides variables already set)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: VANTAGE_SECTION_KEY
// For example: VANTAGE_CONSOLE_HOST, VANTAGE_STORE_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads VANTAGE_ENV_FILE (default ".env") into the process
// environment. A missing file is not an error.
func loadDotEnv() error {
	path := os.Getenv("VANTAGE_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Station: StationConfig{
			Name:     "vantage",
			Timezone: "Local",
		},
		Console: ConsoleConfig{
			Driver:          "simulator",
			Host:            "localhost",
			Port:            22222,
			ArchiveInterval: 5,
			RetryDelay:      MinRetryDelay,
			DriftTolerance:  60,
		},
		Store: StoreConfig{
			Backend:      BackendInfluxDB,
			Host:         "localhost",
			Port:         8086,
			Database:     "weather",
			Measurement:  "weather",
			LookbackDays: 30,
			Timeout:      10,
		},
		Archive: ArchiveConfig{
			WindSpeedUnit:  "kmh",
			UnmappedFields: "error",
		},
		Database: DatabaseConfig{
			Path:        "./data/vantagesync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "vantagesync",
			},
			QoS:         1,
			TopicPrefix: "vantage",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VANTAGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	setBool := func(key string, dst *bool) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}

	// Station
	setString("VANTAGE_STATION_NAME", &cfg.Station.Name)
	setString("VANTAGE_STATION_TIMEZONE", &cfg.Station.Timezone)

	// Console
	setString("VANTAGE_CONSOLE_DRIVER", &cfg.Console.Driver)
	setString("VANTAGE_CONSOLE_HOST", &cfg.Console.Host)
	setInt("VANTAGE_CONSOLE_PORT", &cfg.Console.Port)
	setInt("VANTAGE_CONSOLE_ARCHIVE_INTERVAL", &cfg.Console.ArchiveInterval)
	setBool("VANTAGE_CONSOLE_DRIFT_CORRECTION", &cfg.Console.DriftCorrection)

	// Store
	setString("VANTAGE_STORE_BACKEND", &cfg.Store.Backend)
	setString("VANTAGE_STORE_HOST", &cfg.Store.Host)
	setInt("VANTAGE_STORE_PORT", &cfg.Store.Port)
	setString("VANTAGE_STORE_USERNAME", &cfg.Store.Username)
	setString("VANTAGE_STORE_PASSWORD", &cfg.Store.Password)
	setString("VANTAGE_STORE_TOKEN", &cfg.Store.Token)
	setString("VANTAGE_STORE_ORG", &cfg.Store.Org)
	setString("VANTAGE_STORE_DATABASE", &cfg.Store.Database)
	setString("VANTAGE_STORE_MEASUREMENT", &cfg.Store.Measurement)

	// Database
	setString("VANTAGE_DATABASE_PATH", &cfg.Database.Path)

	// MQTT
	setBool("VANTAGE_MQTT_ENABLED", &cfg.MQTT.Enabled)
	setString("VANTAGE_MQTT_HOST", &cfg.MQTT.Broker.Host)
	setString("VANTAGE_MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	setString("VANTAGE_MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	// API
	setString("VANTAGE_API_HOST", &cfg.API.Host)
	setInt("VANTAGE_API_PORT", &cfg.API.Port)

	// Logging
	setString("VANTAGE_LOG_LEVEL", &cfg.Logging.Level)

	return errors.Join(errs...)
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Station
	if strings.TrimSpace(c.Station.Name) == "" {
		errs = append(errs, "station.name is required")
	}
	if _, err := time.LoadLocation(c.Station.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("station.timezone %q cannot be loaded: %v", c.Station.Timezone, err))
	}

	// Console
	if c.Console.Driver == "" {
		errs = append(errs, "console.driver is required")
	}
	if c.Console.Host == "" {
		errs = append(errs, "console.host is required")
	}
	if c.Console.Port < 1 || c.Console.Port > 65535 {
		errs = append(errs, "console.port must be between 1 and 65535")
	}
	if !slices.Contains(ArchiveIntervals, c.Console.ArchiveInterval) {
		errs = append(errs, fmt.Sprintf("console.archive_interval must be one of %v", ArchiveIntervals))
	}
	if c.Console.RetryDelay < MinRetryDelay || c.Console.RetryDelay > MaxRetryDelay {
		errs = append(errs, fmt.Sprintf("console.retry_delay must be between %d and %d seconds", MinRetryDelay, MaxRetryDelay))
	}
	if c.Console.DriftTolerance < 0 {
		errs = append(errs, "console.drift_tolerance must not be negative")
	}

	// Store
	switch c.Store.Backend {
	case BackendInfluxDB:
		if c.Store.Database == "" {
			errs = append(errs, "store.database is required for influxdb")
		}
		if c.Store.Token != "" && c.Store.Org == "" {
			errs = append(errs, "store.org is required when store.token is set")
		}
	case BackendVictoriaMetrics:
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be %q or %q", BackendInfluxDB, BackendVictoriaMetrics))
	}
	if c.Store.Host == "" {
		errs = append(errs, "store.host is required")
	}
	if c.Store.Port < 1 || c.Store.Port > 65535 {
		errs = append(errs, "store.port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.Store.Measurement) == "" {
		errs = append(errs, "store.measurement is required (a name, or \"auto\")")
	}
	if c.Store.LookbackDays < 1 {
		errs = append(errs, "store.lookback_days must be at least 1")
	}
	if c.Store.Timeout < 1 {
		errs = append(errs, "store.timeout must be at least 1 second")
	}

	// Archive
	if c.Archive.WindSpeedUnit != "kmh" && c.Archive.WindSpeedUnit != "ms" {
		errs = append(errs, "archive.wind_speed_unit must be \"kmh\" or \"ms\"")
	}
	if c.Archive.UnmappedFields != "error" && c.Archive.UnmappedFields != "skip" {
		errs = append(errs, "archive.unmapped_fields must be \"error\" or \"skip\"")
	}

	// History
	if c.History.Enabled {
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required when history is enabled")
		}
		if c.History.RetentionDays < 1 {
			errs = append(errs, "history.retention_days must be at least 1")
		}
	}

	// MQTT
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if strings.TrimSpace(c.MQTT.TopicPrefix) == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the station time zone. Validate guarantees it loads;
// UTC is returned if called on an unvalidated config that fails.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Station.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetRetryDelay returns the console fault retry delay as a Duration.
func (c *Config) GetRetryDelay() time.Duration {
	return time.Duration(c.Console.RetryDelay) * time.Second
}

// GetDriftTolerance returns the console clock drift tolerance as a Duration.
func (c *Config) GetDriftTolerance() time.Duration {
	return time.Duration(c.Console.DriftTolerance) * time.Second
}

// GetHistoryRetention returns how long sync history is kept.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
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

// URL returns the store base URL.
func (s StoreConfig) URL() string {
	scheme := "http"
	if s.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.Host, s.Port)
}

// GetTimeout returns the store request timeout as a Duration.
func (s StoreConfig) GetTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetLookback returns how far back resume queries search.
func (s StoreConfig) GetLookback() time.Duration {
	return time.Duration(s.LookbackDays) * 24 * time.Hour
}
