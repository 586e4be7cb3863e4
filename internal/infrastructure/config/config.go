package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Outlet-in-use rule names accepted by ProfileConfig.OutletInUse.
const (
	OutletRuleLoadPercent = "load_percent"
	OutletRuleActivePower = "active_power"
)

// Config is the root configuration structure for the solar bridge.
// All configuration is loaded from YAML and can be overridden by environment
// variables and, last, by command-line flags.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Accessory AccessoryConfig `yaml:"accessory"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Profile   ProfileConfig   `yaml:"profile"`
	Database  DatabaseConfig  `yaml:"database"`
	History   HistoryConfig   `yaml:"history"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig locates the inverter.
type DeviceConfig struct {
	// Driver names a registered inverter driver ("sim" is always available).
	Driver string `yaml:"driver"`

	// Path is the device locator handed to the driver, usually a special file.
	Path string `yaml:"path"`

	// Timeout bounds a single query or command round-trip.
	Timeout time.Duration `yaml:"timeout"`
}

// AccessoryConfig contains the identity presented to accessory controllers.
type AccessoryConfig struct {
	Name         string `yaml:"name"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`

	// SetupCode is the pairing code in XXX-XX-XXX form. Empty means a random
	// code is generated at every start.
	SetupCode string `yaml:"setup_code"`
}

// RefreshConfig controls polling and the delays applied after commands.
type RefreshConfig struct {
	// Interval is the polling period in seconds. Must be at least 1.
	Interval int `yaml:"interval"`

	// FlagSettle is the delay between a flag command and its follow-up refresh.
	FlagSettle time.Duration `yaml:"flag_settle"`

	// FrequencySettle is the delay after an output frequency change. The
	// inverter renegotiates its output so this is longer than FlagSettle.
	FrequencySettle time.Duration `yaml:"frequency_settle"`
}

// ProfileConfig overrides the product profile selected by Accessory.Model.
// Zero values keep the profile's own settings.
type ProfileConfig struct {
	LowBatteryThreshold int    `yaml:"low_battery_threshold"`
	OutletInUse         string `yaml:"outlet_in_use"`
}

// DatabaseConfig contains SQLite database settings. The database holds the
// pairing store and the characteristic history.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig controls local characteristic history.
type HistoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains the accessory HTTP listener settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DiscoveryConfig controls mDNS advertisement of the accessory.
type DiscoveryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Interface string `yaml:"interface"`
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

// EnvPrefix starts every environment override, e.g. SOLARBRIDGE_DEVICE_PATH.
const EnvPrefix = "SOLARBRIDGE_"

// Load builds the configuration in three layers: Default, then the YAML file
// at path (skipped when path is empty), then SOLARBRIDGE_* environment
// variables. Command-line flags go on top in the caller, which then calls
// Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a Config with sensible defaults. The device, refresh and
// accessory defaults match the daemon's historical command-line defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Driver:  "hidraw",
			Path:    "/dev/hidraw0",
			Timeout: 5 * time.Second,
		},
		Accessory: AccessoryConfig{
			Name:         "MPP Solar",
			Manufacturer: "MPP Solar",
			Model:        "PIP-2424LV-MSD",
		},
		Refresh: RefreshConfig{
			Interval:        10,
			FlagSettle:      time.Second,
			FrequencySettle: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/solarbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			Enabled:       true,
			Retention:     7 * 24 * time.Hour,
			PruneInterval: time.Hour,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			TopicPrefix: "solarbridge",
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "solarbridge",
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
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// envOverrides lists the settings that can be set from the environment,
// keyed by the name after EnvPrefix. Unparseable numbers and booleans are
// ignored and leave the file value in place.
var envOverrides = map[string]func(c *Config, v string){
	"DEVICE_DRIVER":     func(c *Config, v string) { c.Device.Driver = v },
	"DEVICE_PATH":       func(c *Config, v string) { c.Device.Path = v },
	"ACCESSORY_MODEL":   func(c *Config, v string) { c.Accessory.Model = v },
	"SETUP_CODE":        func(c *Config, v string) { c.Accessory.SetupCode = v },
	"REFRESH_INTERVAL":  func(c *Config, v string) { setInt(&c.Refresh.Interval, v) },
	"DATABASE_PATH":     func(c *Config, v string) { c.Database.Path = v },
	"MQTT_ENABLED":      func(c *Config, v string) { setBool(&c.MQTT.Enabled, v) },
	"MQTT_HOST":         func(c *Config, v string) { c.MQTT.Broker.Host = v },
	"MQTT_PORT":         func(c *Config, v string) { setInt(&c.MQTT.Broker.Port, v) },
	"MQTT_USERNAME":     func(c *Config, v string) { c.MQTT.Auth.Username = v },
	"MQTT_PASSWORD":     func(c *Config, v string) { c.MQTT.Auth.Password = v },
	"API_HOST":          func(c *Config, v string) { c.API.Host = v },
	"API_PORT":          func(c *Config, v string) { setInt(&c.API.Port, v) },
	"INFLUXDB_ENABLED":  func(c *Config, v string) { setBool(&c.InfluxDB.Enabled, v) },
	"INFLUXDB_URL":      func(c *Config, v string) { c.InfluxDB.URL = v },
	"INFLUXDB_TOKEN":    func(c *Config, v string) { c.InfluxDB.Token = v },
	"DISCOVERY_ENABLED": func(c *Config, v string) { setBool(&c.Discovery.Enabled, v) },
	"LOG_LEVEL":         func(c *Config, v string) { c.Logging.Level = v },
}

func applyEnvOverrides(cfg *Config) {
	for name, set := range envOverrides {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			set(cfg, v)
		}
	}
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setBool(dst *bool, v string) {
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	require := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	require(c.Device.Driver != "", "device.driver is required")
	require(c.Device.Path != "", "device.path is required")
	require(c.Device.Timeout >= 0, "device.timeout must not be negative")

	require(c.Accessory.Name != "", "accessory.name is required")
	require(c.Accessory.Model != "", "accessory.model is required")

	require(c.Refresh.Interval >= 1, "refresh.interval must be at least 1 second")
	require(c.Refresh.FlagSettle >= 0 && c.Refresh.FrequencySettle >= 0, "refresh settle delays must not be negative")

	require(c.Profile.LowBatteryThreshold >= 0 && c.Profile.LowBatteryThreshold <= 100,
		"profile.low_battery_threshold must be between 0 and 100")
	require(c.Profile.OutletInUse == "" || c.Profile.OutletInUse == OutletRuleLoadPercent || c.Profile.OutletInUse == OutletRuleActivePower,
		"profile.outlet_in_use must be %q or %q", OutletRuleLoadPercent, OutletRuleActivePower)

	require(c.Database.Path != "", "database.path is required")
	require(!c.History.Enabled || c.History.Retention > 0, "history.retention must be positive when history is enabled")

	require(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	require(!c.MQTT.Enabled || c.MQTT.TopicPrefix != "", "mqtt.topic_prefix is required when mqtt is enabled")

	require(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")
	require(!c.InfluxDB.Enabled || c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RefreshInterval returns the polling period as a Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.Interval) * time.Second
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// ReadTimeout bounds reading a request, headers included.
func (t APITimeoutConfig) ReadTimeout() time.Duration { return seconds(t.Read) }

// WriteTimeout bounds writing a response.
func (t APITimeoutConfig) WriteTimeout() time.Duration { return seconds(t.Write) }

// IdleTimeout bounds an idle keep-alive connection.
func (t APITimeoutConfig) IdleTimeout() time.Duration { return seconds(t.Idle) }
