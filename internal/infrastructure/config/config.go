package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for a Gray Logic Node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node         NodeConfig         `yaml:"node"`
	Network      NetworkConfig      `yaml:"network"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Recovery     RecoveryConfig     `yaml:"recovery"`
	Database     DatabaseConfig     `yaml:"database"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	API          APIConfig          `yaml:"api"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// NodeConfig identifies the device and sets the control loop cadence.
type NodeConfig struct {
	// Name is the device name. It doubles as the MQTT client ID when
	// mqtt.broker.client_id is empty.
	Name string `yaml:"name"`

	// LoopIntervalMS is the period of the control loop in milliseconds.
	LoopIntervalMS int `yaml:"loop_interval_ms"`

	// StateIntervalSeconds is how often the node state document is published.
	StateIntervalSeconds int `yaml:"state_interval_seconds"`
}

// NetworkConfig contains the network-layer settings of the device.
type NetworkConfig struct {
	// Interface is the link the connectivity probe watches (e.g. "wlan0").
	Interface string `yaml:"interface"`

	// SSID marks the device as provisioned. Association itself belongs to
	// the link layer.
	SSID string `yaml:"ssid"`

	// ReassociateCommand is run when the supervisor asks the network layer
	// to restart its negotiation. Empty disables reassociation.
	ReassociateCommand []string `yaml:"reassociate_command"`
}

// Configured reports whether network credentials are present.
func (n NetworkConfig) Configured() bool {
	return n.SSID != ""
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`

	// KeepAliveSeconds is the MQTT keep-alive interval.
	KeepAliveSeconds int `yaml:"keep_alive_seconds"`

	// InboundBuffer is the number of received messages held until the
	// control loop pumps them.
	InboundBuffer int `yaml:"inbound_buffer"`

	// DebugMessages logs every sent and received message at debug level.
	DebugMessages bool `yaml:"debug_messages"`
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

// ConnectivityConfig drives the reconnection supervisor.
type ConnectivityConfig struct {
	// MaxRetry is the failed-attempt count at which peripherals are powered
	// off and the network layer is asked to reassociate.
	MaxRetry int `yaml:"max_retry"`

	// FastDisconnectManagement escalates after a short burst of failures
	// instead of waiting for MaxRetry.
	FastDisconnectManagement bool `yaml:"fast_disconnect_management"`

	// SingleShotFastEscalation limits fast escalation to once per outage.
	SingleShotFastEscalation bool `yaml:"single_shot_fast_escalation"`

	// RetryDelayMS is the pause between connect attempts.
	RetryDelayMS int `yaml:"retry_delay_ms"`

	// SettleDelayMS is the pause after a successful connect before normal
	// ticking resumes.
	SettleDelayMS int `yaml:"settle_delay_ms"`
}

// RecoveryConfig contains the destructive recovery actions.
type RecoveryConfig struct {
	// DisconnectCommand powers off peripherals when connectivity is lost for
	// too long. Empty means no peripheral action.
	DisconnectCommand []string `yaml:"disconnect_command"`

	// CommandTimeoutSeconds bounds every recovery command.
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds"`
}

// DatabaseConfig contains SQLite database settings for the connectivity journal.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// JournalRetention is the number of journal rows kept.
	JournalRetention int `yaml:"journal_retention"`
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

// APIConfig contains the status HTTP server settings.
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
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_NODE_SECTION_KEY
// For example: GRAYLOGIC_NODE_MQTT_HOST, GRAYLOGIC_NODE_WIFI_SSID
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

// defaultConfig returns a Config with the bootstrapper's stock values.
func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			Name:                 "graylogic-node",
			LoopIntervalMS:       20,
			StateIntervalSeconds: 60,
		},
		Network: NetworkConfig{
			Interface: "wlan0",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:              1,
			KeepAliveSeconds: 15,
			InboundBuffer:    64,
		},
		Connectivity: ConnectivityConfig{
			MaxRetry:      20,
			RetryDelayMS:  500,
			SettleDelayMS: 2000,
		},
		Recovery: RecoveryConfig{
			CommandTimeoutSeconds: 10,
		},
		Database: DatabaseConfig{
			Path:             "./data/node.db",
			WALMode:          true,
			BusyTimeout:      5,
			JournalRetention: 5000,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8081,
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
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_NODE_NAME"); v != "" {
		cfg.Node.Name = v
	}

	// Network
	if v := os.Getenv("GRAYLOGIC_NODE_WIFI_SSID"); v != "" {
		cfg.Network.SSID = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_NODE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_NODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Node.Name == "" {
		errs = append(errs, "node.name is required")
	}
	if c.Node.LoopIntervalMS < 1 {
		errs = append(errs, "node.loop_interval_ms must be at least 1")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAliveSeconds < 1 {
		errs = append(errs, "mqtt.keep_alive_seconds must be at least 1")
	}
	if c.MQTT.InboundBuffer < 1 {
		errs = append(errs, "mqtt.inbound_buffer must be at least 1")
	}

	if c.Connectivity.MaxRetry < 1 {
		errs = append(errs, "connectivity.max_retry must be at least 1")
	}
	if c.Connectivity.RetryDelayMS < 0 {
		errs = append(errs, "connectivity.retry_delay_ms cannot be negative")
	}
	if c.Connectivity.SettleDelayMS < 0 {
		errs = append(errs, "connectivity.settle_delay_ms cannot be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ClientID returns the MQTT client identifier, falling back to the node name.
func (c *Config) ClientID() string {
	if c.MQTT.Broker.ClientID != "" {
		return c.MQTT.Broker.ClientID
	}
	return c.Node.Name
}

// LoopInterval returns the control loop period as a Duration.
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.Node.LoopIntervalMS) * time.Millisecond
}

// StateInterval returns the state publication period as a Duration.
func (c *Config) StateInterval() time.Duration {
	return time.Duration(c.Node.StateIntervalSeconds) * time.Second
}

// RetryDelay returns the pause between connect attempts as a Duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Connectivity.RetryDelayMS) * time.Millisecond
}

// SettleDelay returns the post-connect pause as a Duration.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Connectivity.SettleDelayMS) * time.Millisecond
}

// KeepAlive returns the MQTT keep-alive interval as a Duration.
func (c *Config) KeepAlive() time.Duration {
	return time.Duration(c.MQTT.KeepAliveSeconds) * time.Second
}

// RecoveryTimeout returns the timeout applied to recovery commands.
func (c *Config) RecoveryTimeout() time.Duration {
	return time.Duration(c.Recovery.CommandTimeoutSeconds) * time.Second
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
