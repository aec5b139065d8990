package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backplane types accepted in backplane.type.
const (
	BackplaneMQTT   = "mqtt"
	BackplaneRedis  = "redis"
	BackplaneMemory = "memory"
)

// Config is the root configuration structure for a Gray Logic dispatch node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Backplane BackplaneConfig `yaml:"backplane"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// NodeConfig identifies this node inside the cluster.
type NodeConfig struct {
	// ServerID selects which inbound send stream this node binds to.
	// Every node in a cluster must use a distinct value.
	ServerID string `yaml:"server_id"`

	// ReplyTimeout bounds how long glsend waits for a device reply (seconds).
	ReplyTimeout int `yaml:"reply_timeout"`
}

// BackplaneConfig selects the shared publish/subscribe transport.
type BackplaneConfig struct {
	// Type is one of "mqtt", "redis" or "memory" (single node only).
	Type string `yaml:"type"`

	// TopicPrefix is prepended to every cluster topic.
	TopicPrefix string `yaml:"topic_prefix"`
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

// RedisConfig contains Redis connection settings for the Redis backplane.
type RedisConfig struct {
	Addrs       []string `yaml:"addrs"`
	Password    string   `yaml:"password"`
	DB          int      `yaml:"db"`
	ClusterMode bool     `yaml:"cluster_mode"`
	PoolSize    int      `yaml:"pool_size"`
}

// GatewayConfig contains the device WebSocket gateway settings.
type GatewayConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
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

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
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
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_NODE_SERVER_ID, GRAYLOGIC_REDIS_ADDRS
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults for a single local node.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ServerID:     "node-001",
			ReplyTimeout: 10,
		},
		Backplane: BackplaneConfig{
			Type:        BackplaneMQTT,
			TopicPrefix: "graylogic/cluster",
		},
		Database: DatabaseConfig{
			Path:        "./data/dispatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-dispatch",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Redis: RedisConfig{
			Addrs:    []string{"localhost:6379"},
			PoolSize: 100,
		},
		Gateway: GatewayConfig{
			Enabled:        true,
			Host:           "0.0.0.0",
			Port:           8090,
			Path:           "/devices/{deviceID}/ws",
			MaxMessageSize: 65536,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Node
	if v := os.Getenv("GRAYLOGIC_NODE_SERVER_ID"); v != "" {
		cfg.Node.ServerID = v
	}

	// Backplane
	if v := os.Getenv("GRAYLOGIC_BACKPLANE_TYPE"); v != "" {
		cfg.Backplane.Type = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Redis
	if v := os.Getenv("GRAYLOGIC_REDIS_ADDRS"); v != "" {
		cfg.Redis.Addrs = strings.Split(v, ",")
	}
	if v := os.Getenv("GRAYLOGIC_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("GRAYLOGIC_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}

	// Gateway
	if v := os.Getenv("GRAYLOGIC_GATEWAY_HOST"); v != "" {
		cfg.Gateway.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Node.ServerID == "" {
		errs = append(errs, "node.server_id is required")
	}
	if strings.ContainsAny(c.Node.ServerID, "/+#*") {
		errs = append(errs, "node.server_id must not contain topic separators or wildcards")
	}

	switch c.Backplane.Type {
	case BackplaneMQTT:
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	case BackplaneRedis:
		if len(c.Redis.Addrs) == 0 {
			errs = append(errs, "redis.addrs is required for the redis backplane")
		}
	case BackplaneMemory:
	default:
		errs = append(errs, fmt.Sprintf("backplane.type %q must be mqtt, redis or memory", c.Backplane.Type))
	}
	if c.Backplane.TopicPrefix == "" {
		errs = append(errs, "backplane.topic_prefix is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Gateway.Enabled {
		if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
			errs = append(errs, "gateway.port must be between 1 and 65535")
		}
		if !strings.Contains(c.Gateway.Path, "{deviceID}") {
			errs = append(errs, "gateway.path must contain {deviceID}")
		}
		if c.Gateway.PingInterval <= 0 || c.Gateway.PongTimeout <= 0 {
			errs = append(errs, "gateway.ping_interval and gateway.pong_timeout must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReplyTimeout returns the caller-side reply timeout as a Duration.
func (c *Config) GetReplyTimeout() time.Duration {
	if c.Node.ReplyTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Node.ReplyTimeout) * time.Second
}

// GetPingInterval returns the gateway WebSocket ping interval as a Duration.
func (c *GatewayConfig) GetPingInterval() time.Duration {
	return time.Duration(c.PingInterval) * time.Second
}

// GetPongTimeout returns the gateway WebSocket pong timeout as a Duration.
func (c *GatewayConfig) GetPongTimeout() time.Duration {
	return time.Duration(c.PongTimeout) * time.Second
}
