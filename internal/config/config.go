package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. PUMPSTREAM_BROKER_URL.
const EnvPrefix = "PUMPSTREAM"

// Config holds all configuration for our application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Broker      BrokerConfig      `mapstructure:"broker"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Live        LiveConfig        `mapstructure:"live"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           int     `mapstructure:"port"`
	Host           string  `mapstructure:"host"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// BrokerConfig selects the publish/subscribe transport and the topic the
// pump controller publishes on.
type BrokerConfig struct {
	Transport      string        `mapstructure:"transport"`
	URL            string        `mapstructure:"url"`
	Brokers        []string      `mapstructure:"brokers"`
	Partition      int32         `mapstructure:"partition"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Topic          string        `mapstructure:"topic"`
	ClientID       string        `mapstructure:"client_id"`
	QoS            byte          `mapstructure:"qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
	DedupeSize     int           `mapstructure:"dedupe_size"`
	Buffer         int           `mapstructure:"buffer"`
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	Database DatabaseConfig `mapstructure:"database"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	InfluxDB InfluxConfig   `mapstructure:"influxdb"`
}

type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Name              string `mapstructure:"name"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConnections    int    `mapstructure:"max_connections"`
	ConnectionTimeout int    `mapstructure:"connection_timeout"`
	Hypertable        bool   `mapstructure:"hypertable"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type InfluxConfig struct {
	URL         string `mapstructure:"url"`
	Org         string `mapstructure:"org"`
	Token       string `mapstructure:"token"`
	Bucket      string `mapstructure:"bucket"`
	Measurement string `mapstructure:"measurement"`
}

type AggregationConfig struct {
	// Timezone names the reference zone for bucket keys and the counter
	// day boundary, e.g. "Asia/Manila".
	Timezone string `mapstructure:"timezone"`
}

type LiveConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	WindowSize   int    `mapstructure:"window_size"`
	RolloverSpec string `mapstructure:"rollover_spec"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverInfluxDB = "influxdb"
	DriverMemory   = "memory"

	TransportMQTT  = "mqtt"
	TransportKafka = "kafka"
)

// Load reads configuration from file and environment variables.
//
// ${VAR} references in the file are expanded first. Any key can then be
// overridden with PUMPSTREAM_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// First unmarshal into a map to reject malformed files early
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}

	// Convert the map to YAML again
	data, err = yaml.Marshal(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw config: %w", err)
	}

	// Expand environment variables
	expandedData := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader([]byte(expandedData))); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverSQLite, DriverInfluxDB, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Broker.Transport {
	case TransportMQTT:
		if c.Broker.URL == "" {
			return fmt.Errorf("broker.url is required for mqtt")
		}
	case TransportKafka:
		if len(c.Broker.Brokers) == 0 {
			return fmt.Errorf("broker.brokers is required for kafka")
		}
	default:
		return fmt.Errorf("unknown broker transport %q", c.Broker.Transport)
	}

	if c.Broker.Topic == "" {
		return fmt.Errorf("broker.topic is required")
	}
	if c.Broker.QoS > 2 {
		return fmt.Errorf("broker.qos must be 0, 1 or 2")
	}
	if c.Broker.RetryInterval <= 0 {
		return fmt.Errorf("broker.retry_interval must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location loads the aggregation reference zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Aggregation.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid aggregation.timezone %q: %w", c.Aggregation.Timezone, err)
	}
	return loc, nil
}

// ConnString builds a lib/pq keyword/value connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
		d.ConnectionTimeout,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 50051)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.host", "0.0.0.0")
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("broker.transport", TransportMQTT)
	v.SetDefault("broker.url", "tcp://localhost:1883")
	v.SetDefault("broker.brokers", []string{})
	v.SetDefault("broker.partition", 0)
	v.SetDefault("broker.username", "")
	v.SetDefault("broker.password", "")
	v.SetDefault("broker.topic", "arec/pump")
	v.SetDefault("broker.client_id", "pumpstream")
	v.SetDefault("broker.qos", 1)
	v.SetDefault("broker.connect_timeout", "10s")
	v.SetDefault("broker.retry_interval", "3s")
	v.SetDefault("broker.dedupe_size", 1024)
	v.SetDefault("broker.buffer", 64)

	v.SetDefault("storage.driver", DriverPostgres)
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.name", "pumpstream")
	v.SetDefault("storage.database.user", "postgres")
	v.SetDefault("storage.database.password", "")
	v.SetDefault("storage.database.ssl_mode", "disable")
	v.SetDefault("storage.database.max_connections", 10)
	v.SetDefault("storage.database.connection_timeout", 5)
	v.SetDefault("storage.database.hypertable", false)
	v.SetDefault("storage.sqlite.path", "pumpstream.db")
	v.SetDefault("storage.influxdb.url", "http://localhost:8086")
	v.SetDefault("storage.influxdb.org", "")
	v.SetDefault("storage.influxdb.token", "")
	v.SetDefault("storage.influxdb.bucket", "pumpstream")
	v.SetDefault("storage.influxdb.measurement", "pump_readings")

	v.SetDefault("aggregation.timezone", "UTC")

	v.SetDefault("live.enabled", true)
	v.SetDefault("live.window_size", 20)
	v.SetDefault("live.rollover_spec", "@every 1m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
