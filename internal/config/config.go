// Package config loads the service configuration from file and
// environment, with sane defaults for a single-node deployment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/GowthamShanmugam/performance-monitoring/internal/aggregator"
	"github.com/GowthamShanmugam/performance-monitoring/internal/eventbus"
	"github.com/GowthamShanmugam/performance-monitoring/internal/history"
	"github.com/GowthamShanmugam/performance-monitoring/internal/logging"
	"github.com/GowthamShanmugam/performance-monitoring/internal/nodecontext"
	"github.com/GowthamShanmugam/performance-monitoring/internal/store"
	"github.com/GowthamShanmugam/performance-monitoring/internal/telemetry"
)

// Config is the root configuration of the monitoring service.
type Config struct {
	Server      ServerConfig       `mapstructure:"server"`
	Store       store.EtcdConfig   `mapstructure:"store"`
	History     history.Config     `mapstructure:"history"`
	EventBus    eventbus.Config    `mapstructure:"eventbus"`
	Aggregation aggregator.Config  `mapstructure:"aggregation"`
	Node        nodecontext.Config `mapstructure:"node"`
	Telemetry   telemetry.Config   `mapstructure:"telemetry"`
	Security    SecurityConfig     `mapstructure:"security"`
	Logging     logging.Config     `mapstructure:"logging"`
}

// ServerConfig holds the HTTP and gRPC listener settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	GRPCPort     int           `mapstructure:"grpc_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// Rate limiting of the HTTP API, requests per minute per client.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int `mapstructure:"rate_limit_burst"`
}

// Load reads configuration from the default search paths.
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile reads configuration from a specific file, falling back to
// the default search paths when configFile is empty. Environment variables
// prefixed with PM override file values, e.g. PM_STORE_ENDPOINTS.
func LoadFromFile(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/performance-monitoring")

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	v.SetEnvPrefix("PM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the sections that carry validation rules.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server port must be positive")
	}
	if err := c.EventBus.Validate(); err != nil {
		return err
	}
	return c.Security.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.rate_limit_per_minute", 100)
	v.SetDefault("server.rate_limit_burst", 10)

	v.SetDefault("store.endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("store.dial_timeout", "5s")
	v.SetDefault("store.request_timeout", "15s")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.endpoint", "grpc://localhost:2136/local")
	v.SetDefault("history.table", "summary_history")
	v.SetDefault("history.connect_timeout", "10s")
	v.SetDefault("history.request_timeout", "15s")

	v.SetDefault("eventbus.enabled", true)
	v.SetDefault("eventbus.nats.url", "nats://localhost:4222")
	v.SetDefault("eventbus.nats.stream_name", "PM_EVENTS")
	v.SetDefault("eventbus.nats.stream_subjects", []string{"monitoring.events.>"})
	v.SetDefault("eventbus.nats.max_age", "24h")
	v.SetDefault("eventbus.nats.max_bytes", 256*1024*1024)
	v.SetDefault("eventbus.nats.max_msgs", 100000)
	v.SetDefault("eventbus.nats.replicas", 1)
	v.SetDefault("eventbus.nats.connect_timeout", "10s")
	v.SetDefault("eventbus.nats.reconnect_wait", "2s")
	v.SetDefault("eventbus.nats.max_reconnect_attempts", 10)

	v.SetDefault("aggregation.interval", "60s")
	v.SetDefault("aggregation.stale_after", "180s")
	v.SetDefault("aggregation.source", "aggregator")
	v.SetDefault("aggregation.rollup_enabled", true)

	v.SetDefault("node.state_dir", "/var/lib/performance-monitoring")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "performance-monitoring")
	v.SetDefault("telemetry.service_version", "0.3.0")
	v.SetDefault("telemetry.prometheus_port", 9091)
	v.SetDefault("telemetry.jaeger_endpoint", "")
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("security.tls_enabled", false)
	v.SetDefault("security.spiffe_socket_path", "unix:///tmp/spire-agent/public/api.sock")
	v.SetDefault("security.authorized_ids", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
	v.SetDefault("logging.error_path", "stderr")
}
