package eventbus

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config selects and configures the event bus backend.
type Config struct {
	Enabled bool        `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	NATS    *NATSConfig `json:"nats,omitempty" yaml:"nats,omitempty" mapstructure:"nats"`
}

// DefaultConfig returns an enabled NATS bus with default settings.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		NATS:    DefaultNATSConfig(),
	}
}

// Validate checks the configuration, filling in safe timeouts where unset.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.NATS == nil {
		return fmt.Errorf("NATS configuration is required when the event bus is enabled")
	}
	return c.NATS.Validate()
}

// Validate checks the NATS settings and applies fallback timeouts.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}
	if c.StreamName == "" {
		return fmt.Errorf("NATS stream name is required")
	}
	if len(c.StreamSubjects) == 0 {
		return fmt.Errorf("NATS stream subjects are required")
	}
	if c.MaxAge <= 0 {
		return fmt.Errorf("NATS max age must be positive")
	}
	if c.MaxBytes <= 0 {
		return fmt.Errorf("NATS max bytes must be positive")
	}
	if c.MaxMsgs <= 0 {
		return fmt.Errorf("NATS max messages must be positive")
	}
	if c.Replicas < 1 {
		return fmt.Errorf("NATS replicas must be at least 1")
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 10
	}
	return nil
}

// NewEventBusFromConfig builds the configured event bus. It returns a nil bus
// without error when the bus is disabled.
func NewEventBusFromConfig(config *Config, logger *zap.Logger) (EventBus, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event bus configuration: %w", err)
	}
	if !config.Enabled {
		return nil, nil
	}
	return NewNATSEventBus(config.NATS, logger)
}
