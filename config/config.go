// Package config loads relay settings from a .env file, an optional YAML file
// and environment overrides.
package config

import "time"

// Config is the root configuration of a relay process.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Relay   RelayConfig   `yaml:"relay"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AdminEnabled    *bool         `yaml:"admin_enabled"` // nil means enabled
}

// SessionConfig holds per-connection settings.
type SessionConfig struct {
	RegisterAttempts int           `yaml:"register_attempts"`
	RegisterBackoff  time.Duration `yaml:"register_backoff"`
	WriteWait        time.Duration `yaml:"write_wait"`
	PongWait         time.Duration `yaml:"pong_wait"`
	PingPeriod       time.Duration `yaml:"ping_period"`
	MaxMessageSize   int64         `yaml:"max_message_size"`
	ReadBufferSize   int           `yaml:"read_buffer_size"`
	WriteBufferSize  int           `yaml:"write_buffer_size"`
}

// RelayConfig holds routing and delivery settings.
type RelayConfig struct {
	OutboundPrefix   *string `yaml:"outbound_prefix"` // nil means "Broadcast: "
	MaxParallelSends int     `yaml:"max_parallel_sends"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

func (c *Config) AdminEnabled() bool {
	return c.Server.AdminEnabled == nil || *c.Server.AdminEnabled
}

func (c *Config) Prefix() string {
	if c.Relay.OutboundPrefix == nil {
		return DefaultOutboundPrefix
	}
	return *c.Relay.OutboundPrefix
}
