package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %q", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must be >= 0")
	}

	if c.Session.RegisterAttempts < 1 {
		return errors.New("session.register_attempts must be >= 1")
	}
	if c.Session.RegisterBackoff < 0 {
		return errors.New("session.register_backoff must be >= 0")
	}
	if c.Session.WriteWait <= 0 {
		return errors.New("session.write_wait must be > 0")
	}
	if c.Session.PingPeriod <= 0 {
		return errors.New("session.ping_period must be > 0")
	}
	if c.Session.PingPeriod >= c.Session.PongWait {
		return fmt.Errorf("session.ping_period (%s) must be shorter than session.pong_wait (%s)",
			c.Session.PingPeriod, c.Session.PongWait)
	}
	if c.Session.MaxMessageSize < 1 {
		return errors.New("session.max_message_size must be >= 1")
	}

	if c.Relay.MaxParallelSends < 1 {
		return errors.New("relay.max_parallel_sends must be >= 1")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
