package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort             = "8080"
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultRegisterAttempts = 5
	DefaultRegisterBackoff  = 200 * time.Millisecond
	DefaultWriteWait        = 10 * time.Second
	DefaultPongWait         = 60 * time.Second
	DefaultPingPeriod       = (DefaultPongWait * 9) / 10
	DefaultMaxMessageSize   = 16384
	DefaultBufferSize       = 1024
	DefaultOutboundPrefix   = "Broadcast: "
	DefaultMaxParallelSends = 64
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Session.RegisterAttempts == 0 {
		c.Session.RegisterAttempts = DefaultRegisterAttempts
	}
	if c.Session.RegisterBackoff == 0 {
		c.Session.RegisterBackoff = DefaultRegisterBackoff
	}
	if c.Session.WriteWait == 0 {
		c.Session.WriteWait = DefaultWriteWait
	}
	if c.Session.PongWait == 0 {
		c.Session.PongWait = DefaultPongWait
	}
	if c.Session.PingPeriod == 0 {
		c.Session.PingPeriod = (c.Session.PongWait * 9) / 10
	}
	if c.Session.MaxMessageSize == 0 {
		c.Session.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Session.ReadBufferSize == 0 {
		c.Session.ReadBufferSize = DefaultBufferSize
	}
	if c.Session.WriteBufferSize == 0 {
		c.Session.WriteBufferSize = DefaultBufferSize
	}

	if c.Relay.MaxParallelSends == 0 {
		c.Relay.MaxParallelSends = DefaultMaxParallelSends
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
