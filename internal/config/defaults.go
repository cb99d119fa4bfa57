package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout           = 30 * time.Second
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultPingTimeout          = 60 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultBufferSize           = 256
	DefaultPollInterval         = 2 * time.Second
	DefaultPollMaxFailures      = 3
	DefaultPollRequestTimeout   = 10 * time.Second
	DefaultMaxSubmitRetries     = 3
)

func (c *Config) applyDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	if c.Push.ReconnectBaseDelay == 0 {
		c.Push.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Push.MaxReconnectAttempts == 0 {
		c.Push.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Push.PingTimeout == 0 {
		c.Push.PingTimeout = DefaultPingTimeout
	}
	if c.Push.WriteTimeout == 0 {
		c.Push.WriteTimeout = DefaultWriteTimeout
	}
	if c.Push.BufferSize == 0 {
		c.Push.BufferSize = DefaultBufferSize
	}

	if c.Polling.Interval == 0 {
		c.Polling.Interval = DefaultPollInterval
	}
	if c.Polling.MaxFailures == 0 {
		c.Polling.MaxFailures = DefaultPollMaxFailures
	}
	if c.Polling.RequestTimeout == 0 {
		c.Polling.RequestTimeout = DefaultPollRequestTimeout
	}

	if c.Submission.MaxRetries == 0 {
		c.Submission.MaxRetries = DefaultMaxSubmitRetries
	}
}
