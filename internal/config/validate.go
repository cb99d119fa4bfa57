package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be http(s), got %q", c.API.BaseURL)
	}

	if c.Push.WSURL == "" {
		return errors.New("push.ws_url is required")
	}
	if !strings.HasPrefix(c.Push.WSURL, "ws://") && !strings.HasPrefix(c.Push.WSURL, "wss://") {
		return fmt.Errorf("push.ws_url must be ws(s), got %q", c.Push.WSURL)
	}
	if c.Push.MaxReconnectAttempts < 1 {
		return errors.New("push.max_reconnect_attempts must be >= 1")
	}
	if c.Push.BufferSize < 1 {
		return errors.New("push.buffer_size must be >= 1")
	}

	if c.Polling.Interval <= 0 {
		return errors.New("polling.interval must be positive")
	}
	if c.Polling.MaxFailures < 1 {
		return errors.New("polling.max_failures must be >= 1")
	}

	if c.Submission.MaxRetries < 1 {
		return errors.New("submission.max_retries must be >= 1")
	}

	return nil
}
