package config

import "time"

// Config is the top-level docsync configuration.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Push       PushConfig       `yaml:"push"`
	Polling    PollingConfig    `yaml:"polling"`
	Submission SubmissionConfig `yaml:"submission"`
}

// APIConfig configures the REST client.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// PushConfig configures the push channel.
type PushConfig struct {
	WSURL                string        `yaml:"ws_url"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
	FilterBySession      bool          `yaml:"filter_by_session"`
}

// PollingConfig configures the pull-based status fallback.
type PollingConfig struct {
	Interval       time.Duration `yaml:"interval"`
	MaxFailures    int           `yaml:"max_failures"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SubmissionConfig configures order submission.
type SubmissionConfig struct {
	MaxRetries int `yaml:"max_retries"`
}
