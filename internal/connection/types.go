package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrStaleConnection    = errors.New("connection stale (no ping)")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// State is the lifecycle state of a Manager.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// TimestampedMessage wraps raw frame bytes with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when the read returned
}

// Callbacks are invoked by the Manager on connection lifecycle events.
// They run outside the Manager's locks and must not panic; any nil
// callback is skipped.
type Callbacks struct {
	OnOpen  func()          // connection established (initial or reconnect)
	OnClose func(err error) // connection dropped unexpectedly
	OnError func(err error) // terminal failure (reconnect budget exhausted)
}

// ClientConfig configures a single WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL
	HandshakeTimeout time.Duration // Dial timeout
	PingTimeout      time.Duration // Max silence before the connection is considered stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the connection Manager.
type ManagerConfig struct {
	URL                  string        // WebSocket URL
	ReconnectBaseDelay   time.Duration // Delay grows linearly: base * attempt
	MaxReconnectAttempts int           // Consecutive failures before giving up
	HandshakeTimeout     time.Duration
	PingTimeout          time.Duration
	WriteTimeout         time.Duration
	BufferSize           int // Merged output channel buffer size
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectBaseDelay:   1 * time.Second,
		MaxReconnectAttempts: 5,
		HandshakeTimeout:     10 * time.Second,
		PingTimeout:          60 * time.Second,
		WriteTimeout:         5 * time.Second,
		BufferSize:           256,
	}
}

func (c ManagerConfig) clientConfig() ClientConfig {
	return ClientConfig{
		URL:              c.URL,
		HandshakeTimeout: c.HandshakeTimeout,
		PingTimeout:      c.PingTimeout,
		WriteTimeout:     c.WriteTimeout,
		BufferSize:       c.BufferSize,
	}
}
