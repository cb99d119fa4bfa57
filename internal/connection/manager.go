package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager owns one push-channel connection's lifecycle: connect,
// bounded automatic reconnection, and teardown. Messages from every
// underlying connection (across reconnects) come out of one merged
// channel so consumers keep a single receive loop.
type Manager struct {
	cfg    ManagerConfig
	cb     Callbacks
	logger *slog.Logger

	// newClient is a seam for tests; production uses NewClient.
	newClient func(ClientConfig, *slog.Logger) Client

	messages chan TimestampedMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	client  Client
	attempt int
	timer   *time.Timer
	closed  bool
}

// NewManager creates a Manager. Callbacks may be partially nil.
func NewManager(cfg ManagerConfig, cb Callbacks, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = DefaultManagerConfig().ReconnectBaseDelay
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = DefaultManagerConfig().MaxReconnectAttempts
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultManagerConfig().BufferSize
	}

	return &Manager{
		cfg:       cfg,
		cb:        cb,
		logger:    logger,
		newClient: NewClient,
		messages:  make(chan TimestampedMessage, cfg.BufferSize),
		state:     StateDisconnected,
	}
}

// Connect opens the channel. It resolves once the connection is
// established and fails without retrying when the initial dial fails;
// automatic reconnection only covers connections that dropped after
// opening successfully.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	cl := m.newClient(m.cfg.clientConfig(), m.logger)
	if err := cl.Connect(m.ctx); err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		return fmt.Errorf("connect %s: %w", m.cfg.URL, err)
	}

	m.mu.Lock()
	m.client = cl
	m.state = StateConnected
	m.attempt = 0
	m.mu.Unlock()

	if m.cb.OnOpen != nil {
		m.cb.OnOpen()
	}

	m.wg.Add(1)
	go m.pump(cl)

	return nil
}

// Send writes one frame. When the manager is not connected the frame is
// dropped with a warning rather than queued: delivery is at most once.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	state, cl := m.state, m.client
	m.mu.Unlock()

	if state != StateConnected || cl == nil {
		m.logger.Warn("send dropped, channel not connected", "state", state)
		return ErrNotConnected
	}

	return cl.Send(data)
}

// Messages returns the merged inbound frame channel.
func (m *Manager) Messages() <-chan TimestampedMessage {
	return m.messages
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Disconnect cancels any pending reconnect timer and closes the
// underlying connection. Idempotent; safe before Connect. After
// Disconnect no callback or timer fires.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.state = StateDisconnected
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	cl := m.client
	m.client = nil
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cl != nil {
		cl.Close()
	}

	return nil
}

// pump forwards frames from one underlying client to the merged channel
// and triggers reconnection when the connection drops.
func (m *Manager) pump(cl Client) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-cl.Errors():
			m.logger.Warn("connection dropped", "error", err)
			cl.Close()

			if m.cb.OnClose != nil {
				m.cb.OnClose(err)
			}

			m.scheduleReconnect()
			return

		case msg, ok := <-cl.Messages():
			if !ok {
				return
			}
			select {
			case m.messages <- msg:
			case <-m.ctx.Done():
				return
			default:
				m.logger.Warn("merged buffer full, dropping frame")
			}
		}
	}
}

// scheduleReconnect arms the next retry timer. The delay grows linearly
// with the attempt number; exceeding the attempt budget is terminal.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	m.attempt++
	if m.attempt > m.cfg.MaxReconnectAttempts {
		m.state = StateFailed
		m.mu.Unlock()

		m.logger.Error("reconnect attempts exhausted",
			"attempts", m.cfg.MaxReconnectAttempts,
		)
		if m.cb.OnError != nil {
			m.cb.OnError(ErrReconnectExhausted)
		}
		return
	}

	m.state = StateReconnecting
	delay := time.Duration(m.attempt) * m.cfg.ReconnectBaseDelay
	m.timer = time.AfterFunc(delay, m.reconnect)
	m.mu.Unlock()

	m.logger.Info("reconnect scheduled",
		"attempt", m.attempt,
		"delay", delay,
	)
}

// reconnect runs on the timer goroutine and attempts one reconnection.
func (m *Manager) reconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	attempt := m.attempt
	m.mu.Unlock()

	m.logger.Info("attempting reconnection", "attempt", attempt)

	cl := m.newClient(m.cfg.clientConfig(), m.logger)
	if err := cl.Connect(m.ctx); err != nil {
		m.logger.Warn("reconnection failed",
			"attempt", attempt,
			"error", err,
		)
		m.scheduleReconnect()
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cl.Close()
		return
	}
	m.client = cl
	m.state = StateConnected
	m.attempt = 0
	m.mu.Unlock()

	m.logger.Info("reconnected")

	if m.cb.OnOpen != nil {
		m.cb.OnOpen()
	}

	m.wg.Add(1)
	go m.pump(cl)
}
