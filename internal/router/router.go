package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/docsync/docsync/internal/connection"
	"github.com/docsync/docsync/internal/message"
)

// Handler consumes one decoded push-channel frame.
type Handler func(message.Envelope)

// Sender sends outbound control frames. Satisfied by *connection.Manager.
type Sender interface {
	Send(data []byte) error
}

// Router routes decoded push-channel frames to registered callbacks.
type Router interface {
	// Start begins decoding and dispatching frames from the input channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the dispatch loop.
	Stop(ctx context.Context) error

	// Subscribe registers a callback for a session and returns its
	// unsubscribe function. Unsubscribing twice is a no-op.
	Subscribe(sessionID string, fn Handler) (unsubscribe func())

	// Dispatch delivers one envelope to every registered callback, in
	// registration order.
	Dispatch(env message.Envelope)

	// Stats returns dispatch counters.
	Stats() Stats
}

// Stats contains runtime counters.
type Stats struct {
	Received    int64 // raw frames consumed
	Dispatched  int64 // frames delivered to at least the dispatch path
	Malformed   int64 // frames dropped because they failed to decode
	Subscribers int   // currently registered callbacks
}

// Config configures the router.
type Config struct {
	// FilterBySession delivers a frame only to callbacks registered for
	// its session. Default is broadcast: one channel may multiplex
	// several logical subscriptions per client.
	FilterBySession bool
}

type entry struct {
	token     string
	sessionID string
	fn        Handler
}

type router struct {
	cfg    Config
	input  <-chan connection.TimestampedMessage
	sender Sender
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	entries    []entry
	received   int64
	dispatched int64
	malformed  int64
}

// New creates a Router reading raw frames from input. sender may be nil
// when no control frames should go out (tests, replay).
func New(cfg Config, input <-chan connection.TimestampedMessage, sender Sender, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:    cfg,
		input:  input,
		sender: sender,
		logger: logger,
	}
}

// Start begins the dispatch loop.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("subscription router started",
		"filter_by_session", r.cfg.FilterBySession,
	)

	return nil
}

// Stop gracefully shuts down the dispatch loop.
func (r *router) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("subscription router stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("subscription router stop timed out")
		return ctx.Err()
	}
}

// Subscribe registers fn for sessionID. The subscribe control frame is
// sent best effort; registration succeeds locally regardless.
func (r *router) Subscribe(sessionID string, fn Handler) func() {
	token := uuid.NewString()

	r.mu.Lock()
	r.entries = append(r.entries, entry{
		token:     token,
		sessionID: sessionID,
		fn:        fn,
	})
	r.mu.Unlock()

	r.logger.Debug("subscribed",
		"session_id", sessionID,
		"token", token,
	)

	if r.sender != nil {
		data, err := json.Marshal(message.NewSubscribe(sessionID))
		if err == nil {
			err = r.sender.Send(data)
		}
		if err != nil {
			r.logger.Warn("failed to send subscribe frame",
				"session_id", sessionID,
				"error", err,
			)
		}
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		for i, e := range r.entries {
			if e.token == token {
				r.entries = append(r.entries[:i], r.entries[i+1:]...)
				return
			}
		}
		// Already removed: unsubscribe is idempotent.
	}
}

// Dispatch delivers env to every registered callback in registration
// order. Each callback sees the envelope exactly once per call.
func (r *router) Dispatch(env message.Envelope) {
	r.mu.Lock()
	snapshot := make([]entry, len(r.entries))
	copy(snapshot, r.entries)
	r.dispatched++
	r.mu.Unlock()

	for _, e := range snapshot {
		if r.cfg.FilterBySession && env.SessionID != "" && e.sessionID != env.SessionID {
			continue
		}
		e.fn(env)
	}
}

// Stats returns current counters.
func (r *router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Received:    r.received,
		Dispatched:  r.dispatched,
		Malformed:   r.malformed,
		Subscribers: len(r.entries),
	}
}

// routeLoop consumes raw frames until the input closes or the context
// is cancelled. Frames keep channel arrival order; there is no
// reordering buffer.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// route decodes and dispatches a single raw frame. Undecodable frames
// are dropped without touching any state downstream.
func (r *router) route(raw connection.TimestampedMessage) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	env, err := message.Decode(raw.Data)
	if err != nil {
		r.logger.Warn("dropping malformed frame", "error", err)
		r.mu.Lock()
		r.malformed++
		r.mu.Unlock()
		return
	}

	if env.Timestamp.IsZero() {
		env.Timestamp = raw.ReceivedAt
	}

	r.Dispatch(env)
}
