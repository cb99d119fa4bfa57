package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docsync/docsync/internal/api"
	"github.com/docsync/docsync/internal/connection"
	"github.com/docsync/docsync/internal/message"
	"github.com/docsync/docsync/internal/model"
	"github.com/docsync/docsync/internal/poller"
	"github.com/docsync/docsync/internal/router"
)

// Controller orchestrates one document-processing session. It owns the
// session state exclusively; all card mutations go through its
// Reconciler.
type Controller struct {
	cfg    Config
	api    *api.Client
	logger *slog.Logger

	rec  *Reconciler
	poll *poller.Poller

	mu            sync.Mutex
	state         State
	sessionID     string
	clientID      string
	status        model.CardStatus // aggregate session status
	createdAt     time.Time
	manager       *connection.Manager
	rtr           router.Router
	unsubscribe   func()
	runCancel     context.CancelFunc
	submitToken   string // non-empty while a submission is in flight
	submitRetries int
	lastOrder     map[string]any
}

// NewController creates a Controller in the Idle state.
func NewController(cfg Config, apiClient *api.Client, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSubmitRetries <= 0 {
		cfg.MaxSubmitRetries = DefaultConfig().MaxSubmitRetries
	}

	c := &Controller{
		cfg:    cfg,
		api:    apiClient,
		logger: logger,
		rec:    NewReconciler(),
		state:  StateIdle,
	}

	c.poll = poller.New(cfg.Polling, apiClient, poller.Callbacks{
		OnStatus:   c.onJobStatus,
		OnComplete: c.onJobComplete,
		OnError:    c.onJobError,
	}, logger)

	return c
}

// UploadDocument clears prior cards, uploads the document, and on
// success opens the push channel and subscribes the new session. On
// failure the session returns to Idle with an error card and no
// identifiers.
func (c *Controller) UploadDocument(ctx context.Context, filename string, r io.Reader) error {
	c.mu.Lock()
	if c.state == StateUploading {
		c.mu.Unlock()
		return ErrUploadInProgress
	}
	c.state = StateUploading
	c.sessionID = ""
	c.clientID = ""
	c.mu.Unlock()

	c.rec.Clear()

	resp, err := c.api.Upload(ctx, filename, r)
	if err != nil {
		c.rec.Apply(model.Card{
			ID:        model.CardIDUpload,
			Title:     "Upload failed",
			Status:    model.CardError,
			Content:   map[string]any{"error": err.Error()},
			Timestamp: time.Now(),
		})
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return fmt.Errorf("upload document: %w", err)
	}

	c.mu.Lock()
	c.sessionID = resp.SessionID
	c.clientID = resp.ClientID
	c.createdAt = time.Now()
	c.status = model.CardProcessing
	c.mu.Unlock()

	c.rec.Apply(model.Card{
		ID:     model.CardIDUpload,
		Title:  "Document uploaded",
		Status: model.CardCompleted,
		Content: map[string]any{
			"filename": filename,
			"message":  resp.Message,
		},
		Timestamp: time.Now(),
	})

	c.openChannel(resp.SessionID, resp.ClientID)

	c.mu.Lock()
	c.state = StateSubscribed
	c.mu.Unlock()

	c.logger.Info("session started",
		"session_id", resp.SessionID,
		"client_id", resp.ClientID,
	)

	return nil
}

// openChannel connects the push channel and wires the router. A failed
// connect is logged, not fatal: cards accumulated so far survive and
// the polling fallback can still drive the session.
func (c *Controller) openChannel(sessionID, clientID string) {
	runCtx, runCancel := context.WithCancel(context.Background())

	mgrCfg := c.cfg.Connection
	mgrCfg.URL = c.cfg.WSBaseURL + "/ws/" + clientID

	mgr := connection.NewManager(mgrCfg, connection.Callbacks{
		OnOpen: func() {
			c.logger.Debug("push channel open", "session_id", sessionID)
		},
		OnClose: func(err error) {
			c.logger.Warn("push channel dropped",
				"session_id", sessionID,
				"error", err,
			)
		},
		OnError: func(err error) {
			// Real-time updates are gone for good, but accumulated
			// card state stays; Resync remains available.
			c.logger.Error("push channel failed",
				"session_id", sessionID,
				"error", err,
			)
		},
	}, c.logger)

	rtr := router.New(c.cfg.Router, mgr.Messages(), mgr, c.logger)

	c.mu.Lock()
	c.manager = mgr
	c.rtr = rtr
	c.runCancel = runCancel
	c.mu.Unlock()

	if err := mgr.Connect(runCtx); err != nil {
		c.logger.Warn("push channel connect failed",
			"session_id", sessionID,
			"error", err,
		)
	}

	rtr.Start(runCtx)

	unsub := rtr.Subscribe(sessionID, c.handleMessage)
	c.mu.Lock()
	c.unsubscribe = unsub
	c.mu.Unlock()
}

// handleMessage applies one push-channel frame to the session. Unknown
// tags are dropped without mutating state.
func (c *Controller) handleMessage(env message.Envelope) {
	if !env.Known() {
		c.logger.Debug("ignoring unknown message type", "type", env.Type)
		return
	}

	switch env.Type {
	case message.TypeStatusUpdate:
		p, err := env.Status()
		if err != nil {
			c.logger.Warn("dropping bad status update", "error", err)
			return
		}
		c.mu.Lock()
		c.status = p.Status
		c.mu.Unlock()

	case message.TypeCardUpdate, message.TypeAgentUpdate:
		p, err := env.CardUpdate()
		if err != nil {
			c.logger.Warn("dropping bad card update", "error", err)
			return
		}
		c.rec.Apply(p.Card(env.Timestamp))

	case message.TypeFinalResults:
		p, err := env.FinalResults()
		if err != nil {
			c.logger.Warn("dropping bad final results", "error", err)
			return
		}
		for _, cp := range p.Cards {
			c.rec.Apply(cp.Card(env.Timestamp))
		}
		if p.Results != nil {
			c.rec.Apply(model.Card{
				ID:        "results",
				Title:     "Final results",
				Status:    model.CardCompleted,
				Content:   p.Results,
				Timestamp: env.Timestamp,
			})
		}
		c.mu.Lock()
		c.status = model.CardCompleted
		if c.state == StateSubscribed {
			c.state = StateCompleted
		}
		c.mu.Unlock()

	case message.TypeError:
		p, err := env.Error()
		if err != nil {
			c.logger.Warn("dropping bad error message", "error", err)
			return
		}
		c.rec.Apply(model.Card{
			ID:     "error",
			Title:  "Processing error",
			Status: model.CardError,
			Content: map[string]any{
				"code":    p.Code,
				"message": p.Message,
			},
			Timestamp: env.Timestamp,
		})
		c.mu.Lock()
		c.status = model.CardError
		c.state = StateFailed
		c.mu.Unlock()
	}
}

// SubmitOrder dispatches an order for the active session. The
// submission card goes to processing immediately and the same card is
// updated in place on completion; no duplicate card is ever appended.
// A second call while one is in flight fails with ErrSubmitInFlight.
func (c *Controller) SubmitOrder(ctx context.Context, order map[string]any) error {
	c.mu.Lock()
	if c.sessionID == "" {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.submitToken != "" {
		c.mu.Unlock()
		c.logger.Warn("duplicate submission rejected")
		return ErrSubmitInFlight
	}
	token := uuid.NewString()
	c.submitToken = token
	c.state = StateSubmitting
	c.lastOrder = order
	sessionID := c.sessionID
	c.mu.Unlock()

	c.rec.Apply(model.Card{
		ID:        model.CardIDSubmission,
		Title:     "Submitting order",
		Status:    model.CardProcessing,
		Timestamp: time.Now(),
	})

	resp, err := c.api.SubmitOrder(ctx, sessionID, order)

	c.mu.Lock()
	if c.submitToken != token {
		// Session was reset while the request was in flight; the new
		// session's state is not ours to touch.
		c.mu.Unlock()
		return err
	}
	c.submitToken = ""
	if err != nil {
		c.state = StateFailed
	} else {
		c.state = StateCompleted
		c.submitRetries = 0
	}
	c.mu.Unlock()

	if err != nil {
		c.rec.Apply(model.Card{
			ID:        model.CardIDSubmission,
			Title:     "Submission failed",
			Status:    model.CardError,
			Content:   map[string]any{"error": err.Error()},
			Timestamp: time.Now(),
		})
		return fmt.Errorf("submit order: %w", err)
	}

	c.rec.Apply(model.Card{
		ID:     model.CardIDSubmission,
		Title:  "Order submitted",
		Status: model.CardCompleted,
		Content: map[string]any{
			"order_id": resp.OrderID,
			"message":  resp.Message,
		},
		Timestamp: time.Now(),
	})

	return nil
}

// SubmitReview submits the review card's order payload.
func (c *Controller) SubmitReview(ctx context.Context) error {
	review, ok := c.rec.Get(model.CardIDReview)
	if !ok {
		return ErrNoReviewData
	}

	order := orderPayload(review)
	if order == nil {
		return ErrNoReviewData
	}

	return c.SubmitOrder(ctx, order)
}

// RetrySubmission replays the review card's order payload through
// SubmitOrder. Retries are user triggered and bounded.
func (c *Controller) RetrySubmission(ctx context.Context) error {
	c.mu.Lock()
	if c.submitRetries >= c.cfg.MaxSubmitRetries {
		c.mu.Unlock()
		return ErrRetriesExhausted
	}
	c.submitRetries++
	c.mu.Unlock()

	return c.SubmitReview(ctx)
}

// CanSubmit reports whether a review card exists and no submission is
// in flight.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	inFlight := c.submitToken != ""
	c.mu.Unlock()

	return !inFlight && c.rec.Has(model.CardIDReview)
}

// DownloadOrder serializes the review card's payload. The filename is
// derived from the session ID.
func (c *Controller) DownloadOrder() (filename string, data []byte, err error) {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	if sessionID == "" {
		return "", nil, ErrNoSession
	}

	review, ok := c.rec.Get(model.CardIDReview)
	if !ok {
		return "", nil, ErrNoReviewData
	}

	data, err = json.MarshalIndent(review.Content, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("marshal order: %w", err)
	}

	return "order-" + sessionID + ".json", data, nil
}

// Resync fetches the server's session snapshot and reapplies its cards.
// Recovery path for when the push channel is gone for good.
func (c *Controller) Resync(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	if sessionID == "" {
		return ErrNoSession
	}

	snap, err := c.api.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("resync session: %w", err)
	}

	for _, card := range snap.Cards {
		c.rec.Apply(card)
	}

	c.mu.Lock()
	if snap.Status != "" {
		c.status = snap.Status
	}
	c.mu.Unlock()

	c.logger.Info("session resynced",
		"session_id", sessionID,
		"cards", len(snap.Cards),
	)

	return nil
}

// StartPollingFallback begins pull-based status polling for a job,
// feeding the same reconciler as the push channel. An empty job ID
// halts polling.
func (c *Controller) StartPollingFallback(ctx context.Context, jobID string) {
	c.poll.SetJob(ctx, jobID)
}

// RefreshPolling resets the fallback's failure state and fetches once
// immediately.
func (c *Controller) RefreshPolling() {
	c.poll.Refresh()
}

// ResetSession releases connection resources, cancels polling, and
// clears all cards and identifiers. Idempotent.
func (c *Controller) ResetSession() {
	c.mu.Lock()
	mgr := c.manager
	rtr := c.rtr
	unsub := c.unsubscribe
	runCancel := c.runCancel
	c.manager = nil
	c.rtr = nil
	c.unsubscribe = nil
	c.runCancel = nil
	c.sessionID = ""
	c.clientID = ""
	c.status = ""
	c.submitToken = ""
	c.submitRetries = 0
	c.lastOrder = nil
	c.state = StateIdle
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if rtr != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rtr.Stop(stopCtx)
		cancel()
	}
	if mgr != nil {
		mgr.Disconnect()
	}
	if runCancel != nil {
		runCancel()
	}

	c.poll.Stop()
	c.rec.Clear()

	c.logger.Info("session reset")
}

// State returns the controller's lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the active session's ID, empty when Idle.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// ClientID returns the active session's client ID.
func (c *Controller) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Status returns the aggregate session status.
func (c *Controller) Status() model.CardStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Cards returns a copy of the session's card collection.
func (c *Controller) Cards() []model.Card {
	return c.rec.Cards()
}

// HasErrors reports whether any card is in the error state.
func (c *Controller) HasErrors() bool {
	return c.rec.HasErrors()
}

// ConnectionState returns the push channel's state, Disconnected when
// no channel exists.
func (c *Controller) ConnectionState() connection.State {
	c.mu.Lock()
	mgr := c.manager
	c.mu.Unlock()

	if mgr == nil {
		return connection.StateDisconnected
	}
	return mgr.State()
}

// onJobStatus maps a polling observation onto the processing card.
func (c *Controller) onJobStatus(status model.JobStatus) {
	c.rec.Apply(model.Card{
		ID:     "processing",
		Title:  jobTitle(status),
		Status: jobCardStatus(status.Status),
		Content: map[string]any{
			"progress": status.Progress,
			"step":     status.Step,
			"message":  status.Message,
		},
		Timestamp: status.Timestamp,
	})
}

// onJobComplete surfaces the polled job's results as a completed card.
func (c *Controller) onJobComplete(results map[string]any) {
	c.rec.Apply(model.Card{
		ID:        "results",
		Title:     "Final results",
		Status:    model.CardCompleted,
		Content:   results,
		Timestamp: time.Now(),
	})

	c.mu.Lock()
	c.status = model.CardCompleted
	if c.state == StateSubscribed {
		c.state = StateCompleted
	}
	c.mu.Unlock()
}

// onJobError surfaces a polling failure as an error card. Business
// failures and exhausted fetch retries land here alike; retry is the
// user's call.
func (c *Controller) onJobError(err error) {
	c.rec.Apply(model.Card{
		ID:        "processing",
		Title:     "Processing failed",
		Status:    model.CardError,
		Content:   map[string]any{"error": err.Error()},
		Timestamp: time.Now(),
	})

	c.mu.Lock()
	c.status = model.CardError
	c.state = StateFailed
	c.mu.Unlock()
}

// orderPayload extracts the order data from a review card.
func orderPayload(review model.Card) map[string]any {
	if review.Content == nil {
		return nil
	}
	if od, ok := review.Content["order_data"].(map[string]any); ok {
		return od
	}
	if _, ok := review.Content["order_data"]; ok {
		return map[string]any{"order_data": review.Content["order_data"]}
	}
	return nil
}

func jobTitle(status model.JobStatus) string {
	if status.Step != "" {
		return status.Step
	}
	return "Processing"
}

func jobCardStatus(s model.JobState) model.CardStatus {
	switch s {
	case model.JobPending:
		return model.CardPending
	case model.JobProcessing:
		return model.CardProcessing
	case model.JobCompleted:
		return model.CardCompleted
	case model.JobFailed:
		return model.CardError
	}
	return model.CardPending
}
