package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docsync/docsync/internal/model"
)

// State is the poller's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// StatusFetcher fetches one job status observation. Satisfied by
// *api.Client.
type StatusFetcher interface {
	JobStatus(ctx context.Context, jobID string) (model.JobStatus, error)
}

// Callbacks receive poll results. OnStatus fires per observation;
// OnComplete and OnError fire at most once per job, and never both.
type Callbacks struct {
	OnStatus   func(model.JobStatus)
	OnComplete func(results map[string]any)
	OnError    func(err error)
}

// Config holds poller configuration.
type Config struct {
	Interval       time.Duration // Poll interval (default: 2s)
	MaxFailures    int           // Consecutive fetch failures before giving up (default: 3)
	RequestTimeout time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:       2 * time.Second,
		MaxFailures:    3,
		RequestTimeout: 10 * time.Second,
	}
}

// Poller polls job status at a fixed interval until the job reaches a
// terminal state or the failure budget runs out.
type Poller struct {
	cfg     Config
	fetcher StatusFetcher
	cb      Callbacks
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	jobID    string
	failures int
	lastErr  error
	finished bool // terminal callback already fired
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	refresh chan struct{}
}

// New creates a Poller.
func New(cfg Config, fetcher StatusFetcher, cb Callbacks, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}

	return &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		cb:      cb,
		logger:  logger,
		state:   StateIdle,
		refresh: make(chan struct{}, 1),
	}
}

// SetJob switches the poller to a new job. A non-empty ID starts
// polling immediately; the empty ID halts polling and clears status,
// error and retry state. ctx bounds the polling loop's lifetime.
func (p *Poller) SetJob(ctx context.Context, jobID string) {
	p.mu.Lock()
	if p.jobID == jobID {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	p.jobID = jobID
	p.failures = 0
	p.lastErr = nil
	p.finished = false

	if jobID == "" {
		p.state = StateIdle
		p.mu.Unlock()
		p.logger.Debug("polling halted")
		return
	}

	runCtx, runCancel := context.WithCancel(ctx)
	p.cancel = runCancel
	p.state = StatePolling
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(runCtx, jobID)

	p.logger.Info("polling started",
		"job_id", jobID,
		"interval", p.cfg.Interval,
	)
}

// Stop halts polling without firing callbacks. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	if p.state == StatePolling {
		p.state = StateIdle
	}
	p.jobID = ""
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Refresh resets the failure counter and error state and performs an
// immediate out-of-band fetch. The regular interval is not disturbed.
func (p *Poller) Refresh() {
	p.mu.Lock()
	p.failures = 0
	p.lastErr = nil
	polling := p.state == StatePolling
	p.mu.Unlock()

	if !polling {
		return
	}

	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastError returns the most recent fetch error, if any.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// run polls until a terminal status, failure exhaustion, or cancellation.
// Failed fetches are retried on the next scheduled tick; the cadence
// stays fixed rather than backing off.
func (p *Poller) run(ctx context.Context, jobID string) {
	defer p.wg.Done()

	// Poll immediately on start.
	if done := p.poll(ctx, jobID); done {
		return
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.refresh:
			if done := p.poll(ctx, jobID); done {
				return
			}
		case <-ticker.C:
			if done := p.poll(ctx, jobID); done {
				return
			}
		}
	}
}

// poll performs one fetch. It returns true when polling should stop.
func (p *Poller) poll(ctx context.Context, jobID string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	status, err := p.fetcher.JobStatus(reqCtx, jobID)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return true
		}

		p.mu.Lock()
		p.failures++
		p.lastErr = err
		failures := p.failures
		p.mu.Unlock()

		p.logger.Warn("status fetch failed",
			"job_id", jobID,
			"consecutive_failures", failures,
			"error", err,
		)

		if failures >= p.cfg.MaxFailures {
			p.finish(StateFailed, nil, fmt.Errorf("polling gave up after %d failures: %w", failures, err))
			return true
		}
		return false
	}

	p.mu.Lock()
	p.failures = 0
	p.lastErr = nil
	p.mu.Unlock()

	if p.cb.OnStatus != nil {
		p.cb.OnStatus(status)
	}

	if !status.Status.Terminal() {
		return false
	}

	switch status.Status {
	case model.JobCompleted:
		p.finish(StateCompleted, status.Results, nil)
	case model.JobFailed:
		msg := status.Error
		if msg == "" {
			msg = "job failed"
		}
		p.finish(StateFailed, nil, errors.New(msg))
	}
	return true
}

// finish transitions to a terminal state and fires the matching
// callback exactly once.
func (p *Poller) finish(state State, results map[string]any, err error) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	p.state = state
	p.lastErr = err
	p.mu.Unlock()

	if err != nil {
		p.logger.Info("polling finished", "state", state, "error", err)
		if p.cb.OnError != nil {
			p.cb.OnError(err)
		}
		return
	}

	p.logger.Info("polling finished", "state", state)
	if p.cb.OnComplete != nil {
		p.cb.OnComplete(results)
	}
}
