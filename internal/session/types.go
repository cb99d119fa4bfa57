package session

import (
	"errors"

	"github.com/docsync/docsync/internal/connection"
	"github.com/docsync/docsync/internal/poller"
	"github.com/docsync/docsync/internal/router"
)

// Errors
var (
	ErrNoSession        = errors.New("no active session")
	ErrNoReviewData     = errors.New("no review data available")
	ErrSubmitInFlight   = errors.New("submission already in flight")
	ErrRetriesExhausted = errors.New("submission retries exhausted")
	ErrUploadInProgress = errors.New("upload already in progress")
)

// State is the controller's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateSubscribed State = "subscribed"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Config configures a Controller.
type Config struct {
	// WSBaseURL is the push-channel base URL; the session connects at
	// <WSBaseURL>/ws/<clientID>.
	WSBaseURL string

	Connection connection.ManagerConfig
	Router     router.Config
	Polling    poller.Config

	// MaxSubmitRetries bounds user-triggered submission retries.
	MaxSubmitRetries int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Connection:       connection.DefaultManagerConfig(),
		Polling:          poller.DefaultConfig(),
		MaxSubmitRetries: 3,
	}
}
