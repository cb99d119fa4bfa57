package model

import "time"

// -----------------------------------------------------------------------------
// Cards
// -----------------------------------------------------------------------------

// CardStatus is the processing state of a single card.
type CardStatus string

const (
	CardPending    CardStatus = "pending"
	CardProcessing CardStatus = "processing"
	CardCompleted  CardStatus = "completed"
	CardError      CardStatus = "error"
)

// Terminal returns true if no further transitions are expected.
func (s CardStatus) Terminal() bool {
	return s == CardCompleted || s == CardError
}

// Confidence grades how sure the pipeline is about a card's content.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Card is a unit of user-visible processing state with a stable id.
// Within a session at most one Card exists per ID.
type Card struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Status     CardStatus     `json:"status"`
	Content    map[string]any `json:"content,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Confidence Confidence     `json:"confidence,omitempty"`
}

// Well-known card IDs used by the session controller.
const (
	CardIDUpload     = "upload"
	CardIDReview     = "review"
	CardIDSubmission = "submission"
)

// -----------------------------------------------------------------------------
// Sessions
// -----------------------------------------------------------------------------

// Session is one document-processing run and its ordered card collection.
type Session struct {
	SessionID string     `json:"session_id"`
	ClientID  string     `json:"client_id"`
	Status    CardStatus `json:"status"`
	Cards     []Card     `json:"cards"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// Jobs (polling path)
// -----------------------------------------------------------------------------

// JobState is the processing state reported by the job status endpoint.
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Terminal returns true if polling should stop for this state.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus is a single observation from GET /jobs/{id}/status.
type JobStatus struct {
	ID        string         `json:"id"`
	Status    JobState       `json:"status"`
	Progress  float64        `json:"progress,omitempty"` // 0.0 - 1.0
	Step      string         `json:"step,omitempty"`
	Message   string         `json:"message,omitempty"`
	Results   map[string]any `json:"results,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
