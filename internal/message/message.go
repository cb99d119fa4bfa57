package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/docsync/docsync/internal/model"
)

// Inbound message tags. TypeAgentUpdate is a legacy alias for
// TypeCardUpdate and carries the same payload.
const (
	TypeStatusUpdate = "status_update"
	TypeCardUpdate   = "card_update"
	TypeAgentUpdate  = "agent_update"
	TypeFinalResults = "final_results"
	TypeError        = "error"

	// TypeSubscribe is outbound only: the subscription control frame.
	TypeSubscribe = "subscribe"
)

// Envelope is a single push-channel frame.
type Envelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// StatusPayload is the payload for "status_update" frames: an
// aggregate-level session status change.
type StatusPayload struct {
	Status  model.CardStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

// CardPayload is the payload for "card_update" and "agent_update" frames.
type CardPayload struct {
	ID         string           `json:"id"`
	Title      string           `json:"title,omitempty"`
	Status     model.CardStatus `json:"status"`
	Content    map[string]any   `json:"content,omitempty"`
	Confidence model.Confidence `json:"confidence,omitempty"`
}

// FinalResultsPayload is the payload for "final_results" frames.
type FinalResultsPayload struct {
	Results map[string]any `json:"results,omitempty"`
	Cards   []CardPayload  `json:"cards,omitempty"`
}

// ErrorPayload is the payload for "error" frames: a business-level
// terminal failure from the pipeline.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Decode parses a raw frame into an Envelope. Frames with unknown type
// tags decode successfully; callers decide whether to drop them.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type tag")
	}
	return env, nil
}

// Known returns true if the envelope's tag is one this client handles.
func (e Envelope) Known() bool {
	switch e.Type {
	case TypeStatusUpdate, TypeCardUpdate, TypeAgentUpdate, TypeFinalResults, TypeError:
		return true
	}
	return false
}

// Status decodes the payload of a "status_update" frame.
func (e Envelope) Status() (StatusPayload, error) {
	var p StatusPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return StatusPayload{}, fmt.Errorf("decode status payload: %w", err)
	}
	return p, nil
}

// CardUpdate decodes the payload of a "card_update" / "agent_update" frame.
func (e Envelope) CardUpdate() (CardPayload, error) {
	var p CardPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return CardPayload{}, fmt.Errorf("decode card payload: %w", err)
	}
	if p.ID == "" {
		return CardPayload{}, fmt.Errorf("decode card payload: missing id")
	}
	return p, nil
}

// FinalResults decodes the payload of a "final_results" frame.
func (e Envelope) FinalResults() (FinalResultsPayload, error) {
	var p FinalResultsPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return FinalResultsPayload{}, fmt.Errorf("decode final results payload: %w", err)
	}
	return p, nil
}

// Error decodes the payload of an "error" frame.
func (e Envelope) Error() (ErrorPayload, error) {
	var p ErrorPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return ErrorPayload{}, fmt.Errorf("decode error payload: %w", err)
	}
	return p, nil
}

// Card converts a CardPayload into a model.Card stamped with ts. A zero
// ts means "now".
func (p CardPayload) Card(ts time.Time) model.Card {
	if ts.IsZero() {
		ts = time.Now()
	}
	return model.Card{
		ID:         p.ID,
		Title:      p.Title,
		Status:     p.Status,
		Content:    p.Content,
		Timestamp:  ts,
		Confidence: p.Confidence,
	}
}

// NewSubscribe builds the outbound subscription control frame for a session.
func NewSubscribe(sessionID string) Envelope {
	return Envelope{
		Type:      TypeSubscribe,
		SessionID: sessionID,
		Data:      json.RawMessage(`{}`),
		Timestamp: time.Now().UTC(),
	}
}
