package message

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/docsync/docsync/internal/model"
)

func TestDecode_CardUpdate(t *testing.T) {
	raw := `{
		"type": "card_update",
		"session_id": "s1",
		"data": {"id": "review", "title": "Review ready", "status": "completed", "content": {"order_data": {"sku": "A-1"}}, "confidence": "high"},
		"timestamp": "2026-01-15T10:30:00Z"
	}`

	env, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if env.Type != TypeCardUpdate {
		t.Errorf("Type = %s, want card_update", env.Type)
	}
	if env.SessionID != "s1" {
		t.Errorf("SessionID = %s, want s1", env.SessionID)
	}
	if !env.Known() {
		t.Error("Known() = false for card_update")
	}

	p, err := env.CardUpdate()
	if err != nil {
		t.Fatalf("CardUpdate failed: %v", err)
	}
	if p.ID != "review" {
		t.Errorf("ID = %s, want review", p.ID)
	}
	if p.Status != model.CardCompleted {
		t.Errorf("Status = %s, want completed", p.Status)
	}
	if p.Confidence != model.ConfidenceHigh {
		t.Errorf("Confidence = %s, want high", p.Confidence)
	}
	if _, ok := p.Content["order_data"]; !ok {
		t.Error("Content missing order_data")
	}
}

func TestDecode_AgentUpdateAlias(t *testing.T) {
	raw := `{"type":"agent_update","session_id":"s1","data":{"id":"extract","status":"processing"},"timestamp":"2026-01-15T10:30:00Z"}`

	env, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !env.Known() {
		t.Error("Known() = false for agent_update")
	}

	p, err := env.CardUpdate()
	if err != nil {
		t.Fatalf("CardUpdate failed: %v", err)
	}
	if p.ID != "extract" {
		t.Errorf("ID = %s, want extract", p.ID)
	}
}

func TestDecode_UnknownType(t *testing.T) {
	raw := `{"type":"heartbeat","session_id":"s1","timestamp":"2026-01-15T10:30:00Z"}`

	env, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed for unknown type: %v", err)
	}
	if env.Known() {
		t.Error("Known() = true for heartbeat")
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"session_id":"s1"}`, // missing type
		`[]`,
	}
	for _, raw := range cases {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Errorf("Decode(%q) succeeded, want error", raw)
		}
	}
}

func TestCardUpdate_MissingID(t *testing.T) {
	raw := `{"type":"card_update","session_id":"s1","data":{"status":"completed"},"timestamp":"2026-01-15T10:30:00Z"}`

	env, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, err := env.CardUpdate(); err == nil {
		t.Error("CardUpdate succeeded without id, want error")
	}
}

func TestDecode_ErrorPayload(t *testing.T) {
	raw := `{"type":"error","session_id":"s1","data":{"code":"PIPELINE_CRASH","message":"worker died"},"timestamp":"2026-01-15T10:30:00Z"}`

	env, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	p, err := env.Error()
	if err != nil {
		t.Fatalf("Error payload failed: %v", err)
	}
	if p.Code != "PIPELINE_CRASH" {
		t.Errorf("Code = %s, want PIPELINE_CRASH", p.Code)
	}
	if p.Message != "worker died" {
		t.Errorf("Message = %q, want %q", p.Message, "worker died")
	}
}

func TestCardPayload_Card(t *testing.T) {
	ts := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	p := CardPayload{ID: "review", Title: "Review", Status: model.CardCompleted}

	card := p.Card(ts)
	if card.Timestamp != ts {
		t.Errorf("Timestamp = %v, want %v", card.Timestamp, ts)
	}

	// Zero timestamp falls back to now.
	card = p.Card(time.Time{})
	if card.Timestamp.IsZero() {
		t.Error("Timestamp is zero, want now")
	}
}

func TestNewSubscribe(t *testing.T) {
	env := NewSubscribe("s1")

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if parsed["type"] != "subscribe" {
		t.Errorf("type = %v, want subscribe", parsed["type"])
	}
	if parsed["session_id"] != "s1" {
		t.Errorf("session_id = %v, want s1", parsed["session_id"])
	}
	if _, ok := parsed["data"].(map[string]any); !ok {
		t.Errorf("data = %v, want empty object", parsed["data"])
	}
	if _, ok := parsed["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}
