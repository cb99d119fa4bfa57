package router

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/docsync/docsync/internal/connection"
	"github.com/docsync/docsync/internal/message"
)

// fakeSender records outbound control frames.
type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, data)
	return nil
}

func frame(t *testing.T, env message.Envelope) connection.TimestampedMessage {
	t.Helper()
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return connection.TimestampedMessage{Data: data, ReceivedAt: time.Now()}
}

func TestRouter_DispatchOrder(t *testing.T) {
	r := New(Config{}, nil, nil, nil)

	var mu sync.Mutex
	var order []string

	r.Subscribe("s1", func(env message.Envelope) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	r.Subscribe("s1", func(env message.Envelope) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})

	r.Dispatch(message.Envelope{Type: message.TypeStatusUpdate, SessionID: "s1"})

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestRouter_UnsubscribeIdempotent(t *testing.T) {
	r := New(Config{}, nil, nil, nil)

	var calls int
	unsub := r.Subscribe("s1", func(env message.Envelope) { calls++ })

	if got := r.Stats().Subscribers; got != 1 {
		t.Fatalf("Subscribers = %d, want 1", got)
	}

	unsub()
	unsub() // second call is a no-op

	if got := r.Stats().Subscribers; got != 0 {
		t.Errorf("Subscribers = %d after unsubscribe, want 0", got)
	}

	r.Dispatch(message.Envelope{Type: message.TypeStatusUpdate, SessionID: "s1"})
	if calls != 0 {
		t.Errorf("callback fired %d times after unsubscribe, want 0", calls)
	}
}

func TestRouter_UnsubscribeKeepsOthers(t *testing.T) {
	r := New(Config{}, nil, nil, nil)

	var aCalls, bCalls int
	unsubA := r.Subscribe("s1", func(env message.Envelope) { aCalls++ })
	r.Subscribe("s1", func(env message.Envelope) { bCalls++ })

	unsubA()
	r.Dispatch(message.Envelope{Type: message.TypeStatusUpdate, SessionID: "s1"})

	if aCalls != 0 {
		t.Errorf("unsubscribed callback fired %d times", aCalls)
	}
	if bCalls != 1 {
		t.Errorf("remaining callback fired %d times, want 1", bCalls)
	}
}

func TestRouter_BroadcastByDefault(t *testing.T) {
	r := New(Config{}, nil, nil, nil)

	var calls int
	r.Subscribe("other-session", func(env message.Envelope) { calls++ })

	r.Dispatch(message.Envelope{Type: message.TypeStatusUpdate, SessionID: "s1"})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (broadcast delivers across sessions)", calls)
	}
}

func TestRouter_FilterBySession(t *testing.T) {
	r := New(Config{FilterBySession: true}, nil, nil, nil)

	var s1, s2 int
	r.Subscribe("s1", func(env message.Envelope) { s1++ })
	r.Subscribe("s2", func(env message.Envelope) { s2++ })

	r.Dispatch(message.Envelope{Type: message.TypeStatusUpdate, SessionID: "s1"})
	if s1 != 1 || s2 != 0 {
		t.Errorf("s1 = %d, s2 = %d, want 1, 0", s1, s2)
	}

	// Frames without a session go to everyone even when filtering.
	r.Dispatch(message.Envelope{Type: message.TypeStatusUpdate})
	if s1 != 2 || s2 != 1 {
		t.Errorf("s1 = %d, s2 = %d after sessionless frame, want 2, 1", s1, s2)
	}
}

func TestRouter_SubscribeSendsControlFrame(t *testing.T) {
	sender := &fakeSender{}
	r := New(Config{}, nil, sender, nil)

	r.Subscribe("s1", func(env message.Envelope) {})

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sender.sent))
	}

	env, err := message.Decode(sender.sent[0])
	if err != nil {
		t.Fatalf("control frame does not decode: %v", err)
	}
	if env.Type != message.TypeSubscribe {
		t.Errorf("Type = %s, want subscribe", env.Type)
	}
	if env.SessionID != "s1" {
		t.Errorf("SessionID = %s, want s1", env.SessionID)
	}
}

func TestRouter_SubscribeSurvivesSendFailure(t *testing.T) {
	sender := &fakeSender{err: connection.ErrNotConnected}
	r := New(Config{}, nil, sender, nil)

	var calls int
	r.Subscribe("s1", func(env message.Envelope) { calls++ })

	// Registration holds even though the control frame was dropped.
	r.Dispatch(message.Envelope{Type: message.TypeStatusUpdate, SessionID: "s1"})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRouter_RouteLoop(t *testing.T) {
	input := make(chan connection.TimestampedMessage, 8)
	r := New(Config{}, input, nil, nil)

	received := make(chan message.Envelope, 8)
	r.Subscribe("s1", func(env message.Envelope) { received <- env })

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := r.Stop(ctx); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	}()

	input <- frame(t, message.Envelope{Type: message.TypeStatusUpdate, SessionID: "s1", Timestamp: time.Now()})

	select {
	case env := <-received:
		if env.Type != message.TypeStatusUpdate {
			t.Errorf("Type = %s, want status_update", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("frame not dispatched")
	}
}

func TestRouter_MalformedFramesCounted(t *testing.T) {
	input := make(chan connection.TimestampedMessage, 8)
	r := New(Config{}, input, nil, nil)

	received := make(chan message.Envelope, 8)
	r.Subscribe("s1", func(env message.Envelope) { received <- env })

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.Stop(ctx)
	}()

	input <- connection.TimestampedMessage{Data: []byte("not json"), ReceivedAt: time.Now()}
	input <- frame(t, message.Envelope{Type: message.TypeStatusUpdate, SessionID: "s1", Timestamp: time.Now()})

	// The valid frame still comes through after the bad one.
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("valid frame not dispatched after malformed frame")
	}

	stats := r.Stats()
	if stats.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", stats.Malformed)
	}
	if stats.Received != 2 {
		t.Errorf("Received = %d, want 2", stats.Received)
	}
}

func TestRouter_FillsMissingTimestamp(t *testing.T) {
	input := make(chan connection.TimestampedMessage, 1)
	r := New(Config{}, input, nil, nil)

	received := make(chan message.Envelope, 1)
	r.Subscribe("s1", func(env message.Envelope) { received <- env })

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.Stop(ctx)
	}()

	arrived := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	input <- connection.TimestampedMessage{
		Data:       []byte(`{"type":"status_update","session_id":"s1"}`),
		ReceivedAt: arrived,
	}

	select {
	case env := <-received:
		if !env.Timestamp.Equal(arrived) {
			t.Errorf("Timestamp = %v, want arrival time %v", env.Timestamp, arrived)
		}
	case <-time.After(time.Second):
		t.Fatal("frame not dispatched")
	}
}

func TestRouter_StopOnInputClose(t *testing.T) {
	input := make(chan connection.TimestampedMessage)
	r := New(Config{}, input, nil, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	close(input)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Errorf("Stop after input close failed: %v", err)
	}
}
