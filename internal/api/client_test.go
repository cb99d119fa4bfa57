package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docsync/docsync/internal/model"
)

func TestClient_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			t.Errorf("got %s %s, want POST /upload", r.Method, r.URL.Path)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile failed: %v", err)
		}
		defer file.Close()

		if header.Filename != "invoice.pdf" {
			t.Errorf("filename = %s, want invoice.pdf", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "pdf bytes" {
			t.Errorf("file content = %q, want %q", content, "pdf bytes")
		}

		json.NewEncoder(w).Encode(UploadResponse{
			SessionID: "sess-1",
			ClientID:  "client-1",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Upload(context.Background(), "invoice.pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if resp.SessionID != "sess-1" {
		t.Errorf("SessionID = %s, want sess-1", resp.SessionID)
	}
	if resp.ClientID != "client-1" {
		t.Errorf("ClientID = %s, want client-1", resp.ClientID)
	}
}

func TestClient_GetSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/sess-1" {
			t.Errorf("path = %s, want /sessions/sess-1", r.URL.Path)
		}
		json.NewEncoder(w).Encode(model.Session{
			SessionID: "sess-1",
			Cards: []model.Card{
				{ID: "upload", Status: model.CardCompleted},
				{ID: "review", Status: model.CardProcessing},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	s, err := client.GetSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	if s.SessionID != "sess-1" {
		t.Errorf("SessionID = %s, want sess-1", s.SessionID)
	}
	if len(s.Cards) != 2 {
		t.Errorf("len(Cards) = %d, want 2", len(s.Cards))
	}
}

func TestClient_SubmitOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders/sess-1/submit" {
			t.Errorf("got %s %s, want POST /orders/sess-1/submit", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}

		var order map[string]any
		if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
			t.Fatalf("decode order: %v", err)
		}
		if order["sku"] != "A-1" {
			t.Errorf("order sku = %v, want A-1", order["sku"])
		}

		json.NewEncoder(w).Encode(SubmitResponse{OrderID: "order-9"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.SubmitOrder(context.Background(), "sess-1", map[string]any{"sku": "A-1"})
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if resp.OrderID != "order-9" {
		t.Errorf("OrderID = %s, want order-9", resp.OrderID)
	}
}

func TestClient_JobStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/job-1/status" {
			t.Errorf("path = %s, want /jobs/job-1/status", r.URL.Path)
		}
		json.NewEncoder(w).Encode(model.JobStatus{
			ID:      "job-1",
			Status:  model.JobCompleted,
			Results: map[string]any{"order": map[string]any{"sku": "A-1"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	s, err := client.JobStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("JobStatus failed: %v", err)
	}

	if s.Status != model.JobCompleted {
		t.Errorf("Status = %s, want completed", s.Status)
	}
	if s.Results == nil {
		t.Error("Results is nil")
	}
}

func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s, want /health", r.URL.Path)
		}
		json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"pipeline unavailable"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.JobStatus(context.Background(), "job-1")
	if err == nil {
		t.Fatal("JobStatus succeeded against a 500, want error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
	}
	if !strings.Contains(string(apiErr.Body), "pipeline unavailable") {
		t.Errorf("Body = %q, want it to carry the response body", apiErr.Body)
	}
}

func TestClient_NoAutoRetry(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.JobStatus(context.Background(), "job-1"); err == nil {
		t.Fatal("want error")
	}

	// Retry policy belongs to the callers, not the transport.
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.Health(ctx); err == nil {
		t.Error("Health succeeded with cancelled context, want error")
	}
}
