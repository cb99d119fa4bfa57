package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/docsync/docsync/internal/model"
)

// Upload sends a document as multipart form data to POST /upload and
// returns the created session's identifiers.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (UploadResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadResponse{}, fmt.Errorf("copy file: %w", err)
	}
	if err := w.Close(); err != nil {
		return UploadResponse{}, fmt.Errorf("close multipart writer: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/upload", w.FormDataContentType(), &buf)
	if err != nil {
		return UploadResponse{}, err
	}

	var resp UploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return UploadResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}

	c.logger.Debug("document uploaded",
		"filename", filename,
		"session_id", resp.SessionID,
	)

	return resp, nil
}

// GetSession fetches a session snapshot from GET /sessions/{id}.
func (c *Client) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	var s model.Session
	err := c.get(ctx, "/sessions/"+url.PathEscape(sessionID), &s)
	return s, err
}

// SubmitOrder posts an order payload to POST /orders/{sessionID}/submit.
func (c *Client) SubmitOrder(ctx context.Context, sessionID string, order map[string]any) (SubmitResponse, error) {
	var resp SubmitResponse
	err := c.postJSON(ctx, "/orders/"+url.PathEscape(sessionID)+"/submit", order, &resp)
	if err != nil {
		return SubmitResponse{}, err
	}

	c.logger.Debug("order submitted",
		"session_id", sessionID,
		"order_id", resp.OrderID,
	)

	return resp, nil
}

// JobStatus fetches one observation from GET /jobs/{id}/status. Any
// non-2xx response is a fetch failure for the polling fallback.
func (c *Client) JobStatus(ctx context.Context, jobID string) (model.JobStatus, error) {
	var s model.JobStatus
	err := c.get(ctx, "/jobs/"+url.PathEscape(jobID)+"/status", &s)
	return s, err
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	var resp HealthResponse
	return c.get(ctx, "/health", &resp)
}
