package api

// UploadResponse is the body of a successful POST /upload.
type UploadResponse struct {
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id"`
	Message   string `json:"message,omitempty"`
}

// SubmitResponse is the body of a successful POST /orders/{id}/submit.
type SubmitResponse struct {
	OrderID string `json:"order_id"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
