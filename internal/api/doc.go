// Package api provides the REST client for the document-processing
// backend: document upload, session snapshots, order submission, job
// status (polling fallback) and health.
//
// The client performs no automatic retries. Each call has a fixed
// timeout; retry policy belongs to the callers (the polling fallback
// counts consecutive failures, submission retries are user triggered).
package api
