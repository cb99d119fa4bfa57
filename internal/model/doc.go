// Package model defines the shared domain types for docsync.
//
// Conventions:
//   - Enums: lowercase string types matching the wire format
//   - Timestamps: time.Time, RFC 3339 on the wire
//   - Card content and job results: map[string]any (server-defined shape)
package model
