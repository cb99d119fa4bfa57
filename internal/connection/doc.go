// Package connection implements the push-channel transport.
//
// Client wraps a single gorilla/websocket connection with read/keepalive
// loops and channel-based output. Manager owns one Client at a time and
// adds the lifecycle the rest of the system depends on: connect,
// bounded automatic reconnection, and idempotent teardown. Exactly one
// Manager is live per session controller.
package connection
