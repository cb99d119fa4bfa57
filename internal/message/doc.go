// Package message defines the push-channel wire protocol.
//
// Every frame is a JSON Envelope carrying a type tag, the session it
// belongs to, and a type-specific payload. Known tags decode into typed
// payloads; unknown tags decode cleanly and are dropped by consumers,
// which keeps old clients forward compatible with new server tags.
package message
