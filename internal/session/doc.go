// Package session implements the status reconciler and the session
// controller.
//
// The Reconciler keeps the ordered, unique-keyed card collection that
// is the sole state surface consumed by presentation. The Controller
// composes the push channel, the subscription router, the polling
// fallback and the REST client into the session lifecycle:
// upload → subscribe → process → review → submit → terminal.
package session
