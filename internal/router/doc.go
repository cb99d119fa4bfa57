// Package router implements the subscription router.
//
// The router:
//   - Registers session-keyed callbacks, each under a unique token
//   - Decodes raw push-channel frames and drops malformed ones
//   - Dispatches every decoded frame to registered callbacks in
//     registration order (broadcast by default, per-session filtering
//     is opt-in)
//   - Sends the subscribe control frame as a side effect of
//     registration; local dispatch never depends on it
package router
