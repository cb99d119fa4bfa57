// Package poller implements the pull-based status fallback.
//
// The poller:
//   - Fetches job status at a fixed interval once given a job ID
//   - Stops on a terminal status and fires the completion or error
//     callback exactly once
//   - Retries transport failures on the next scheduled tick and gives
//     up after a bounded number of consecutive failures
//   - Supports out-of-band refresh without disturbing the interval
package poller
