// Package poller probes website URLs and feeds the results into the status
// store.
//
// The main components are:
//
//   - [IsValidURL]: Scheme and character-set sanity check for URLs
//   - [Client]: HTTP client wrapper with connect and read timeouts
//   - [HTTPProber]: Performs one GET per URL and reports the status code
//   - [Scheduler]: Runs probe-and-append cycles, once or at a fixed rate
//   - [Metrics]: Prometheus collectors for probes and cycles
//
// A failed probe (invalid URL, DNS failure, refused connection, timeout) is
// reported with status [store.FailedStatus] rather than an error return, so a
// single bad URL never aborts a cycle.
package poller
