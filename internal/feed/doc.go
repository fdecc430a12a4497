// Package feed provides the event primitives, non-blocking hub, and emitter
// interfaces that the scheduler and session directory use to report capture
// activity. It batches events on a background goroutine and fans them out to
// pluggable sinks such as structured logs or the in-memory ring served by the
// HTTP API.
package feed
