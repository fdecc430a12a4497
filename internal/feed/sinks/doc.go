// Package sinks implements concrete feed consumers such as structured logging
// and the in-memory ring behind the HTTP API. Each sink satisfies the
// feed.Sink interface and is safe for repeated Consume/Close cycles.
package sinks
