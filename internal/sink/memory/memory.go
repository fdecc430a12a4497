// Package memory stores captures in-memory for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/pagevault/pagevault/internal/scrape"
	"github.com/pagevault/pagevault/internal/sink"
)

// Sink keeps captured documents in a map keyed by pseudo URI.
type Sink struct {
	mu       sync.RWMutex
	captures map[string]scrape.Capture
}

// New creates an empty in-memory sink.
func New() *Sink {
	return &Sink{captures: make(map[string]scrape.Capture)}
}

// Store records the capture and returns a mem:// URI.
func (s *Sink) Store(_ context.Context, capture scrape.Capture) (string, error) {
	uri := "mem://" + sink.Filename(capture.CapturedAt, capture.TaskName)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures[uri] = capture
	return uri, nil
}

// Get returns the capture stored under uri.
func (s *Sink) Get(uri string) (scrape.Capture, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	capture, ok := s.captures[uri]
	return capture, ok
}

// Len reports how many captures are stored.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.captures)
}
