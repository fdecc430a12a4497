package sinks

import (
	"context"
	"sync"

	"github.com/pagevault/pagevault/internal/feed"
)

const defaultRingCapacity = 100

// RingSink retains the most recent events in a fixed-size in-memory ring so
// the HTTP API can serve them without a database. Once full, new events evict
// the oldest. An optional stage allow-list restricts what is retained.
type RingSink struct {
	mu     sync.Mutex
	buf    []feed.Event
	next   int
	filled bool
	keep   map[feed.Stage]struct{}
}

// NewRingSink builds a ring holding up to capacity events. When stages are
// given, only events with one of those stages are retained.
func NewRingSink(capacity int, stages ...feed.Stage) *RingSink {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	var keep map[feed.Stage]struct{}
	if len(stages) > 0 {
		keep = make(map[feed.Stage]struct{}, len(stages))
		for _, stage := range stages {
			keep[stage] = struct{}{}
		}
	}
	return &RingSink{buf: make([]feed.Event, capacity), keep: keep}
}

// Consume appends retained events to the ring, evicting the oldest when full.
func (s *RingSink) Consume(_ context.Context, batch []feed.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		if s.keep != nil {
			if _, ok := s.keep[evt.Stage]; !ok {
				continue
			}
		}
		s.buf[s.next] = evt
		s.next++
		if s.next == len(s.buf) {
			s.next = 0
			s.filled = true
		}
	}
	return nil
}

// Recent returns up to n retained events, newest first. n <= 0 returns every
// retained event.
func (s *RingSink) Recent(n int) []feed.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.next
	if s.filled {
		size = len(s.buf)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]feed.Event, 0, n)
	for i := 0; i < n; i++ {
		idx := s.next - 1 - i
		if idx < 0 {
			idx += len(s.buf)
		}
		out = append(out, s.buf[idx])
	}
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *RingSink) Close(context.Context) error {
	return nil
}
