// Package schedule runs the cron loop that decides when each task fires. It
// batches tasks whose next occurrence lands on the same instant, dispatches
// the batch concurrently, and recomputes occurrences from the time the batch
// finished, so a slow batch skips the firings it slept through rather than
// replaying them.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagevault/pagevault/internal/metrics"
	"github.com/pagevault/pagevault/internal/scrape"
)

// Loop owns the scheduling entries and drives the wait/dispatch cycle.
type Loop struct {
	runner scrape.TaskRunner
	clock  scrape.Clock
	logger *zap.Logger

	mu      sync.Mutex
	entries []*Entry
}

// NewLoop parses every task schedule up front so a bad cron expression fails
// at startup instead of at fire time.
func NewLoop(tasks []scrape.Task, runner scrape.TaskRunner, clock scrape.Clock, logger *zap.Logger) (*Loop, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries := make([]*Entry, 0, len(tasks))
	for _, task := range tasks {
		entry, err := newEntry(task)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return &Loop{runner: runner, clock: clock, logger: logger, entries: entries}, nil
}

// Run executes the scheduling loop until every entry runs out of future
// occurrences, in which case it returns nil, or until ctx is canceled, in
// which case it returns the context error. Task failures never stop the
// loop; a failed attempt advances its schedule exactly like a successful
// one.
func (l *Loop) Run(ctx context.Context) error {
	now := l.clock.Now()
	l.mu.Lock()
	for _, entry := range l.entries {
		entry.Advance(now)
	}
	count := len(l.entries)
	l.mu.Unlock()

	l.logger.Info("scheduler started", zap.Int("tasks", count))

	for {
		batch, wakeAt, ok := l.nextBatch()
		if !ok {
			l.logger.Info("no more scheduled tasks")
			return nil
		}

		if err := l.clock.Sleep(ctx, wakeAt.Sub(l.clock.Now())); err != nil {
			l.logger.Info("scheduler stopping", zap.Error(err))
			return err
		}

		metrics.ObserveBatch(len(batch))
		l.logger.Debug("dispatching batch",
			zap.Time("scheduled_for", wakeAt),
			zap.Int("tasks", len(batch)),
		)

		var wg sync.WaitGroup
		for _, entry := range batch {
			wg.Add(1)
			go func(task scrape.Task) {
				defer wg.Done()
				l.runner.Execute(ctx, task)
			}(entry.Task)
		}
		wg.Wait()

		now := l.clock.Now()
		l.mu.Lock()
		for _, entry := range batch {
			entry.Advance(now)
		}
		l.mu.Unlock()
	}
}

// nextBatch finds the earliest pending occurrence and every entry due at
// exactly that instant. ok is false when no entry has a future occurrence.
func (l *Loop) nextBatch() (batch []*Entry, wakeAt time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if !entry.Pending() {
			continue
		}
		if wakeAt.IsZero() || entry.Next().Before(wakeAt) {
			wakeAt = entry.Next()
		}
	}
	if wakeAt.IsZero() {
		return nil, time.Time{}, false
	}
	for _, entry := range l.entries {
		if entry.Pending() && entry.Next().Equal(wakeAt) {
			batch = append(batch, entry)
		}
	}
	return batch, wakeAt, true
}

// TaskStatus describes one scheduled task for the status API. Next is nil
// once the schedule yields no further occurrence.
type TaskStatus struct {
	Task scrape.Task `json:"task"`
	Next *time.Time  `json:"next,omitempty"`
}

// Snapshot returns the current schedule state, safe to call while Run is
// active.
func (l *Loop) Snapshot() []TaskStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TaskStatus, 0, len(l.entries))
	for _, entry := range l.entries {
		status := TaskStatus{Task: entry.Task}
		if entry.Pending() {
			next := entry.Next()
			status.Next = &next
		}
		out = append(out, status)
	}
	return out
}
