package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pagevault/pagevault/internal/scrape"
)

// parser accepts the standard five-field cron syntax plus @descriptors such
// as @hourly and @daily.
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Entry pairs a task with its parsed schedule and the next occurrence the
// loop is waiting on. A zero next time means the schedule yields no future
// occurrence and the entry no longer participates in batching.
type Entry struct {
	Task     scrape.Task
	schedule cron.Schedule
	next     time.Time
}

func newEntry(task scrape.Task) (*Entry, error) {
	sched, err := parser.Parse(task.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q for task %q: %w", task.Schedule, task.Name, err)
	}
	return &Entry{Task: task, schedule: sched}, nil
}

// Advance recomputes the next occurrence strictly after now.
func (e *Entry) Advance(now time.Time) {
	e.next = e.schedule.Next(now)
}

// Next returns the pending occurrence; zero when none remains.
func (e *Entry) Next() time.Time {
	return e.next
}

// Pending reports whether the entry still has a future occurrence.
func (e *Entry) Pending() bool {
	return !e.next.IsZero()
}
