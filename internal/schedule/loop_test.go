package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagevault/pagevault/internal/metrics"
	"github.com/pagevault/pagevault/internal/scrape"
)

func TestLoopBatchesTasksDueAtTheSameInstant(t *testing.T) {
	t.Parallel()
	metrics.Init()

	clock := newFakeClock(time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &recordingRunner{clock: clock, cancel: cancel, cancelAfter: 4}
	loop, err := NewLoop([]scrape.Task{
		{Name: "alpha", URL: "https://example.com/a", Schedule: "* * * * *"},
		{Name: "bravo", URL: "https://example.com/b", Schedule: "*/2 * * * *"},
	}, runner, clock, zap.NewNop())
	require.NoError(t, err)

	err = loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// alpha fires each minute; bravo joins it on the even minute, in the
	// same batch rather than a separate wakeup.
	require.Equal(t, []string{
		"alpha@00:01:00",
		"alpha@00:02:00",
		"alpha@00:03:00",
		"bravo@00:02:00",
	}, runner.Runs())
}

func TestLoopSkipsOccurrencesMissedDuringRun(t *testing.T) {
	t.Parallel()
	metrics.Init()

	clock := newFakeClock(time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Each attempt takes 90 seconds, sleeping through the next occurrence.
	runner := &recordingRunner{clock: clock, cancel: cancel, cancelAfter: 2, advanceBy: 90 * time.Second}
	loop, err := NewLoop([]scrape.Task{
		{Name: "alpha", URL: "https://example.com/a", Schedule: "* * * * *"},
	}, runner, clock, zap.NewNop())
	require.NoError(t, err)

	err = loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The 00:02:00 firing fell inside the first attempt and is dropped, not
	// replayed.
	require.Equal(t, []string{
		"alpha@00:01:00",
		"alpha@00:03:00",
	}, runner.Runs())
}

func TestLoopTerminatesWithoutTasks(t *testing.T) {
	t.Parallel()
	metrics.Init()

	clock := newFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	runner := &recordingRunner{clock: clock}
	loop, err := NewLoop(nil, runner, clock, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, loop.Run(context.Background()))
	require.Empty(t, runner.Runs())
}

func TestLoopTerminatesWhenNoFutureOccurrences(t *testing.T) {
	t.Parallel()
	metrics.Init()

	clock := newFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	runner := &recordingRunner{clock: clock}
	loop, err := NewLoop([]scrape.Task{
		{Name: "never", URL: "https://example.com", Schedule: "0 0 30 2 *"},
	}, runner, clock, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, loop.Run(context.Background()))
	require.Empty(t, runner.Runs())
}

func TestLoopIgnoresEntriesWithoutOccurrences(t *testing.T) {
	t.Parallel()
	metrics.Init()

	clock := newFakeClock(time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &recordingRunner{clock: clock, cancel: cancel, cancelAfter: 1}
	loop, err := NewLoop([]scrape.Task{
		{Name: "alpha", URL: "https://example.com/a", Schedule: "* * * * *"},
		{Name: "never", URL: "https://example.com/n", Schedule: "0 0 30 2 *"},
	}, runner, clock, zap.NewNop())
	require.NoError(t, err)

	err = loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"alpha@00:01:00"}, runner.Runs())

	statuses := loop.Snapshot()
	require.Len(t, statuses, 2)
	for _, status := range statuses {
		switch status.Task.Name {
		case "alpha":
			require.NotNil(t, status.Next)
			require.Equal(t, time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC), *status.Next)
		case "never":
			require.Nil(t, status.Next)
		default:
			t.Fatalf("unexpected task %q", status.Task.Name)
		}
	}
}

func TestLoopRejectsInvalidSchedule(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Now().UTC())
	_, err := NewLoop([]scrape.Task{
		{Name: "broken", URL: "https://example.com", Schedule: "every five minutes"},
	}, &recordingRunner{clock: clock}, clock, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), `"broken"`)
}

// fakeClock jumps forward instantly on Sleep so loop tests run without real
// waits.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingRunner struct {
	clock       *fakeClock
	cancel      context.CancelFunc
	cancelAfter int
	advanceBy   time.Duration

	mu   sync.Mutex
	runs []string
}

func (r *recordingRunner) Execute(_ context.Context, task scrape.Task) {
	r.mu.Lock()
	r.runs = append(r.runs, fmt.Sprintf("%s@%s", task.Name, r.clock.Now().Format("15:04:05")))
	total := len(r.runs)
	r.mu.Unlock()

	if r.advanceBy > 0 {
		r.clock.advance(r.advanceBy)
	}
	if r.cancelAfter > 0 && total >= r.cancelAfter && r.cancel != nil {
		r.cancel()
	}
}

func (r *recordingRunner) Runs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.runs...)
	sort.Strings(out)
	return out
}
