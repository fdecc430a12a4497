package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagevault/pagevault/internal/feed"
	"github.com/pagevault/pagevault/internal/metrics"
	"github.com/pagevault/pagevault/internal/scrape"
)

func TestSessionForCreatesOnFirstUse(t *testing.T) {
	t.Parallel()
	metrics.Init()

	solver := &fakeSolver{}
	dir := New(solver, &seqIDs{}, nil, zap.NewNop())

	id, err := dir.SessionFor(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	require.Equal(t, "sess-1", id)

	require.Equal(t, []string{"sess-1"}, solver.Creates())
	require.Empty(t, solver.Probes())
	require.Equal(t, map[string]string{"https://example.com/a": "sess-1"}, dir.Snapshot())
}

func TestSessionForReusesValidatedSession(t *testing.T) {
	t.Parallel()
	metrics.Init()

	solver := &fakeSolver{}
	dir := New(solver, &seqIDs{}, nil, zap.NewNop())
	target := "https://example.com/prices"

	first, err := dir.SessionFor(context.Background(), target)
	require.NoError(t, err)

	second, err := dir.SessionFor(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Len(t, solver.Creates(), 1)
	require.Equal(t, []string{first}, solver.Probes())
	require.Empty(t, solver.Destroys())
}

func TestSessionForReplacesSessionFailingValidation(t *testing.T) {
	t.Parallel()
	metrics.Init()

	solver := &fakeSolver{}
	dir := New(solver, &seqIDs{}, nil, zap.NewNop())
	target := "https://example.com/prices"

	first, err := dir.SessionFor(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, "sess-1", first)

	solver.setSolveErr(&scrape.SolveError{Status: "error", Message: "challenge failed"})

	second, err := dir.SessionFor(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, "sess-2", second)

	require.Equal(t, []string{"sess-1", "sess-2"}, solver.Creates())
	require.Equal(t, []string{"sess-1"}, solver.Destroys())
	require.Equal(t, map[string]string{target: "sess-2"}, dir.Snapshot())

	// The stale session was already destroyed at invalidation; only the
	// replacement remains for cleanup.
	dir.Cleanup(context.Background())
	require.Equal(t, []string{"sess-1", "sess-2"}, solver.Destroys())
}

func TestSessionForCreateFailure(t *testing.T) {
	t.Parallel()
	metrics.Init()

	solver := &fakeSolver{createErr: errors.New("solver unavailable")}
	dir := New(solver, &seqIDs{}, nil, zap.NewNop())
	target := "https://example.com/a"

	id, err := dir.SessionFor(context.Background(), target)
	require.Empty(t, id)

	var scErr *scrape.SessionCreationError
	require.ErrorAs(t, err, &scErr)
	require.Equal(t, target, scErr.TargetURL)
	require.Empty(t, dir.Snapshot())
}

func TestCleanupDestroysEachSessionExactlyOnce(t *testing.T) {
	t.Parallel()
	metrics.Init()

	solver := &fakeSolver{}
	dir := New(solver, &seqIDs{}, nil, zap.NewNop())

	for _, target := range []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	} {
		_, err := dir.SessionFor(context.Background(), target)
		require.NoError(t, err)
	}

	solver.failDestroy("sess-2", errors.New("solver refused"))

	dir.Cleanup(context.Background())
	require.Equal(t, []string{"sess-1", "sess-2", "sess-3"}, solver.Destroys())
	require.Empty(t, dir.Snapshot())

	// A second cleanup finds nothing left to destroy, even though one
	// destroy failed the first time.
	dir.Cleanup(context.Background())
	require.Len(t, solver.Destroys(), 3)
}

func TestSessionForSerializesPerTarget(t *testing.T) {
	t.Parallel()
	metrics.Init()

	solver := &fakeSolver{createDelay: 5 * time.Millisecond}
	dir := New(solver, &seqIDs{}, nil, zap.NewNop())
	target := "https://example.com/contended"

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = dir.SessionFor(context.Background(), target)
		}(i)
	}
	wg.Wait()

	require.Len(t, solver.Creates(), 1)
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "sess-1", ids[i])
	}
}

func TestSessionForEmitsLifecycleEvents(t *testing.T) {
	t.Parallel()
	metrics.Init()

	solver := &fakeSolver{}
	emitter := &captureEmitter{}
	dir := New(solver, &seqIDs{}, emitter, zap.NewNop())
	target := "https://example.com/prices"

	_, err := dir.SessionFor(context.Background(), target)
	require.NoError(t, err)

	_, err = dir.SessionFor(context.Background(), target)
	require.NoError(t, err)

	solver.setSolveErr(errors.New("connection reset"))
	_, err = dir.SessionFor(context.Background(), target)
	require.NoError(t, err)

	require.Equal(t, []feed.Stage{
		feed.StageSessionCreated,
		feed.StageSessionReused,
		feed.StageSessionInvalidated,
		feed.StageSessionCreated,
	}, emitter.Stages())
}

func TestSnapshotReturnsCopy(t *testing.T) {
	t.Parallel()
	metrics.Init()

	solver := &fakeSolver{}
	dir := New(solver, &seqIDs{}, nil, zap.NewNop())
	target := "https://example.com/a"

	_, err := dir.SessionFor(context.Background(), target)
	require.NoError(t, err)

	snap := dir.Snapshot()
	delete(snap, target)
	require.Equal(t, map[string]string{target: "sess-1"}, dir.Snapshot())
}

type fakeSolver struct {
	mu          sync.Mutex
	creates     []string
	probes      []string
	destroys    []string
	createErr   error
	solveErr    error
	destroyErrs map[string]error
	createDelay time.Duration
}

func (s *fakeSolver) CreateSession(_ context.Context, proposed string) (string, error) {
	if s.createDelay > 0 {
		time.Sleep(s.createDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return "", s.createErr
	}
	s.creates = append(s.creates, proposed)
	return proposed, nil
}

func (s *fakeSolver) Solve(_ context.Context, targetURL, sessionID string) (scrape.SolveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = append(s.probes, sessionID)
	if s.solveErr != nil {
		return scrape.SolveResult{}, s.solveErr
	}
	return scrape.SolveResult{URL: targetURL, StatusCode: 200}, nil
}

func (s *fakeSolver) DestroySession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroys = append(s.destroys, sessionID)
	if err := s.destroyErrs[sessionID]; err != nil {
		return err
	}
	return nil
}

func (s *fakeSolver) setSolveErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.solveErr = err
}

func (s *fakeSolver) failDestroy(sessionID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyErrs == nil {
		s.destroyErrs = make(map[string]error)
	}
	s.destroyErrs[sessionID] = err
}

func (s *fakeSolver) Creates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.creates...)
}

func (s *fakeSolver) Probes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.probes...)
}

func (s *fakeSolver) Destroys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.destroys...)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	return g.next("rec")
}

func (g *seqIDs) NewV4ID() (string, error) {
	return g.next("sess")
}

func (g *seqIDs) next(prefix string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", prefix, g.n), nil
}

type captureEmitter struct {
	mu     sync.Mutex
	events []feed.Event
}

func (e *captureEmitter) Emit(evt feed.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *captureEmitter) Stages() []feed.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]feed.Stage, len(e.events))
	for i, evt := range e.events {
		out[i] = evt.Stage
	}
	return out
}
