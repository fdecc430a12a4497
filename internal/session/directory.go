package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagevault/pagevault/internal/feed"
	"github.com/pagevault/pagevault/internal/metrics"
	"github.com/pagevault/pagevault/internal/scrape"
)

// Directory maps target URLs to solver sessions with per-target affinity.
// Calls for the same target are serialized so concurrent attempts cannot race
// a validation against a replacement; calls for different targets proceed
// independently.
type Directory struct {
	solver  scrape.Solver
	ids     scrape.IDGenerator
	emitter feed.Emitter
	logger  *zap.Logger

	// mu guards the maps only; it is never held across solver calls. The
	// per-target locks in keyLocks are the ones held through the network.
	mu       sync.Mutex
	records  map[string]string
	owned    map[string]struct{}
	keyLocks map[string]*sync.Mutex
}

// New builds an empty Directory. The emitter may be nil when the feed is
// disabled.
func New(solver scrape.Solver, ids scrape.IDGenerator, emitter feed.Emitter, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		solver:   solver,
		ids:      ids,
		emitter:  emitter,
		logger:   logger,
		records:  make(map[string]string),
		owned:    make(map[string]struct{}),
		keyLocks: make(map[string]*sync.Mutex),
	}
}

// SessionFor returns a session id known to work for targetURL. A recorded
// session is probed with a real solve first; if the probe fails for any
// reason the stale session is discarded and a fresh one is created. The only
// error SessionFor returns is a *scrape.SessionCreationError, raised when the
// solver cannot allocate the replacement.
func (d *Directory) SessionFor(ctx context.Context, targetURL string) (string, error) {
	lock := d.lockFor(targetURL)
	lock.Lock()
	defer lock.Unlock()

	if recorded, ok := d.recorded(targetURL); ok {
		_, err := d.solver.Solve(ctx, targetURL, recorded)
		if err == nil {
			metrics.SessionValidated(true)
			d.logger.Debug("reusing recorded session",
				zap.String("target_url", targetURL),
				zap.String("session_id", recorded),
			)
			d.emit(feed.Event{
				TS:        time.Now().UTC(),
				Stage:     feed.StageSessionReused,
				TargetURL: targetURL,
				SessionID: recorded,
			})
			return recorded, nil
		}

		metrics.SessionValidated(false)
		d.logger.Warn("recorded session failed validation",
			zap.String("target_url", targetURL),
			zap.String("session_id", recorded),
			zap.Error(err),
		)
		d.invalidate(ctx, targetURL, recorded)
	}

	return d.create(ctx, targetURL)
}

// Cleanup destroys every session the directory still owns. Each session is
// destroyed at most once even across repeated Cleanup calls; failures are
// logged and skipped so one refusal never strands the rest.
func (d *Directory) Cleanup(ctx context.Context) {
	d.mu.Lock()
	ids := make([]string, 0, len(d.owned))
	for id := range d.owned {
		ids = append(ids, id)
	}
	d.owned = make(map[string]struct{})
	d.records = make(map[string]string)
	d.mu.Unlock()
	metrics.SetActiveSessions(0)

	sort.Strings(ids)
	for _, id := range ids {
		if err := d.solver.DestroySession(ctx, id); err != nil {
			d.logger.Warn("destroy session during cleanup failed",
				zap.String("session_id", id),
				zap.Error(err),
			)
			continue
		}
		metrics.SessionDestroyed(metrics.PhaseCleanup)
		d.logger.Info("session destroyed", zap.String("session_id", id))
	}
}

// Snapshot returns a copy of the current target-to-session records.
func (d *Directory) Snapshot() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.records))
	for target, id := range d.records {
		out[target] = id
	}
	return out
}

func (d *Directory) recorded(targetURL string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.records[targetURL]
	return id, ok
}

// invalidate forgets the stale session and makes a best-effort attempt to
// destroy it at the solver so it does not linger until shutdown.
func (d *Directory) invalidate(ctx context.Context, targetURL, sessionID string) {
	d.mu.Lock()
	delete(d.records, targetURL)
	delete(d.owned, sessionID)
	active := len(d.owned)
	d.mu.Unlock()
	metrics.SetActiveSessions(active)

	if err := d.solver.DestroySession(ctx, sessionID); err != nil {
		d.logger.Warn("destroy invalidated session failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	} else {
		metrics.SessionDestroyed(metrics.PhaseInvalidated)
	}

	d.emit(feed.Event{
		TS:        time.Now().UTC(),
		Stage:     feed.StageSessionInvalidated,
		TargetURL: targetURL,
		SessionID: sessionID,
	})
}

func (d *Directory) create(ctx context.Context, targetURL string) (string, error) {
	proposed, err := d.ids.NewV4ID()
	if err != nil {
		return "", &scrape.SessionCreationError{TargetURL: targetURL, Err: err}
	}

	id, err := d.solver.CreateSession(ctx, proposed)
	if err != nil {
		return "", &scrape.SessionCreationError{TargetURL: targetURL, Err: err}
	}

	d.mu.Lock()
	d.records[targetURL] = id
	d.owned[id] = struct{}{}
	active := len(d.owned)
	d.mu.Unlock()

	metrics.SessionCreated()
	metrics.SetActiveSessions(active)
	d.logger.Info("session created",
		zap.String("target_url", targetURL),
		zap.String("session_id", id),
	)
	d.emit(feed.Event{
		TS:        time.Now().UTC(),
		Stage:     feed.StageSessionCreated,
		TargetURL: targetURL,
		SessionID: id,
	})
	return id, nil
}

func (d *Directory) lockFor(targetURL string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.keyLocks[targetURL]
	if !ok {
		lock = &sync.Mutex{}
		d.keyLocks[targetURL] = lock
	}
	return lock
}

func (d *Directory) emit(evt feed.Event) {
	if d.emitter != nil {
		d.emitter.Emit(evt)
	}
}
