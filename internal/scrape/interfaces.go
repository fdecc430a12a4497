package scrape

import (
	"context"
	"time"
)

// Solver is the client for the external solving proxy. CreateSession and
// DestroySession convert non-ok solver statuses into errors; Solve returns a
// *SolveError for non-ok statuses and plain wrapped errors for transport
// failures.
type Solver interface {
	CreateSession(ctx context.Context, proposed string) (string, error)
	Solve(ctx context.Context, targetURL string, sessionID string) (SolveResult, error)
	DestroySession(ctx context.Context, sessionID string) error
}

// Sessions maps target URLs to solver session ids with per-target affinity.
// SessionFor validates any recorded session before reuse and creates a fresh
// one when validation fails; Cleanup destroys every still-owned session.
type Sessions interface {
	SessionFor(ctx context.Context, targetURL string) (string, error)
	Cleanup(ctx context.Context)
	Snapshot() map[string]string
}

// Sink persists a capture and returns a URI for the stored artifact.
type Sink interface {
	Store(ctx context.Context, capture Capture) (string, error)
}

// Journal records capture metadata rows.
type Journal interface {
	Record(ctx context.Context, record CaptureRecord) error
	Close()
}

// Publisher pushes capture notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// TaskRunner executes one due task attempt. Implementations never propagate
// failures; every attempt completes from the scheduler's point of view.
type TaskRunner interface {
	Execute(ctx context.Context, task Task)
}

// Hasher computes digests for integrity metadata.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock supplies the current time and an interruptible sleep (useful for
// testing the scheduler without real waits).
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces record and session ids (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
	NewV4ID() (string, error)
}
