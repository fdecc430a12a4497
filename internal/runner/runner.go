// Package runner executes one capture attempt end to end: acquire a session,
// solve the target through the proxy, persist the document, then the
// best-effort journal and publish steps.
package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pagevault/pagevault/internal/feed"
	"github.com/pagevault/pagevault/internal/metrics"
	"github.com/pagevault/pagevault/internal/scrape"
)

// Config controls Runner behavior.
type Config struct {
	// Topic is the destination for capture notifications; empty disables
	// publishing.
	Topic string
}

// Runner is the task runner used by the scheduling loop. Execute never
// reports an error to its caller: every failure is logged, counted, and
// contained so one bad attempt cannot disturb other tasks or the schedule.
type Runner struct {
	sessions  scrape.Sessions
	solver    scrape.Solver
	sink      scrape.Sink
	journal   scrape.Journal
	publisher scrape.Publisher
	hasher    scrape.Hasher
	clock     scrape.Clock
	ids       scrape.IDGenerator
	emitter   feed.Emitter
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Runner. journal, publisher, and emitter may be nil when
// the corresponding facility is disabled.
func New(
	sessions scrape.Sessions,
	solver scrape.Solver,
	sink scrape.Sink,
	journal scrape.Journal,
	publisher scrape.Publisher,
	hasher scrape.Hasher,
	clock scrape.Clock,
	ids scrape.IDGenerator,
	emitter feed.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		sessions:  sessions,
		solver:    solver,
		sink:      sink,
		journal:   journal,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		ids:       ids,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Execute runs one attempt for task. The attempt is complete from the
// scheduler's point of view whatever happens here.
func (r *Runner) Execute(ctx context.Context, task scrape.Task) {
	_, _ = r.Capture(ctx, task)
}

// Capture runs one attempt for task and returns the resulting record so
// one-shot callers can report where the document landed. A returned error
// has already been fully accounted for (counter, log line, feed event).
func (r *Runner) Capture(ctx context.Context, task scrape.Task) (scrape.CaptureRecord, error) {
	start := r.clock.Now()
	r.emit(feed.Event{
		TS:        start,
		Stage:     feed.StageCaptureStart,
		Task:      task.Name,
		TargetURL: task.URL,
	})

	sessionID, err := r.sessions.SessionFor(ctx, task.URL)
	if err != nil {
		r.fail(task, start, metrics.OutcomeSessionFailed, "session acquisition failed", err)
		return scrape.CaptureRecord{}, err
	}

	result, err := r.solver.Solve(ctx, task.URL, sessionID)
	if err != nil {
		r.fail(task, start, metrics.OutcomeSolveFailed, "solve failed", err)
		return scrape.CaptureRecord{}, err
	}

	capture := scrape.Capture{
		TaskName:   task.Name,
		TargetURL:  task.URL,
		SolvedURL:  result.URL,
		StatusCode: result.StatusCode,
		HTML:       result.HTML,
		UserAgent:  result.UserAgent,
		CapturedAt: r.clock.Now(),
		Duration:   result.Duration,
	}

	uri, err := r.sink.Store(ctx, capture)
	if err != nil {
		r.fail(task, start, metrics.OutcomeSinkFailed, "store capture failed", err)
		return scrape.CaptureRecord{}, err
	}

	metrics.ObserveCapture(task.Name, metrics.OutcomeOK, result.Duration)
	r.logger.Info("capture stored",
		zap.String("task", task.Name),
		zap.String("url", task.URL),
		zap.String("blob_uri", uri),
		zap.Int("status_code", result.StatusCode),
		zap.Int("bytes", len(result.HTML)),
		zap.Duration("solve_duration", result.Duration),
	)

	record := r.buildRecord(capture, uri)
	r.journalRecord(ctx, record)
	r.publishRecord(ctx, record)

	r.emit(feed.Event{
		TS:         r.clock.Now(),
		Stage:      feed.StageCaptureOK,
		Task:       task.Name,
		TargetURL:  task.URL,
		StatusCode: result.StatusCode,
		Bytes:      int64(len(result.HTML)),
		BlobURI:    uri,
		DurMs:      r.clock.Now().Sub(start).Milliseconds(),
	})
	return record, nil
}

// fail records a terminal attempt failure: counter, log line, feed event.
func (r *Runner) fail(task scrape.Task, start time.Time, outcome, msg string, err error) {
	metrics.ObserveCapture(task.Name, outcome, 0)
	r.logger.Error(msg,
		zap.String("task", task.Name),
		zap.String("url", task.URL),
		zap.Error(err),
	)
	r.emit(feed.Event{
		TS:        r.clock.Now(),
		Stage:     feed.StageCaptureError,
		Task:      task.Name,
		TargetURL: task.URL,
		DurMs:     r.clock.Now().Sub(start).Milliseconds(),
		Note:      err.Error(),
	})
}

func (r *Runner) buildRecord(capture scrape.Capture, uri string) scrape.CaptureRecord {
	record := scrape.CaptureRecord{
		TaskName:    capture.TaskName,
		TargetURL:   capture.TargetURL,
		SolvedURL:   capture.SolvedURL,
		StatusCode:  capture.StatusCode,
		BlobURI:     uri,
		ContentSize: int64(len(capture.HTML)),
		UserAgent:   capture.UserAgent,
		CapturedAt:  capture.CapturedAt,
		Duration:    capture.Duration,
		DurationMs:  capture.Duration.Milliseconds(),
	}
	if id, err := r.ids.NewID(); err == nil {
		record.ID = id
	} else {
		r.logger.Warn("record id generation failed", zap.Error(err))
	}
	if hash, err := r.hasher.Hash([]byte(capture.HTML)); err == nil {
		record.ContentHash = hash
	} else {
		r.logger.Warn("content hash failed", zap.Error(err))
	}
	return record
}

func (r *Runner) journalRecord(ctx context.Context, record scrape.CaptureRecord) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(ctx, record); err != nil {
		r.logger.Warn("journal record failed",
			zap.String("task", record.TaskName),
			zap.String("blob_uri", record.BlobURI),
			zap.Error(err),
		)
	}
}

func (r *Runner) publishRecord(ctx context.Context, record scrape.CaptureRecord) {
	if r.cfg.Topic == "" || r.publisher == nil {
		return
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.Topic, record); err != nil {
		r.logger.Warn("publish capture failed",
			zap.String("task", record.TaskName),
			zap.String("topic", r.cfg.Topic),
			zap.Error(err),
		)
	}
}

func (r *Runner) emit(evt feed.Event) {
	if r.emitter != nil {
		r.emitter.Emit(evt)
	}
}
