package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config sizes the hub's queue and flush cadence. Zero values fall back to
// the package defaults.
type Config struct {
	// Buffer is the capacity of the inbound event queue.
	Buffer int
	// FlushBatch flushes as soon as this many events are pending.
	FlushBatch int
	// FlushEvery is the cadence for flushing partial batches.
	FlushEvery time.Duration
	// SinkTimeout bounds each sink call, delivery and close alike.
	SinkTimeout time.Duration
	// BaseContext is the parent for delivery contexts.
	BaseContext context.Context
	// Logger receives drop and sink-failure warnings.
	Logger *zap.Logger
}

const (
	defaultBuffer      = 1024
	defaultFlushBatch  = 256
	defaultFlushEvery  = time.Second
	defaultSinkTimeout = 5 * time.Second
	dropWarnEvery      = 5 * time.Second
)

// Hub fans capture and session events out to its sinks. Emit never blocks:
// events land on a buffered queue and a single pump goroutine batches them,
// flushing when FlushBatch events are pending or on the FlushEvery tick.
// When the queue is full the hub drops events rather than stall a capture.
type Hub struct {
	cfg    Config
	sinks  []Sink
	base   context.Context
	logger *zap.Logger

	inbox chan Event
	quit  chan struct{}
	done  chan struct{}

	// pending is owned by the pump goroutine.
	pending []Event

	drops    atomic.Int64
	closed   atomic.Bool
	dropWarn *rate.Limiter
	stop     sync.Once
}

// New starts the fan-out pump over the given sinks and returns a Hub ready
// for Emit. Nil sinks are skipped.
func New(cfg Config, sinks ...Sink) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if cfg.FlushBatch <= 0 {
		cfg.FlushBatch = defaultFlushBatch
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = defaultFlushEvery
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	base := cfg.BaseContext
	if base == nil {
		base = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:      cfg,
		base:     base,
		logger:   logger,
		inbox:    make(chan Event, cfg.Buffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		pending:  make([]Event, 0, cfg.FlushBatch),
		dropWarn: rate.NewLimiter(rate.Every(dropWarnEvery), 1),
	}
	for _, s := range sinks {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
	go h.pump()
	return h
}

// Emit queues evt for delivery. Malformed events are discarded, and when the
// queue is full evt is dropped with a throttled warning.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("dropping malformed feed event", zap.Error(err))
		return
	}
	select {
	case h.inbox <- evt:
	default:
		h.drops.Add(1)
		if h.dropWarn.Allow() {
			h.logger.Warn("feed queue full, dropping events",
				zap.Int64("dropped", h.drops.Swap(0)))
		}
	}
}

// Close stops the pump, delivers anything still queued, and closes every
// sink. It is safe to call more than once. ctx bounds only the wait for the
// pump to finish; sink shutdown runs under SinkTimeout regardless.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.stop.Do(func() {
		h.closed.Store(true)
		close(h.quit)
	})
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("feed hub shutdown: %w", ctx.Err())
	}
}

func (h *Hub) pump() {
	defer close(h.done)
	ticker := time.NewTicker(h.cfg.FlushEvery)
	defer ticker.Stop()
	for {
		select {
		case evt := <-h.inbox:
			h.keep(evt)
		case <-ticker.C:
			h.dispatch()
		case <-h.quit:
			h.drain()
			h.shutdownSinks()
			return
		}
	}
}

// keep appends evt to the pending batch, flushing once the batch fills.
func (h *Hub) keep(evt Event) {
	h.pending = append(h.pending, evt)
	if len(h.pending) >= h.cfg.FlushBatch {
		h.dispatch()
	}
}

// drain empties the inbox after quit so shutdown loses nothing that was
// queued before Close.
func (h *Hub) drain() {
	for {
		select {
		case evt := <-h.inbox:
			h.keep(evt)
		default:
			h.dispatch()
			return
		}
	}
}

// dispatch hands the pending batch to every sink and starts a fresh one.
func (h *Hub) dispatch() {
	if len(h.pending) == 0 {
		return
	}
	batch := h.pending
	h.pending = make([]Event, 0, h.cfg.FlushBatch)
	for _, s := range h.sinks {
		h.deliver(s, batch)
	}
}

func (h *Hub) deliver(s Sink, batch []Event) {
	ctx, cancel := context.WithTimeout(h.base, h.cfg.SinkTimeout)
	defer cancel()
	if err := s.Consume(ctx, batch); err != nil {
		h.logger.Warn("feed sink rejected batch",
			zap.Int("events", len(batch)), zap.Error(err))
	}
}

// shutdownSinks closes each sink under its own SinkTimeout window so a slow
// sink cannot wedge the others.
func (h *Hub) shutdownSinks() {
	for _, s := range h.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := s.Close(ctx); err != nil {
			h.logger.Warn("feed sink close failed", zap.Error(err))
		}
		cancel()
	}
}
