package feed

import "context"

// Sink consumes batches of feed events. Implementations must be safe for
// repeated calls and honor ctx deadlines. The batch slice is shared across
// sinks and must be treated as read-only.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// scheduler and session directory can remain agnostic about how events are
// buffered or persisted.
type Emitter interface {
	Emit(evt Event)
}
