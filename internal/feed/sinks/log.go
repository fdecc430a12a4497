package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/pagevault/pagevault/internal/feed"
)

// LogSink emits structured logs for debugging the capture feed. It is useful
// during development or audits where the HTTP API is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []feed.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("task", evt.Task),
			zap.String("stage", string(evt.Stage)),
			zap.String("target_url", evt.TargetURL),
			zap.String("session_id", evt.SessionID),
			zap.Int("status_code", evt.StatusCode),
			zap.Int64("bytes", evt.Bytes),
			zap.String("blob_uri", evt.BlobURI),
			zap.Int64("dur_ms", evt.DurMs),
			zap.String("note", evt.Note),
		}
		s.logger.Info("feed event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
