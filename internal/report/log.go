package report

import (
	"context"

	"go.uber.org/zap"

	"github.com/oseg/krawler/internal/fetch"
)

// LogSink emits a structured log line per outcome. Useful during development
// or audits where no durable sink is wired.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the listener interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Notify implements fetch.Listener.
func (s *LogSink) Notify(_ context.Context, outcome *fetch.Outcome) {
	evt := NewEvent(outcome)
	fields := []zap.Field{
		zap.String("platform", evt.Platform),
		zap.String("id", evt.ID),
		zap.String("crawl_run", evt.CrawlRun),
		zap.Time("visited_at", evt.VisitedAt),
	}
	if !evt.OK {
		fields = append(fields, zap.String("error", evt.Error))
		s.logger.Warn("fetch failed", fields...)
		return
	}
	fields = append(fields,
		zap.String("format", evt.Format),
		zap.String("sourcing", evt.Sourcing),
		zap.Int("bytes", evt.Bytes),
	)
	s.logger.Info("manifest fetched", fields...)
}
