package report

import (
	"context"

	"go.uber.org/zap"

	"github.com/oseg/krawler/internal/fetch"
	"github.com/oseg/krawler/internal/repository"
)

// ArchiveSink stores every successful outcome in the manifest archive.
// Failures are not archived; other sinks record them.
type ArchiveSink struct {
	archive *repository.Archive
	logger  *zap.Logger
}

// NewArchiveSink wires the archive to the listener interface.
func NewArchiveSink(archive *repository.Archive, logger *zap.Logger) *ArchiveSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveSink{archive: archive, logger: logger}
}

// Notify implements fetch.Listener. Archiving errors are logged, not
// propagated; a broken archive must not abort the crawl.
func (s *ArchiveSink) Notify(ctx context.Context, outcome *fetch.Outcome) {
	if !outcome.OK() {
		return
	}
	if err := s.archive.Store(ctx, outcome); err != nil {
		s.logger.Error("archive manifest",
			zap.String("id", outcome.ID.String()), zap.Error(err))
	}
}
