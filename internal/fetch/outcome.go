package fetch

import (
	"time"

	"github.com/google/uuid"

	"github.com/oseg/krawler/internal/hosting"
	"github.com/oseg/krawler/internal/manifest"
)

// Outcome is the result of one attempted unit: either a fetched manifest
// with its crawl metadata, or a classified failure. Emitted exactly once per
// attempt and never mutated afterwards.
type Outcome struct {
	ID        hosting.UnitID
	Manifest  *manifest.Manifest
	Sourcing  manifest.SourcingProcedure
	VisitedAt time.Time
	// CrawlRun ties every outcome of one orchestrator run together.
	CrawlRun uuid.UUID
	// Err is nil on success and carries the classification on failure.
	Err error
}

// Success builds a successful outcome.
func Success(id hosting.UnitID, m *manifest.Manifest, sourcing manifest.SourcingProcedure) *Outcome {
	return &Outcome{
		ID:        id,
		Manifest:  m,
		Sourcing:  sourcing,
		VisitedAt: time.Now().UTC(),
	}
}

// Failure builds a failed outcome.
func Failure(id hosting.UnitID, err error) *Outcome {
	return &Outcome{
		ID:        id,
		VisitedAt: time.Now().UTC(),
		Err:       err,
	}
}

// OK reports whether the outcome is a success.
func (o *Outcome) OK() bool { return o.Err == nil }
