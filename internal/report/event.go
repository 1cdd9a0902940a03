// Package report turns fetch outcomes into operator-facing signals: logs,
// counters, Prometheus metrics, Pub/Sub events and the manifest archive.
// Every sink implements fetch.Listener, so they can be fanned out together.
package report

import (
	"time"

	"github.com/oseg/krawler/internal/fetch"
)

// Event is the wire form of one outcome, published to downstream consumers.
type Event struct {
	Platform  string    `json:"platform"`
	ID        string    `json:"id"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	Format    string    `json:"format,omitempty"`
	Sourcing  string    `json:"sourcing,omitempty"`
	Bytes     int       `json:"bytes,omitempty"`
	VisitedAt time.Time `json:"visited_at"`
	CrawlRun  string    `json:"crawl_run"`
}

// NewEvent flattens an outcome into its wire form.
func NewEvent(outcome *fetch.Outcome) Event {
	evt := Event{
		OK:        outcome.OK(),
		VisitedAt: outcome.VisitedAt,
		CrawlRun:  outcome.CrawlRun.String(),
	}
	if outcome.ID != nil {
		evt.Platform = outcome.ID.Platform().String()
		evt.ID = outcome.ID.PathKey()
	}
	if outcome.Err != nil {
		evt.Error = outcome.Err.Error()
	}
	if outcome.Manifest != nil {
		evt.Format = outcome.Manifest.Format.String()
		evt.Sourcing = outcome.Sourcing.String()
		evt.Bytes = len(outcome.Manifest.Content)
	}
	return evt
}
