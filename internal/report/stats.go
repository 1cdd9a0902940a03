package report

import (
	"context"
	"sync"

	"github.com/oseg/krawler/internal/fetch"
)

// Tally is a per-platform success/failure count.
type Tally struct {
	Succeeded int
	Failed    int
}

// Stats counts outcomes per platform. Safe for concurrent use; one Stats can
// observe several crawls at once.
type Stats struct {
	mu       sync.Mutex
	counts   map[string]Tally
	failures []Event
}

// NewStats creates an empty counting sink.
func NewStats() *Stats {
	return &Stats{counts: make(map[string]Tally)}
}

// Notify implements fetch.Listener.
func (s *Stats) Notify(_ context.Context, outcome *fetch.Outcome) {
	evt := NewEvent(outcome)
	s.mu.Lock()
	defer s.mu.Unlock()
	tally := s.counts[evt.Platform]
	if evt.OK {
		tally.Succeeded++
	} else {
		tally.Failed++
		s.failures = append(s.failures, evt)
	}
	s.counts[evt.Platform] = tally
}

// Snapshot returns a copy of the per-platform counts.
func (s *Stats) Snapshot() map[string]Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Tally, len(s.counts))
	for platform, tally := range s.counts {
		out[platform] = tally
	}
	return out
}

// Failures returns the recorded failure events, in arrival order.
func (s *Stats) Failures() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.failures...)
}
