// Package checkpoint persists per-platform crawl progress so a multi-hour
// crawl can resume after interruption. One crawl owns one platform's state
// at a time; absence of state is not an error.
package checkpoint

import (
	"context"
	"slices"

	"github.com/oseg/krawler/internal/hosting"
)

// State is the durable progress record of one platform crawl: a pagination
// cursor or page counter, fetch counts, and (for the id-tracking adapter
// family) the ids already attempted, enabling idempotent resume. It round
// trips through JSON exactly.
type State struct {
	// Cursor is the opaque pagination cursor for cursor-based platforms.
	Cursor string `json:"cursor,omitempty"`
	// Page is the 1-based page counter for page-number pagination.
	Page int `json:"page,omitempty"`
	// Offset is the record offset for offset/limit pagination.
	Offset int `json:"offset,omitempty"`
	// NumFetched counts the records fetched so far.
	NumFetched int `json:"num_fetched"`
	// Total is the total record count the platform last reported, if any.
	Total int `json:"total,omitempty"`
	// FetchedIDs lists the ids already fetched successfully.
	FetchedIDs []string `json:"fetched_ids,omitempty"`
	// FailedIDs lists the ids that terminally failed and are not re-tried.
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// Seen reports whether the id was already fetched or terminally failed.
func (s *State) Seen(id string) bool {
	return slices.Contains(s.FetchedIDs, id) || slices.Contains(s.FailedIDs, id)
}

// MarkFetched records a successfully fetched id once.
func (s *State) MarkFetched(id string) {
	if !slices.Contains(s.FetchedIDs, id) {
		s.FetchedIDs = append(s.FetchedIDs, id)
	}
}

// MarkFailed records a terminally failed id once.
func (s *State) MarkFailed(id string) {
	if !slices.Contains(s.FailedIDs, id) {
		s.FailedIDs = append(s.FailedIDs, id)
	}
}

// Store durably persists crawl progress keyed by platform. Implementations
// must write atomically relative to cancellation: a Save either lands fully
// or not at all.
type Store interface {
	// Load returns the stored state, or (nil, nil) when none exists.
	Load(ctx context.Context, platform hosting.Platform) (*State, error)
	// Save replaces the stored state for the platform.
	Save(ctx context.Context, platform hosting.Platform, state *State) error
	// Delete removes the stored state, reporting whether one existed.
	Delete(ctx context.Context, platform hosting.Platform) (bool, error)
}
