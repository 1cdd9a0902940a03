package fetch

import (
	"context"

	"github.com/oseg/krawler/internal/checkpoint"
	"github.com/oseg/krawler/internal/hosting"
	"github.com/oseg/krawler/internal/ratelimit"
)

// CallClass distinguishes the rate limit families a platform imposes.
type CallClass int

const (
	// CallSearch covers discovery/listing requests.
	CallSearch CallClass = iota + 1
	// CallItem covers per-item content downloads.
	CallItem
)

// Item is one discovered unit awaiting its per-item fetch.
type Item struct {
	ID hosting.UnitID
	// Key, when non-empty, enrolls the item in seen-id tracking: the
	// orchestrator skips keys already recorded in the checkpoint and
	// records the attempt's result there.
	Key string
	// Meta carries adapter-private hints from discovery to the item
	// fetch, such as a file path or a prefetched payload reference.
	Meta map[string]string
}

// Page is the result of one discovery request.
type Page struct {
	Items []Item
	// Next holds the pagination fields (cursor, page, offset, total)
	// positioned after this page. Progress counters and id lists are
	// managed by the orchestrator, not the adapter.
	Next checkpoint.State
	// Expected is the item count a non-final page should carry; fewer
	// items than Expected on a non-final page marks the page incomplete.
	// Zero disables the check.
	Expected int
	// Last marks the final page of the crawl.
	Last bool
	// Feedback carries server-reported quota state from the discovery
	// response headers, applied to the search-class limiters.
	Feedback ratelimit.Feedback
}

// Adapter implements the platform-specific half of a crawl. Adapters are
// stateless between calls; all progress lives in the checkpoint state the
// orchestrator passes in.
type Adapter interface {
	// Platform names the remote system this adapter serves.
	Platform() hosting.Platform

	// Discover performs one paginated search/listing request from the
	// given progress state. A *RateLimitedError return signals a
	// secondary rate limit; any other error is fatal for the crawl.
	Discover(ctx context.Context, state *checkpoint.State) (*Page, error)

	// FetchItem downloads and validates one discovered item. Failures
	// are returned as errors and classified by the orchestrator; they
	// never abort the page. Item-class rate limits are the adapter's
	// own concern.
	FetchItem(ctx context.Context, item Item) (*Outcome, error)

	// Fetch retrieves a single unit directly from its project or file
	// URL, bypassing discovery and checkpointing.
	Fetch(ctx context.Context, rawURL string) (*Outcome, error)

	// Limiters returns the rate limiters guarding the given call class.
	Limiters(class CallClass) []ratelimit.Limiter
}
