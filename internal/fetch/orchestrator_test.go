package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oseg/krawler/internal/checkpoint"
	"github.com/oseg/krawler/internal/hosting"
	"github.com/oseg/krawler/internal/manifest"
	"github.com/oseg/krawler/internal/ratelimit"
)

// fakeAdapter scripts discovery and item fetches for orchestrator tests.
type fakeAdapter struct {
	platform      hosting.Platform
	pages         [][]string // item keys per page, indexed by state.Page
	discoverHook  func(call int, state *checkpoint.State) error
	itemErrs      map[string]error
	expected      int
	discoverCalls int
	fetchedKeys   []string
}

func newFakeAdapter(pages ...[]string) *fakeAdapter {
	return &fakeAdapter{
		platform: hosting.Thingiverse,
		pages:    pages,
		itemErrs: map[string]error{},
	}
}

func (f *fakeAdapter) Platform() hosting.Platform { return f.platform }

func (f *fakeAdapter) Discover(_ context.Context, state *checkpoint.State) (*Page, error) {
	call := f.discoverCalls
	f.discoverCalls++
	if f.discoverHook != nil {
		if err := f.discoverHook(call, state); err != nil {
			return nil, err
		}
	}
	idx := state.Page
	if idx >= len(f.pages) {
		return nil, fmt.Errorf("discovery past the scripted pages: page %d", idx)
	}
	keys := f.pages[idx]
	page := &Page{
		Expected: f.expected,
		Last:     idx == len(f.pages)-1,
	}
	page.Next.Page = idx + 1
	for _, key := range keys {
		page.Items = append(page.Items, Item{
			ID:  hosting.WebUnit{Host: f.platform, ProjectID: key},
			Key: key,
		})
	}
	return page, nil
}

func (f *fakeAdapter) FetchItem(_ context.Context, item Item) (*Outcome, error) {
	if err, fail := f.itemErrs[item.Key]; fail {
		return nil, err
	}
	f.fetchedKeys = append(f.fetchedKeys, item.Key)
	return Success(item.ID, &manifest.Manifest{
		Content: []byte("title = \"" + item.Key + "\""),
		Format:  manifest.TOML,
	}, manifest.SourcingAPI), nil
}

func (f *fakeAdapter) Fetch(_ context.Context, rawURL string) (*Outcome, error) {
	id, _, err := hosting.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return Success(id, &manifest.Manifest{Content: []byte("ok"), Format: manifest.YAML},
		manifest.SourcingAPI), nil
}

func (f *fakeAdapter) Limiters(CallClass) []ratelimit.Limiter { return nil }

// recorder collects notified outcomes.
type recorder struct {
	mu       sync.Mutex
	outcomes []*Outcome
}

func (r *recorder) Notify(_ context.Context, o *Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) successKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for _, o := range r.outcomes {
		if o.OK() {
			keys = append(keys, o.ID.(hosting.WebUnit).ProjectID)
		}
	}
	return keys
}

func (r *recorder) failures() []*Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Outcome
	for _, o := range r.outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

func newTestOrchestrator(a Adapter, store checkpoint.Store, rec *recorder) *Orchestrator {
	return NewOrchestrator(a, store, rec, Config{
		PageRetryLimit:    3,
		SecondaryCooldown: time.Millisecond,
	}, nil)
}

func TestCrawl_FullRunDeletesCheckpoint(t *testing.T) {
	t.Parallel()
	adapter := newFakeAdapter([]string{"a1", "a2"}, []string{"b1"}, []string{"c1", "c2"})
	store := checkpoint.NewMemoryStore()
	rec := &recorder{}

	err := newTestOrchestrator(adapter, store, rec).Crawl(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "a2", "b1", "c1", "c2"}, rec.successKeys())

	// all outcomes of one run share a crawl id
	runID := rec.outcomes[0].CrawlRun
	for _, o := range rec.outcomes {
		require.Equal(t, runID, o.CrawlRun)
	}

	state, err := store.Load(context.Background(), adapter.Platform())
	require.NoError(t, err)
	require.Nil(t, state, "checkpoint must be gone after a completed crawl")
}

func TestCrawl_ResumesFromPersistedPage(t *testing.T) {
	t.Parallel()
	pages := [][]string{{"a1", "a2"}, {"b1"}, {"c1"}}
	store := checkpoint.NewMemoryStore()
	rec := &recorder{}

	// first run: abort when discovery reaches the second page
	ctx, cancel := context.WithCancel(context.Background())
	first := newFakeAdapter(pages...)
	first.discoverHook = func(_ int, state *checkpoint.State) error {
		if state.Page == 1 {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	err := newTestOrchestrator(first, store, rec).Crawl(ctx, false)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)

	state, err := store.Load(context.Background(), first.Platform())
	require.NoError(t, err)
	require.NotNil(t, state, "checkpoint must survive an aborted crawl")
	require.Equal(t, 1, state.Page)
	require.Equal(t, 2, state.NumFetched)

	// second run resumes at page 1, not page 0
	second := newFakeAdapter(pages...)
	var resumedAt []int
	second.discoverHook = func(_ int, state *checkpoint.State) error {
		resumedAt = append(resumedAt, state.Page)
		return nil
	}
	err = newTestOrchestrator(second, store, rec).Crawl(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, resumedAt)

	// the union of both partial runs equals one uninterrupted run
	require.ElementsMatch(t, []string{"a1", "a2", "b1", "c1"}, rec.successKeys())
}

func TestCrawl_StartOverDiscardsCheckpoint(t *testing.T) {
	t.Parallel()
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), hosting.Thingiverse,
		&checkpoint.State{Page: 2, FetchedIDs: []string{"a1"}}))

	adapter := newFakeAdapter([]string{"a1"}, []string{"b1"})
	rec := &recorder{}
	err := newTestOrchestrator(adapter, store, rec).Crawl(context.Background(), true)
	require.NoError(t, err)

	// a1 was fetched again: the old seen-ids are gone
	require.Equal(t, []string{"a1", "b1"}, rec.successKeys())
}

func TestCrawl_SkipsAlreadySeenItems(t *testing.T) {
	t.Parallel()
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), hosting.Thingiverse,
		&checkpoint.State{FetchedIDs: []string{"a1"}, FailedIDs: []string{"a2"}, NumFetched: 1}))

	adapter := newFakeAdapter([]string{"a1", "a2", "a3"})
	rec := &recorder{}
	err := newTestOrchestrator(adapter, store, rec).Crawl(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, []string{"a3"}, rec.successKeys())
}

func TestCrawl_IncompletePageRetryBound(t *testing.T) {
	t.Parallel()
	// two pages expected but the non-final page always comes back short
	adapter := newFakeAdapter([]string{"a1"}, []string{"b1"})
	adapter.expected = 5
	store := checkpoint.NewMemoryStore()
	rec := &recorder{}

	err := newTestOrchestrator(adapter, store, rec).Crawl(context.Background(), false)
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	var incomplete *IncompletePageError
	require.ErrorAs(t, err, &incomplete)
	require.Equal(t, 1, incomplete.Got)
	require.Equal(t, 5, incomplete.Expected)

	// initial attempt plus exactly the configured number of retries
	require.Equal(t, 1+3, adapter.discoverCalls)
	require.Empty(t, rec.successKeys(), "incomplete pages must not leak items")
}

func TestCrawl_ShortFinalPageIsAccepted(t *testing.T) {
	t.Parallel()
	adapter := newFakeAdapter([]string{"a1"})
	adapter.expected = 10 // final page carries the remainder
	store := checkpoint.NewMemoryStore()
	rec := &recorder{}

	err := newTestOrchestrator(adapter, store, rec).Crawl(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, adapter.discoverCalls)
	require.Equal(t, []string{"a1"}, rec.successKeys())
}

func TestCrawl_SecondaryRateLimitIsUncounted(t *testing.T) {
	t.Parallel()
	adapter := newFakeAdapter([]string{"a1"})
	rateLimited := 5 // more events than the page retry budget
	adapter.discoverHook = func(call int, _ *checkpoint.State) error {
		if call < rateLimited {
			return &RateLimitedError{Cooldown: time.Millisecond, Reason: "abuse detection"}
		}
		return nil
	}
	store := checkpoint.NewMemoryStore()
	rec := &recorder{}

	orch := newTestOrchestrator(adapter, store, rec)
	var cooldowns []time.Duration
	orch.sleep = func(_ context.Context, d time.Duration) error {
		cooldowns = append(cooldowns, d)
		return nil
	}

	err := orch.Crawl(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, cooldowns, rateLimited)
	require.Equal(t, []string{"a1"}, rec.successKeys())
}

func TestCrawl_FatalOnDiscoveryErrorKeepsCheckpoint(t *testing.T) {
	t.Parallel()
	adapter := newFakeAdapter([]string{"a1"}, []string{"b1"})
	adapter.discoverHook = func(_ int, state *checkpoint.State) error {
		if state.Page == 1 {
			return fmt.Errorf("server said no: %w", errors.New("boom"))
		}
		return nil
	}
	store := checkpoint.NewMemoryStore()
	rec := &recorder{}

	err := newTestOrchestrator(adapter, store, rec).Crawl(context.Background(), false)
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)

	state, serr := store.Load(context.Background(), adapter.Platform())
	require.NoError(t, serr)
	require.NotNil(t, state)
	require.Equal(t, 1, state.Page)
}

func TestCrawl_ItemFailureIsReportedAndSkipped(t *testing.T) {
	t.Parallel()
	adapter := newFakeAdapter([]string{"a1", "a2", "a3"})
	adapter.itemErrs["a2"] = &NotFoundError{Subject: "thing a2"}
	store := checkpoint.NewMemoryStore()
	rec := &recorder{}

	err := newTestOrchestrator(adapter, store, rec).Crawl(context.Background(), false)
	require.NoError(t, err, "an item failure must not abort the crawl")
	require.Equal(t, []string{"a1", "a3"}, rec.successKeys())

	failures := rec.failures()
	require.Len(t, failures, 1)
	var notFound *NotFoundError
	require.ErrorAs(t, failures[0].Err, &notFound)
	require.Equal(t, "thingiverse.com/a2", failures[0].ID.String())
}

func TestFetchOne_NotifiesListeners(t *testing.T) {
	t.Parallel()
	adapter := newFakeAdapter()
	rec := &recorder{}
	orch := newTestOrchestrator(adapter, checkpoint.NewMemoryStore(), rec)

	outcome, err := orch.FetchOne(context.Background(), "https://www.thingiverse.com/thing:42")
	require.NoError(t, err)
	require.True(t, outcome.OK())
	require.Len(t, rec.outcomes, 1)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", outcome.CrawlRun.String())
}
