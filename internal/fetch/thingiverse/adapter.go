// Package thingiverse crawls thingiverse.com by sweeping ascending thing
// ids.
//
// The platform's search API caps results at 10000 regardless of paging and
// its date filters do not work, so exhaustive discovery through search is
// impossible. Thing ids however are assigned in ascending order: the adapter
// probes the search API once for the latest published id, then walks every
// id from 1 upwards. Ids that turn out deleted or otherwise unusable are
// recorded in the checkpoint so no later run wastes a request on them.
package thingiverse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/oseg/krawler/internal/checkpoint"
	"github.com/oseg/krawler/internal/fetch"
	"github.com/oseg/krawler/internal/hosting"
	"github.com/oseg/krawler/internal/manifest"
	"github.com/oseg/krawler/internal/ratelimit"
	"github.com/oseg/krawler/internal/transport"
)

const defaultBatchSize = 50

// Config tunes the adapter.
type Config struct {
	AccessToken string
	// APIBaseURL overrides https://api.thingiverse.com, for tests.
	APIBaseURL string
	// BatchSize is the number of ids attempted between two checkpoints.
	BatchSize int
	// Spacing is the minimum gap between API requests; the platform
	// allows roughly one request per second.
	Spacing time.Duration
}

// Adapter implements fetch.Adapter for thingiverse.com.
type Adapter struct {
	cfg     Config
	client  *transport.Client
	logger  *zap.Logger
	cadence *ratelimit.Cadence
}

// New builds a Thingiverse adapter.
func New(cfg Config, client *transport.Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.thingiverse.com"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Spacing <= 0 {
		cfg.Spacing = time.Second
	}
	return &Adapter{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		cadence: ratelimit.NewCadence(cfg.Spacing, logger),
	}
}

// Platform implements fetch.Adapter.
func (a *Adapter) Platform() hosting.Platform { return hosting.Thingiverse }

// Limiters implements fetch.Adapter. The same cadence guards both search and
// item calls; the platform draws no distinction.
func (a *Adapter) Limiters(class fetch.CallClass) []ratelimit.Limiter {
	if class == fetch.CallSearch {
		return []ratelimit.Limiter{a.cadence}
	}
	return nil
}

// Discover implements fetch.Adapter. There is nothing to search for: one
// "page" is the next batch of candidate ids, bounded by the latest published
// id, which is probed once per crawl and kept in the checkpoint total.
func (a *Adapter) Discover(ctx context.Context, state *checkpoint.State) (*fetch.Page, error) {
	latest := state.Total
	if latest <= 0 {
		probed, err := a.latestThingID(ctx)
		if err != nil {
			return nil, err
		}
		latest = probed
		a.logger.Info("probed latest thing id", zap.Int("latest", latest))
	}

	first := state.Offset + 1
	page := &fetch.Page{}
	page.Next.Total = latest
	for id := first; id <= latest && id-first < a.cfg.BatchSize; id++ {
		idStr := strconv.Itoa(id)
		page.Items = append(page.Items, fetch.Item{
			ID:  hosting.WebUnit{Host: hosting.Thingiverse, ProjectID: idStr},
			Key: idStr,
		})
		page.Next.Offset = id
	}
	if page.Next.Offset == 0 {
		page.Next.Offset = state.Offset
	}
	page.Last = page.Next.Offset >= latest
	return page, nil
}

// FetchItem implements fetch.Adapter: one thing by id. Deleted or private
// things answer 404 and are terminal for that id.
func (a *Adapter) FetchItem(ctx context.Context, item fetch.Item) (*fetch.Outcome, error) {
	thingURL := fmt.Sprintf("%s/things/%s", a.cfg.APIBaseURL, item.Key)

	if err := a.cadence.Apply(ctx); err != nil {
		return nil, err
	}
	resp, err := a.client.Get(ctx, thingURL, a.header())
	a.cadence.Update(ratelimit.Feedback{})
	if err != nil {
		return nil, &fetch.TransientError{Op: "fetch thing " + item.Key, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &fetch.NotFoundError{Subject: "thing " + item.Key}
	case resp.StatusCode > 205:
		return nil, &fetch.TransientError{Op: "fetch thing " + item.Key, Status: resp.StatusCode}
	}
	if manifest.IsEmpty(resp.Body) || manifest.IsBinary(resp.Body) {
		return nil, fmt.Errorf("thing %s answered an unusable record", item.Key)
	}
	return fetch.Success(item.ID, &manifest.Manifest{
		Content: resp.Body,
		Format:  manifest.JSON,
	}, manifest.SourcingAPI), nil
}

// Fetch implements fetch.Adapter: one thing by its project URL.
func (a *Adapter) Fetch(ctx context.Context, rawURL string) (*fetch.Outcome, error) {
	unit, err := hosting.ParseWebURLNoPath(rawURL)
	if err != nil {
		return nil, err
	}
	outcome, err := a.FetchItem(ctx, fetch.Item{ID: unit, Key: unit.ProjectID})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return fetch.Failure(unit, err), nil
	}
	return outcome, nil
}

type searchResponse struct {
	Hits []struct {
		ID int `json:"id"`
	} `json:"hits"`
}

// latestThingID asks the search API for the newest published thing. Search
// is unusable for exhaustive discovery but fine for this single probe.
func (a *Adapter) latestThingID(ctx context.Context) (int, error) {
	searchURL := a.cfg.APIBaseURL + "/search/?type=things&per_page=1&sort=newest"

	if err := a.cadence.Apply(ctx); err != nil {
		return 0, err
	}
	resp, err := a.client.Get(ctx, searchURL, a.header())
	a.cadence.Update(ratelimit.Feedback{})
	if err != nil {
		return 0, fmt.Errorf("latest thing id probe: %w", err)
	}
	if resp.StatusCode > 205 {
		return 0, fmt.Errorf("latest thing id probe responded %d: %s", resp.StatusCode, resp.Body)
	}
	var data searchResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return 0, fmt.Errorf("decode latest thing id probe: %w", err)
	}
	if len(data.Hits) == 0 {
		return 0, fmt.Errorf("latest thing id probe returned no hits")
	}
	return data.Hits[0].ID, nil
}

func (a *Adapter) header() http.Header {
	h := http.Header{}
	if a.cfg.AccessToken != "" {
		h.Set("Authorization", "Bearer "+a.cfg.AccessToken)
	}
	return h
}
