// Package oshwa crawls the OSHWA certification registry. The registry API
// returns full project records inline with the listing, so discovery and
// item fetch share one request; the per-item step only unwraps the payload.
package oshwa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
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
	// APIBaseURL overrides https://certificationapi.oshwa.org, for tests.
	APIBaseURL string
	BatchSize  int
	// Spacing is the minimum gap between listing requests.
	Spacing time.Duration
}

// Adapter implements fetch.Adapter for certification.oshwa.org.
type Adapter struct {
	cfg     Config
	client  *transport.Client
	logger  *zap.Logger
	cadence *ratelimit.Cadence
}

// New builds an OSHWA adapter.
func New(cfg Config, client *transport.Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://certificationapi.oshwa.org"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Spacing <= 0 {
		cfg.Spacing = 5 * time.Second
	}
	return &Adapter{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		cadence: ratelimit.NewCadence(cfg.Spacing, logger),
	}
}

// Platform implements fetch.Adapter.
func (a *Adapter) Platform() hosting.Platform { return hosting.OSHWA }

// Limiters implements fetch.Adapter.
func (a *Adapter) Limiters(class fetch.CallClass) []ratelimit.Limiter {
	if class == fetch.CallSearch {
		return []ratelimit.Limiter{a.cadence}
	}
	return nil
}

type listResponse struct {
	Total int `json:"total"`
	// Limit echoes the batch size the server actually applied, which may
	// shrink below the requested one.
	Limit int               `json:"limit"`
	Items []json.RawMessage `json:"items"`
}

// Discover implements fetch.Adapter: one offset/limit listing page carrying
// the full records inline.
func (a *Adapter) Discover(ctx context.Context, state *checkpoint.State) (*fetch.Page, error) {
	listURL := fmt.Sprintf("%s/api/projects?limit=%d&offset=%d",
		a.cfg.APIBaseURL, a.cfg.BatchSize, state.Offset)
	a.logger.Debug("listing certified projects", zap.Int("offset", state.Offset))

	resp, err := a.client.Get(ctx, listURL, a.header())
	if err != nil {
		return nil, fmt.Errorf("project listing request: %w", err)
	}
	if resp.StatusCode > 205 {
		return nil, fmt.Errorf("project listing responded %d: %s", resp.StatusCode, resp.Body)
	}
	var data listResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("decode project listing: %w", err)
	}

	serverBatch := data.Limit
	if serverBatch <= 0 {
		serverBatch = a.cfg.BatchSize
	}
	nextOffset := state.Offset + serverBatch

	page := &fetch.Page{
		Last: nextOffset > data.Total,
	}
	page.Next.Offset = nextOffset
	page.Next.Total = data.Total
	for _, raw := range data.Items {
		var head struct {
			UID string `json:"oshwaUid"`
		}
		if err := json.Unmarshal(raw, &head); err != nil || head.UID == "" {
			return nil, fmt.Errorf("project record without oshwaUid in listing at offset %d", state.Offset)
		}
		page.Items = append(page.Items, fetch.Item{
			ID:   hosting.WebUnit{Host: hosting.OSHWA, ProjectID: head.UID},
			Meta: map[string]string{"payload": string(raw)},
		})
	}
	return page, nil
}

// FetchItem implements fetch.Adapter. The record was already delivered with
// the listing; no further request is needed.
func (a *Adapter) FetchItem(_ context.Context, item fetch.Item) (*fetch.Outcome, error) {
	payload := []byte(item.Meta["payload"])
	if manifest.IsEmpty(payload) {
		return nil, fmt.Errorf("empty project record for %s", item.ID)
	}
	return fetch.Success(item.ID, &manifest.Manifest{
		Content: payload,
		Format:  manifest.JSON,
	}, manifest.SourcingAPI), nil
}

// Fetch implements fetch.Adapter: one certified project by its registry URL.
func (a *Adapter) Fetch(ctx context.Context, rawURL string) (*fetch.Outcome, error) {
	unit, err := hosting.ParseWebURLNoPath(rawURL)
	if err != nil {
		return nil, err
	}
	projectURL := fmt.Sprintf("%s/api/projects/%s", a.cfg.APIBaseURL, unit.ProjectID)

	if err := a.cadence.Apply(ctx); err != nil {
		return nil, err
	}
	resp, err := a.client.Get(ctx, projectURL, a.header())
	a.cadence.Update(ratelimit.Feedback{})
	if err != nil {
		return nil, fmt.Errorf("project request for %s: %w", unit.ProjectID, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fetch.Failure(unit, &fetch.NotFoundError{Subject: "certification " + unit.ProjectID}), nil
	}
	if resp.StatusCode > 205 {
		return nil, fmt.Errorf("project request for %s responded %d: %s",
			unit.ProjectID, resp.StatusCode, resp.Body)
	}
	// the API answers single-project lookups with a one-element array
	var records []json.RawMessage
	if err := json.Unmarshal(resp.Body, &records); err != nil {
		return nil, fmt.Errorf("decode project record for %s: %w", unit.ProjectID, err)
	}
	if len(records) == 0 {
		return fetch.Failure(unit, &fetch.NotFoundError{Subject: "certification " + unit.ProjectID}), nil
	}
	return fetch.Success(unit, &manifest.Manifest{
		Content: records[0],
		Format:  manifest.JSON,
	}, manifest.SourcingAPI), nil
}

func (a *Adapter) header() http.Header {
	h := http.Header{}
	if a.cfg.AccessToken != "" {
		h.Set("Authorization", "Bearer "+a.cfg.AccessToken)
	}
	return h
}
