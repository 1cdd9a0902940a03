// Package github crawls GitHub for manifest files through the code search
// API and downloads hits from raw.githubusercontent.com.
//
// Code search only returns results in small paginated batches and cuts
// responses short when a server-side search timeout strikes, so the batch
// size is kept small and short pages are retried by the orchestrator. The
// search quota is separate from the repository quota, and an additional
// secondary limit punishes bursts; each gets its own limiter.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oseg/krawler/internal/checkpoint"
	"github.com/oseg/krawler/internal/fetch"
	"github.com/oseg/krawler/internal/hosting"
	"github.com/oseg/krawler/internal/manifest"
	"github.com/oseg/krawler/internal/ratelimit"
	"github.com/oseg/krawler/internal/transport"
)

// searchQuery keeps the code search cheap: filename and extension filters
// only, no content matching. Complex queries raise the odds of the search
// timeout that produces incomplete pages.
const searchQuery = "filename:okh extension:toml extension:yaml extension:yml"

// defaultBatchSize balances page count against incomplete-page risk.
const defaultBatchSize = 10

// manifestCandidates are tried in order when a project URL names no file.
var manifestCandidates = []string{"okh.toml", "okh.yaml", "okh.yml", "okh.json"}

// Config tunes the adapter.
type Config struct {
	AccessToken string
	// APIBaseURL overrides https://api.github.com, for tests.
	APIBaseURL string
	// DownloadBaseURL, when set, redirects raw-content downloads to a
	// different host, for tests.
	DownloadBaseURL string
	BatchSize       int
	// SecondarySpacing is the minimum gap between API calls, guarding
	// the secondary rate limit.
	SecondarySpacing time.Duration
	// FileSpacing is the minimum gap between raw file downloads.
	FileSpacing time.Duration
}

// Adapter implements fetch.Adapter for github.com. One adapter instance is
// driven by one crawl worker; its limiters and cache are not safe for
// concurrent use.
type Adapter struct {
	cfg    Config
	client *transport.Client
	logger *zap.Logger

	searchQuota *ratelimit.Quota
	repoQuota   *ratelimit.Quota
	secondary   *ratelimit.Cadence
	fileCadence *ratelimit.Cadence

	branchCache map[string]string
}

// New builds a GitHub adapter.
func New(cfg Config, client *transport.Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.github.com"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.SecondarySpacing <= 0 {
		cfg.SecondarySpacing = 5 * time.Second
	}
	if cfg.FileSpacing <= 0 {
		cfg.FileSpacing = time.Second
	}
	return &Adapter{
		cfg:    cfg,
		client: client,
		logger: logger,
		// code search allows 30 requests per minute
		searchQuota: ratelimit.NewQuota(30, logger),
		// the general API quota allows 5000 points per hour
		repoQuota:   ratelimit.NewQuota(5000, logger),
		secondary:   ratelimit.NewCadence(cfg.SecondarySpacing, logger),
		fileCadence: ratelimit.NewCadence(cfg.FileSpacing, logger),
		branchCache: make(map[string]string),
	}
}

// Platform implements fetch.Adapter.
func (a *Adapter) Platform() hosting.Platform { return hosting.GitHub }

// Limiters implements fetch.Adapter. Item downloads manage their own cadence
// inside FetchItem.
func (a *Adapter) Limiters(class fetch.CallClass) []ratelimit.Limiter {
	if class == fetch.CallSearch {
		return []ratelimit.Limiter{a.searchQuota, a.secondary}
	}
	return nil
}

type searchResponse struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		HTMLURL string `json:"html_url"`
	} `json:"items"`
}

// Discover implements fetch.Adapter: one code search page.
func (a *Adapter) Discover(ctx context.Context, state *checkpoint.State) (*fetch.Page, error) {
	pageNum := state.Page
	if pageNum <= 0 {
		pageNum = 1
	}
	query := url.Values{
		"q":        {searchQuery},
		"per_page": {fmt.Sprint(a.cfg.BatchSize)},
		"page":     {fmt.Sprint(pageNum)},
	}
	searchURL := a.cfg.APIBaseURL + "/search/code?" + query.Encode()
	a.logger.Debug("searching for manifest files", zap.Int("page", pageNum))

	resp, err := a.client.Get(ctx, searchURL, a.apiHeader("application/vnd.github.v3+json"))
	if err != nil {
		return nil, fmt.Errorf("code search request: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		if isSecondaryLimit(resp.Body) {
			return nil, &fetch.RateLimitedError{Reason: "code search abuse detection"}
		}
		return nil, fmt.Errorf("code search forbidden: %s", resp.Body)
	default:
		return nil, fmt.Errorf("code search responded %d: %s", resp.StatusCode, resp.Body)
	}

	var data searchResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("decode code search response: %w", err)
	}

	page := &fetch.Page{
		Expected: a.cfg.BatchSize,
		Last:     pageNum*a.cfg.BatchSize >= data.TotalCount,
		Feedback: quotaFeedback(resp.Header),
	}
	page.Next.Page = pageNum + 1
	page.Next.Total = data.TotalCount
	for _, hit := range data.Items {
		unit, remainder, err := hosting.ParseForgeURL(hit.HTMLURL)
		if err != nil {
			return nil, fmt.Errorf("unparseable code search hit %q: %w", hit.HTMLURL, err)
		}
		page.Items = append(page.Items, fetch.Item{
			ID:   unit,
			Meta: map[string]string{"path": remainder},
		})
	}
	return page, nil
}

// FetchItem implements fetch.Adapter: download and validate one code search
// hit.
func (a *Adapter) FetchItem(ctx context.Context, item fetch.Item) (*fetch.Outcome, error) {
	unit, ok := item.ID.(hosting.ForgeUnit)
	if !ok {
		return nil, fmt.Errorf("expected a forge unit, got %T", item.ID)
	}
	return a.fetchOne(ctx, unit, item.Meta["path"])
}

// Fetch implements fetch.Adapter. A URL pointing at a file fetches exactly
// that file; a project URL probes the well-known manifest names on the
// default branch.
func (a *Adapter) Fetch(ctx context.Context, rawURL string) (*fetch.Outcome, error) {
	unit, remainder, err := hosting.ParseForgeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if remainder != "" {
		outcome, err := a.fetchOne(ctx, unit, remainder)
		if err != nil {
			return fetch.Failure(unit.WithPath(remainder), err), nil
		}
		return outcome, nil
	}
	for _, candidate := range manifestCandidates {
		outcome, err := a.fetchOne(ctx, unit, candidate)
		if err == nil {
			return outcome, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Debug("manifest candidate not usable",
			zap.String("candidate", candidate), zap.Error(err))
	}
	return fetch.Failure(unit,
		fmt.Errorf("no known manifest file found at %q", rawURL)), nil
}

func (a *Adapter) fetchOne(ctx context.Context, unit hosting.ForgeUnit, filePath string) (*fetch.Outcome, error) {
	if !manifest.IsAcceptedName(filePath) {
		return nil, fmt.Errorf("not an accepted manifest file name: %q", path.Base(filePath))
	}
	if unit.Ref == "" {
		ref, err := a.defaultBranch(ctx, unit)
		if err != nil {
			return nil, err
		}
		unit = unit.WithRef(ref)
	}
	downloadURL, err := unit.DownloadURL(filePath)
	if err != nil {
		return nil, err
	}
	downloadURL = a.rewriteDownloadURL(downloadURL)

	if err := a.fileCadence.Apply(ctx); err != nil {
		return nil, err
	}
	a.logger.Debug("downloading manifest file", zap.String("url", downloadURL))
	resp, err := a.client.Get(ctx, downloadURL, nil)
	a.fileCadence.Update(ratelimit.Feedback{})
	if err != nil {
		return nil, &fetch.TransientError{Op: "download manifest", Err: err}
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &fetch.NotFoundError{Subject: downloadURL}
	default:
		return nil, &fetch.TransientError{Op: "download manifest", Status: resp.StatusCode}
	}

	if manifest.IsEmpty(resp.Body) {
		return nil, fmt.Errorf("manifest file is empty: %q", downloadURL)
	}
	if manifest.IsBinary(resp.Body) {
		return nil, fmt.Errorf("manifest file is binary, expected text: %q", downloadURL)
	}
	format, err := manifest.FormatFromExt(path.Ext(filePath))
	if err != nil {
		return nil, err
	}
	return fetch.Success(unit.WithPath(filePath), &manifest.Manifest{
		Content: resp.Body,
		Format:  format,
	}, manifest.SourcingManifest), nil
}

// defaultBranch resolves and caches the repository's default branch, the
// only branch files are downloaded from when no ref is given.
func (a *Adapter) defaultBranch(ctx context.Context, unit hosting.ForgeUnit) (string, error) {
	key := unit.Owner + "/" + unit.Repo
	if branch, ok := a.branchCache[key]; ok {
		return branch, nil
	}

	limiters := []ratelimit.Limiter{a.repoQuota, a.secondary}
	if err := ratelimit.ApplyAll(ctx, limiters); err != nil {
		return "", err
	}
	repoURL := fmt.Sprintf("%s/repos/%s/%s", a.cfg.APIBaseURL, unit.Owner, unit.Repo)
	resp, err := a.client.Get(ctx, repoURL, a.apiHeader("application/vnd.github+json"))
	a.secondary.Update(ratelimit.Feedback{})
	if err != nil {
		return "", fmt.Errorf("repository lookup for %s: %w", key, err)
	}
	a.repoQuota.Update(quotaFeedback(resp.Header))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", &fetch.NotFoundError{Subject: "repository " + key}
	default:
		return "", fmt.Errorf("repository lookup for %s responded %d", key, resp.StatusCode)
	}
	var repo struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.Unmarshal(resp.Body, &repo); err != nil {
		return "", fmt.Errorf("decode repository info for %s: %w", key, err)
	}
	if repo.DefaultBranch == "" {
		return "", fmt.Errorf("repository info for %s carries no default branch", key)
	}
	a.branchCache[key] = repo.DefaultBranch
	return repo.DefaultBranch, nil
}

func (a *Adapter) apiHeader(accept string) http.Header {
	h := http.Header{"Accept": {accept}}
	if a.cfg.AccessToken != "" {
		h.Set("Authorization", "token "+a.cfg.AccessToken)
	}
	return h
}

// rewriteDownloadURL points the raw-content URL at the configured override
// host, leaving the path intact.
func (a *Adapter) rewriteDownloadURL(downloadURL string) string {
	if a.cfg.DownloadBaseURL == "" {
		return downloadURL
	}
	u, err := url.Parse(downloadURL)
	if err != nil {
		return downloadURL
	}
	base, err := url.Parse(a.cfg.DownloadBaseURL)
	if err != nil {
		return downloadURL
	}
	u.Scheme = base.Scheme
	u.Host = base.Host
	return u.String()
}

// isSecondaryLimit spots the abuse-detection message GitHub sends with 403.
func isSecondaryLimit(body []byte) bool {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(payload.Message), "rate limit")
}

// quotaFeedback reads the X-RateLimit headers GitHub sets on API responses.
func quotaFeedback(header http.Header) ratelimit.Feedback {
	remaining := header.Get("X-RateLimit-Remaining")
	reset := header.Get("X-RateLimit-Reset")
	if remaining == "" || reset == "" {
		return ratelimit.Feedback{}
	}
	var rem int
	var resetUnix int64
	if _, err := fmt.Sscanf(remaining, "%d", &rem); err != nil {
		return ratelimit.Feedback{}
	}
	if _, err := fmt.Sscanf(reset, "%d", &resetUnix); err != nil {
		return ratelimit.Feedback{}
	}
	return ratelimit.QuotaFeedback(rem, time.Unix(resetUnix, 0).UTC())
}
