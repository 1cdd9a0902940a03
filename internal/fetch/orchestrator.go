// Package fetch drives platform adapters through resumable crawls: it owns
// the paging loop, retry accounting, rate limit coordination, checkpoint
// persistence and outcome fan-out.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oseg/krawler/internal/checkpoint"
	"github.com/oseg/krawler/internal/ratelimit"
)

// Config tunes the orchestrator's page-level retry behavior. The reference
// values come from observed GitHub code search behavior; other platforms may
// want different ones.
type Config struct {
	// PageRetryLimit bounds how often an incomplete page is re-requested
	// before the crawl aborts.
	PageRetryLimit int
	// SecondaryCooldown is slept after a secondary rate limit signal
	// before the same page is retried, without spending retry budget.
	SecondaryCooldown time.Duration
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		PageRetryLimit:    10,
		SecondaryCooldown: 60 * time.Second,
	}
}

// Orchestrator drives one adapter through a full crawl. One orchestrator
// owns one platform's checkpoint for the duration of a run; run crawls for
// different platforms in separate orchestrators.
type Orchestrator struct {
	adapter   Adapter
	store     checkpoint.Store
	listeners Listener
	cfg       Config
	logger    *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires an orchestrator. A nil listener discards outcomes.
func NewOrchestrator(adapter Adapter, store checkpoint.Store, listener Listener, cfg Config, logger *zap.Logger) *Orchestrator {
	if listener == nil {
		listener = Listeners(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageRetryLimit <= 0 {
		cfg.PageRetryLimit = DefaultConfig().PageRetryLimit
	}
	if cfg.SecondaryCooldown <= 0 {
		cfg.SecondaryCooldown = DefaultConfig().SecondaryCooldown
	}
	return &Orchestrator{
		adapter:   adapter,
		store:     store,
		listeners: listener,
		cfg:       cfg,
		logger:    logger.With(zap.String("platform", adapter.Platform().String())),
		sleep:     sleepCtx,
	}
}

// Crawl runs the full discovery loop: resume or restart, page, fetch items,
// checkpoint after every page, delete the checkpoint when the last page is
// done. On a fatal error the checkpoint is kept so the next run resumes.
func (o *Orchestrator) Crawl(ctx context.Context, startOver bool) error {
	platform := o.adapter.Platform()
	state, err := o.initState(ctx, startOver)
	if err != nil {
		return err
	}
	run := uuid.New()
	o.logger.Info("starting crawl",
		zap.String("run", run.String()),
		zap.Bool("start_over", startOver),
		zap.Int("already_fetched", state.NumFetched))

	incompleteRetries := 0
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("crawl interrupted: %w", err)
		}

		searchLimiters := o.adapter.Limiters(CallSearch)
		if err := ratelimit.ApplyAll(ctx, searchLimiters); err != nil {
			return fmt.Errorf("crawl interrupted: %w", err)
		}
		page, err := o.adapter.Discover(ctx, state)
		if err != nil {
			var rl *RateLimitedError
			if errors.As(err, &rl) {
				cooldown := rl.Cooldown
				if cooldown <= 0 {
					cooldown = o.cfg.SecondaryCooldown
				}
				o.logger.Warn("secondary rate limit, cooling down",
					zap.Duration("cooldown", cooldown))
				if serr := o.sleep(ctx, cooldown); serr != nil {
					return fmt.Errorf("crawl interrupted: %w", serr)
				}
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("crawl interrupted: %w", err)
			}
			return &FatalError{Reason: "discovery request failed", Err: err}
		}
		ratelimit.UpdateAll(searchLimiters, page.Feedback)

		if !page.Last && page.Expected > 0 && len(page.Items) < page.Expected {
			incompleteRetries++
			err := &IncompletePageError{Got: len(page.Items), Expected: page.Expected}
			if incompleteRetries > o.cfg.PageRetryLimit {
				return &FatalError{
					Reason: fmt.Sprintf("page still incomplete after %d retries", o.cfg.PageRetryLimit),
					Err:    err,
				}
			}
			o.logger.Warn("retrying incomplete page",
				zap.Int("attempt", incompleteRetries),
				zap.Int("limit", o.cfg.PageRetryLimit),
				zap.Error(err))
			continue
		}
		incompleteRetries = 0

		o.fetchPageItems(ctx, run, state, page)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("crawl interrupted: %w", err)
		}

		advance(state, &page.Next)
		if err := o.store.Save(ctx, platform, state); err != nil {
			return &FatalError{Reason: "persisting checkpoint failed", Err: err}
		}
		o.logger.Debug("page complete",
			zap.Int("items", len(page.Items)),
			zap.Int("num_fetched", state.NumFetched))

		if page.Last {
			break
		}
	}

	if _, err := o.store.Delete(ctx, platform); err != nil {
		return fmt.Errorf("clear checkpoint after completed crawl: %w", err)
	}
	o.logger.Info("crawl complete", zap.Int("num_fetched", state.NumFetched))
	return nil
}

// FetchOne retrieves a single unit by URL, bypassing discovery and
// checkpointing, and notifies listeners of the outcome.
func (o *Orchestrator) FetchOne(ctx context.Context, rawURL string) (*Outcome, error) {
	outcome, err := o.adapter.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	outcome.CrawlRun = uuid.New()
	o.listeners.Notify(ctx, outcome)
	if outcome.Err != nil {
		return outcome, outcome.Err
	}
	return outcome, nil
}

func (o *Orchestrator) initState(ctx context.Context, startOver bool) (*checkpoint.State, error) {
	platform := o.adapter.Platform()
	if startOver {
		if _, err := o.store.Delete(ctx, platform); err != nil {
			return nil, fmt.Errorf("discard checkpoint for restart: %w", err)
		}
		return &checkpoint.State{}, nil
	}
	state, err := o.store.Load(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if state == nil {
		state = &checkpoint.State{}
	}
	return state, nil
}

// fetchPageItems runs the per-item downloads of one page. Item failures are
// reported and skipped; they never abort the page.
func (o *Orchestrator) fetchPageItems(ctx context.Context, run uuid.UUID, state *checkpoint.State, page *Page) {
	for _, item := range page.Items {
		if ctx.Err() != nil {
			return
		}
		if item.Key != "" && state.Seen(item.Key) {
			o.logger.Debug("skipping already seen item", zap.String("key", item.Key))
			continue
		}
		outcome, err := o.adapter.FetchItem(ctx, item)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			outcome = Failure(item.ID, err)
		}
		outcome.CrawlRun = run
		o.listeners.Notify(ctx, outcome)
		if outcome.OK() {
			state.NumFetched++
			if item.Key != "" {
				state.MarkFetched(item.Key)
			}
		} else {
			o.logger.Warn("item fetch failed, skipping",
				zap.String("key", item.Key),
				zap.Error(outcome.Err))
			if item.Key != "" {
				state.MarkFailed(item.Key)
			}
		}
	}
}

// advance copies the adapter-owned pagination fields into the live state.
// Progress counters and id lists stay with the orchestrator.
func advance(state *checkpoint.State, next *checkpoint.State) {
	state.Cursor = next.Cursor
	state.Page = next.Page
	state.Offset = next.Offset
	if next.Total != 0 {
		state.Total = next.Total
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
