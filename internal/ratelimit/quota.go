package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Quota limits calls against a remaining-budget-plus-reset-time pair as
// reported by the server (e.g. X-RateLimit headers). Update overwrites the
// local view with the authoritative values instead of decrementing locally,
// which stays correct when the quota is shared with other consumers.
type Quota struct {
	remaining int
	reset     time.Time
	logger    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewQuota builds a quota limiter with an optimistic initial budget; the
// first Update replaces it with the server's numbers.
func NewQuota(remaining int, logger *zap.Logger) *Quota {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Quota{
		remaining: remaining,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Apply blocks until the budget permits another call: it sleeps only when
// the budget is exhausted, and then exactly until the reported reset time.
func (q *Quota) Apply(ctx context.Context) error {
	if q.remaining > 0 {
		return nil
	}
	wait := q.reset.Sub(q.now())
	if wait <= 0 {
		return nil
	}
	q.logger.Info("hit rate limit, waiting for budget reset", zap.Duration("wait", wait))
	return q.sleep(ctx, wait)
}

// Update overwrites the budget from the server-reported values. Feedback
// without quota data is ignored.
func (q *Quota) Update(fb Feedback) {
	if !fb.HasQuota {
		return
	}
	q.remaining = fb.Remaining
	q.reset = fb.Reset
}
