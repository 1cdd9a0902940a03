package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Cadence enforces a minimum spacing between consecutive calls. It serves
// limits that give no remaining-budget feedback, such as secondary or
// per-file throttles.
type Cadence struct {
	spacing time.Duration
	last    time.Time
	logger  *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCadence builds a cadence limiter. The first Apply never waits.
func NewCadence(spacing time.Duration, logger *zap.Logger) *Cadence {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cadence{
		spacing: spacing,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepCtx,
	}
	c.last = c.now().Add(-spacing)
	return c
}

// Apply sleeps for whatever remains of the spacing window since the last
// recorded call.
func (c *Cadence) Apply(ctx context.Context) error {
	wait := c.spacing - c.now().Sub(c.last)
	if wait <= 0 {
		return nil
	}
	c.logger.Debug("limiting request cadence", zap.Duration("wait", wait))
	return c.sleep(ctx, wait)
}

// Update stamps the call time; the feedback values are irrelevant to a
// cadence limit.
func (c *Cadence) Update(Feedback) {
	c.last = c.now()
}
