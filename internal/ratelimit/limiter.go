// Package ratelimit implements the throttling strategies that gate outbound
// platform requests: a quota limiter fed from server-reported budgets and a
// cadence limiter enforcing a minimum spacing between calls.
package ratelimit

import (
	"context"
	"time"
)

// Feedback carries the outcome of the call just made. Quota limiters consume
// the server-reported budget; cadence limiters only care that a call
// finished and stamp the wall clock.
type Feedback struct {
	HasQuota  bool
	Remaining int
	Reset     time.Time
}

// QuotaFeedback builds a Feedback from server-reported budget headers.
func QuotaFeedback(remaining int, reset time.Time) Feedback {
	return Feedback{HasQuota: true, Remaining: remaining, Reset: reset}
}

// Limiter gates outbound requests. Apply blocks the calling fetch loop until
// the next call is permitted or the context ends; Update records the outcome
// of the call just made. Limiters are owned by a single fetch loop per
// credential and are not shared across concurrent workers.
type Limiter interface {
	Apply(ctx context.Context) error
	Update(fb Feedback)
}

// ApplyAll applies every limiter in order, stopping at the first context
// error.
func ApplyAll(ctx context.Context, limiters []Limiter) error {
	for _, l := range limiters {
		if err := l.Apply(ctx); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAll feeds the same call outcome to every limiter.
func UpdateAll(limiters []Limiter, fb Feedback) {
	for _, l := range limiters {
		l.Update(fb)
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
