package fetch

import (
	"fmt"
	"time"
)

// NotFoundError marks a resource absent at its expected location. Terminal
// for that item, never retried.
type NotFoundError struct {
	Subject string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Subject)
}

// TransientError marks an HTTP 429/5xx or connection failure that the
// transport already retried. Page-level retry may still apply.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transient failure during %s: status %d", e.Op, e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IncompletePageError marks a page that came back with fewer results than a
// non-final page implies, a sign of a server-side search timeout rather than
// end of data.
type IncompletePageError struct {
	Got      int
	Expected int
}

func (e *IncompletePageError) Error() string {
	return fmt.Sprintf("incomplete page: got %d of %d expected results", e.Got, e.Expected)
}

// RateLimitedError marks a secondary rate limit signal. The orchestrator
// sleeps the cooldown and retries the same page without spending retry
// budget.
type RateLimitedError struct {
	Cooldown time.Duration
	Reason   string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("secondary rate limit hit (%s), cooling down %s", e.Reason, e.Cooldown)
}

// FatalError aborts the whole crawl. The checkpoint is retained so a later
// run resumes from the last persisted page.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crawl aborted: %s: %v", e.Reason, e.Err)
	}
	return "crawl aborted: " + e.Reason
}

func (e *FatalError) Unwrap() error { return e.Err }
