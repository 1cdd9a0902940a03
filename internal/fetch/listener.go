package fetch

import "context"

// Listener receives every Outcome as it is produced. Implementations must
// not block the crawl for long; slow sinks should buffer internally.
type Listener interface {
	Notify(ctx context.Context, outcome *Outcome)
}

// Listeners fans one outcome out to all registered sinks, in order.
type Listeners []Listener

// Notify implements Listener.
func (ls Listeners) Notify(ctx context.Context, outcome *Outcome) {
	for _, l := range ls {
		l.Notify(ctx, outcome)
	}
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, outcome *Outcome)

// Notify implements Listener.
func (f ListenerFunc) Notify(ctx context.Context, outcome *Outcome) { f(ctx, outcome) }
