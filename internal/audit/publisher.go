package audit

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Publisher delivers audit events to a sink. Implementations must tolerate
// concurrent calls.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Fanout delivers each event to every sink concurrently. Every sink sees the
// event even when a sibling fails; the first error is reported after all
// deliveries finish.
type Fanout struct {
	sinks []Publisher
}

// NewFanout builds a fan-out over the given sinks.
func NewFanout(sinks ...Publisher) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Publish(ctx context.Context, event Event) error {
	var g errgroup.Group
	for _, sink := range f.sinks {
		g.Go(func() error {
			return sink.Publish(ctx, event)
		})
	}
	return g.Wait()
}
