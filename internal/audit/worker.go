package audit

import (
	"context"
	"log/slog"
)

// Worker drains an event inbox into a sink, decoupling emission from
// delivery so core operations never block on sink latency. Delivery failures
// are logged and skipped; the inbox is best-effort, not a transactional log.
type Worker struct {
	sink   Publisher
	inbox  <-chan Event
	logger *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger overrides the default logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorker builds a worker reading from inbox and delivering to sink.
func NewWorker(sink Publisher, inbox <-chan Event, opts ...WorkerOption) *Worker {
	w := &Worker{
		sink:   sink,
		inbox:  inbox,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run consumes the inbox until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				w.logger.Error("audit delivery failed",
					"action", event.Action,
					"category", event.Category,
					"error", err)
			}
		}
	}
}
