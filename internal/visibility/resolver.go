// Package visibility projects the connection registry and the signal store
// into the only externally safe view: active connections mapped to
// viewer-safe signals, with expiry applied lazily at the moment of
// projection.
package visibility

import (
	"context"
	"errors"
	"time"

	"circles/internal/connection"
	"circles/internal/platform/metrics"
	"circles/internal/signal"
	"circles/pkg/domain"
	dErrors "circles/pkg/domain-errors"
	"circles/pkg/laws"
	"circles/pkg/platform/sentinel"
)

// Resolver derives signal maps. It holds no state of its own; every resolve
// reads the stores fresh so revocations and expiries take effect immediately.
type Resolver struct {
	registry *connection.Registry
	signals  signal.Store
	clock    func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the expiry reference clock.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewResolver builds a resolver over the registry and signal store.
func NewResolver(registry *connection.Registry, signals signal.Store, opts ...Option) *Resolver {
	r := &Resolver{
		registry: registry,
		signals:  signals,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// ResolveSignalMap returns the viewer's circle as connection id to
// viewer-safe signal. Only active connections produce entries; an absent or
// expired counterpart signal projects as unknown. Every entry passes the
// viewer payload law and the map respects the connection ceiling before
// anything is handed back.
func (r *Resolver) ResolveSignalMap(ctx context.Context, viewerID domain.UserID) (map[domain.ConnectionID]domain.ViewerSignal, error) {
	start := time.Now()
	defer func() {
		metrics.ResolveDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if viewerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "viewer id is required")
	}

	conns, err := r.registry.ListByOwner(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	now := r.clock()
	entries := make(map[domain.ConnectionID]domain.ViewerSignal)
	for _, conn := range conns {
		if conn.Status != domain.ConnectionStatusActive {
			continue
		}

		entry := domain.UnknownViewerSignal()
		sig, err := r.signals.Find(ctx, conn.RemoteUserID)
		switch {
		case err == nil:
			if !sig.Expired(now) {
				entry = domain.NewViewerSignal(sig.Color, sig.TTLExpiresAt)
			}
		case errors.Is(err, sentinel.ErrNotFound):
			// no signal shared yet, stays unknown
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load counterpart signal")
		}

		if err := laws.AssertViewerPayload(entry); err != nil {
			return nil, err
		}
		entries[conn.ID] = entry
	}

	if err := laws.AssertConnectionCeiling(len(entries)); err != nil {
		return nil, err
	}
	return entries, nil
}
