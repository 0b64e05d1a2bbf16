package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"circles/pkg/domain"
	dErrors "circles/pkg/domain-errors"
	"circles/pkg/laws"
	"circles/pkg/platform/sentinel"
)

// Service writes and reads raw signals. Projection to the viewer-safe shape
// happens in the visibility resolver, never here.
type Service struct {
	store Store
	clock func() time.Time

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService builds a signal service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Set overwrites ownerID's signal with color, valid for ttl from now. The
// TTL bounds are checked before any write; a prior signal is strictly
// replaced, no history is kept. CreatedAt survives from the replaced record.
func (s *Service) Set(ctx context.Context, ownerID domain.UserID, color domain.Color, ttl domain.TTL) (Signal, error) {
	if err := laws.AssertTTLBounds(ttl.Duration()); err != nil {
		return Signal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	signal, err := NewSignal(ownerID, color, ttl, s.clock())
	if err != nil {
		return Signal{}, err
	}

	prior, err := s.store.Find(ctx, ownerID)
	switch {
	case err == nil:
		signal.CreatedAt = prior.CreatedAt
	case errors.Is(err, sentinel.ErrNotFound):
		// first signal for this owner
	default:
		return Signal{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load prior signal")
	}

	if err := laws.AssertCleanPayload(signal); err != nil {
		return Signal{}, err
	}
	if err := s.store.Save(ctx, signal); err != nil {
		return Signal{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save signal")
	}
	return signal, nil
}

// GetRaw returns ownerID's stored signal without expiry projection. Internal
// use only: viewers must go through the visibility resolver.
func (s *Service) GetRaw(ctx context.Context, ownerID domain.UserID) (Signal, error) {
	if ownerID.IsZero() {
		return Signal{}, dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	signal, err := s.store.Find(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Signal{}, dErrors.New(dErrors.CodeNotFound, "no signal for owner")
		}
		return Signal{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signal")
	}
	return signal, nil
}
