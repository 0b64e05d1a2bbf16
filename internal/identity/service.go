package identity

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

// Service creates and looks up identities. Creation is first-write-wins: an
// id is registered at most once and never overwritten.
type Service struct {
	store Store
	clock func() time.Time

	// mu serializes read-modify-write sections. Access is effectively
	// single-threaded on device; the lock guards against library misuse.
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

// NewService builds an identity service over store.
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

// Create mints a fresh identity with an optional display hint.
func (s *Service) Create(ctx context.Context, displayHint string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := domain.NewUserID()
	identity, err := NewIdentity(userID, displayHint, s.clock())
	if err != nil {
		return Identity{}, err
	}

	if _, err := s.store.Find(ctx, userID); err == nil {
		return Identity{}, dErrors.New(dErrors.CodeConflict, "identity already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check identity")
	}

	if err := laws.AssertCleanPayload(identity); err != nil {
		return Identity{}, err
	}
	if err := s.store.Save(ctx, identity); err != nil {
		return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identity")
	}
	return identity, nil
}

// Get returns the identity for userID.
func (s *Service) Get(ctx context.Context, userID domain.UserID) (Identity, error) {
	if userID.IsZero() {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	identity, err := s.store.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Identity{}, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return identity, nil
}

// SetDisplayHint replaces the hint, the only mutable identity field.
func (s *Service) SetDisplayHint(ctx context.Context, userID domain.UserID, hint string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, err := s.Get(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	normalized, err := NormalizeDisplayHint(hint)
	if err != nil {
		return Identity{}, err
	}
	identity.DisplayHint = normalized

	if err := laws.AssertCleanPayload(identity); err != nil {
		return Identity{}, err
	}
	if err := s.store.Save(ctx, identity); err != nil {
		return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identity")
	}
	return identity, nil
}
