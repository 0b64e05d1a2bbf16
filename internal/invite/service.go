package invite

import (
	"context"
	"errors"
	"sync"
	"time"

	"circles/internal/connection"
	"circles/internal/identity"
	"circles/internal/platform/token"
	"circles/pkg/domain"
	dErrors "circles/pkg/domain-errors"
	"circles/pkg/laws"
	"circles/pkg/platform/sentinel"
)

// Service issues and redeems invites. Redemption runs in one locked section:
// there is no window where a token is consumed without its connections
// existing, nor one where connections exist while the token stays redeemable.
type Service struct {
	invites    Store
	registry   *connection.Registry
	identities *identity.Service
	envelope   *Envelope
	tokens     token.Generator
	clock      func() time.Time

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

// WithTokenGenerator substitutes the token source; tests use deterministic
// sequences.
func WithTokenGenerator(g token.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.tokens = g
		}
	}
}

// NewService builds an invite service.
func NewService(invites Store, registry *connection.Registry, identities *identity.Service, envelope *Envelope, opts ...Option) *Service {
	s := &Service{
		invites:    invites,
		registry:   registry,
		identities: identities,
		envelope:   envelope,
		tokens:     token.Random{},
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreatedInvite is the result of issuing an invite: the stored record plus
// the signed shareable string handed out of band to the target.
type CreatedInvite struct {
	Invite    Invite
	Shareable string
}

// Create issues a one-time invite from inviterID with a fixed 24h window.
// When the target hint carries a parseable user id, the standing denylist of
// that target is consulted immediately: a blocked inviter fails at creation,
// not at acceptance.
func (s *Service) Create(ctx context.Context, inviterID domain.UserID, targetHint string) (CreatedInvite, error) {
	if inviterID.IsZero() {
		return CreatedInvite{}, dErrors.New(dErrors.CodeInvalidInput, "inviter id is required")
	}
	if _, err := s.identities.Get(ctx, inviterID); err != nil {
		return CreatedInvite{}, err
	}
	hint, err := identity.NormalizeDisplayHint(targetHint)
	if err != nil {
		return CreatedInvite{}, err
	}

	if targetID, perr := domain.ParseUserID(hint); perr == nil {
		blocked, err := s.registry.IsBlocked(ctx, targetID, inviterID)
		if err != nil {
			return CreatedInvite{}, err
		}
		if blocked {
			return CreatedInvite{}, dErrors.New(dErrors.CodeBlocked, "target has blocked this inviter")
		}
	}

	raw, err := s.tokens.Generate()
	if err != nil {
		return CreatedInvite{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate token")
	}
	tok, err := domain.ParseInviteToken(raw)
	if err != nil {
		return CreatedInvite{}, dErrors.Wrap(err, dErrors.CodeInternal, "generator produced an unusable token")
	}

	// A colliding token means the generator is predictable or reused, which
	// is a defect rather than a condition to retry around.
	if _, err := s.invites.Find(ctx, tok); err == nil {
		return CreatedInvite{}, dErrors.New(dErrors.CodeInternal, "token collision")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return CreatedInvite{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check token")
	}

	inv := NewInvite(tok, inviterID, hint, s.clock())
	if err := laws.AssertCleanPayload(inv); err != nil {
		return CreatedInvite{}, err
	}
	shareable, err := s.envelope.Encode(inv)
	if err != nil {
		return CreatedInvite{}, err
	}
	if err := s.invites.Save(ctx, inv); err != nil {
		return CreatedInvite{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save invite")
	}
	return CreatedInvite{Invite: inv, Shareable: shareable}, nil
}

// Accept redeems tok for accepterID and returns the accepter's view of the
// new connection. Check order is fixed: used, expired, self, blocked (both
// directions), then room in both circles.
func (s *Service) Accept(ctx context.Context, tok domain.InviteToken, accepterID domain.UserID) (domain.ConnectionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tok == "" {
		return domain.ConnectionSummary{}, dErrors.New(dErrors.CodeInvalidInput, "token is required")
	}
	if accepterID.IsZero() {
		return domain.ConnectionSummary{}, dErrors.New(dErrors.CodeInvalidInput, "accepter id is required")
	}

	inv, err := s.invites.Find(ctx, tok)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.ConnectionSummary{}, dErrors.New(dErrors.CodeNotFound, "invite not found")
		}
		return domain.ConnectionSummary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invite")
	}

	now := s.clock()
	if inv.Used {
		return domain.ConnectionSummary{}, dErrors.New(dErrors.CodeTokenUsed, "invite already used")
	}
	if inv.Expired(now) {
		return domain.ConnectionSummary{}, dErrors.New(dErrors.CodeTokenExpired, "invite has expired")
	}
	if accepterID == inv.InviterID {
		return domain.ConnectionSummary{}, dErrors.New(dErrors.CodeSelfConnect, "cannot accept your own invite")
	}

	if _, err := s.identities.Get(ctx, accepterID); err != nil {
		return domain.ConnectionSummary{}, err
	}
	inviterIdentity, err := s.identities.Get(ctx, inv.InviterID)
	if err != nil {
		return domain.ConnectionSummary{}, err
	}

	if blocked, err := s.registry.IsBlocked(ctx, inv.InviterID, accepterID); err != nil {
		return domain.ConnectionSummary{}, err
	} else if blocked {
		return domain.ConnectionSummary{}, dErrors.New(dErrors.CodeBlocked, "inviter has blocked the accepter")
	}
	if blocked, err := s.registry.IsBlocked(ctx, accepterID, inv.InviterID); err != nil {
		return domain.ConnectionSummary{}, err
	} else if blocked {
		return domain.ConnectionSummary{}, dErrors.New(dErrors.CodeBlocked, "accepter has blocked the inviter")
	}

	if err := laws.AssertInviteConsumable(inv.Used, inv.ExpiresAt, now); err != nil {
		return domain.ConnectionSummary{}, err
	}

	pair, err := s.registry.CreatePair(ctx, inv.InviterID, accepterID, inv.TargetHint, inviterIdentity.DisplayHint)
	if err != nil {
		return domain.ConnectionSummary{}, err
	}

	inv.Used = true
	if err := s.invites.Save(ctx, inv); err != nil {
		return domain.ConnectionSummary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark invite used")
	}

	summary := pair.Accepter.Summary()
	if err := laws.AssertCleanPayload(summary); err != nil {
		return domain.ConnectionSummary{}, err
	}
	return summary, nil
}

// DecodeShareable verifies a shareable string and recovers its token.
func (s *Service) DecodeShareable(shareable string) (domain.InviteToken, error) {
	return s.envelope.Decode(shareable)
}
