package connection

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

// Registry drives the connection lifecycle. Every mutation runs its law
// checks on entry and again on exit; recoverable conditions come back as
// coded errors the caller can branch on.
type Registry struct {
	store Store
	clock func() time.Time

	mu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRegistry builds a registry over store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// CreatePair persists both perspectives of an accepted invite, already
// active. The connection ceiling is pre-checked for both parties so a full
// circle rejects before anything is written.
func (r *Registry) CreatePair(ctx context.Context, inviterID, accepterID domain.UserID, inviterSeesHint, accepterSeesHint string) (Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pair, err := NewPair(inviterID, accepterID, inviterSeesHint, accepterSeesHint, r.clock())
	if err != nil {
		return Pair{}, err
	}

	if err := r.ensureRoom(ctx, inviterID, "inviter"); err != nil {
		return Pair{}, err
	}
	if err := r.ensureRoom(ctx, accepterID, "accepter"); err != nil {
		return Pair{}, err
	}

	if err := laws.AssertCleanPayload(pair.Inviter); err != nil {
		return Pair{}, err
	}
	if err := laws.AssertCleanPayload(pair.Accepter); err != nil {
		return Pair{}, err
	}

	if err := r.store.Save(ctx, pair.Accepter); err != nil {
		return Pair{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save accepter record")
	}
	if err := r.store.Save(ctx, pair.Inviter); err != nil {
		return Pair{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save inviter record")
	}

	if err := laws.AssertPairSymmetry(pair.Inviter.Status, pair.Accepter.Status); err != nil {
		return Pair{}, err
	}
	for _, party := range []domain.UserID{inviterID, accepterID} {
		count, err := r.activeCount(ctx, party)
		if err != nil {
			return Pair{}, err
		}
		if err := laws.AssertConnectionCeiling(count); err != nil {
			return Pair{}, err
		}
	}
	return pair, nil
}

// Revoke moves an active pair to revoked and returns the owner's updated
// record. Revoking an already revoked or blocked pair is a no-op success.
func (r *Registry) Revoke(ctx context.Context, ownerID domain.UserID, connID domain.ConnectionID) (Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, err := r.store.Find(ctx, ownerID, connID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Connection{}, dErrors.New(dErrors.CodeNotFound, "connection not found")
		}
		return Connection{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load connection")
	}
	if owner.Status == domain.ConnectionStatusRevoked || owner.Status == domain.ConnectionStatusBlocked {
		return owner, nil
	}

	peer, err := r.store.Find(ctx, owner.RemoteUserID, connID)
	if err != nil {
		return Connection{}, dErrors.Wrap(err, dErrors.CodeInternal, "counterpart record missing")
	}
	if err := laws.AssertPairSymmetry(owner.Status, peer.Status); err != nil {
		return Connection{}, err
	}

	now := r.clock()
	updatedPeer, err := peer.TransitionTo(domain.ConnectionStatusRevoked, now)
	if err != nil {
		return Connection{}, err
	}
	updatedOwner, err := owner.TransitionTo(domain.ConnectionStatusRevoked, now)
	if err != nil {
		return Connection{}, err
	}

	// Counterpart first: by the time the revocation is acknowledged, neither
	// side can still resolve the pair.
	if err := r.store.Save(ctx, updatedPeer); err != nil {
		return Connection{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save counterpart record")
	}
	if err := r.store.Save(ctx, updatedOwner); err != nil {
		return Connection{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save connection")
	}

	if err := laws.AssertPairSymmetry(updatedOwner.Status, updatedPeer.Status); err != nil {
		return Connection{}, err
	}
	return updatedOwner, nil
}

// Block adds remote to the owner's standing denylist and makes every pair
// between the two terminal. The denylist entry lands before any status flip
// so invite creation from remote fails from that instant. Idempotent.
func (r *Registry) Block(ctx context.Context, ownerID, remoteUserID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ownerID.IsZero() || remoteUserID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "both user ids are required")
	}
	if ownerID == remoteUserID {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot block yourself")
	}

	now := r.clock()
	alreadyBlocked, err := r.store.IsBlocked(ctx, ownerID, remoteUserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check denylist")
	}
	if !alreadyBlocked {
		entry := BlockedUser{BlockedUserID: remoteUserID, BlockedAt: now.UTC()}
		if err := laws.AssertCleanPayload(entry); err != nil {
			return err
		}
		if err := r.store.SaveBlock(ctx, ownerID, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save denylist entry")
		}
	}

	conns, err := r.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list connections")
	}
	for _, owner := range conns {
		if owner.RemoteUserID != remoteUserID || owner.Status == domain.ConnectionStatusBlocked {
			continue
		}

		peer, err := r.store.Find(ctx, owner.RemoteUserID, owner.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "counterpart record missing")
		}

		updatedPeer := peer
		if peer.Status != domain.ConnectionStatusBlocked {
			updatedPeer, err = peer.TransitionTo(domain.ConnectionStatusBlocked, now)
			if err != nil {
				return err
			}
			if err := r.store.Save(ctx, updatedPeer); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save counterpart record")
			}
		}

		updatedOwner, err := owner.TransitionTo(domain.ConnectionStatusBlocked, now)
		if err != nil {
			return err
		}
		if err := r.store.Save(ctx, updatedOwner); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save connection")
		}

		if err := laws.AssertPairSymmetry(updatedOwner.Status, updatedPeer.Status); err != nil {
			return err
		}
	}
	return nil
}

// ListByOwner returns the owner's records, oldest first.
func (r *Registry) ListByOwner(ctx context.Context, ownerID domain.UserID) ([]Connection, error) {
	if ownerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	conns, err := r.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list connections")
	}
	return conns, nil
}

// ActiveCount returns how many of the owner's connections are active.
func (r *Registry) ActiveCount(ctx context.Context, ownerID domain.UserID) (int, error) {
	count, err := r.activeCount(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// IsBlocked reports whether owner has remote on their denylist.
func (r *Registry) IsBlocked(ctx context.Context, owner, remote domain.UserID) (bool, error) {
	blocked, err := r.store.IsBlocked(ctx, owner, remote)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check denylist")
	}
	return blocked, nil
}

func (r *Registry) ensureRoom(ctx context.Context, party domain.UserID, role string) error {
	count, err := r.activeCount(ctx, party)
	if err != nil {
		return err
	}
	if count+1 > laws.MaxActiveConnections {
		return dErrors.New(dErrors.CodeCircleFull, role+"'s circle is full")
	}
	return nil
}

func (r *Registry) activeCount(ctx context.Context, ownerID domain.UserID) (int, error) {
	conns, err := r.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list connections")
	}
	count := 0
	for _, conn := range conns {
		if conn.Status == domain.ConnectionStatusActive {
			count++
		}
	}
	return count, nil
}
