package invite

import (
	"context"
	"encoding/json"
	"fmt"

	"circles/internal/kv"
	"circles/pkg/domain"
	"circles/pkg/laws"
)

// Store persists invites keyed by token. Absent records surface
// sentinel.ErrNotFound.
type Store interface {
	Save(ctx context.Context, invite Invite) error
	Find(ctx context.Context, token domain.InviteToken) (Invite, error)
}

// KVStore keeps invites as JSON in a key-value backend under the shared
// circles namespace.
type KVStore struct {
	kv kv.Store
}

// NewKVStore wraps backend.
func NewKVStore(backend kv.Store) *KVStore {
	return &KVStore{kv: backend}
}

func inviteKey(token domain.InviteToken) string {
	return laws.StorageNamespace + "invite:" + token.String()
}

func (s *KVStore) Save(ctx context.Context, invite Invite) error {
	payload, err := json.Marshal(invite)
	if err != nil {
		return fmt.Errorf("marshal invite: %w", err)
	}
	return s.kv.Set(ctx, inviteKey(invite.Token), payload)
}

func (s *KVStore) Find(ctx context.Context, token domain.InviteToken) (Invite, error) {
	raw, err := s.kv.Get(ctx, inviteKey(token))
	if err != nil {
		return Invite{}, err
	}
	var invite Invite
	if err := json.Unmarshal(raw, &invite); err != nil {
		return Invite{}, fmt.Errorf("decode invite %s: %w", token.Redacted(), err)
	}
	return invite, nil
}
