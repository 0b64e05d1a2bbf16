package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"circles/internal/kv"
	"circles/pkg/domain"
	"circles/pkg/laws"
)

// Store persists identities. Absent records surface sentinel.ErrNotFound.
type Store interface {
	Save(ctx context.Context, identity Identity) error
	Find(ctx context.Context, userID domain.UserID) (Identity, error)
}

// KVStore keeps identities as JSON in a key-value backend under the shared
// circles namespace.
type KVStore struct {
	kv kv.Store
}

// NewKVStore wraps backend.
func NewKVStore(backend kv.Store) *KVStore {
	return &KVStore{kv: backend}
}

func identityKey(userID domain.UserID) string {
	return laws.StorageNamespace + "identity:" + userID.String()
}

func (s *KVStore) Save(ctx context.Context, identity Identity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return s.kv.Set(ctx, identityKey(identity.ID), payload)
}

func (s *KVStore) Find(ctx context.Context, userID domain.UserID) (Identity, error) {
	raw, err := s.kv.Get(ctx, identityKey(userID))
	if err != nil {
		return Identity{}, err
	}
	var identity Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return Identity{}, fmt.Errorf("decode identity %s: %w", userID, err)
	}
	return identity, nil
}
