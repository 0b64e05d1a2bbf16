package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"circles/internal/kv"
	"circles/pkg/domain"
	"circles/pkg/laws"
)

// Store persists signals keyed by owner. Absent records surface
// sentinel.ErrNotFound; Find is the raw lookup (no expiry applied), callers
// project expiry themselves.
type Store interface {
	Save(ctx context.Context, signal Signal) error
	Find(ctx context.Context, ownerID domain.UserID) (Signal, error)
}

// KVStore keeps signals as JSON in a key-value backend under the shared
// circles namespace.
type KVStore struct {
	kv kv.Store
}

// NewKVStore wraps backend.
func NewKVStore(backend kv.Store) *KVStore {
	return &KVStore{kv: backend}
}

func signalKey(ownerID domain.UserID) string {
	return laws.StorageNamespace + "signal:" + ownerID.String()
}

func (s *KVStore) Save(ctx context.Context, signal Signal) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	return s.kv.Set(ctx, signalKey(signal.OwnerID), payload)
}

func (s *KVStore) Find(ctx context.Context, ownerID domain.UserID) (Signal, error) {
	raw, err := s.kv.Get(ctx, signalKey(ownerID))
	if err != nil {
		return Signal{}, err
	}
	var signal Signal
	if err := json.Unmarshal(raw, &signal); err != nil {
		return Signal{}, fmt.Errorf("decode signal for %s: %w", ownerID, err)
	}
	// Stored bytes cross a serialization boundary; re-check enum membership.
	if err := laws.AssertColorKnown(signal.Color); err != nil {
		return Signal{}, err
	}
	return signal, nil
}
