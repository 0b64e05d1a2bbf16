package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"circles/internal/kv"
	"circles/pkg/domain"
	"circles/pkg/laws"
	"circles/pkg/platform/sentinel"
)

// Store persists connection records and the block denylist. Absent records
// surface sentinel.ErrNotFound.
type Store interface {
	Save(ctx context.Context, conn Connection) error
	Find(ctx context.Context, owner domain.UserID, connID domain.ConnectionID) (Connection, error)
	ListByOwner(ctx context.Context, owner domain.UserID) ([]Connection, error)
	SaveBlock(ctx context.Context, owner domain.UserID, entry BlockedUser) error
	IsBlocked(ctx context.Context, owner, remote domain.UserID) (bool, error)
}

// KVStore keeps records as JSON in a key-value backend under the shared
// circles namespace. Connection keys embed the owning side, so each party of
// a pair addresses its own record with the shared connection id.
type KVStore struct {
	kv kv.Store
}

// NewKVStore wraps backend.
func NewKVStore(backend kv.Store) *KVStore {
	return &KVStore{kv: backend}
}

func connPrefix(owner domain.UserID) string {
	return laws.StorageNamespace + "conn:" + owner.String() + ":"
}

func connKey(owner domain.UserID, connID domain.ConnectionID) string {
	return connPrefix(owner) + connID.String()
}

func blockKey(owner, blocked domain.UserID) string {
	return laws.StorageNamespace + "block:" + owner.String() + ":" + blocked.String()
}

func (s *KVStore) Save(ctx context.Context, conn Connection) error {
	payload, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}
	return s.kv.Set(ctx, connKey(conn.LocalUserID, conn.ID), payload)
}

func (s *KVStore) Find(ctx context.Context, owner domain.UserID, connID domain.ConnectionID) (Connection, error) {
	raw, err := s.kv.Get(ctx, connKey(owner, connID))
	if err != nil {
		return Connection{}, err
	}
	return decodeConnection(raw)
}

// ListByOwner returns the owner's records ordered by creation time.
func (s *KVStore) ListByOwner(ctx context.Context, owner domain.UserID) ([]Connection, error) {
	keys, err := s.kv.Keys(ctx, connPrefix(owner))
	if err != nil {
		return nil, err
	}

	conns := make([]Connection, 0, len(keys))
	for _, key := range keys {
		raw, err := s.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, err
		}
		conn, err := decodeConnection(raw)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}

	sort.Slice(conns, func(i, j int) bool {
		if conns[i].CreatedAt.Equal(conns[j].CreatedAt) {
			return conns[i].ID.String() < conns[j].ID.String()
		}
		return conns[i].CreatedAt.Before(conns[j].CreatedAt)
	})
	return conns, nil
}

func (s *KVStore) SaveBlock(ctx context.Context, owner domain.UserID, entry BlockedUser) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal block entry: %w", err)
	}
	return s.kv.Set(ctx, blockKey(owner, entry.BlockedUserID), payload)
}

func (s *KVStore) IsBlocked(ctx context.Context, owner, remote domain.UserID) (bool, error) {
	_, err := s.kv.Get(ctx, blockKey(owner, remote))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// decodeConnection unmarshals a stored record and re-checks enum membership;
// stored bytes cross a serialization boundary the type system cannot vouch
// for.
func decodeConnection(raw []byte) (Connection, error) {
	var conn Connection
	if err := json.Unmarshal(raw, &conn); err != nil {
		return Connection{}, fmt.Errorf("decode connection: %w", err)
	}
	if err := laws.AssertStatusKnown(conn.Status); err != nil {
		return Connection{}, err
	}
	return conn, nil
}
