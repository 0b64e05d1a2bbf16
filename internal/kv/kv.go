// Package kv defines the key/value collaborator contract the feature stores
// are written against, plus the namespace guard every adapter sits behind.
//
// Keys are flat strings under the fixed circles namespace; values are opaque
// bytes (the feature stores marshal JSON into them). Adapters translate
// backend-native "missing" answers into sentinel.ErrNotFound and nothing
// else: policy lives above this line.
package kv

import "context"

// Store is the persistence contract.
//
// Get returns sentinel.ErrNotFound when the key is absent. Delete of an
// absent key is a no-op success. Keys returns every key with the given
// prefix in unspecified order.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
