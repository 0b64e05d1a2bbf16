package kv

import (
	"context"

	"circles/pkg/laws"
)

// Namespaced wraps a Store and applies the storage-namespace law to every
// key before it reaches the adapter. A key that escapes the circles
// namespace is a defect, not a request, so the wrapper refuses it instead of
// forwarding it.
type Namespaced struct {
	inner Store
}

// NewNamespaced wraps inner with the namespace guard.
func NewNamespaced(inner Store) *Namespaced {
	return &Namespaced{inner: inner}
}

func (n *Namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	if err := laws.AssertStorageKey(key); err != nil {
		return nil, err
	}
	return n.inner.Get(ctx, key)
}

func (n *Namespaced) Set(ctx context.Context, key string, value []byte) error {
	if err := laws.AssertStorageKey(key); err != nil {
		return err
	}
	return n.inner.Set(ctx, key, value)
}

func (n *Namespaced) Delete(ctx context.Context, key string) error {
	if err := laws.AssertStorageKey(key); err != nil {
		return err
	}
	return n.inner.Delete(ctx, key)
}

func (n *Namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := laws.AssertStorageKey(prefix); err != nil {
		return nil, err
	}
	return n.inner.Keys(ctx, prefix)
}
