// Package kvtest runs the kv.Store contract against any adapter. Backends
// differ in transport, not in behavior; this suite is what "behavior" means.
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circles/internal/kv"
	"circles/pkg/platform/sentinel"
)

// RunStoreContract exercises not-found translation, overwrite-on-set,
// idempotent delete, and prefix listing. The factory must hand back a store
// with no keys under the circles namespace.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key returns sentinel", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(ctx, "circles:absent")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("set then get round-trips", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Set(ctx, "circles:identity", []byte(`{"id":"a"}`)))
		got, err := store.Get(ctx, "circles:identity")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"id":"a"}`), got)
	})

	t.Run("set overwrites prior value", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Set(ctx, "circles:signal:a", []byte("one")))
		require.NoError(t, store.Set(ctx, "circles:signal:a", []byte("two")))

		got, err := store.Get(ctx, "circles:signal:a")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got)
	})

	t.Run("delete removes and is idempotent", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Set(ctx, "circles:invite:tok", []byte("x")))
		require.NoError(t, store.Delete(ctx, "circles:invite:tok"))

		_, err := store.Get(ctx, "circles:invite:tok")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		// Second delete of the same key still succeeds.
		assert.NoError(t, store.Delete(ctx, "circles:invite:tok"))
	})

	t.Run("keys filters by prefix", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Set(ctx, "circles:conn:u1:c1", []byte("1")))
		require.NoError(t, store.Set(ctx, "circles:conn:u1:c2", []byte("2")))
		require.NoError(t, store.Set(ctx, "circles:conn:u2:c3", []byte("3")))
		require.NoError(t, store.Set(ctx, "circles:signal:u1", []byte("4")))

		keys, err := store.Keys(ctx, "circles:conn:u1:")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"circles:conn:u1:c1", "circles:conn:u1:c2"}, keys)

		keys, err = store.Keys(ctx, "circles:conn:")
		require.NoError(t, err)
		assert.Len(t, keys, 3)

		keys, err = store.Keys(ctx, "circles:none:")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("values do not alias the caller's slice", func(t *testing.T) {
		store := newStore(t)

		value := []byte("immutable")
		require.NoError(t, store.Set(ctx, "circles:alias", value))
		value[0] = 'X'

		got, err := store.Get(ctx, "circles:alias")
		require.NoError(t, err)
		assert.Equal(t, []byte("immutable"), got)
	})
}
