package connection_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circles/internal/connection"
	"circles/internal/kv/memory"
	"circles/pkg/domain"
	dErrors "circles/pkg/domain-errors"
	"circles/pkg/laws"
	"circles/pkg/testutil"
)

func newRegistry(t *testing.T, clock *testutil.Clock) (*connection.Registry, *connection.KVStore) {
	t.Helper()
	store := connection.NewKVStore(memory.New())
	return connection.NewRegistry(store, connection.WithClock(clock.Now)), store
}

func TestRegistryCreatePair(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	registry, _ := newRegistry(t, clock)
	ctx := context.Background()

	inviter := domain.NewUserID()
	accepter := domain.NewUserID()

	pair, err := registry.CreatePair(ctx, inviter, accepter, "garden neighbor", "sam")
	require.NoError(t, err)

	assert.Equal(t, pair.Inviter.ID, pair.Accepter.ID)
	assert.Equal(t, domain.ConnectionStatusActive, pair.Inviter.Status)
	assert.Equal(t, domain.ConnectionStatusActive, pair.Accepter.Status)
	assert.Equal(t, domain.InitiatedByLocal, pair.Inviter.InitiatedBy)
	assert.Equal(t, domain.InitiatedByRemote, pair.Accepter.InitiatedBy)
	assert.Equal(t, "garden neighbor", pair.Inviter.RemoteDisplayHint)
	assert.Equal(t, "sam", pair.Accepter.RemoteDisplayHint)
	assert.Equal(t, accepter, pair.Inviter.RemoteUserID)
	assert.Equal(t, inviter, pair.Accepter.RemoteUserID)

	// Both perspectives are persisted and addressable by the shared id.
	inviterConns, err := registry.ListByOwner(ctx, inviter)
	require.NoError(t, err)
	require.Len(t, inviterConns, 1)
	accepterConns, err := registry.ListByOwner(ctx, accepter)
	require.NoError(t, err)
	require.Len(t, accepterConns, 1)
	assert.Equal(t, inviterConns[0].ID, accepterConns[0].ID)
}

func TestRegistryCreatePairRejectsSelf(t *testing.T) {
	clock := testutil.NewClock(time.Now())
	registry, _ := newRegistry(t, clock)

	me := domain.NewUserID()
	_, err := registry.CreatePair(context.Background(), me, me, "", "")
	require.Error(t, err)

	violation, ok := laws.AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, laws.LawSelfConnection, violation.Law)
}

func TestRegistryCreatePairCeiling(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	registry, _ := newRegistry(t, clock)
	ctx := context.Background()
	inviter := domain.NewUserID()

	for i := 0; i < laws.MaxActiveConnections; i++ {
		clock.Advance(time.Second)
		_, err := registry.CreatePair(ctx, inviter, domain.NewUserID(), fmt.Sprintf("peer %d", i), "")
		require.NoError(t, err)
	}

	count, err := registry.ActiveCount(ctx, inviter)
	require.NoError(t, err)
	require.Equal(t, laws.MaxActiveConnections, count)

	// The 26th attempt is rejected before any write, regardless of which
	// side is full.
	straggler := domain.NewUserID()
	_, err = registry.CreatePair(ctx, inviter, straggler, "", "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCircleFull))

	_, err = registry.CreatePair(ctx, straggler, inviter, "", "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCircleFull))

	// Prior connections untouched, nothing written for the straggler.
	count, err = registry.ActiveCount(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, laws.MaxActiveConnections, count)
	stragglerConns, err := registry.ListByOwner(ctx, straggler)
	require.NoError(t, err)
	assert.Empty(t, stragglerConns)
}

func TestRegistryRevoke(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	registry, store := newRegistry(t, clock)
	ctx := context.Background()

	inviter := domain.NewUserID()
	accepter := domain.NewUserID()
	pair, err := registry.CreatePair(ctx, inviter, accepter, "", "")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	revoked, err := registry.Revoke(ctx, inviter, pair.Inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStatusRevoked, revoked.Status)
	assert.Equal(t, clock.Now(), revoked.StatusChangedAt)

	// Both sides flipped together.
	peer, err := store.Find(ctx, accepter, pair.Accepter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStatusRevoked, peer.Status)

	// Second revoke, from either side, is a no-op success.
	again, err := registry.Revoke(ctx, inviter, pair.Inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStatusRevoked, again.Status)
	_, err = registry.Revoke(ctx, accepter, pair.Accepter.ID)
	require.NoError(t, err)
}

func TestRegistryRevokeByEitherParty(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	registry, store := newRegistry(t, clock)
	ctx := context.Background()

	inviter := domain.NewUserID()
	accepter := domain.NewUserID()
	pair, err := registry.CreatePair(ctx, inviter, accepter, "", "")
	require.NoError(t, err)

	_, err = registry.Revoke(ctx, accepter, pair.Accepter.ID)
	require.NoError(t, err)

	mine, err := store.Find(ctx, inviter, pair.Inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStatusRevoked, mine.Status)
}

func TestRegistryRevokeUnknownConnection(t *testing.T) {
	clock := testutil.NewClock(time.Now())
	registry, _ := newRegistry(t, clock)

	_, err := registry.Revoke(context.Background(), domain.NewUserID(), domain.NewConnectionID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRegistryBlock(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	registry, store := newRegistry(t, clock)
	ctx := context.Background()

	owner := domain.NewUserID()
	remote := domain.NewUserID()
	pair, err := registry.CreatePair(ctx, remote, owner, "", "")
	require.NoError(t, err)

	require.NoError(t, registry.Block(ctx, owner, remote))

	blocked, err := registry.IsBlocked(ctx, owner, remote)
	require.NoError(t, err)
	assert.True(t, blocked)

	// The denylist is directional: the blocked side holds no entry.
	reverse, err := registry.IsBlocked(ctx, remote, owner)
	require.NoError(t, err)
	assert.False(t, reverse)

	// Both records of the pair went terminal.
	mine, err := store.Find(ctx, owner, pair.Accepter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStatusBlocked, mine.Status)
	theirs, err := store.Find(ctx, remote, pair.Inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStatusBlocked, theirs.Status)

	// Idempotent.
	require.NoError(t, registry.Block(ctx, owner, remote))
}

func TestRegistryBlockWithoutConnection(t *testing.T) {
	clock := testutil.NewClock(time.Now())
	registry, _ := newRegistry(t, clock)
	ctx := context.Background()

	owner := domain.NewUserID()
	stranger := domain.NewUserID()
	require.NoError(t, registry.Block(ctx, owner, stranger))

	blocked, err := registry.IsBlocked(ctx, owner, stranger)
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestRegistryBlockRevokedPair(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	registry, store := newRegistry(t, clock)
	ctx := context.Background()

	owner := domain.NewUserID()
	remote := domain.NewUserID()
	pair, err := registry.CreatePair(ctx, owner, remote, "", "")
	require.NoError(t, err)
	_, err = registry.Revoke(ctx, owner, pair.Inviter.ID)
	require.NoError(t, err)

	require.NoError(t, registry.Block(ctx, owner, remote))

	mine, err := store.Find(ctx, owner, pair.Inviter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStatusBlocked, mine.Status)
}

func TestRegistryBlockSelf(t *testing.T) {
	clock := testutil.NewClock(time.Now())
	registry, _ := newRegistry(t, clock)

	me := domain.NewUserID()
	err := registry.Block(context.Background(), me, me)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestRegistryListByOwnerOrdering(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	registry, _ := newRegistry(t, clock)
	ctx := context.Background()
	owner := domain.NewUserID()

	var created []domain.ConnectionID
	for i := 0; i < 3; i++ {
		pair, err := registry.CreatePair(ctx, owner, domain.NewUserID(), "", "")
		require.NoError(t, err)
		created = append(created, pair.Inviter.ID)
		clock.Advance(time.Minute)
	}

	conns, err := registry.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, conns, 3)
	for i, conn := range conns {
		assert.Equal(t, created[i], conn.ID)
	}
}
