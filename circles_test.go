package circles_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circles"
	"circles/internal/audit"
	"circles/internal/identity"
	"circles/internal/kv/memory"
	"circles/pkg/domain"
	dErrors "circles/pkg/domain-errors"
	"circles/pkg/laws"
	"circles/pkg/testutil"
)

type fixture struct {
	core  *circles.Core
	clock *testutil.Clock
	sink  *audit.MemorySink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	sink := audit.NewMemorySink()
	core, err := circles.New(
		circles.WithClock(clock.Now),
		circles.WithAuditPublisher(sink),
		circles.WithMasterKey([]byte("0123456789abcdef0123456789abcdef")),
	)
	require.NoError(t, err)
	return &fixture{core: core, clock: clock, sink: sink}
}

func (f *fixture) identity(t *testing.T, hint string) identity.Identity {
	t.Helper()
	id, err := f.core.CreateIdentity(context.Background(), hint)
	require.NoError(t, err)
	return id
}

func (f *fixture) connect(t *testing.T, inviter, accepter domain.UserID) domain.ConnectionSummary {
	t.Helper()
	ctx := context.Background()
	created, err := f.core.CreateInvite(ctx, inviter, "")
	require.NoError(t, err)
	summary, err := f.core.AcceptInvite(ctx, created.Invite.Token, accepter)
	require.NoError(t, err)
	return summary
}

func TestHandshake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.identity(t, "Ana")
	bruno := f.identity(t, "Bruno")

	created, err := f.core.CreateInvite(ctx, ana.ID, "for Bruno")
	require.NoError(t, err)
	assert.NotEmpty(t, created.Shareable)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), created.Invite.ExpiresAt)

	summary, err := f.core.AcceptInvite(ctx, created.Invite.Token, bruno.ID)
	require.NoError(t, err)
	assert.Equal(t, ana.ID, summary.RemoteUserID)
	assert.Equal(t, domain.ConnectionStatusActive, summary.Status)
	assert.Equal(t, domain.InitiatedByRemote, summary.InitiatedBy)
	assert.Equal(t, "Ana", summary.RemoteDisplayHint)

	anaConns, err := f.core.Connections(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, anaConns, 1)
	assert.Equal(t, summary.ConnectionID, anaConns[0].ConnectionID)
	assert.Equal(t, bruno.ID, anaConns[0].RemoteUserID)
	assert.Equal(t, domain.ConnectionStatusActive, anaConns[0].Status)
	assert.Equal(t, domain.InitiatedByLocal, anaConns[0].InitiatedBy)
	assert.Equal(t, "for Bruno", anaConns[0].RemoteDisplayHint)

	actions := []audit.Action{
		audit.ActionIdentityCreated,
		audit.ActionInviteCreated,
		audit.ActionInviteAccepted,
	}
	for _, action := range actions {
		assert.NotEmpty(t, f.sink.ByAction(action), "missing %s event", action)
	}
}

func TestSignalLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.identity(t, "Ana")
	bruno := f.identity(t, "Bruno")
	pair := f.connect(t, ana.ID, bruno.ID)

	_, err := f.core.SetSignal(ctx, bruno.ID, domain.ColorCyan, 2*time.Hour)
	require.NoError(t, err)

	entries, err := f.core.ResolveSignalMap(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[pair.ConnectionID]
	assert.Equal(t, domain.ColorCyan, entry.Color)
	assert.Equal(t, f.clock.Now().Add(2*time.Hour).Format(time.RFC3339), entry.TTLExpiresAt)

	f.clock.Advance(3 * time.Hour)

	entries, err = f.core.ResolveSignalMap(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.UnknownViewerSignal(), entries[pair.ConnectionID])
}

func TestSignalTTLBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.identity(t, "Ana")

	_, err := f.core.SetSignal(ctx, ana.ID, domain.ColorRed, 5*time.Minute)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = f.core.SetSignal(ctx, ana.ID, domain.ColorRed, 5*time.Hour)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	// Zero selects the default lifetime.
	sig, err := f.core.SetSignal(ctx, ana.ID, domain.ColorRed, 0)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(domain.TTLDefault), sig.TTLExpiresAt)
}

func TestViewerPayloadShape(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.identity(t, "Ana")
	bruno := f.identity(t, "Bruno")
	pair := f.connect(t, ana.ID, bruno.ID)

	_, err := f.core.SetSignal(ctx, bruno.ID, domain.ColorAmber, time.Hour)
	require.NoError(t, err)

	entries, err := f.core.ResolveSignalMap(ctx, ana.ID)
	require.NoError(t, err)

	raw, err := json.Marshal(entries[pair.ConnectionID])
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	// Exactly the four viewer fields; anything extra leaks internals.
	assert.Len(t, fields, 4)
	for _, key := range []string{"color", "ttl_expires_at", "scope", "schema_version"} {
		assert.Contains(t, fields, key)
	}
}

func TestDoubleAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.identity(t, "Ana")
	bruno := f.identity(t, "Bruno")
	carla := f.identity(t, "Carla")

	created, err := f.core.CreateInvite(ctx, ana.ID, "")
	require.NoError(t, err)

	_, err = f.core.AcceptInvite(ctx, created.Invite.Token, bruno.ID)
	require.NoError(t, err)

	_, err = f.core.AcceptInvite(ctx, created.Invite.Token, carla.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTokenUsed))

	denied := f.sink.ByAction(audit.ActionInviteDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, string(dErrors.CodeTokenUsed), denied[0].Outcome)
	assert.Equal(t, audit.CategorySecurity, denied[0].Category)
}

func TestExpiredInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.identity(t, "Ana")
	bruno := f.identity(t, "Bruno")

	created, err := f.core.CreateInvite(ctx, ana.ID, "")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)

	_, err = f.core.AcceptInvite(ctx, created.Invite.Token, bruno.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTokenExpired))
}

func TestSelfAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.identity(t, "Ana")

	created, err := f.core.CreateInvite(ctx, ana.ID, "")
	require.NoError(t, err)

	_, err = f.core.AcceptInvite(ctx, created.Invite.Token, ana.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSelfConnect))
}

func TestBlockStopsInvites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.identity(t, "Ana")
	bruno := f.identity(t, "Bruno")

	require.NoError(t, f.core.BlockUser(ctx, ana.ID, bruno.ID))

	// A directed invite from the blocked id fails at creation.
	_, err := f.core.CreateInvite(ctx, bruno.ID, ana.ID.String())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBlocked))

	// An untargeted invite still fails at acceptance.
	created, err := f.core.CreateInvite(ctx, bruno.ID, "")
	require.NoError(t, err)
	_, err = f.core.AcceptInvite(ctx, created.Invite.Token, ana.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBlocked))

	assert.Len(t, f.sink.ByAction(audit.ActionInviteDenied), 2)
	assert.Len(t, f.sink.ByAction(audit.ActionUserBlocked), 1)
}

func TestBlockFlipsExistingPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.identity(t, "Ana")
	bruno := f.identity(t, "Bruno")
	pair := f.connect(t, ana.ID, bruno.ID)

	_, err := f.core.SetSignal(ctx, bruno.ID, domain.ColorCyan, time.Hour)
	require.NoError(t, err)

	require.NoError(t, f.core.BlockUser(ctx, ana.ID, bruno.ID))

	for _, viewer := range []domain.UserID{ana.ID, bruno.ID} {
		entries, err := f.core.ResolveSignalMap(ctx, viewer)
		require.NoError(t, err)
		assert.NotContains(t, entries, pair.ConnectionID)
	}

	conns, err := f.core.Connections(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, domain.ConnectionStatusBlocked, conns[0].Status)
}

func TestCircleCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.identity(t, "Owner")
	for i := 0; i < 25; i++ {
		peer := f.identity(t, "")
		f.connect(t, owner.ID, peer.ID)
	}

	extra := f.identity(t, "")
	created, err := f.core.CreateInvite(ctx, owner.ID, "")
	require.NoError(t, err)
	_, err = f.core.AcceptInvite(ctx, created.Invite.Token, extra.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCircleFull))

	// The existing circle is untouched.
	conns, err := f.core.Connections(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, conns, 25)
	for _, conn := range conns {
		assert.Equal(t, domain.ConnectionStatusActive, conn.Status)
	}
	entries, err := f.core.ResolveSignalMap(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 25)
}

func TestCorruptRecordSurfacesViolation(t *testing.T) {
	backend := memory.New()
	sink := audit.NewMemorySink()
	clock := testutil.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	core, err := circles.New(
		circles.WithStore(backend),
		circles.WithClock(clock.Now),
		circles.WithAuditPublisher(sink),
		circles.WithMasterKey([]byte("0123456789abcdef0123456789abcdef")),
	)
	require.NoError(t, err)
	ctx := context.Background()

	// A record written behind the registry's back, with a status outside the
	// state machine.
	owner := domain.NewUserID()
	connID := domain.NewConnectionID()
	raw := fmt.Sprintf(`{"id":%q,"local_user_id":%q,"remote_user_id":%q,"status":"limbo","initiated_by":"local"}`,
		connID.String(), owner.String(), domain.NewUserID().String())
	key := "circles:conn:" + owner.String() + ":" + connID.String()
	require.NoError(t, backend.Set(ctx, key, []byte(raw)))

	_, err = core.Connections(ctx, owner)
	require.Error(t, err)
	violation, ok := laws.AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, laws.LawStatusMembership, violation.Law)

	// Violations are never user errors: the facade records a security event
	// carrying the broken law and still propagates the error.
	events := sink.ByAction(audit.ActionLawViolation)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
	assert.Equal(t, string(laws.LawStatusMembership), events[0].Reason)
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.identity(t, "Ana")
	bruno := f.identity(t, "Bruno")
	pair := f.connect(t, ana.ID, bruno.ID)

	_, err := f.core.SetSignal(ctx, ana.ID, domain.ColorRed, time.Hour)
	require.NoError(t, err)
	_, err = f.core.SetSignal(ctx, bruno.ID, domain.ColorCyan, time.Hour)
	require.NoError(t, err)

	revoked, err := f.core.RevokeConnection(ctx, ana.ID, pair.ConnectionID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStatusRevoked, revoked.Status)

	for _, viewer := range []domain.UserID{ana.ID, bruno.ID} {
		entries, err := f.core.ResolveSignalMap(ctx, viewer)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}

	// Idempotent from either side.
	again, err := f.core.RevokeConnection(ctx, bruno.ID, pair.ConnectionID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionStatusRevoked, again.Status)

	assert.NotEmpty(t, f.sink.ByAction(audit.ActionConnectionRevoked))
}

func TestDecodeShareable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.identity(t, "Ana")

	created, err := f.core.CreateInvite(ctx, ana.ID, "")
	require.NoError(t, err)

	tok, err := f.core.DecodeShareable(created.Shareable)
	require.NoError(t, err)
	assert.Equal(t, created.Invite.Token, tok)

	_, err = f.core.DecodeShareable(created.Shareable + "x")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestDefaults(t *testing.T) {
	core, err := circles.New()
	require.NoError(t, err)

	id, err := core.CreateIdentity(context.Background(), "solo")
	require.NoError(t, err)

	got, err := core.Identity(context.Background(), id.ID)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = core.Identity(context.Background(), domain.NewUserID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestSetDisplayHint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.identity(t, "Ana")
	updated, err := f.core.SetDisplayHint(ctx, ana.ID, "A.")
	require.NoError(t, err)
	assert.Equal(t, "A.", updated.DisplayHint)

	got, err := f.core.Identity(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "A.", got.DisplayHint)
}

func TestCircleLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Scenario(t, "two users share capacity and part ways", func(t *testing.T) {
		ana := f.identity(t, "Ana")
		bruno := f.identity(t, "Bruno")
		var pair domain.ConnectionSummary

		testutil.Given(t, "a connected pair", func(t *testing.T) {
			pair = f.connect(t, ana.ID, bruno.ID)
			require.Equal(t, domain.ConnectionStatusActive, pair.Status)
		})

		testutil.When(t, "Bruno shares an amber signal", func(t *testing.T) {
			_, err := f.core.SetSignal(ctx, bruno.ID, domain.ColorAmber, time.Hour)
			require.NoError(t, err)
		})

		testutil.Then(t, "Ana sees amber in her circle", func(t *testing.T) {
			entries, err := f.core.ResolveSignalMap(ctx, ana.ID)
			require.NoError(t, err)
			require.Contains(t, entries, pair.ConnectionID)
			assert.Equal(t, domain.ColorAmber, entries[pair.ConnectionID].Color)
		})

		testutil.When(t, "Bruno revokes the connection", func(t *testing.T) {
			conns, err := f.core.Connections(ctx, bruno.ID)
			require.NoError(t, err)
			require.Len(t, conns, 1)
			_, err = f.core.RevokeConnection(ctx, bruno.ID, conns[0].ConnectionID)
			require.NoError(t, err)
		})

		testutil.Then(t, "neither side resolves the other", func(t *testing.T) {
			for _, viewer := range []domain.UserID{ana.ID, bruno.ID} {
				entries, err := f.core.ResolveSignalMap(ctx, viewer)
				require.NoError(t, err)
				assert.Empty(t, entries)
			}
		})
	})
}
