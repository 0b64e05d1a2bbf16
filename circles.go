// Package circles is the capacity-signal sharing core of the wellness app:
// consent-gated connections between identities, one ephemeral status signal
// per identity, and a viewer projection that exposes exactly four fields.
//
// Core is the only surface a host application calls. Every operation runs
// under the invariant layer in pkg/laws; a *laws.Violation escaping an
// operation is an implementation defect, which the facade logs, counts, and
// records on the security audit trail before propagating it.
package circles

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"circles/internal/audit"
	"circles/internal/connection"
	"circles/internal/identity"
	"circles/internal/invite"
	"circles/internal/kv"
	"circles/internal/kv/memory"
	"circles/internal/platform/metrics"
	"circles/internal/signal"
	"circles/internal/visibility"
	"circles/pkg/domain"
	dErrors "circles/pkg/domain-errors"
	"circles/pkg/laws"
)

const tracerName = "circles"

// Operation labels for the operations counter.
const (
	opCreateIdentity   = "create_identity"
	opGetIdentity      = "get_identity"
	opSetDisplayHint   = "set_display_hint"
	opCreateInvite     = "create_invite"
	opAcceptInvite     = "accept_invite"
	opSetSignal        = "set_signal"
	opResolveSignalMap = "resolve_signal_map"
	opRevokeConnection = "revoke_connection"
	opBlockUser        = "block_user"
	opConnections      = "connections"
)

// Outcome labels for the operations counter.
const (
	outcomeOK        = "ok"
	outcomeUserError = "user_error"
	outcomeViolation = "violation"
	outcomeError     = "error"
)

// handshakeDenials are the refusal codes that belong on the security audit
// trail when an invite is created or accepted.
var handshakeDenials = map[dErrors.Code]bool{
	dErrors.CodeTokenUsed:    true,
	dErrors.CodeTokenExpired: true,
	dErrors.CodeSelfConnect:  true,
	dErrors.CodeBlocked:      true,
	dErrors.CodeCircleFull:   true,
}

var lawObserverOnce sync.Once

// installLawObserver hooks the violation counter into the laws package. The
// hook is process-global, matching the package-level collectors it feeds, so
// it is installed once no matter how many cores a process builds.
func installLawObserver() {
	lawObserverOnce.Do(func() {
		laws.SetObserver(func(v *laws.Violation) {
			metrics.LawViolations.WithLabelValues(string(v.Law)).Inc()
		})
	})
}

// Core wires the identity, signal, connection, invite, and visibility
// services over one namespaced store and fronts them with tracing, metrics,
// and the audit trail.
type Core struct {
	identities *identity.Service
	signals    *signal.Service
	registry   *connection.Registry
	invites    *invite.Service
	resolver   *visibility.Resolver
	recorder   *audit.Recorder
	logger     *slog.Logger
	tracer     trace.Tracer
}

// New builds a Core. With no options it runs on an in-memory store, the
// system clock, and an ephemeral envelope key.
func New(opts ...Option) (*Core, error) {
	installLawObserver()

	s := settings{
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.store == nil {
		s.store = memory.New()
	}
	if len(s.masterKey) == 0 {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate ephemeral master key: %w", err)
		}
		s.masterKey = key
	}

	backend := kv.NewNamespaced(s.store)

	identities := identity.NewService(identity.NewKVStore(backend), identity.WithClock(s.clock))
	signalStore := signal.NewKVStore(backend)
	signals := signal.NewService(signalStore, signal.WithClock(s.clock))
	registry := connection.NewRegistry(connection.NewKVStore(backend), connection.WithClock(s.clock))

	envelope, err := invite.NewEnvelope(s.masterKey, s.clock)
	if err != nil {
		return nil, fmt.Errorf("build invite envelope: %w", err)
	}

	inviteOpts := []invite.Option{invite.WithClock(s.clock)}
	if s.tokens != nil {
		inviteOpts = append(inviteOpts, invite.WithTokenGenerator(s.tokens))
	}
	invites := invite.NewService(invite.NewKVStore(backend), registry, identities, envelope, inviteOpts...)

	return &Core{
		identities: identities,
		signals:    signals,
		registry:   registry,
		invites:    invites,
		resolver:   visibility.NewResolver(registry, signalStore, visibility.WithClock(s.clock)),
		recorder: audit.NewRecorder(s.publisher,
			audit.WithRecorderClock(s.clock),
			audit.WithRecorderLogger(s.logger)),
		logger: s.logger,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// CreateIdentity mints a local identity with an optional display hint and
// returns the stored record.
func (c *Core) CreateIdentity(ctx context.Context, displayHint string) (identity.Identity, error) {
	ctx, span := c.tracer.Start(ctx, "circles.CreateIdentity")
	defer span.End()

	id, err := c.identities.Create(ctx, displayHint)
	if err = c.observe(ctx, span, opCreateIdentity, id.ID, "", err); err != nil {
		return identity.Identity{}, err
	}
	c.recorder.Record(ctx, audit.ActionIdentityCreated, id.ID, "", outcomeOK)
	return id, nil
}

// Identity returns the stored identity for userID.
func (c *Core) Identity(ctx context.Context, userID domain.UserID) (identity.Identity, error) {
	ctx, span := c.tracer.Start(ctx, "circles.Identity",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	id, err := c.identities.Get(ctx, userID)
	if err = c.observe(ctx, span, opGetIdentity, userID, "", err); err != nil {
		return identity.Identity{}, err
	}
	return id, nil
}

// SetDisplayHint replaces the only mutable identity field.
func (c *Core) SetDisplayHint(ctx context.Context, userID domain.UserID, hint string) (identity.Identity, error) {
	ctx, span := c.tracer.Start(ctx, "circles.SetDisplayHint",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()

	id, err := c.identities.SetDisplayHint(ctx, userID, hint)
	if err = c.observe(ctx, span, opSetDisplayHint, userID, "", err); err != nil {
		return identity.Identity{}, err
	}
	c.recorder.Record(ctx, audit.ActionDisplayHintSet, userID, "", outcomeOK)
	return id, nil
}

// CreateInvite issues a one-time invite from inviterID, valid for 24 hours.
// The returned value carries both the raw token and the shareable envelope.
func (c *Core) CreateInvite(ctx context.Context, inviterID domain.UserID, targetHint string) (invite.CreatedInvite, error) {
	ctx, span := c.tracer.Start(ctx, "circles.CreateInvite",
		trace.WithAttributes(attribute.String("user.id", inviterID.String())))
	defer span.End()

	created, err := c.invites.Create(ctx, inviterID, targetHint)
	if err = c.observe(ctx, span, opCreateInvite, inviterID, "", err); err != nil {
		if code := dErrors.CodeOf(err); handshakeDenials[code] {
			c.recorder.RecordReason(ctx, audit.ActionInviteDenied, inviterID, "", string(code), err.Error())
		}
		return invite.CreatedInvite{}, err
	}
	c.recorder.Record(ctx, audit.ActionInviteCreated, inviterID, created.Invite.Token.Redacted(), outcomeOK)
	return created, nil
}

// AcceptInvite consumes the token and connects accepterID with the inviter.
// Both connection records are created active before the token is burned.
func (c *Core) AcceptInvite(ctx context.Context, tok domain.InviteToken, accepterID domain.UserID) (domain.ConnectionSummary, error) {
	ctx, span := c.tracer.Start(ctx, "circles.AcceptInvite",
		trace.WithAttributes(attribute.String("user.id", accepterID.String())))
	defer span.End()

	summary, err := c.invites.Accept(ctx, tok, accepterID)
	if err = c.observe(ctx, span, opAcceptInvite, accepterID, tok.Redacted(), err); err != nil {
		if code := dErrors.CodeOf(err); handshakeDenials[code] {
			c.recorder.RecordReason(ctx, audit.ActionInviteDenied, accepterID, tok.Redacted(), string(code), err.Error())
		}
		return domain.ConnectionSummary{}, err
	}
	c.recorder.Record(ctx, audit.ActionInviteAccepted, accepterID, summary.ConnectionID.String(), outcomeOK)
	return summary, nil
}

// SetSignal overwrites the owner's signal. A zero ttl selects the default
// lifetime; anything else must lie within the allowed bounds.
func (c *Core) SetSignal(ctx context.Context, ownerID domain.UserID, color domain.Color, ttl time.Duration) (signal.Signal, error) {
	ctx, span := c.tracer.Start(ctx, "circles.SetSignal",
		trace.WithAttributes(attribute.String("user.id", ownerID.String())))
	defer span.End()

	sig, err := c.setSignal(ctx, ownerID, color, ttl)
	if err = c.observe(ctx, span, opSetSignal, ownerID, "", err); err != nil {
		return signal.Signal{}, err
	}
	c.recorder.Record(ctx, audit.ActionSignalSet, ownerID, "", outcomeOK)
	return sig, nil
}

func (c *Core) setSignal(ctx context.Context, ownerID domain.UserID, color domain.Color, ttl time.Duration) (signal.Signal, error) {
	bounded, err := domain.NewTTL(ttl)
	if err != nil {
		return signal.Signal{}, err
	}
	return c.signals.Set(ctx, ownerID, color, bounded)
}

// ResolveSignalMap projects the viewer's circle into viewer-safe entries
// keyed by connection id.
func (c *Core) ResolveSignalMap(ctx context.Context, viewerID domain.UserID) (map[domain.ConnectionID]domain.ViewerSignal, error) {
	ctx, span := c.tracer.Start(ctx, "circles.ResolveSignalMap",
		trace.WithAttributes(attribute.String("user.id", viewerID.String())))
	defer span.End()

	entries, err := c.resolver.ResolveSignalMap(ctx, viewerID)
	if err = c.observe(ctx, span, opResolveSignalMap, viewerID, "", err); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("circles.entries", len(entries)))
	c.recorder.Record(ctx, audit.ActionSignalMapResolved, viewerID, "", outcomeOK)
	return entries, nil
}

// RevokeConnection revokes the pair from the owner's side and verifies the
// pair resolves from neither side afterwards. Revoking an already revoked or
// blocked pair is a no-op success.
func (c *Core) RevokeConnection(ctx context.Context, ownerID domain.UserID, connID domain.ConnectionID) (domain.ConnectionSummary, error) {
	ctx, span := c.tracer.Start(ctx, "circles.RevokeConnection",
		trace.WithAttributes(
			attribute.String("user.id", ownerID.String()),
			attribute.String("connection.id", connID.String())))
	defer span.End()

	conn, err := c.registry.Revoke(ctx, ownerID, connID)
	if err == nil {
		err = c.verifyRevocation(ctx, ownerID, conn)
	}
	if err = c.observe(ctx, span, opRevokeConnection, ownerID, connID.String(), err); err != nil {
		return domain.ConnectionSummary{}, err
	}
	c.recorder.Record(ctx, audit.ActionConnectionRevoked, ownerID, connID.String(), outcomeOK)
	return conn.Summary(), nil
}

// verifyRevocation resolves both parties' signal maps after a revocation and
// asserts the pair appears in neither.
func (c *Core) verifyRevocation(ctx context.Context, ownerID domain.UserID, conn connection.Connection) error {
	ownerEntries, err := c.resolver.ResolveSignalMap(ctx, ownerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify revocation")
	}
	peerEntries, err := c.resolver.ResolveSignalMap(ctx, conn.RemoteUserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify revocation")
	}
	return laws.AssertRevocationComplete(conn.ID, ownerEntries, peerEntries)
}

// BlockUser puts remoteUserID on the owner's standing denylist and flips any
// pair between the two to blocked. Blocking is terminal and idempotent.
func (c *Core) BlockUser(ctx context.Context, ownerID, remoteUserID domain.UserID) error {
	ctx, span := c.tracer.Start(ctx, "circles.BlockUser",
		trace.WithAttributes(attribute.String("user.id", ownerID.String())))
	defer span.End()

	err := c.registry.Block(ctx, ownerID, remoteUserID)
	if err = c.observe(ctx, span, opBlockUser, ownerID, remoteUserID.String(), err); err != nil {
		return err
	}
	c.recorder.Record(ctx, audit.ActionUserBlocked, ownerID, remoteUserID.String(), outcomeOK)
	return nil
}

// Connections lists the owner's connection records as owner-facing
// summaries, oldest first.
func (c *Core) Connections(ctx context.Context, ownerID domain.UserID) ([]domain.ConnectionSummary, error) {
	ctx, span := c.tracer.Start(ctx, "circles.Connections",
		trace.WithAttributes(attribute.String("user.id", ownerID.String())))
	defer span.End()

	conns, err := c.registry.ListByOwner(ctx, ownerID)
	if err = c.observe(ctx, span, opConnections, ownerID, "", err); err != nil {
		return nil, err
	}
	summaries := make([]domain.ConnectionSummary, 0, len(conns))
	for _, conn := range conns {
		summaries = append(summaries, conn.Summary())
	}
	return summaries, nil
}

// DecodeShareable recovers the invite token from a shareable envelope,
// rejecting tampered or expired envelopes without touching storage.
func (c *Core) DecodeShareable(shareable string) (domain.InviteToken, error) {
	return c.invites.DecodeShareable(shareable)
}

// observe closes out one facade operation: it classifies err, counts the
// operation, annotates the span, and gives law violations their security
// treatment. The error comes back unchanged so callers can return it.
func (c *Core) observe(ctx context.Context, span trace.Span, op string, actor domain.UserID, subject string, err error) error {
	outcome := outcomeOK
	switch {
	case err == nil:
	case c.handleViolation(ctx, op, actor, subject, err):
		outcome = outcomeViolation
	case dErrors.CodeOf(err) == dErrors.CodeInternal, dErrors.CodeOf(err) == "":
		outcome = outcomeError
	default:
		outcome = outcomeUserError
	}
	metrics.Operations.WithLabelValues(op, outcome).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, outcome)
		return err
	}
	span.SetStatus(otelcodes.Ok, "")
	return nil
}

// handleViolation logs and audits a law violation. It reports whether err
// carried one.
func (c *Core) handleViolation(ctx context.Context, op string, actor domain.UserID, subject string, err error) bool {
	v, ok := laws.AsViolation(err)
	if !ok {
		return false
	}
	c.logger.Error("law violation",
		"op", op,
		"law", v.Law,
		"message", v.Message,
		"context", v.Context)
	c.recorder.RecordReason(ctx, audit.ActionLawViolation, actor, subject, outcomeViolation, string(v.Law))
	return true
}
