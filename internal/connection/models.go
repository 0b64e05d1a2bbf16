// Package connection is the registry of pairwise consent records and their
// lifecycle. A connection exists as a pair: each party holds a record from
// its own perspective, both sharing one connection id and always carrying
// matching status.
package connection

import (
	"time"

	"circles/pkg/domain"
	dErrors "circles/pkg/domain-errors"
	"circles/pkg/laws"
)

// Connection is one side of a consented pair.
type Connection struct {
	ID                domain.ConnectionID     `json:"id"`
	LocalUserID       domain.UserID           `json:"local_user_id"`
	RemoteUserID      domain.UserID           `json:"remote_user_id"`
	RemoteDisplayHint string                  `json:"remote_display_hint,omitempty"`
	Status            domain.ConnectionStatus `json:"status"`
	InitiatedBy       domain.InitiatedBy      `json:"initiated_by"`
	CreatedAt         time.Time               `json:"created_at"`
	StatusChangedAt   time.Time               `json:"status_changed_at"`
}

// Summary projects the record into the owner-facing view.
func (c Connection) Summary() domain.ConnectionSummary {
	return domain.ConnectionSummary{
		ConnectionID:      c.ID,
		RemoteUserID:      c.RemoteUserID,
		RemoteDisplayHint: c.RemoteDisplayHint,
		Status:            c.Status,
		InitiatedBy:       c.InitiatedBy,
		CreatedAt:         c.CreatedAt,
		StatusChangedAt:   c.StatusChangedAt,
	}
}

// TransitionTo returns a copy of the record in the next status.
//
// Errors: returns CodeValidation when the state machine forbids the move;
// idempotent no-ops are the registry's business, not handled here.
func (c Connection) TransitionTo(next domain.ConnectionStatus, now time.Time) (Connection, error) {
	if !c.Status.CanTransitionTo(next) {
		return Connection{}, dErrors.New(dErrors.CodeValidation,
			"connection cannot move from "+c.Status.String()+" to "+next.String())
	}
	c.Status = next
	c.StatusChangedAt = now.UTC()
	return c, nil
}

// Pair is the two perspectives created together on invite acceptance.
// Inviter.InitiatedBy is local, Accepter.InitiatedBy is remote.
type Pair struct {
	Inviter  Connection
	Accepter Connection
}

// NewPair mints both records of an accepted invite, already active. The
// inviter's record shows the hint they wrote on the invite; the accepter's
// record shows the inviter's own display hint when one is known.
func NewPair(inviterID, accepterID domain.UserID, inviterSeesHint, accepterSeesHint string, now time.Time) (Pair, error) {
	if inviterID.IsZero() || accepterID.IsZero() {
		return Pair{}, dErrors.New(dErrors.CodeInvalidInput, "both party ids are required")
	}
	if err := laws.AssertNotSelf(inviterID, accepterID); err != nil {
		return Pair{}, err
	}

	connID := domain.NewConnectionID()
	now = now.UTC()
	return Pair{
		Inviter: Connection{
			ID:                connID,
			LocalUserID:       inviterID,
			RemoteUserID:      accepterID,
			RemoteDisplayHint: inviterSeesHint,
			Status:            domain.ConnectionStatusActive,
			InitiatedBy:       domain.InitiatedByLocal,
			CreatedAt:         now,
			StatusChangedAt:   now,
		},
		Accepter: Connection{
			ID:                connID,
			LocalUserID:       accepterID,
			RemoteUserID:      inviterID,
			RemoteDisplayHint: accepterSeesHint,
			Status:            domain.ConnectionStatusActive,
			InitiatedBy:       domain.InitiatedByRemote,
			CreatedAt:         now,
			StatusChangedAt:   now,
		},
	}, nil
}

// BlockedUser is a standing denylist entry kept by the blocking identity.
// Once present, invites from the blocked id toward the owner are rejected at
// creation, not merely at acceptance.
type BlockedUser struct {
	BlockedUserID domain.UserID `json:"blocked_user_id"`
	BlockedAt     time.Time     `json:"blocked_at"`
}
