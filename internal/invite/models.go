// Package invite issues and redeems the one-time tokens of the consent
// handshake. A token is consumed exactly once; used and expired are both
// terminal and leave it permanently inert.
package invite

import (
	"time"

	"circles/pkg/domain"
)

// Lifetime is the fixed validity window of every invite, measured from
// creation.
const Lifetime = 24 * time.Hour

// Invite is one issued handshake token.
type Invite struct {
	Token      domain.InviteToken `json:"token"`
	InviterID  domain.UserID      `json:"inviter_id"`
	TargetHint string             `json:"target_hint,omitempty"`
	ExpiresAt  time.Time          `json:"expires_at"`
	Used       bool               `json:"used"`
	CreatedAt  time.Time          `json:"created_at"`
}

// NewInvite mints an invite from inviterID stamped at now.
func NewInvite(token domain.InviteToken, inviterID domain.UserID, targetHint string, now time.Time) Invite {
	now = now.UTC()
	return Invite{
		Token:      token,
		InviterID:  inviterID,
		TargetHint: targetHint,
		ExpiresAt:  now.Add(Lifetime),
		CreatedAt:  now,
	}
}

// Expired reports whether the token is past its window at now. The expiry
// instant itself is already inert.
func (i Invite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
