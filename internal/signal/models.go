// Package signal holds the current capacity status of each identity. One
// signal per owner, strictly overwritten on update; expiry is lazy, computed
// against a clock at projection time, never swept in the background.
package signal

import (
	"time"

	"circles/pkg/domain"
	dErrors "circles/pkg/domain-errors"
)

// Signal is one identity's current status. CreatedAt survives overwrites and
// marks when the owner first shared anything; UpdatedAt tracks the latest
// overwrite.
type Signal struct {
	OwnerID      domain.UserID `json:"owner_id"`
	Color        domain.Color  `json:"color"`
	TTLExpiresAt time.Time     `json:"ttl_expires_at"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewSignal builds a signal for ownerID valid until now + ttl.
func NewSignal(ownerID domain.UserID, color domain.Color, ttl domain.TTL, now time.Time) (Signal, error) {
	if ownerID.IsZero() {
		return Signal{}, dErrors.New(dErrors.CodeInvalidInput, "owner id is required")
	}
	if !color.IsValid() {
		return Signal{}, dErrors.New(dErrors.CodeInvalidInput, "unknown signal color")
	}
	now = now.UTC()
	return Signal{
		OwnerID:      ownerID,
		Color:        color,
		TTLExpiresAt: ttl.ExpiryFrom(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Expired reports whether the signal is past its TTL at now. The expiry
// instant itself still reads as live; strictly after it the signal projects
// as unknown.
func (s Signal) Expired(now time.Time) bool {
	return now.After(s.TTLExpiresAt)
}
