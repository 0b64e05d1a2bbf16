// Package identity manages the local pseudonymous identities of circle
// participants. An identity is minted on-device; there is no uniqueness
// negotiation with any server.
package identity

import (
	"strings"
	"time"
	"unicode/utf8"

	"circles/pkg/domain"
	dErrors "circles/pkg/domain-errors"
)

// maxDisplayHintLen bounds the optional hint in runes.
const maxDisplayHintLen = 64

// Identity is a circle participant. Everything except DisplayHint is
// immutable after creation.
type Identity struct {
	ID          domain.UserID `json:"id"`
	DisplayHint string        `json:"display_hint,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewIdentity mints an identity for id stamped at now.
func NewIdentity(id domain.UserID, displayHint string, now time.Time) (Identity, error) {
	hint, err := NormalizeDisplayHint(displayHint)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		ID:          id,
		DisplayHint: hint,
		CreatedAt:   now.UTC(),
	}, nil
}

// NormalizeDisplayHint trims surrounding whitespace and bounds the length.
// The empty string is valid: the hint is optional.
func NormalizeDisplayHint(hint string) (string, error) {
	hint = strings.TrimSpace(hint)
	if utf8.RuneCountInString(hint) > maxDisplayHintLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "display hint exceeds 64 characters")
	}
	return hint, nil
}
