package domain

import (
	"strings"

	dErrors "circles/pkg/domain-errors"
)

const maxInviteTokenLength = 256

// InviteToken is the opaque one-time handshake credential. Tokens are
// generated, never derived; parsing only guards against garbage crossing
// the boundary, not against guessing.
type InviteToken string

// ParseInviteToken constructs an InviteToken from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, oversized, or
// contains whitespace or control characters.
func ParseInviteToken(s string) (InviteToken, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token cannot be empty")
	}
	if len(s) > maxInviteTokenLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token too long")
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == 0x7f }) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token contains invalid characters")
	}
	return InviteToken(s), nil
}

// String returns the raw token. Do not log this; use Redacted.
func (t InviteToken) String() string {
	return string(t)
}

// Redacted returns a loggable prefix of the token.
func (t InviteToken) Redacted() string {
	if len(t) <= 8 {
		return "********"
	}
	return string(t[:8]) + "..."
}
