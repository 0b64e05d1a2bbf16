package invite

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"circles/internal/platform/keys"
	"circles/pkg/domain"
	dErrors "circles/pkg/domain-errors"
)

const envelopeIssuer = "circles"

// Envelope turns invites into a shareable string and back. The encoding is a
// signed compact JWT carrying the token as jti, so a tampered or foreign
// string is rejected before any store lookup and expiry is pre-checked
// offline. The signing key is derived from the application master key.
type Envelope struct {
	key   []byte
	clock func() time.Time
}

// NewEnvelope derives the envelope signing key from masterKey.
func NewEnvelope(masterKey []byte, clock func() time.Time) (*Envelope, error) {
	key, err := keys.Derive(masterKey, keys.PurposeInviteEnvelope)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	return &Envelope{key: key, clock: clock}, nil
}

// Encode wraps the invite token and its window into a signed shareable.
func (e *Envelope) Encode(invite Invite) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        invite.Token.String(),
		Issuer:    envelopeIssuer,
		ExpiresAt: jwt.NewNumericDate(invite.ExpiresAt),
		IssuedAt:  jwt.NewNumericDate(invite.CreatedAt),
	}
	shareable, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign shareable invite")
	}
	return shareable, nil
}

// Decode verifies a shareable and recovers the embedded token.
//
// Errors: CodeTokenExpired when the window has passed, CodeInvalidInput for
// anything unverifiable.
func (e *Envelope) Decode(shareable string) (domain.InviteToken, error) {
	parsed, err := jwt.ParseWithClaims(shareable, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return e.key, nil
	}, jwt.WithTimeFunc(e.clock), jwt.WithIssuer(envelopeIssuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeTokenExpired, "shareable invite has expired")
		}
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid shareable invite")
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ID == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid shareable invite")
	}
	return domain.ParseInviteToken(claims.ID)
}
