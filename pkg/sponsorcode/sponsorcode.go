// Package sponsorcode signs and verifies sponsor codes with HMAC-SHA256.
// Earlier app generations "verified" codes with a plain digest anyone could
// recompute; signed codes carry a version prefix so those legacy codes are
// detectably unverifiable instead of silently accepted.
package sponsorcode

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"circles/internal/platform/keys"
)

// versionPrefix is carried by every signed code. Anything else is either a
// legacy code or garbage; both fail verification.
const versionPrefix = "v1"

var (
	// ErrUnsigned marks codes without a known version prefix, including every
	// code minted before signing existed.
	ErrUnsigned = errors.New("sponsor code is not signed")

	// ErrMalformed marks codes with the right prefix but the wrong shape.
	ErrMalformed = errors.New("sponsor code is malformed")

	// ErrSignature marks codes whose MAC does not match the payload.
	ErrSignature = errors.New("sponsor code signature mismatch")
)

// Signer issues and verifies signed sponsor codes with a purpose-bound key
// derived from the master secret.
type Signer struct {
	key []byte
}

// New derives the sponsor-code key from the master secret.
func New(masterKey []byte) (*Signer, error) {
	key, err := keys.Derive(masterKey, keys.PurposeSponsorCode)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key}, nil
}

// Sign wraps payload into a signed code of the form
// "v1.<payload-b64>.<mac-b64>". The MAC covers the version and the encoded
// payload, so neither can be swapped independently.
func (s *Signer) Sign(payload string) (string, error) {
	if payload == "" {
		return "", ErrMalformed
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	body := versionPrefix + "." + encoded
	return body + "." + s.mac(body), nil
}

// Verify checks the code's signature in constant time and returns the
// original payload.
func (s *Signer) Verify(code string) (string, error) {
	parts := strings.Split(code, ".")
	if len(parts) != 3 {
		if strings.HasPrefix(code, versionPrefix+".") {
			return "", ErrMalformed
		}
		return "", ErrUnsigned
	}
	if parts[0] != versionPrefix {
		return "", ErrUnsigned
	}

	body := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(s.mac(body))) {
		return "", ErrSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformed
	}
	return string(payload), nil
}

func (s *Signer) mac(body string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
