// Package keys derives purpose-bound keys from the master secret. Each
// purpose yields an independent key, so leaking one surface never exposes
// another.
package keys

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key purposes. The purpose string is baked into the derivation, so keys for
// different purposes never coincide even under the same master secret.
const (
	PurposeInviteEnvelope = "circles/invite-envelope"
	PurposeSponsorCode    = "circles/sponsor-code"
)

const keySize = 32

// ErrEmptyMaster is returned when no master secret is configured.
var ErrEmptyMaster = errors.New("master key is empty")

// Derive expands the master secret into a 32-byte key bound to purpose.
func Derive(master []byte, purpose string) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrEmptyMaster
	}
	reader := hkdf.New(sha256.New, master, nil, []byte(purpose))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", purpose, err)
	}
	return key, nil
}
