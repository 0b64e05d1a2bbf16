// Package token generates the opaque one-time credentials used for invites.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const defaultEntropyBytes = 32

// Generator produces opaque tokens. Implementations must make collisions and
// guessing infeasible; tests may substitute deterministic sequences.
type Generator interface {
	Generate() (string, error)
}

// Random reads crypto/rand entropy and encodes it base64url without padding.
type Random struct {
	// EntropyBytes sets the raw entropy per token; zero means 32 bytes.
	EntropyBytes int
}

// Generate returns a fresh opaque token.
func (r Random) Generate() (string, error) {
	n := r.EntropyBytes
	if n <= 0 {
		n = defaultEntropyBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
