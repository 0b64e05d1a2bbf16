package sponsorcode_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circles/internal/platform/keys"
	"circles/pkg/sponsorcode"
)

func newSigner(t *testing.T) *sponsorcode.Signer {
	t.Helper()
	signer, err := sponsorcode.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return signer
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := newSigner(t)

	code, err := signer.Sign("WELLNESS-TEAM-2025")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code, "v1."))

	payload, err := signer.Verify(code)
	require.NoError(t, err)
	assert.Equal(t, "WELLNESS-TEAM-2025", payload)
}

func TestVerifyRejectsLegacyCodes(t *testing.T) {
	signer := newSigner(t)

	_, err := signer.Verify("WELLNESS-TEAM-2025")
	assert.ErrorIs(t, err, sponsorcode.ErrUnsigned)

	_, err = signer.Verify("v2.abc.def")
	assert.ErrorIs(t, err, sponsorcode.ErrUnsigned)
}

func TestVerifyRejectsTampering(t *testing.T) {
	signer := newSigner(t)

	code, err := signer.Sign("TEAM-A")
	require.NoError(t, err)
	parts := strings.Split(code, ".")
	require.Len(t, parts, 3)

	t.Run("payload swapped", func(t *testing.T) {
		other, err := signer.Sign("TEAM-B")
		require.NoError(t, err)
		otherParts := strings.Split(other, ".")

		forged := strings.Join([]string{parts[0], otherParts[1], parts[2]}, ".")
		_, err = signer.Verify(forged)
		assert.ErrorIs(t, err, sponsorcode.ErrSignature)
	})

	t.Run("mac flipped", func(t *testing.T) {
		mac := []byte(parts[2])
		if mac[0] == 'A' {
			mac[0] = 'B'
		} else {
			mac[0] = 'A'
		}
		forged := strings.Join([]string{parts[0], parts[1], string(mac)}, ".")
		_, err := signer.Verify(forged)
		assert.ErrorIs(t, err, sponsorcode.ErrSignature)
	})

	t.Run("missing mac", func(t *testing.T) {
		_, err := signer.Verify(parts[0] + "." + parts[1])
		assert.ErrorIs(t, err, sponsorcode.ErrMalformed)
	})
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	signer := newSigner(t)
	code, err := signer.Sign("TEAM-A")
	require.NoError(t, err)

	foreign, err := sponsorcode.New([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)

	_, err = foreign.Verify(code)
	assert.ErrorIs(t, err, sponsorcode.ErrSignature)
}

func TestSignValidation(t *testing.T) {
	signer := newSigner(t)

	_, err := signer.Sign("")
	assert.ErrorIs(t, err, sponsorcode.ErrMalformed)

	// Payloads containing the separator survive the round trip.
	code, err := signer.Sign("team.2025.q3")
	require.NoError(t, err)
	payload, err := signer.Verify(code)
	require.NoError(t, err)
	assert.Equal(t, "team.2025.q3", payload)
}

func TestNewRequiresMasterKey(t *testing.T) {
	_, err := sponsorcode.New(nil)
	assert.ErrorIs(t, err, keys.ErrEmptyMaster)
}
