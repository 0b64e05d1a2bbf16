package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	master := []byte("0123456789abcdef0123456789abcdef")

	t.Run("deterministic per purpose", func(t *testing.T) {
		a, err := Derive(master, PurposeInviteEnvelope)
		require.NoError(t, err)
		b, err := Derive(master, PurposeInviteEnvelope)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, 32)
	})

	t.Run("purposes never coincide", func(t *testing.T) {
		a, err := Derive(master, PurposeInviteEnvelope)
		require.NoError(t, err)
		b, err := Derive(master, PurposeSponsorCode)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("different masters diverge", func(t *testing.T) {
		a, err := Derive(master, PurposeSponsorCode)
		require.NoError(t, err)
		b, err := Derive([]byte("another master secret entirely!!"), PurposeSponsorCode)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("empty master rejected", func(t *testing.T) {
		_, err := Derive(nil, PurposeInviteEnvelope)
		assert.ErrorIs(t, err, ErrEmptyMaster)
	})
}
