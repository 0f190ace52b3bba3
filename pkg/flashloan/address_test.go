package flashloan

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueshift-protocol/flashloan/pkg/solana"
	"github.com/blueshift-protocol/flashloan/pkg/solana/token"
)

func TestGetProtocolAuthority(t *testing.T) {
	authority, bump, err := GetProtocolAuthority()
	require.NoError(t, err)
	require.Len(t, authority, ed25519.PublicKeySize)

	// The derivation is deterministic.
	repeated, repeatedBump, err := GetProtocolAuthority()
	require.NoError(t, err)
	assert.Equal(t, authority, repeated)
	assert.Equal(t, bump, repeatedBump)

	// Replaying the seed and bump reproduces the authority, which is how
	// borrow authorizes reserve transfers.
	created, err := solana.CreateProgramAddress(ProgramKey, ProtocolSeed, []byte{bump})
	require.NoError(t, err)
	assert.Equal(t, authority, created)
}

func TestGetProtocolTokenAccount(t *testing.T) {
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	authority, _, err := GetProtocolAuthority()
	require.NoError(t, err)

	expected, err := token.GetAssociatedAccount(authority, mint)
	require.NoError(t, err)

	actual, err := GetProtocolTokenAccount(mint)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}
