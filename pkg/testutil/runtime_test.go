package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueshift-protocol/flashloan/pkg/flashloan"
	"github.com/blueshift-protocol/flashloan/pkg/solana"
	"github.com/blueshift-protocol/flashloan/pkg/solana/system"
)

func TestExecutor_TransferSigned(t *testing.T) {
	executor := NewExecutor()
	mint := generateKey(t)

	authority, bump, err := flashloan.GetProtocolAuthority()
	require.NoError(t, err)

	source, err := executor.Ledger.CreateAssociatedAccount(authority, mint, 100)
	require.NoError(t, err)
	destination, err := executor.Ledger.CreateAssociatedAccount(generateKey(t), mint, 0)
	require.NoError(t, err)

	// Seeds that do not derive the authority grant no signer status.
	err = executor.TransferSigned(source, destination, authority, 10, []byte("other"), []byte{bump})
	assert.Error(t, err)
	assert.EqualValues(t, 100, executor.Ledger.Balance(source))

	require.NoError(t, executor.TransferSigned(
		source, destination, authority, 10,
		flashloan.ProtocolSeed, []byte{bump},
	))
	assert.EqualValues(t, 90, executor.Ledger.Balance(source))
	assert.EqualValues(t, 10, executor.Ledger.Balance(destination))
}

func TestExecutor_UnknownProgram(t *testing.T) {
	executor := NewExecutor()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	program := generateKey(t)

	txn := solana.NewTransaction(
		pub,
		solana.NewInstruction(program, []byte{1}, solana.NewAccountMeta(pub, true)),
	)
	require.NoError(t, txn.Sign(priv))

	err = executor.Execute(txn)
	ixErr, ok := err.(solana.InstructionError)
	require.True(t, ok, "unexpected error: %v", err)
	assert.Equal(t, 0, ixErr.Index)
}

func TestExecutor_SysvarData(t *testing.T) {
	executor := NewExecutor()

	_, err := executor.SysvarData(system.RentSysVar)
	assert.Error(t, err)

	_, err = executor.SysvarData(system.InstructionsSysVar)
	assert.NoError(t, err)
}
