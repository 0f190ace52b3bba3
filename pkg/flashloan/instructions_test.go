package flashloan

import (
	"crypto/ed25519"
	"crypto/sha256"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueshift-protocol/flashloan/pkg/solana/system"
	"github.com/blueshift-protocol/flashloan/pkg/solana/token"
)

func TestInstructionDiscriminators(t *testing.T) {
	for _, tc := range []struct {
		name     string
		expected []byte
	}{
		{"borrow", BorrowInstructionDiscriminator},
		{"repay", RepayInstructionDiscriminator},
	} {
		h := sha256.Sum256([]byte("global:" + tc.name))
		assert.Equal(t, tc.expected, h[:DiscriminatorSize])
	}
}

func TestBorrowInstruction(t *testing.T) {
	accounts := testLoanAccounts(t)

	for _, amount := range []uint64{0, 1, 10000, math.MaxUint64} {
		instruction := NewBorrowInstruction(accounts, &BorrowInstructionArgs{BorrowAmount: amount})

		assert.Equal(t, ProgramKey, instruction.Program)
		assert.Len(t, instruction.Data, DiscriminatorSize+BorrowInstructionArgsSize)

		args, err := BorrowInstructionArgsFromData(instruction.Data)
		require.NoError(t, err)
		assert.Equal(t, amount, args.BorrowAmount)
	}
}

func TestBorrowInstruction_Accounts(t *testing.T) {
	accounts := testLoanAccounts(t)
	instruction := NewBorrowInstruction(accounts, &BorrowInstructionArgs{BorrowAmount: 1})

	require.Len(t, instruction.Accounts, loanAccountCount)

	assert.Equal(t, accounts.Borrower, instruction.Accounts[loanAccountBorrower].PublicKey)
	assert.True(t, instruction.Accounts[loanAccountBorrower].IsSigner)
	assert.True(t, instruction.Accounts[loanAccountBorrower].IsWritable)

	assert.Equal(t, accounts.Protocol, instruction.Accounts[loanAccountProtocol].PublicKey)
	assert.False(t, instruction.Accounts[loanAccountProtocol].IsWritable)

	assert.Equal(t, accounts.Mint, instruction.Accounts[loanAccountMint].PublicKey)

	assert.Equal(t, accounts.BorrowerAta, instruction.Accounts[loanAccountBorrowerAta].PublicKey)
	assert.True(t, instruction.Accounts[loanAccountBorrowerAta].IsWritable)

	assert.Equal(t, accounts.ProtocolAta, instruction.Accounts[loanAccountProtocolAta].PublicKey)
	assert.True(t, instruction.Accounts[loanAccountProtocolAta].IsWritable)

	assert.Equal(t, system.InstructionsSysVar, instruction.Accounts[loanAccountInstructions].PublicKey)
	assert.Equal(t, token.ProgramKey, instruction.Accounts[loanAccountTokenProgram].PublicKey)
	assert.Equal(t, token.AssociatedTokenAccountProgramKey, instruction.Accounts[loanAccountAtaProgram].PublicKey)
	assert.Equal(t, system.ProgramKey, instruction.Accounts[loanAccountSystemProgram].PublicKey)
}

func TestBorrowInstructionArgsFromData_Invalid(t *testing.T) {
	_, err := BorrowInstructionArgsFromData(nil)
	assert.Equal(t, ErrInvalidIx, err)

	_, err = BorrowInstructionArgsFromData(BorrowInstructionDiscriminator)
	assert.Equal(t, ErrInvalidIx, err)

	accounts := testLoanAccounts(t)
	repay := NewRepayInstruction(accounts)
	_, err = BorrowInstructionArgsFromData(repay.Data)
	assert.Equal(t, ErrInvalidIx, err)

	borrow := NewBorrowInstruction(accounts, &BorrowInstructionArgs{BorrowAmount: 1})
	_, err = BorrowInstructionArgsFromData(append(borrow.Data, 0))
	assert.Equal(t, ErrInvalidIx, err)
}

func TestRepayInstruction(t *testing.T) {
	accounts := testLoanAccounts(t)
	instruction := NewRepayInstruction(accounts)

	assert.Equal(t, ProgramKey, instruction.Program)
	assert.Equal(t, RepayInstructionDiscriminator, instruction.Data)
	assert.True(t, IsRepayInstruction(instruction.Data))

	// Repay shares the borrow account ordering.
	borrow := NewBorrowInstruction(accounts, &BorrowInstructionArgs{BorrowAmount: 1})
	require.Len(t, instruction.Accounts, len(borrow.Accounts))
	for i := range instruction.Accounts {
		assert.Equal(t, borrow.Accounts[i], instruction.Accounts[i])
	}

	assert.False(t, IsRepayInstruction(nil))
	assert.False(t, IsRepayInstruction(borrow.Data))
}

func testLoanAccounts(t *testing.T) *LoanInstructionAccounts {
	borrower, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	accounts, err := GetLoanAccounts(borrower, mint)
	require.NoError(t, err)
	return accounts
}
