package flashloan

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/blueshift-protocol/flashloan/pkg/solana"
	"github.com/blueshift-protocol/flashloan/pkg/solana/system"
	"github.com/blueshift-protocol/flashloan/pkg/solana/token"
)

const BorrowInstructionArgsSize = 8 // borrow_amount

type BorrowInstructionArgs struct {
	BorrowAmount uint64
}

// LoanInstructionAccounts is the account set shared by the borrow and repay
// instructions.
type LoanInstructionAccounts struct {
	Borrower    ed25519.PublicKey
	Protocol    ed25519.PublicKey
	Mint        ed25519.PublicKey
	BorrowerAta ed25519.PublicKey
	ProtocolAta ed25519.PublicKey
}

// Loan account ordering. The borrow-side introspection checks the repay
// instruction's account references at these positions, so the ordering is
// part of the protocol.
const (
	loanAccountBorrower = iota
	loanAccountProtocol
	loanAccountMint
	loanAccountBorrowerAta
	loanAccountProtocolAta
	loanAccountInstructions
	loanAccountTokenProgram
	loanAccountAtaProgram
	loanAccountSystemProgram

	loanAccountCount
)

func NewBorrowInstruction(
	accounts *LoanInstructionAccounts,
	args *BorrowInstructionArgs,
) solana.Instruction {
	data := make([]byte, DiscriminatorSize+BorrowInstructionArgsSize)
	copy(data, BorrowInstructionDiscriminator)
	binary.LittleEndian.PutUint64(data[DiscriminatorSize:], args.BorrowAmount)

	return solana.NewInstruction(
		ProgramKey,
		data,
		loanAccountMetas(accounts)...,
	)
}

func loanAccountMetas(accounts *LoanInstructionAccounts) []solana.AccountMeta {
	return []solana.AccountMeta{
		solana.NewAccountMeta(accounts.Borrower, true),
		solana.NewReadonlyAccountMeta(accounts.Protocol, false),
		solana.NewReadonlyAccountMeta(accounts.Mint, false),
		solana.NewAccountMeta(accounts.BorrowerAta, false),
		solana.NewAccountMeta(accounts.ProtocolAta, false),
		solana.NewReadonlyAccountMeta(system.InstructionsSysVar, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(token.AssociatedTokenAccountProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	}
}

// BorrowInstructionArgsFromData decodes the borrow payload: an 8-byte
// discriminator followed by the borrow amount as a little-endian u64.
func BorrowInstructionArgsFromData(data []byte) (*BorrowInstructionArgs, error) {
	if len(data) != DiscriminatorSize+BorrowInstructionArgsSize {
		return nil, ErrInvalidIx
	}
	if !bytes.Equal(data[:DiscriminatorSize], BorrowInstructionDiscriminator) {
		return nil, ErrInvalidIx
	}

	return &BorrowInstructionArgs{
		BorrowAmount: binary.LittleEndian.Uint64(data[DiscriminatorSize:]),
	}, nil
}
