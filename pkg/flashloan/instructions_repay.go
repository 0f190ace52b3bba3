package flashloan

import (
	"bytes"

	"github.com/blueshift-protocol/flashloan/pkg/solana"
)

// NewRepayInstruction builds the repay instruction. It carries no
// arguments: the amount due is recomputed from the borrow instruction's
// payload, read through the instructions sysvar.
func NewRepayInstruction(accounts *LoanInstructionAccounts) solana.Instruction {
	data := make([]byte, DiscriminatorSize)
	copy(data, RepayInstructionDiscriminator)

	return solana.NewInstruction(
		ProgramKey,
		data,
		loanAccountMetas(accounts)...,
	)
}

// IsRepayInstruction reports whether the provided instruction data carries
// the repay discriminator.
func IsRepayInstruction(data []byte) bool {
	return len(data) >= DiscriminatorSize &&
		bytes.Equal(data[:DiscriminatorSize], RepayInstructionDiscriminator)
}
