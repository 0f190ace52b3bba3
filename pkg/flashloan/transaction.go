package flashloan

import (
	"crypto/ed25519"

	"github.com/blueshift-protocol/flashloan/pkg/solana"
	"github.com/blueshift-protocol/flashloan/pkg/solana/token"
)

// GetLoanAccounts derives the full account set for a loan against the
// provided mint.
func GetLoanAccounts(borrower, mint ed25519.PublicKey) (*LoanInstructionAccounts, error) {
	protocol, _, err := GetProtocolAuthority()
	if err != nil {
		return nil, err
	}

	borrowerAta, err := token.GetAssociatedAccount(borrower, mint)
	if err != nil {
		return nil, err
	}

	protocolAta, err := token.GetAssociatedAccount(protocol, mint)
	if err != nil {
		return nil, err
	}

	return &LoanInstructionAccounts{
		Borrower:    borrower,
		Protocol:    protocol,
		Mint:        mint,
		BorrowerAta: borrowerAta,
		ProtocolAta: protocolAta,
	}, nil
}

// NewLoanTransaction assembles the canonical flash loan transaction: the
// borrow instruction first, any number of instructions spending the
// borrowed funds in between, and the repay instruction last. The placement
// is what the borrow-side introspection checks demand, so transactions
// built here pass them by construction.
func NewLoanTransaction(
	accounts *LoanInstructionAccounts,
	borrowAmount uint64,
	inner ...solana.Instruction,
) solana.Transaction {
	ixs := make([]solana.Instruction, 0, len(inner)+2)
	ixs = append(ixs, NewBorrowInstruction(accounts, &BorrowInstructionArgs{BorrowAmount: borrowAmount}))
	ixs = append(ixs, inner...)
	ixs = append(ixs, NewRepayInstruction(accounts))

	return solana.NewTransaction(accounts.Borrower, ixs...)
}
