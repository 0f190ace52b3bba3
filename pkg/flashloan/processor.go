package flashloan

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/blueshift-protocol/flashloan/pkg/solana"
	"github.com/blueshift-protocol/flashloan/pkg/solana/instructions"
	"github.com/blueshift-protocol/flashloan/pkg/solana/system"
	"github.com/blueshift-protocol/flashloan/pkg/solana/token"
)

// Host is the execution runtime boundary the processor runs against. The
// runtime owns account storage, signature verification, and the atomicity
// of the enclosing transaction; the processor never compensates for a
// failure itself, it simply returns an error and relies on the runtime
// rolling the whole transaction back.
type Host interface {
	// Transfer moves tokens between accounts. The authority must be an
	// owner (or delegate) of the source account and a genuine signer of
	// the transaction.
	Transfer(source, destination, authority ed25519.PublicKey, amount uint64) error

	// TransferSigned is Transfer authorized by a program derived address.
	// The runtime grants signer status if the seeds, replayed against the
	// calling program, derive the authority.
	TransferSigned(source, destination, authority ed25519.PublicKey, amount uint64, seeds ...[]byte) error

	// EnsureTokenAccount creates the wallet's associated token account for
	// the mint if it does not exist, returning its address.
	EnsureTokenAccount(wallet, mint ed25519.PublicKey) (ed25519.PublicKey, error)

	// SysvarData returns the data of the requested sysvar account.
	SysvarData(key ed25519.PublicKey) ([]byte, error)
}

// Processor executes the flash loan program's instructions.
type Processor struct {
}

func NewProcessor() *Processor {
	return &Processor{}
}

// Execute dispatches an instruction targeted at the flash loan program.
func (p *Processor) Execute(host Host, accounts []solana.AccountMeta, data []byte) error {
	if len(data) < DiscriminatorSize {
		return ErrInvalidIx
	}

	loan, err := validateLoanAccounts(host, accounts)
	if err != nil {
		return err
	}

	switch {
	case bytes.Equal(data[:DiscriminatorSize], BorrowInstructionDiscriminator):
		args, err := BorrowInstructionArgsFromData(data)
		if err != nil {
			return err
		}
		return p.borrow(host, loan, args.BorrowAmount)
	case bytes.Equal(data[:DiscriminatorSize], RepayInstructionDiscriminator):
		return p.repay(host, loan)
	default:
		return ErrInvalidIx
	}
}

// loanContext is the validated account set consumed by borrow and repay.
// Construction is the only way to obtain one, so the operations can assume
// every reference has already been checked.
type loanContext struct {
	borrower    ed25519.PublicKey
	protocol    ed25519.PublicKey
	bump        uint8
	mint        ed25519.PublicKey
	borrowerAta ed25519.PublicKey
	protocolAta ed25519.PublicKey

	// instructions sysvar data for the executing transaction
	sysvarData []byte
}

// validateLoanAccounts checks every account reference before any effectful
// step: the borrower must sign, the protocol authority must match its
// derivation, the token accounts must be the associated accounts of the
// borrower and the protocol for the mint, and the program references must
// be the well known programs.
func validateLoanAccounts(host Host, accounts []solana.AccountMeta) (*loanContext, error) {
	if len(accounts) != loanAccountCount {
		return nil, errors.Errorf("invalid number of accounts: %d (expected %d)", len(accounts), loanAccountCount)
	}

	borrower := accounts[loanAccountBorrower]
	if !borrower.IsSigner {
		return nil, errors.New("borrower must be a signer")
	}

	protocol, bump, err := GetProtocolAuthority()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive protocol authority")
	}
	if !bytes.Equal(accounts[loanAccountProtocol].PublicKey, protocol) {
		return nil, errors.New("protocol authority mismatch")
	}

	mint := accounts[loanAccountMint].PublicKey

	borrowerAta, err := token.GetAssociatedAccount(borrower.PublicKey, mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive borrower ata")
	}
	if !bytes.Equal(accounts[loanAccountBorrowerAta].PublicKey, borrowerAta) {
		return nil, ErrInvalidBorrowerAta
	}

	protocolAta, err := token.GetAssociatedAccount(protocol, mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive protocol ata")
	}
	if !bytes.Equal(accounts[loanAccountProtocolAta].PublicKey, protocolAta) {
		return nil, ErrInvalidProtocolAta
	}

	if !bytes.Equal(accounts[loanAccountInstructions].PublicKey, system.InstructionsSysVar) {
		return nil, errors.New("invalid instructions sysvar")
	}
	if !bytes.Equal(accounts[loanAccountTokenProgram].PublicKey, token.ProgramKey) {
		return nil, errors.New("invalid token program")
	}
	if !bytes.Equal(accounts[loanAccountAtaProgram].PublicKey, token.AssociatedTokenAccountProgramKey) {
		return nil, errors.New("invalid associated token program")
	}
	if !bytes.Equal(accounts[loanAccountSystemProgram].PublicKey, system.ProgramKey) {
		return nil, errors.New("invalid system program")
	}

	sysvarData, err := host.SysvarData(system.InstructionsSysVar)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load instructions sysvar")
	}

	return &loanContext{
		borrower:    borrower.PublicKey,
		protocol:    protocol,
		bump:        bump,
		mint:        mint,
		borrowerAta: borrowerAta,
		protocolAta: protocolAta,
		sysvarData:  sysvarData,
	}, nil
}

// borrow hands the requested amount to the borrower, then proves through
// introspection that this instruction is the first of the transaction and
// that the transaction closes with a repay against the same token accounts.
//
// The transfer intentionally happens before the structural checks: if any
// of them fail, the runtime unwinds it along with the rest of the
// transaction.
func (p *Processor) borrow(host Host, loan *loanContext, borrowAmount uint64) error {
	if borrowAmount == 0 {
		return ErrInvalidAmount
	}

	// The borrower's associated token account is created on first use.
	if _, err := host.EnsureTokenAccount(loan.borrower, loan.mint); err != nil {
		return errors.Wrap(err, "failed to create borrower ata")
	}

	// Move the funds out of the reserve, authorized by the protocol
	// authority's seed and bump.
	err := host.TransferSigned(
		loan.protocolAta,
		loan.borrowerAta,
		loan.protocol,
		borrowAmount,
		ProtocolSeed, []byte{loan.bump},
	)
	if err != nil {
		return errors.Wrap(err, "failed to transfer to borrower")
	}

	// Borrow must be the first instruction of the transaction.
	currentIndex, err := instructions.LoadCurrentIndex(loan.sysvarData)
	if err != nil {
		return errors.Wrap(err, "failed to load current index")
	}
	if currentIndex != 0 {
		return ErrInvalidIx
	}

	// The last instruction must be a repay, targeting this program, against
	// the same borrower and protocol token accounts. Everything else about
	// the transaction is the borrower's business.
	count, err := instructions.LoadInstructionCount(loan.sysvarData)
	if err != nil {
		return errors.Wrap(err, "failed to load instruction count")
	}

	repayIx, err := instructions.LoadInstructionAt(loan.sysvarData, int(count)-1)
	if err != nil {
		if errors.Is(err, instructions.ErrNotFound) {
			return ErrMissingRepayIx
		}
		return errors.Wrap(err, "failed to load repay instruction")
	}

	if !bytes.Equal(repayIx.Program, ProgramKey) {
		return ErrInvalidProgram
	}
	if !IsRepayInstruction(repayIx.Data) {
		return ErrInvalidIx
	}

	if len(repayIx.Accounts) <= loanAccountBorrowerAta ||
		!bytes.Equal(repayIx.Accounts[loanAccountBorrowerAta].PublicKey, loan.borrowerAta) {
		return ErrInvalidBorrowerAta
	}
	if len(repayIx.Accounts) <= loanAccountProtocolAta ||
		!bytes.Equal(repayIx.Accounts[loanAccountProtocolAta].PublicKey, loan.protocolAta) {
		return ErrInvalidProtocolAta
	}

	return nil
}

// repay returns principal plus fee to the reserve. The amount is read from
// the borrow instruction's payload via introspection; repay never checks
// that the borrow belongs to this program, since borrow already proved the
// pairing before releasing funds and atomicity closes the loop.
func (p *Processor) repay(host Host, loan *loanContext) error {
	borrowIx, err := instructions.LoadInstructionAt(loan.sysvarData, 0)
	if err != nil {
		if errors.Is(err, instructions.ErrNotFound) {
			return ErrMissingBorrowIx
		}
		return errors.Wrap(err, "failed to load borrow instruction")
	}

	// The borrowed amount sits immediately after the discriminator.
	if len(borrowIx.Data) < DiscriminatorSize+BorrowInstructionArgsSize {
		return ErrMissingBorrowIx
	}
	borrowed := binary.LittleEndian.Uint64(borrowIx.Data[DiscriminatorSize:])

	total, err := TotalDue(borrowed)
	if err != nil {
		return err
	}

	// The borrower signed this transaction, so plain authority suffices.
	err = host.Transfer(loan.borrowerAta, loan.protocolAta, loan.borrower, total)
	if err != nil {
		return errors.Wrap(err, "failed to transfer to protocol")
	}

	return nil
}
