package testutil

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/blueshift-protocol/flashloan/pkg/flashloan"
	"github.com/blueshift-protocol/flashloan/pkg/solana"
	"github.com/blueshift-protocol/flashloan/pkg/solana/instructions"
	"github.com/blueshift-protocol/flashloan/pkg/solana/system"
	"github.com/blueshift-protocol/flashloan/pkg/solana/token"
)

// Executor is a minimal in-memory stand-in for the execution runtime. It
// verifies signatures, publishes the instructions sysvar, executes a
// transaction's instructions in order, and commits all-or-nothing: any
// instruction failure rewinds the ledger to its pre-transaction state.
//
// It only knows the programs the flash loan protocol touches (the flash
// loan program itself, the token program, and the associated token account
// program), which is all the tests need.
type Executor struct {
	log       *logrus.Entry
	Ledger    *Ledger
	processor *flashloan.Processor

	// per-execution state, valid while Execute runs
	message    solana.Message
	sysvarData []byte
}

func NewExecutor() *Executor {
	return &Executor{
		log:       logrus.StandardLogger().WithField("type", "testutil/executor"),
		Ledger:    NewLedger(),
		processor: flashloan.NewProcessor(),
	}
}

// Execute runs the transaction atomically. On failure, the returned error
// is a solana.InstructionError carrying the failing index, with protocol
// errors mapped to their custom error codes the way the runtime surfaces
// them.
func (e *Executor) Execute(txn solana.Transaction) error {
	if err := e.verifySignatures(txn); err != nil {
		return err
	}

	sysvarData, err := instructions.Serialize(txn.Message)
	if err != nil {
		return errors.Wrap(err, "failed to serialize instructions sysvar")
	}

	e.message = txn.Message
	e.sysvarData = sysvarData
	defer func() {
		e.message = solana.Message{}
		e.sysvarData = nil
	}()

	snapshot := e.Ledger.snapshot()

	for i := range txn.Message.Instructions {
		if err := instructions.StoreCurrentIndex(sysvarData, uint16(i)); err != nil {
			return err
		}

		if err := e.executeInstruction(txn.Message, i); err != nil {
			e.Ledger.restore(snapshot)

			if code, ok := flashloan.ErrorCode(err); ok {
				err = code
			}

			e.log.WithError(err).WithField("index", i).Debug("transaction aborted")
			return solana.InstructionError{Index: i, Err: err}
		}
	}

	return nil
}

func (e *Executor) executeInstruction(m solana.Message, index int) error {
	ix, err := m.ResolveInstruction(index)
	if err != nil {
		return err
	}

	switch {
	case bytes.Equal(ix.Program, flashloan.ProgramKey):
		return e.processor.Execute(e, ix.Accounts, ix.Data)
	case bytes.Equal(ix.Program, token.ProgramKey):
		return e.executeTokenInstruction(m, index, ix)
	case bytes.Equal(ix.Program, token.AssociatedTokenAccountProgramKey):
		return e.executeCreateAssociatedAccount(ix)
	default:
		return errors.New("program not found")
	}
}

func (e *Executor) executeTokenInstruction(m solana.Message, index int, ix solana.Instruction) error {
	command, err := token.GetCommand(m, index)
	if err != nil {
		return err
	}
	if command != token.CommandTransfer {
		return errors.Errorf("unsupported token command: %d", command)
	}

	transfer, err := token.DecompileTransfer(m, index)
	if err != nil {
		return err
	}

	// A raw token transfer requires the owner to sign the transaction.
	if len(ix.Accounts) < 3 || !ix.Accounts[2].IsSigner {
		return errors.New("transfer authority is not a signer")
	}

	return e.Transfer(transfer.Source, transfer.Destination, transfer.Owner, transfer.Amount)
}

func (e *Executor) executeCreateAssociatedAccount(ix solana.Instruction) error {
	if len(ix.Accounts) != 7 {
		return errors.Errorf("invalid number of accounts: %d", len(ix.Accounts))
	}

	wallet := ix.Accounts[2].PublicKey
	mint := ix.Accounts[3].PublicKey

	_, err := e.Ledger.CreateAssociatedAccount(wallet, mint, 0)
	return err
}

// Transfer implements flashloan.Host. The authority must own the source
// account and must have signed the transaction.
func (e *Executor) Transfer(source, destination, authority ed25519.PublicKey, amount uint64) error {
	if !e.isTransactionSigner(authority) {
		return errors.New("transfer authority is not a signer")
	}

	return e.authorizedTransfer(source, destination, authority, amount)
}

// TransferSigned implements flashloan.Host, mirroring invoke_signed: the
// seeds are replayed against the calling program, and the resulting
// program derived address gains signer status for this transfer.
func (e *Executor) TransferSigned(source, destination, authority ed25519.PublicKey, amount uint64, seeds ...[]byte) error {
	derived, err := solana.CreateProgramAddress(flashloan.ProgramKey, seeds...)
	if err != nil {
		return errors.Wrap(err, "invalid signer seeds")
	}

	if !bytes.Equal(derived, authority) {
		return errors.New("signer seeds do not derive the authority")
	}

	return e.authorizedTransfer(source, destination, authority, amount)
}

func (e *Executor) authorizedTransfer(source, destination, authority ed25519.PublicKey, amount uint64) error {
	src, ok := e.Ledger.Account(source)
	if !ok {
		return errors.New("source account does not exist")
	}

	if !bytes.Equal(src.Owner, authority) {
		return token.ErrorOwnerMismatch
	}

	return e.Ledger.transfer(source, destination, amount)
}

// EnsureTokenAccount implements flashloan.Host.
func (e *Executor) EnsureTokenAccount(wallet, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return e.Ledger.CreateAssociatedAccount(wallet, mint, 0)
}

// SysvarData implements flashloan.Host.
func (e *Executor) SysvarData(key ed25519.PublicKey) ([]byte, error) {
	if !bytes.Equal(key, system.InstructionsSysVar) {
		return nil, errors.New("unknown sysvar")
	}

	return e.sysvarData, nil
}

func (e *Executor) isTransactionSigner(key ed25519.PublicKey) bool {
	for i := 0; i < int(e.message.Header.NumSignatures); i++ {
		if bytes.Equal(e.message.Accounts[i], key) {
			return true
		}
	}

	return false
}

func (e *Executor) verifySignatures(txn solana.Transaction) error {
	if len(txn.Signatures) != int(txn.Message.Header.NumSignatures) {
		return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	messageBytes := txn.Message.Marshal()
	for i := range txn.Signatures {
		if !ed25519.Verify(txn.Message.Accounts[i], messageBytes, txn.Signatures[i][:]) {
			return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
		}
	}

	return nil
}
