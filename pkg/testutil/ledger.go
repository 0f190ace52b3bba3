package testutil

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/blueshift-protocol/flashloan/pkg/solana/token"
)

// Ledger is an in-memory set of token accounts, keyed by address. It is
// the account storage side of the test runtime.
type Ledger struct {
	accounts map[string]*token.Account
}

func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[string]*token.Account),
	}
}

// CreateAssociatedAccount creates the wallet's associated token account
// for the mint with the provided starting balance. Creating an account
// that already exists is a no-op returning the existing address.
func (l *Ledger) CreateAssociatedAccount(wallet, mint ed25519.PublicKey, amount uint64) (ed25519.PublicKey, error) {
	address, err := token.GetAssociatedAccount(wallet, mint)
	if err != nil {
		return nil, err
	}

	if existing, ok := l.accounts[string(address)]; ok {
		existing.Amount += amount
		return address, nil
	}

	l.accounts[string(address)] = &token.Account{
		Mint:   mint,
		Owner:  wallet,
		Amount: amount,
		State:  token.AccountStateInitialized,
	}

	return address, nil
}

// Account returns the token account at the provided address, if it exists.
func (l *Ledger) Account(address ed25519.PublicKey) (*token.Account, bool) {
	account, ok := l.accounts[string(address)]
	return account, ok
}

// Balance returns the token balance at the provided address, or zero if
// the account does not exist.
func (l *Ledger) Balance(address ed25519.PublicKey) uint64 {
	if account, ok := l.accounts[string(address)]; ok {
		return account.Amount
	}

	return 0
}

// transfer moves tokens between accounts with the token program's checks:
// both accounts must exist, share a mint, and the source must be funded.
// The authority has already been checked by the caller.
func (l *Ledger) transfer(source, destination ed25519.PublicKey, amount uint64) error {
	src, ok := l.accounts[string(source)]
	if !ok {
		return errors.New("source account does not exist")
	}

	dst, ok := l.accounts[string(destination)]
	if !ok {
		return errors.New("destination account does not exist")
	}

	if string(src.Mint) != string(dst.Mint) {
		return token.ErrorMintMismatch
	}
	if src.Amount < amount {
		return token.ErrorInsufficientFunds
	}

	src.Amount -= amount
	dst.Amount += amount
	return nil
}

// snapshot captures the full ledger state via the account wire codec.
func (l *Ledger) snapshot() map[string][]byte {
	snap := make(map[string][]byte, len(l.accounts))
	for address, account := range l.accounts {
		snap[address] = account.Marshal()
	}

	return snap
}

// restore rewinds the ledger to a snapshot, dropping any accounts created
// since it was taken.
func (l *Ledger) restore(snap map[string][]byte) {
	l.accounts = make(map[string]*token.Account, len(snap))
	for address, data := range snap {
		var account token.Account
		if !account.Unmarshal(data) {
			panic("invalid ledger snapshot")
		}

		l.accounts[address] = &account
	}
}
