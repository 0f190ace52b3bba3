package flashloan

import (
	"crypto/ed25519"

	"github.com/blueshift-protocol/flashloan/pkg/solana"
	"github.com/blueshift-protocol/flashloan/pkg/solana/token"
)

// ProtocolSeed is the fixed seed of the protocol authority, the program
// derived address that owns the reserve's token account. The authority has
// no private key; outbound transfers are authorized by presenting the seed
// and bump to the runtime.
var ProtocolSeed = []byte("protocol")

// GetProtocolAuthority derives the protocol authority address and its bump
// seed. The derivation is deterministic; the bump must be re-derived and
// presented on every borrow.
func GetProtocolAuthority() (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		ProgramKey,
		ProtocolSeed,
	)
}

// GetProtocolTokenAccount returns the reserve's associated token account
// for the provided mint.
func GetProtocolTokenAccount(mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	authority, _, err := GetProtocolAuthority()
	if err != nil {
		return nil, err
	}

	return token.GetAssociatedAccount(authority, mint)
}
