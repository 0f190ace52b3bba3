// Package flashloan implements the flash loan program: instruction
// builders, the protocol authority derivation, the fee schedule, and the
// borrow/repay processing logic.
//
// A borrow hands reserve funds to the borrower with no collateral. Safety
// comes entirely from instruction introspection: borrow only succeeds if it
// is the first instruction of the transaction and the last instruction is a
// matching repay, and the runtime's all-or-nothing commit guarantees that a
// failed repay unwinds the borrow.
package flashloan

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// ProgramKey is the address of the flash loan program.
//
// Current key: 22222222222222222222222222222222222222222222
var ProgramKey = mustBase58Decode("22222222222222222222222222222222222222222222")

// Instruction discriminators, computed the anchor way:
// sha256("global:<instruction name>")[..8].
var (
	BorrowInstructionDiscriminator = []byte{0xe4, 0xfd, 0x83, 0xca, 0xcf, 0x74, 0x59, 0x12}
	RepayInstructionDiscriminator  = []byte{0xea, 0x67, 0x43, 0x52, 0xd0, 0xea, 0xdb, 0xa6}
)

const DiscriminatorSize = 8

func mustBase58Decode(value string) ed25519.PublicKey {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}

	return decoded
}
