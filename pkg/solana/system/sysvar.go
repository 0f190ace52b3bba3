// Package system holds the well known system program and sysvar addresses.
package system

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// https://explorer.solana.com/address/11111111111111111111111111111111
var ProgramKey ed25519.PublicKey

// RentSysVar points to the system variable "Rent"
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/sysvar/rent.rs#L11
var RentSysVar ed25519.PublicKey

// InstructionsSysVar points to the system variable "Instructions", the
// read-only view a program uses to inspect the other instructions of the
// transaction it is executing in.
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/sysvar/instructions.rs#L13
var InstructionsSysVar ed25519.PublicKey

func init() {
	var err error

	ProgramKey, err = base58.Decode("11111111111111111111111111111111")
	if err != nil {
		panic(err)
	}

	RentSysVar, err = base58.Decode("SysvarRent111111111111111111111111111111111")
	if err != nil {
		panic(err)
	}

	InstructionsSysVar, err = base58.Decode("Sysvar1nstructions1111111111111111111111111")
	if err != nil {
		panic(err)
	}
}
