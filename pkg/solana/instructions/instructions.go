// Package instructions implements the serialization and introspection of
// the instructions sysvar account data.
//
// The runtime publishes every instruction of the executing transaction into
// this account before execution begins, and keeps the index of the currently
// executing instruction in the trailing two bytes. Programs read it to
// reason about their sibling instructions without executing them.
package instructions

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/blueshift-protocol/flashloan/pkg/solana"
)

// ErrNotFound is returned when loading an instruction index that is not
// present in the sysvar data. It signals "structurally absent", as opposed
// to malformed data, which surfaces as a descriptive error.
var ErrNotFound = errors.New("instruction not found")

const (
	metaIsSigner   = 1 << 0
	metaIsWritable = 1 << 1
)

// Serialized layout, mirroring the runtime:
//
//	u16 LE  instruction count
//	u16 LE  per-instruction offset table
//	entries:
//	  u16 LE  account count
//	  per account: meta byte (bit0 signer, bit1 writable) ++ 32-byte key
//	  32-byte program id
//	  u16 LE  data len ++ data
//	u16 LE  currently executing instruction index (trailing two bytes)
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/sysvar/instructions.rs#L68
func Serialize(m solana.Message) ([]byte, error) {
	if len(m.Instructions) > 0xffff {
		return nil, errors.New("too many instructions")
	}

	header := make([]byte, 2+2*len(m.Instructions))
	binary.LittleEndian.PutUint16(header, uint16(len(m.Instructions)))

	var body []byte
	for i, ix := range m.Instructions {
		if int(ix.ProgramIndex) >= len(m.Accounts) {
			return nil, errors.Errorf("instruction[%d] program index out of range", i)
		}

		offset := len(header) + len(body)
		binary.LittleEndian.PutUint16(header[2+2*i:], uint16(offset))

		var entry []byte
		entry = binary.LittleEndian.AppendUint16(entry, uint16(len(ix.Accounts)))
		for _, accountIndex := range ix.Accounts {
			if int(accountIndex) >= len(m.Accounts) {
				return nil, errors.Errorf("instruction[%d] account index out of range", i)
			}

			var meta byte
			if m.IsSigner(int(accountIndex)) {
				meta |= metaIsSigner
			}
			if m.IsWritable(int(accountIndex)) {
				meta |= metaIsWritable
			}

			entry = append(entry, meta)
			entry = append(entry, m.Accounts[accountIndex]...)
		}

		entry = append(entry, m.Accounts[ix.ProgramIndex]...)
		entry = binary.LittleEndian.AppendUint16(entry, uint16(len(ix.Data)))
		entry = append(entry, ix.Data...)

		body = append(body, entry...)
	}

	// Trailing current index, maintained by the runtime as it advances
	// through the transaction.
	data := append(header, body...)
	return binary.LittleEndian.AppendUint16(data, 0), nil
}

// StoreCurrentIndex updates the trailing current-index marker in place.
func StoreCurrentIndex(data []byte, index uint16) error {
	if len(data) < 2 {
		return errors.New("sysvar data too short")
	}

	binary.LittleEndian.PutUint16(data[len(data)-2:], index)
	return nil
}

// LoadCurrentIndex returns the index of the currently executing instruction
// within the transaction.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/sysvar/instructions.rs#L107
func LoadCurrentIndex(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, errors.New("sysvar data too short")
	}

	return binary.LittleEndian.Uint16(data[len(data)-2:]), nil
}

// LoadInstructionCount returns the total number of instructions in the
// transaction, read from the length-prefixed header.
func LoadInstructionCount(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, errors.New("sysvar data too short")
	}

	return binary.LittleEndian.Uint16(data), nil
}

// LoadInstructionAt decodes the instruction at the provided index without
// executing it. It returns ErrNotFound if the index is out of range.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/sysvar/instructions.rs#L122
func LoadInstructionAt(data []byte, index int) (solana.Instruction, error) {
	count, err := LoadInstructionCount(data)
	if err != nil {
		return solana.Instruction{}, err
	}

	if index < 0 || index >= int(count) {
		return solana.Instruction{}, ErrNotFound
	}

	offsetPos := 2 + 2*index
	if len(data) < offsetPos+2 {
		return solana.Instruction{}, errors.New("offset table truncated")
	}
	offset := int(binary.LittleEndian.Uint16(data[offsetPos:]))

	accountCount, err := readUint16(data, &offset)
	if err != nil {
		return solana.Instruction{}, err
	}

	ix := solana.Instruction{
		Accounts: make([]solana.AccountMeta, accountCount),
	}
	for i := 0; i < int(accountCount); i++ {
		if len(data) < offset+1+ed25519.PublicKeySize {
			return solana.Instruction{}, errors.Errorf("account %d truncated", i)
		}

		meta := data[offset]
		offset++

		ix.Accounts[i] = solana.AccountMeta{
			PublicKey:  ed25519.PublicKey(data[offset : offset+ed25519.PublicKeySize]),
			IsSigner:   meta&metaIsSigner != 0,
			IsWritable: meta&metaIsWritable != 0,
		}
		offset += ed25519.PublicKeySize
	}

	if len(data) < offset+ed25519.PublicKeySize {
		return solana.Instruction{}, errors.New("program id truncated")
	}
	ix.Program = ed25519.PublicKey(data[offset : offset+ed25519.PublicKeySize])
	offset += ed25519.PublicKeySize

	dataLen, err := readUint16(data, &offset)
	if err != nil {
		return solana.Instruction{}, err
	}
	if len(data) < offset+int(dataLen) {
		return solana.Instruction{}, errors.New("instruction data truncated")
	}
	ix.Data = data[offset : offset+int(dataLen)]

	return ix, nil
}

func readUint16(data []byte, offset *int) (uint16, error) {
	if len(data) < *offset+2 {
		return 0, errors.New("sysvar data truncated")
	}

	v := binary.LittleEndian.Uint16(data[*offset:])
	*offset += 2
	return v, nil
}
