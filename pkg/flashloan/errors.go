package flashloan

import (
	"errors"

	"github.com/blueshift-protocol/flashloan/pkg/solana"
)

// Protocol errors. Every failure is terminal: the enclosing transaction is
// aborted and the runtime rolls back any transfers already performed.
var (
	// ErrInvalidIx indicates the instruction structure is wrong: borrow is
	// not the first instruction of the transaction, or the transaction's
	// last instruction is not a repay.
	ErrInvalidIx = errors.New("invalid instruction")

	// ErrInvalidAmount indicates a borrow of zero.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidProgram indicates the closing repay instruction targets a
	// different program.
	ErrInvalidProgram = errors.New("invalid program")

	// ErrInvalidBorrowerAta / ErrInvalidProtocolAta indicate the repay
	// instruction references different token accounts than the borrow.
	ErrInvalidBorrowerAta = errors.New("invalid borrower ata")
	ErrInvalidProtocolAta = errors.New("invalid protocol ata")

	// ErrMissingRepayIx / ErrMissingBorrowIx indicate the expected sibling
	// instruction is absent from the transaction.
	ErrMissingRepayIx  = errors.New("missing repay instruction")
	ErrMissingBorrowIx = errors.New("missing borrow instruction")

	// ErrOverflow indicates the fee or total due exceeds a u64.
	ErrOverflow = errors.New("overflow")
)

// customErrorBase is the code of the first protocol error, matching the
// anchor convention for user defined errors.
const customErrorBase = 6000

// ordered by on-chain error code.
var errorsByCode = []error{
	ErrInvalidIx,
	errors.New("invalid instruction index"),
	ErrInvalidAmount,
	errors.New("not enough funds"),
	errors.New("program mismatch"),
	ErrInvalidProgram,
	ErrInvalidBorrowerAta,
	ErrInvalidProtocolAta,
	ErrMissingRepayIx,
	ErrMissingBorrowIx,
	ErrOverflow,
}

// ErrorCode maps a protocol error to the numerical code surfaced by the
// runtime as a custom program error.
func ErrorCode(err error) (solana.CustomError, bool) {
	for i, e := range errorsByCode {
		if errors.Is(err, e) {
			return solana.CustomError(customErrorBase + i), true
		}
	}

	return 0, false
}

// ErrorFromCode is the inverse of ErrorCode.
func ErrorFromCode(code solana.CustomError) (error, bool) {
	index := int(code) - customErrorBase
	if index < 0 || index >= len(errorsByCode) {
		return nil, false
	}

	return errorsByCode[index], true
}
