package flashloan

import (
	"math/bits"
)

const (
	// FeeBasisPoints is the loan fee rate, hardcoded to 500 bps (5%).
	FeeBasisPoints = 500

	basisPointDenominator = 10_000
)

// Fee computes the loan fee: floor(amount * 500 / 10000).
//
// The multiply is performed in 128 bits so it cannot overflow, and the
// division truncates. The truncation is intentional: small borrows round
// their fee down, potentially to zero.
func Fee(amount uint64) uint64 {
	hi, lo := bits.Mul64(amount, FeeBasisPoints)

	// The quotient fits in 64 bits since the rate is below the denominator.
	fee, _ := bits.Div64(hi, lo, basisPointDenominator)
	return fee
}

// TotalDue computes the amount a borrower must return: principal plus fee.
// ErrOverflow is returned if the sum exceeds a u64.
func TotalDue(amount uint64) (uint64, error) {
	total, carry := bits.Add64(amount, Fee(amount), 0)
	if carry != 0 {
		return 0, ErrOverflow
	}

	return total, nil
}
