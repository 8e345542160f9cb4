// Package money provides exact fixed-scale decimal arithmetic for
// monetary quantities. Binary floats are forbidden for allocated, spent,
// and change amounts because zero-sum invariants must hold exactly, not
// within an epsilon.
//
// Amount follows the teacher's minor-unit convention (an integer mantissa
// plus a scale) but adds the exact-comparison and percentage-ceiling
// operations the budget invariants need, backed by math/big where a
// plain int64 would risk overflow or rounding.
package money

import (
	"fmt"
	"math/big"
)

// Amount is an exact decimal value: Minor * 10^-Scale.
type Amount struct {
	Minor int64
	Scale int
}

// Zero returns a zero amount at the given scale.
func Zero(scale int) Amount { return Amount{Minor: 0, Scale: scale} }

// New builds an Amount from an integer minor-unit count.
func New(minor int64, scale int) Amount { return Amount{Minor: minor, Scale: scale} }

func (a Amount) rat() *big.Rat {
	return new(big.Rat).SetFrac(big.NewInt(a.Minor), pow10(a.Scale))
}

func pow10(scale int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
}

// sameScale returns b unchanged when it has a's scale and errors otherwise;
// it never rescales.
func (a Amount) sameScale(b Amount) (Amount, error) {
	if a.Scale == b.Scale {
		return b, nil
	}
	// Rescale via big.Rat exact conversion; only widening (b.Scale < a.Scale)
	// is loss-free without rounding, but since amounts in this kernel are
	// always constructed at a single canonical scale per budget, mismatched
	// scales are treated as a caller error.
	return Amount{}, fmt.Errorf("money: scale mismatch: %d vs %d", a.Scale, b.Scale)
}

// Add returns a+b. Both operands must share a scale.
func (a Amount) Add(b Amount) (Amount, error) {
	b, err := a.sameScale(b)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Minor: a.Minor + b.Minor, Scale: a.Scale}, nil
}

// Sub returns a-b. Both operands must share a scale.
func (a Amount) Sub(b Amount) (Amount, error) {
	b, err := a.sameScale(b)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Minor: a.Minor - b.Minor, Scale: a.Scale}, nil
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
// Panics if scales differ — comparisons across scales are a programmer
// error in this kernel, since every budget fixes a single scale at
// creation.
func (a Amount) Cmp(b Amount) int {
	if a.Scale != b.Scale {
		panic(fmt.Sprintf("money: Cmp scale mismatch: %d vs %d", a.Scale, b.Scale))
	}
	switch {
	case a.Minor < b.Minor:
		return -1
	case a.Minor > b.Minor:
		return 1
	default:
		return 0
	}
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.Minor == 0 }

// IsNegative reports whether the amount is strictly negative.
func (a Amount) IsNegative() bool { return a.Minor < 0 }

// Abs returns the absolute value of a.
func (a Amount) Abs() Amount {
	if a.Minor < 0 {
		return Amount{Minor: -a.Minor, Scale: a.Scale}
	}
	return a
}

// String renders the amount as a decimal string, e.g. "1234.56".
func (a Amount) String() string {
	return a.rat().FloatString(a.Scale)
}

// Float64 approximates the amount as a float64. Only safe for
// non-exact consumers such as Gini-coefficient concentration metrics;
// never use for balance or comparison invariants.
func (a Amount) Float64() (float64, bool) {
	return a.rat().Float64()
}

// RatioExceeds reports whether |delta| / base exceeds ceiling, computed
// exactly with big.Rat so that boundary values (e.g. exactly 5.000000%)
// compare correctly instead of drifting under floating point.
//
// base must be strictly positive; a zero-allocation base is a caller
// error (division by zero is not permitted per the flex step-size
// invariant).
func RatioExceeds(delta, base Amount, ceiling *big.Rat) (bool, error) {
	if base.IsZero() {
		return false, fmt.Errorf("money: ratio against zero base")
	}
	num := new(big.Rat).Abs(delta.rat())
	den := base.rat()
	if den.Sign() < 0 {
		den.Neg(den)
	}
	ratio := new(big.Rat).Quo(num, den)
	return ratio.Cmp(ceiling) > 0, nil
}

// Parse decodes a decimal string ("1234.56") into an Amount at the given
// scale, using math/big so no binary-float rounding is introduced.
func Parse(s string, scale int) (Amount, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Amount{}, fmt.Errorf("money: invalid decimal %q", s)
	}
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(pow10(scale)))
	if !scaled.IsInt() {
		return Amount{}, fmt.Errorf("money: %q has more precision than scale %d supports", s, scale)
	}
	return Amount{Minor: scaled.Num().Int64(), Scale: scale}, nil
}

// Sum adds a slice of amounts sharing a scale.
func Sum(amounts []Amount) (Amount, error) {
	if len(amounts) == 0 {
		return Amount{}, nil
	}
	total := Zero(amounts[0].Scale)
	for _, a := range amounts {
		var err error
		total, err = total.Add(a)
		if err != nil {
			return Amount{}, err
		}
	}
	return total, nil
}
