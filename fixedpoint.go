package clmmcore

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// FixedPoint implements C1: 256-bit fixed-point arithmetic with a widening
// 512-bit intermediate for mul-div. original_source/src/math/fixed_point.rs
// computes the 512-bit intermediate by hand-splitting x and y at the 128-bit
// boundary and aliases two of the cross terms together (see the comment on
// MulDiv below) — this is the bug spec.md §4.1/§9 calls out. We instead lean
// on uint256.Int's own widening multiply/divide, which already carries a
// full 512-bit intermediate product internally.

// MulDiv computes floor(x*y/d). Returns MathOverflow if d == 0 or if the
// true mathematical result does not fit in 256 bits.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, newErr("MulDiv", ErrMathOverflow, "division by zero")
	}
	q, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, newErr("MulDiv", ErrMathOverflow, "mul_div result exceeds 2^256-1")
	}
	return q, nil
}

// MulDivRoundingUp computes ceil(x*y/d).
func MulDivRoundingUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	q, err := MulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	rem := mulModExact(x, y, d)
	if !rem.IsZero() {
		q = new(uint256.Int).AddUint64(q, 1)
		if q.IsZero() {
			// wrapped around 2^256
			return nil, newErr("MulDivRoundingUp", ErrMathOverflow, "rounding up overflowed 2^256")
		}
	}
	return q, nil
}

// mulModExact returns (x*y) mod d computed over a full 512-bit intermediate,
// via uint256's own modular-multiplication primitive.
func mulModExact(x, y, d *uint256.Int) *uint256.Int {
	return new(uint256.Int).MulMod(x, y, d)
}

// DivRoundingUp computes ceil(n/d) = (n+d-1)/d, guarded against overflow in
// the addition.
func DivRoundingUp(n, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, newErr("DivRoundingUp", ErrMathOverflow, "division by zero")
	}
	q := new(uint256.Int).Div(n, d)
	rem := new(uint256.Int).Mod(n, d)
	if rem.IsZero() {
		return q, nil
	}
	next := new(uint256.Int).AddUint64(q, 1)
	if next.IsZero() {
		return nil, newErr("DivRoundingUp", ErrMathOverflow, "rounding up overflowed 2^256")
	}
	return next, nil
}

// Sqrt returns floor(sqrt(x)) via Newton's method, per spec.md §4.1.
func Sqrt(x *uint256.Int) *uint256.Int {
	if x.IsZero() {
		return uint256.NewInt(0)
	}
	one := uint256.NewInt(1)
	z := new(uint256.Int).Set(x)
	y := new(uint256.Int).Add(x, one)
	y.Rsh(y, 1)
	for y.Lt(z) {
		z.Set(y)
		t := new(uint256.Int).Div(x, y)
		t.Add(t, y)
		y = t.Rsh(t, 1)
	}
	return z
}

// SqrtPriceX96ToPrice converts a Q64.96 sqrt-price into a float64 price of
// token1 per token0. Display/heuristic use only — spec.md §4.1 forbids using
// this in any state transition, so it deliberately returns a lossy
// decimal.Decimal-mediated float rather than an exact fixed-point value.
func SqrtPriceX96ToPrice(sqrtPriceX96 *uint256.Int) float64 {
	sp := decimal.NewFromBigInt(sqrtPriceX96.ToBig(), 0)
	scale := decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 96), 0)
	ratio, _ := sp.DivRound(scale, 40).Float64()
	return ratio * ratio
}

// PriceToSqrtPriceX96 is the display-only inverse of SqrtPriceX96ToPrice,
// useful for constructing a human-specified initial price. Not used by any
// state transition.
func PriceToSqrtPriceX96(price float64) *uint256.Int {
	scaled := decimal.NewFromFloat(math.Sqrt(price) * 79228162514264337593543950336.0)
	bi := scaled.BigInt()
	out, _ := uint256.FromBig(bi)
	return out
}
