package clmmcore

import (
	"math/big"

	"github.com/holiman/uint256"
)

// TickMath implements C2: the bijection between tick index and Q64.96
// sqrt-price, plus the two closed-form "next sqrt price" updates the swap
// step loop needs. SqrtRatioAtTick is ported from the bit-decomposition
// magic constants in original_source/src/math/tick_math.rs. TickAtSqrtRatio
// is a full, bit-exact MSB-binary-search inversion — the source's version is
// flagged in spec.md §9 as "a truncated port... not bit-exact at
// boundaries"; this one mirrors the reference Uniswap v3 TickMath algorithm
// instead, using math/big for the signed log2 fixed-point arithmetic that
// step needs (the only place in this engine signed intermediate values are
// more natural than sign-magnitude uint256 — nothing here feeds a state
// transition unrounded: when the two candidate ticks differ, the upper one
// is checked against SqrtRatioAtTick before one of them is returned).

var magicFactors = []struct {
	mask int32
	hex  string
}{
	{0x2, "fff2e50f5f656932ef12357cf3c7fdcc"},
	{0x4, "ffe5caca7e10e4e61c3624eaa0941cd0"},
	{0x8, "ffcb9843d60f6159c9db58835c926644"},
	{0x10, "ff973b41fa98c081472e6896dfb254c0"},
	{0x20, "ff2ea16466c96a3843ec78b326b52861"},
	{0x40, "fe5dee046a99a2a811c461f1969c3053"},
	{0x80, "fcbe86c7900a88aedcffc83b479aa3a4"},
	{0x100, "f987a7253acae65be8623aa479a2ddf0"},
	{0x200, "f3392b0822b70005940c7a398e4b70f3"},
	{0x400, "e7159475a2c29be046d0ccceb0512d9"},
	{0x800, "d097f3bdfd2022b8845ad8f792aa5825"},
	{0x1000, "a9f746462d870fdf8a65dc1f90e061e5"},
	{0x2000, "70d869a156d2a1b890bb3df62baf32f7"},
	{0x4000, "31be135f97d08fd981231505542fcfa6"},
	{0x8000, "9aa508b5b7a84e1c677de54f3e99bc9"},
	{0x10000, "5d6af8dedb81196699c329225ee604"},
	{0x20000, "2216e584f5fa1ea926041bedfe98"},
	{0x40000, "48a170391f7dc42444e8fa2"},
}

var evenStart = mustHex("fffcb933bd6fad37aa2d162d1a594001")
var oddStart = mustHex("fff97272373d413259a46990580e213a")

func mustHex(s string) *uint256.Int {
	v, err := uint256.FromHex("0x" + s)
	if err != nil {
		panic(err)
	}
	return v
}

// SqrtRatioAtTick returns floor(sqrt(1.0001^tick) * 2^96).
func SqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, newTickErr("SqrtRatioAtTick", ErrInvalidTickRange, tick, "outside [MIN_TICK, MAX_TICK]")
	}
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}
	var ratio *uint256.Int
	if absTick&1 != 0 {
		ratio = new(uint256.Int).Set(oddStart)
	} else {
		ratio = new(uint256.Int).Set(evenStart)
	}
	for _, b := range magicFactors {
		if absTick&b.mask != 0 {
			ratio = new(uint256.Int).Mul(ratio, mustHex(b.hex))
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		maxU256 := new(uint256.Int).SetAllOne()
		ratio = new(uint256.Int).Div(maxU256, ratio)
	}
	// ratio is Q128.128; shift down to Q64.96, rounding up.
	scale := new(uint256.Int).Lsh(uint256.NewInt(1), 32)
	shifted, rem := new(uint256.Int).DivMod(ratio, scale, new(uint256.Int))
	if !rem.IsZero() {
		shifted.AddUint64(shifted, 1)
	}
	return shifted, nil
}

var (
	logSqrt10001Const = big.NewInt(0).SetInt64(0) // placeholder, replaced in init
	tickLowOffset     = new(big.Int)
	tickHighOffset    = new(big.Int)
)

func init() {
	logSqrt10001Const.SetString("255738958999603826347141", 10)
	tickLowOffset.SetString("-3402992956809132418596140100660247210", 10)
	tickHighOffset.SetString("291339464771989622907027621153398088495", 10)
}

// TickAtSqrtRatio returns the unique tick t such that
// SqrtRatioAtTick(t) <= sqrtPriceX96 < SqrtRatioAtTick(t+1).
func TickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int32, error) {
	if sqrtPriceX96.Cmp(MinSqrtPrice) < 0 || sqrtPriceX96.Cmp(MaxSqrtPrice) > 0 {
		return 0, newErr("TickAtSqrtRatio", ErrInvalidPrice, "sqrt price outside valid range")
	}

	ratio := new(big.Int).Lsh(sqrtPriceX96.ToBig(), 32)
	r := new(big.Int).Set(ratio)
	msb := 0
	for i := 7; i >= 0; i-- {
		shift := uint(1 << uint(i))
		threshold := new(big.Int).Lsh(big.NewInt(1), shift)
		threshold.Sub(threshold, big.NewInt(1))
		if r.Cmp(threshold) > 0 {
			msb |= 1 << uint(i)
			r.Rsh(r, shift)
		}
	}

	var rShifted *big.Int
	if msb >= 128 {
		rShifted = new(big.Int).Rsh(ratio, uint(msb-127))
	} else {
		rShifted = new(big.Int).Lsh(ratio, uint(127-msb))
	}

	log2 := new(big.Int).Lsh(big.NewInt(int64(msb)-128), 64)
	r = rShifted
	for shift := 63; shift >= 50; shift-- {
		r = new(big.Int).Mul(r, r)
		r.Rsh(r, 127)
		f := new(big.Int).Rsh(r, 128)
		if f.Sign() != 0 {
			log2.Or(log2, new(big.Int).Lsh(big.NewInt(1), uint(shift)))
			r.Rsh(r, 1)
		}
	}

	logSqrt10001 := new(big.Int).Mul(log2, logSqrt10001Const)

	tickLowBig := new(big.Int).Add(logSqrt10001, tickLowOffset)
	tickLowBig.Rsh(tickLowBig, 128)
	tickHighBig := new(big.Int).Add(logSqrt10001, tickHighOffset)
	tickHighBig.Rsh(tickHighBig, 128)

	tickLow := int32(tickLowBig.Int64())
	tickHigh := int32(tickHighBig.Int64())

	if tickLow == tickHigh {
		return tickLow, nil
	}
	ratioAtHigh, err := SqrtRatioAtTick(tickHigh)
	if err != nil {
		return tickLow, nil
	}
	if ratioAtHigh.Cmp(sqrtPriceX96) <= 0 {
		return tickHigh, nil
	}
	return tickLow, nil
}

// NextSqrtPriceFromAmount0RoundingUp computes the new sqrt price after
// consuming amount of token0 against active liquidity, rounding up. Rounding
// direction is load-bearing per spec.md §4.2: it keeps the caller from
// over-extracting token1 when token0 is the input.
func NextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if amount.IsZero() {
		return sqrtPX96, nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	if add {
		if product, overflow := new(uint256.Int).MulOverflow(amount, sqrtPX96); !overflow {
			if denominator, overflow := new(uint256.Int).AddOverflow(numerator1, product); !overflow {
				return MulDivRoundingUp(numerator1, sqrtPX96, denominator)
			}
		}
		denom := new(uint256.Int).Div(numerator1, sqrtPX96)
		denom.Add(denom, amount)
		return DivRoundingUp(numerator1, denom)
	}
	quotient, err := MulDivRoundingUp(amount, sqrtPX96, liquidity)
	if err != nil {
		return nil, err
	}
	if liquidity.Cmp(quotient) <= 0 {
		return nil, newErr("NextSqrtPriceFromAmount0RoundingUp", ErrInsufficientLiquidity, "amount would exceed liquidity")
	}
	denominator := new(uint256.Int).Sub(liquidity, quotient)
	return MulDivRoundingUp(numerator1, sqrtPX96, denominator)
}

// liquidityAfterAdd computes liquidity + ceil(amount*sqrtPX96/2^96).
func liquidityAfterAdd(liquidity, amount, sqrtPX96 *uint256.Int) (*uint256.Int, error) {
	addend, err := MulDivRoundingUp(amount, sqrtPX96, Q96())
	if err != nil {
		return nil, err
	}
	sum := new(uint256.Int).Add(liquidity, addend)
	if sum.Cmp(liquidity) < 0 {
		return nil, newErr("liquidityAfterAdd", ErrMathOverflow, "liquidity_after overflowed")
	}
	return sum, nil
}

// NextSqrtPriceFromAmount1RoundingDown computes the new sqrt price after
// consuming amount of token1, rounding down (spec.md §4.2).
func NextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if add {
		quotient := new(uint256.Int).Div(new(uint256.Int).Lsh(amount, 96), liquidity)
		return new(uint256.Int).Add(sqrtPX96, quotient), nil
	}
	quotient, err := DivRoundingUp(new(uint256.Int).Lsh(amount, 96), liquidity)
	if err != nil {
		return nil, err
	}
	if sqrtPX96.Cmp(quotient) <= 0 {
		return nil, newErr("NextSqrtPriceFromAmount1RoundingDown", ErrInsufficientLiquidity, "amount would exceed liquidity")
	}
	return new(uint256.Int).Sub(sqrtPX96, quotient), nil
}

// GetAmount0Delta computes the token0 amount for a liquidity position
// spanning [sqrtA, sqrtB), rounding per roundUp.
func GetAmount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	lo, hi := sqrtA, sqrtB
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(hi, lo)
	if roundUp {
		num, err := MulDivRoundingUp(numerator1, numerator2, hi)
		if err != nil {
			return nil, err
		}
		return DivRoundingUp(num, lo)
	}
	num, err := MulDiv(numerator1, numerator2, hi)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Div(num, lo), nil
}

// GetAmount1Delta computes the token1 amount for [sqrtA, sqrtB).
func GetAmount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	lo, hi := sqrtA, sqrtB
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	diff := new(uint256.Int).Sub(hi, lo)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, Q96())
	}
	return MulDiv(liquidity, diff, Q96())
}

// AddDelta adds a signed liquidity delta to an unsigned liquidity value,
// erroring with InsufficientLiquidity on underflow or MathOverflow on
// overflow past 2^256-1 (spec.md §4.6/§8 invariant 6).
func AddDelta(liquidity *uint256.Int, delta SignedInt) (*uint256.Int, error) {
	return AddToUnsigned(liquidity, delta, "AddDelta")
}

// TickSpacingToMaxLiquidityPerTick returns the liquidity_gross cap a single
// tick can hold for a given spacing: the full tick range divides evenly
// into the maximum representable per-position liquidity (2^128-1), the
// Uniswap v3 convention.
func TickSpacingToMaxLiquidityPerTick(tickSpacing int32) *uint256.Int {
	minTickAligned := MinTick / tickSpacing * tickSpacing
	maxTickAligned := MaxTick / tickSpacing * tickSpacing
	numTicks := uint64((maxTickAligned-minTickAligned)/tickSpacing) + 1
	maxU128 := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	return new(uint256.Int).Div(maxU128, uint256.NewInt(numTicks))
}
