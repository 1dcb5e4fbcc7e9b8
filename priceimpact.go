package clmmcore

import (
	"math"

	"github.com/holiman/uint256"
)

// PriceImpactBps computes the relative movement of sqrt-price across a swap,
// in basis points, via integer fixed-point math rather than the Rust
// source's lossy float version — it feeds a returned result
// (price_impact_bps in §4.5's SwapResult) and the Dynamic Fee Engine's
// impact rolling window (C9), both of which the swap path depends on.
// Ported from original_source/src/math/price_impact.rs.
func PriceImpactBps(sqrtPriceBefore, sqrtPriceAfter *uint256.Int) (int64, error) {
	if sqrtPriceBefore.IsZero() {
		return 0, newErr("PriceImpactBps", ErrInvalidPrice, "sqrt_price_before is zero")
	}
	var diff uint256.Int
	neg := sqrtPriceAfter.Cmp(sqrtPriceBefore) < 0
	if neg {
		diff.Sub(sqrtPriceBefore, sqrtPriceAfter)
	} else {
		diff.Sub(sqrtPriceAfter, sqrtPriceBefore)
	}
	// price moves with the square of sqrt-price; approximate the price-level
	// delta in bps as 2x the sqrt-price delta in bps, which is accurate to
	// first order for the small per-step moves this helper is evaluated on.
	numerator, err := MulDiv(&diff, uint256.NewInt(20000), sqrtPriceBefore)
	if err != nil {
		return 0, err
	}
	bps := numerator.Uint64()
	if neg {
		return -int64(bps), nil
	}
	return int64(bps), nil
}

// ImpermanentLoss is a display-only helper (never gates a state transition,
// per spec.md §9) estimating the value loss of an LP position relative to
// holding, given the ratio of the current price to the price at deposit.
// Ported from original_source's impermanent_loss helper.
func ImpermanentLoss(priceRatio float64) float64 {
	if priceRatio <= 0 {
		return 0
	}
	sqrtRatio := math.Sqrt(priceRatio)
	return 2*sqrtRatio/(1+priceRatio) - 1
}
