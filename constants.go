package clmmcore

import "github.com/holiman/uint256"

// Tick bounds, per spec: ticks are signed 32-bit in [MIN_TICK, MAX_TICK].
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// Fee convention: parts-per-million, matching Uniswap v3 (see SPEC_FULL.md
// §6, Open Question 1). Canonical bps fee tiers are converted to ppm at
// pool-creation time via FeeBpsToPpm.
const (
	MinFeePpm uint32 = 1       // 0.0001%
	MaxFeePpm uint32 = 1000000 // 100% (denominator), never charged in full
	feeDenominatorPpm uint32 = 1_000_000
)

// Reference fee tiers (bps) and their canonical tick spacings, per spec §6.
// Pools MAY be instantiated with other valid combinations.
var CanonicalFeeTiers = map[uint32]int32{
	1:   1,
	5:   10,
	30:  60,
	100: 200,
}

// MinimumLiquidity is ported from original_source's state/constants.rs
// MINIMUM_LIQUIDITY and kept only as a documented reference value: no code
// in the engine reads it, and it enforces no floor on burns
// (removing exactly what was minted must always be possible, S5/I-LIQ).
const MinimumLiquidity uint64 = 1000

// Oracle ring buffer capacity, per spec §3 "Lifecycle" (default 100).
const DefaultOracleCapacity = 100

// Dynamic fee rolling-window sizes, per spec §4.8.
const (
	VolatilityWindow  = 24
	VolumeWindow      = 24
	PriceImpactWindow = 12
)

// Dynamic fee adjustment deltas and thresholds, reference values from
// original_source/src/math/dynamic_fee.rs.
const (
	feeAdjVolatilityHighBps = 5_00  // 5%, scaled by 1e4 for integer compare
	feeAdjVolatilityLowBps  = 1_00  // 1%
	feeAdjUp                = 20
	feeAdjDownSmall         = -10
	feeAdjDownVolume        = -15
	feeAdjUpVolume          = 10
	feeAdjUpImpact          = 25
	feeAdjDownImpact        = -10
	impactHighBps           = 500
	impactLowBps            = 100
)

var (
	volumeThresholdLow  = uint256.NewInt(10_000_000_000)
	volumeThresholdHigh = uint256.NewInt(1_000_000_000_000)
)

// FeeBpsToPpm converts a basis-point fee (1/10000) to parts-per-million
// (1/1e6), the convention this engine commits to (SPEC_FULL.md §6).
func FeeBpsToPpm(bps uint32) uint32 {
	return bps * 100
}

var (
	q96Exp  = uint256.NewInt(96)
	q128Exp = uint256.NewInt(128)
)

// Q96 returns 2^96, the fixed-point scale of sqrt_price_x96.
func Q96() *uint256.Int {
	z := new(uint256.Int)
	return z.Lsh(uint256.NewInt(1), uint(q96Exp.Uint64()))
}

// Q128 returns 2^128, the fixed-point scale of fee growth accumulators.
func Q128() *uint256.Int {
	z := new(uint256.Int)
	return z.Lsh(uint256.NewInt(1), uint(q128Exp.Uint64()))
}

// MinSqrtPrice and MaxSqrtPrice bound sqrt_price_x96 to SqrtRatioAtTick(MinTick)
// and SqrtRatioAtTick(MaxTick) respectively; computed once at init.
var (
	MinSqrtPrice *uint256.Int
	MaxSqrtPrice *uint256.Int
)

func init() {
	var err error
	MinSqrtPrice, err = SqrtRatioAtTick(MinTick)
	if err != nil {
		panic(err)
	}
	MaxSqrtPrice, err = SqrtRatioAtTick(MaxTick)
	if err != nil {
		panic(err)
	}
}
