package clmmcore

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func swapTestPool(t *testing.T) *PoolEngine {
	t.Helper()
	p := newTestPool(t, 3000, 60)
	mev := p.Mev
	mev.OracleEnabled = false
	p.Mev = mev
	_, _, err := p.AddLiquidity("lp", -600, 600, 10_000_000, nil, nil)
	require.NoError(t, err)
	return p
}

func TestComputeSwapStepPartialFillStopsShortOfTarget(t *testing.T) {
	sqrtCurrent, _ := SqrtRatioAtTick(0)
	sqrtTarget, _ := SqrtRatioAtTick(-600)
	liquidity := uint256.NewInt(10_000_000)

	next, amountIn, amountOut, feeAmount, err := computeSwapStep(sqrtCurrent, sqrtTarget, liquidity, uint256.NewInt(10), 3000)
	require.NoError(t, err)
	require.False(t, amountIn.IsZero())
	require.False(t, amountOut.IsZero())
	require.NotNil(t, feeAmount)
	require.True(t, next.Cmp(sqrtCurrent) <= 0)
	require.True(t, next.Cmp(sqrtTarget) > 0)
}

func TestComputeSwapStepFullFillReachesTarget(t *testing.T) {
	sqrtCurrent, _ := SqrtRatioAtTick(0)
	sqrtTarget, _ := SqrtRatioAtTick(-60)
	liquidity := uint256.NewInt(10_000_000)

	next, _, _, _, err := computeSwapStep(sqrtCurrent, sqrtTarget, liquidity, uint256.NewInt(1_000_000_000), 3000)
	require.NoError(t, err)
	require.True(t, next.Eq(sqrtTarget))
}

func TestSwapZeroForOneDecreasesPrice(t *testing.T) {
	p := swapTestPool(t)
	startPrice := new(uint256.Int).Set(p.SqrtPriceX96.v)

	limit := new(uint256.Int).AddUint64(MinSqrtPrice, 1)
	result, err := p.Swap(true, uint256.NewInt(1_000_000), limit, "trader", 2000, p.LastSequenceNumber+1)
	require.NoError(t, err)
	require.True(t, result.FinalSqrtPrice.Cmp(startPrice) <= 0)
	require.False(t, result.AmountIn.IsZero())
}

func TestSwapOneForZeroIncreasesPrice(t *testing.T) {
	p := swapTestPool(t)
	startPrice := new(uint256.Int).Set(p.SqrtPriceX96.v)

	limit := new(uint256.Int).SubUint64(MaxSqrtPrice, 1)
	result, err := p.Swap(false, uint256.NewInt(1_000_000), limit, "trader", 2000, p.LastSequenceNumber+1)
	require.NoError(t, err)
	require.True(t, result.FinalSqrtPrice.Cmp(startPrice) >= 0)
}

// TestSwapFeeGrowthMonotonic checks property 7: fee_growth_global never
// decreases across a swap.
func TestSwapFeeGrowthMonotonic(t *testing.T) {
	p := swapTestPool(t)
	before0 := new(uint256.Int).Set(p.FeeGrowthGlobal0X128.v)

	limit := new(uint256.Int).AddUint64(MinSqrtPrice, 1)
	_, err := p.Swap(true, uint256.NewInt(1_000_000), limit, "trader", 2000, p.LastSequenceNumber+1)
	require.NoError(t, err)

	require.True(t, p.FeeGrowthGlobal0X128.v.Cmp(before0) >= 0)
}

func TestSwapZeroAmountRejected(t *testing.T) {
	p := swapTestPool(t)
	limit := new(uint256.Int).AddUint64(MinSqrtPrice, 1)
	_, err := p.Swap(true, uint256.NewInt(0), limit, "trader", 2000, p.LastSequenceNumber+1)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrInvalidInstruction, kind)
}

func TestSwapOutOfOrderSequenceRejected(t *testing.T) {
	p := swapTestPool(t)
	limit := new(uint256.Int).AddUint64(MinSqrtPrice, 1)
	_, err := p.Swap(true, uint256.NewInt(1_000_000), limit, "trader", 2000, p.LastSequenceNumber+5)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrInvalidInstruction, kind)
}

func TestSwapInvalidPriceLimitRejected(t *testing.T) {
	p := swapTestPool(t)
	// zeroForOne swap with a limit above the current price is invalid.
	badLimit := new(uint256.Int).AddUint64(p.SqrtPriceX96.v, 1)
	_, err := p.Swap(true, uint256.NewInt(1_000_000), badLimit, "trader", 2000, p.LastSequenceNumber+1)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrInvalidPrice, kind)
}

// TestSwapReentrancyRejected checks property 9 against the swap path
// specifically.
func TestSwapReentrancyRejected(t *testing.T) {
	p := swapTestPool(t)
	require.NoError(t, p.acquireLock("outer"))
	defer p.releaseLock()

	limit := new(uint256.Int).AddUint64(MinSqrtPrice, 1)
	_, err := p.Swap(true, uint256.NewInt(1_000_000), limit, "trader", 2000, p.LastSequenceNumber+1)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrUnauthorized, kind)
}
