package clmmcore

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestUpdateTickFlipsInitializedOnFirstLiquidity(t *testing.T) {
	ts := NewTickStore(60)
	flipped, err := ts.UpdateTick(60, NewSigned(100), false, 0, uint256.NewInt(0), uint256.NewInt(0))
	require.NoError(t, err)
	require.True(t, flipped)

	tick, ok := ts.Get(60)
	require.True(t, ok)
	require.True(t, tick.Initialized)
	require.Equal(t, uint64(100), tick.LiquidityGross.v.Uint64())
}

func TestUpdateTickLowerUsesPositiveNet(t *testing.T) {
	ts := NewTickStore(60)
	_, err := ts.UpdateTick(60, NewSigned(100), false, 0, uint256.NewInt(0), uint256.NewInt(0))
	require.NoError(t, err)
	tick, _ := ts.Get(60)
	require.False(t, tick.LiquidityNet.v.Neg)
	require.Equal(t, uint64(100), tick.LiquidityNet.v.AbsUint64())
}

func TestUpdateTickUpperNegatesNet(t *testing.T) {
	ts := NewTickStore(60)
	_, err := ts.UpdateTick(60, NewSigned(100), true, 0, uint256.NewInt(0), uint256.NewInt(0))
	require.NoError(t, err)
	tick, _ := ts.Get(60)
	require.True(t, tick.LiquidityNet.v.Neg)
}

func TestUpdateTickClearsInitializedWhenGrossReturnsToZero(t *testing.T) {
	ts := NewTickStore(60)
	_, err := ts.UpdateTick(60, NewSigned(100), false, 0, uint256.NewInt(0), uint256.NewInt(0))
	require.NoError(t, err)

	flipped, err := ts.UpdateTick(60, NewSigned(-100), false, 0, uint256.NewInt(0), uint256.NewInt(0))
	require.NoError(t, err)
	require.True(t, flipped)

	tick, _ := ts.Get(60)
	require.False(t, tick.Initialized)
}

func TestFeeGrowthInsideWithinRangeAroundCurrentTick(t *testing.T) {
	ts := NewTickStore(60)
	global0 := uint256.NewInt(1000)
	global1 := uint256.NewInt(2000)

	// both endpoints uninitialized -> fee growth outside defaults to 0, so
	// fee growth inside should equal the global accumulators when the
	// current tick sits inside [lower, upper).
	in0, in1 := ts.FeeGrowthInside(-60, 60, 0, global0, global1)
	require.Equal(t, global0, in0)
	require.Equal(t, global1, in1)
}

func TestFeeGrowthInsideOutsideRangeIsZero(t *testing.T) {
	ts := NewTickStore(60)
	global0 := uint256.NewInt(1000)
	global1 := uint256.NewInt(2000)

	// current tick (0) is below [60, 120): fee growth outside for both
	// endpoints is uninitialized (0), so fee growth below = global and
	// fee growth above = 0, giving fee growth inside = global - global - 0 = 0.
	in0, in1 := ts.FeeGrowthInside(60, 120, 0, global0, global1)
	require.True(t, in0.IsZero())
	require.True(t, in1.IsZero())
}

func TestCrossTickFlipsFeeGrowthOutside(t *testing.T) {
	ts := NewTickStore(60)
	_, err := ts.UpdateTick(60, NewSigned(100), false, 0, uint256.NewInt(0), uint256.NewInt(0))
	require.NoError(t, err)

	global0 := uint256.NewInt(500)
	global1 := uint256.NewInt(700)
	net := ts.CrossTick(60, global0, global1)
	require.False(t, net.Neg)
	require.Equal(t, uint64(100), net.AbsUint64())

	tick, _ := ts.Get(60)
	require.Equal(t, uint64(500), tick.FeeGrowthOutside0X128.v.Uint64())
	require.Equal(t, uint64(700), tick.FeeGrowthOutside1X128.v.Uint64())
}

func TestTickStoreCloneForQuoteIsIndependent(t *testing.T) {
	ts := NewTickStore(60)
	_, err := ts.UpdateTick(60, NewSigned(100), false, 0, uint256.NewInt(0), uint256.NewInt(0))
	require.NoError(t, err)

	clone := ts.CloneForQuote()
	clone.CrossTick(60, uint256.NewInt(999), uint256.NewInt(999))

	original, _ := ts.Get(60)
	require.True(t, original.FeeGrowthOutside0X128.v.IsZero(), "crossing the clone must not mutate the original")
}
