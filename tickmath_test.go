package clmmcore

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// TestTickSqrtPriceRoundTrip checks property 1 from spec.md §8: for any tick
// t in range, TickAtSqrtRatio(SqrtRatioAtTick(t)) == t.
func TestTickSqrtPriceRoundTrip(t *testing.T) {
	ticks := []int32{MinTick, MinTick + 1, -887271, -500000, -60, -1, 0, 1, 60, 500000, MaxTick - 1, MaxTick}
	for _, tick := range ticks {
		sp, err := SqrtRatioAtTick(tick)
		require.NoError(t, err, "tick %d", tick)
		got, err := TickAtSqrtRatio(sp)
		require.NoError(t, err, "tick %d", tick)
		require.Equal(t, tick, got, "round trip for tick %d", tick)
	}
}

func TestSqrtRatioAtTickOutOfRange(t *testing.T) {
	_, err := SqrtRatioAtTick(MaxTick + 1)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrInvalidTickRange, kind)

	_, err = SqrtRatioAtTick(MinTick - 1)
	require.Error(t, err)
}

// TestSqrtRatioAtTickMonotonic checks property 2: SqrtRatioAtTick is a
// strictly increasing function of tick.
func TestSqrtRatioAtTickMonotonic(t *testing.T) {
	prev, err := SqrtRatioAtTick(MinTick)
	require.NoError(t, err)
	for tick := MinTick + 1; tick <= MinTick+2000; tick++ {
		cur, err := SqrtRatioAtTick(tick)
		require.NoError(t, err)
		require.True(t, cur.Cmp(prev) > 0, "tick %d should exceed tick %d", tick, tick-1)
		prev = cur
	}
}

func TestTickAtSqrtRatioBounds(t *testing.T) {
	_, err := TickAtSqrtRatio(MinSqrtPrice)
	require.NoError(t, err)

	below := new(uint256.Int).Sub(MinSqrtPrice, uint256.NewInt(1))
	_, err = TickAtSqrtRatio(below)
	require.Error(t, err)
}

func TestGetAmount0DeltaRoundingDirection(t *testing.T) {
	sa, err := SqrtRatioAtTick(-60)
	require.NoError(t, err)
	sb, err := SqrtRatioAtTick(60)
	require.NoError(t, err)
	liquidity := Q96()

	down, err := GetAmount0Delta(sa, sb, liquidity, false)
	require.NoError(t, err)
	up, err := GetAmount0Delta(sa, sb, liquidity, true)
	require.NoError(t, err)
	require.True(t, up.Cmp(down) >= 0, "rounding up must not be smaller than rounding down")
}

func TestNextSqrtPriceFromAmount0RoundingUpZeroAmount(t *testing.T) {
	sp, _ := SqrtRatioAtTick(0)
	liquidity := Q96()
	got, err := NextSqrtPriceFromAmount0RoundingUp(sp, liquidity, uint256.NewInt(0), true)
	require.NoError(t, err)
	require.Equal(t, sp, got)
}

func TestAddDeltaUnderflowRejected(t *testing.T) {
	liquidity := uint256.NewInt(5)
	_, err := AddDelta(liquidity, NewSigned(-10))
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrInsufficientLiquidity, kind)
}

func TestAddDeltaAddsPositive(t *testing.T) {
	liquidity := uint256.NewInt(5)
	got, err := AddDelta(liquidity, NewSigned(10))
	require.NoError(t, err)
	require.Equal(t, uint64(15), got.Uint64())
}

func TestTickSpacingToMaxLiquidityPerTickPositive(t *testing.T) {
	for _, spacing := range []int32{1, 10, 60, 200} {
		got := TickSpacingToMaxLiquidityPerTick(spacing)
		require.True(t, got.Sign() > 0, "spacing %d", spacing)
	}
}
