package clmmcore

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestUpdatePositionAccruesFeesAndLiquidity(t *testing.T) {
	ps := NewPositionStore("pool-1")
	key := PositionKey{Owner: "alice", TickLower: -60, TickUpper: 60}

	owed0, owed1, err := ps.UpdatePosition(key, NewSigned(1000), Q128(), Q128())
	require.NoError(t, err)
	require.True(t, owed0.IsZero(), "first touch accrues nothing: liquidity was 0 at the time")
	require.True(t, owed1.IsZero())

	pos, ok := ps.Get(key)
	require.True(t, ok)
	require.Equal(t, uint64(1000), pos.Liquidity.v.Uint64())
}

func TestUpdatePositionSecondTouchAccruesProportionalFees(t *testing.T) {
	ps := NewPositionStore("pool-1")
	key := PositionKey{Owner: "alice", TickLower: -60, TickUpper: 60}

	_, _, err := ps.UpdatePosition(key, NewSigned(1000), uint256.NewInt(0), uint256.NewInt(0))
	require.NoError(t, err)

	// fee growth inside advances by exactly 1 full Q128 unit per liquidity
	// unit: 1000 liquidity * 1 = 1000 tokens owed.
	owed0, owed1, err := ps.UpdatePosition(key, NewSigned(0), Q128(), Q128())
	require.NoError(t, err)
	require.Equal(t, uint64(1000), owed0.Uint64())
	require.Equal(t, uint64(1000), owed1.Uint64())
}

func TestUpdatePositionBurnMoreThanHeldFails(t *testing.T) {
	ps := NewPositionStore("pool-1")
	key := PositionKey{Owner: "alice", TickLower: -60, TickUpper: 60}
	_, _, err := ps.UpdatePosition(key, NewSigned(100), uint256.NewInt(0), uint256.NewInt(0))
	require.NoError(t, err)

	_, _, err = ps.UpdatePosition(key, NewSigned(-200), uint256.NewInt(0), uint256.NewInt(0))
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrInsufficientLiquidity, kind)
}

func TestCollectPaysMinOfRequestedAndOwed(t *testing.T) {
	ps := NewPositionStore("pool-1")
	key := PositionKey{Owner: "alice", TickLower: -60, TickUpper: 60}
	_, _, err := ps.UpdatePosition(key, NewSigned(1000), uint256.NewInt(0), uint256.NewInt(0))
	require.NoError(t, err)
	_, _, err = ps.UpdatePosition(key, NewSigned(0), Q128(), Q128())
	require.NoError(t, err)

	paid0, paid1, err := ps.Collect(key, uint256.NewInt(100), uint256.NewInt(5000))
	require.NoError(t, err)
	require.Equal(t, uint64(100), paid0.Uint64())
	require.Equal(t, uint64(1000), paid1.Uint64(), "owed1 (1000) caps the payout below the requested 5000")

	pos, _ := ps.Get(key)
	require.Equal(t, uint64(900), pos.TokensOwed0.v.Uint64())
	require.True(t, pos.TokensOwed1.v.IsZero())
}

func TestCollectUnknownPositionFails(t *testing.T) {
	ps := NewPositionStore("pool-1")
	_, _, err := ps.Collect(PositionKey{Owner: "nobody"}, uint256.NewInt(1), uint256.NewInt(1))
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrInvalidAccount, kind)
}

func TestPositionStoreCloneForQuoteIsIndependent(t *testing.T) {
	ps := NewPositionStore("pool-1")
	key := PositionKey{Owner: "alice", TickLower: -60, TickUpper: 60}
	_, _, err := ps.UpdatePosition(key, NewSigned(1000), uint256.NewInt(0), uint256.NewInt(0))
	require.NoError(t, err)

	clone := ps.CloneForQuote()
	_, _, err = clone.UpdatePosition(key, NewSigned(0), Q128(), Q128())
	require.NoError(t, err)

	original, _ := ps.Get(key)
	require.True(t, original.TokensOwed0.v.IsZero(), "updating the clone must not mutate the original position")
}
