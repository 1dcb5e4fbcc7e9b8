package clmmcore

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestQuoteMultiHopSingleHopMatchesDirectSwap(t *testing.T) {
	p := swapTestPool(t)
	hops := []Hop{{Pool: p, ZeroForOne: true}}

	quotes, finalOut, err := QuoteMultiHop(hops, uint256.NewInt(1_000_000), 5000, p.LastSequenceNumber+1)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	require.Equal(t, finalOut.Uint64(), quotes[0].AmountOut.Uint64())
	require.False(t, quotes[0].AmountOut.IsZero())
}

// TestQuoteMultiHopDoesNotMutateLivePool is the regression the deep-clone
// fix in clonePoolForQuote guards against: a read-only quote must leave the
// pool's tick/position/sequence state exactly as it found it.
func TestQuoteMultiHopDoesNotMutateLivePool(t *testing.T) {
	p := swapTestPool(t)
	beforeSqrtPrice := new(uint256.Int).Set(p.SqrtPriceX96.v)
	beforeTick := p.Tick
	beforeLiquidity := new(uint256.Int).Set(p.Liquidity.v)
	beforeSeq := p.LastSequenceNumber
	beforePriceHistoryLen := len(p.DynamicFee.priceHistory)
	beforeVolumeHistoryLen := len(p.DynamicFee.volumeHistory)
	beforeImpactHistoryLen := len(p.DynamicFee.impactHistory)
	beforeBatchQueueLen := p.BatchQueue.Len()

	hops := []Hop{{Pool: p, ZeroForOne: true}}
	_, _, err := QuoteMultiHop(hops, uint256.NewInt(1_000_000), 5000, p.LastSequenceNumber+1)
	require.NoError(t, err)

	require.True(t, p.SqrtPriceX96.v.Eq(beforeSqrtPrice))
	require.Equal(t, beforeTick, p.Tick)
	require.True(t, p.Liquidity.v.Eq(beforeLiquidity))
	require.Equal(t, beforeSeq, p.LastSequenceNumber)
	require.True(t, p.Unlocked)
	require.Len(t, p.DynamicFee.priceHistory, beforePriceHistoryLen)
	require.Len(t, p.DynamicFee.volumeHistory, beforeVolumeHistoryLen)
	require.Len(t, p.DynamicFee.impactHistory, beforeImpactHistoryLen)
	require.Equal(t, beforeBatchQueueLen, p.BatchQueue.Len())
}

func TestQuoteMultiHopChainsAmountAcrossHops(t *testing.T) {
	p1 := swapTestPool(t)
	p2 := swapTestPool(t)
	hops := []Hop{
		{Pool: p1, ZeroForOne: true},
		{Pool: p2, ZeroForOne: false},
	}
	quotes, finalOut, err := QuoteMultiHop(hops, uint256.NewInt(1_000_000), 5000, 1)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	require.Equal(t, quotes[0].AmountOut.Uint64(), quotes[1].AmountIn.Uint64())
	require.Equal(t, finalOut.Uint64(), quotes[1].AmountOut.Uint64())
}

func TestQuoteMultiHopEmptyHopsRejected(t *testing.T) {
	_, _, err := QuoteMultiHop(nil, uint256.NewInt(1), 0, 0)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrInvalidInstruction, kind)
}
