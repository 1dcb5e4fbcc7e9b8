package clmmcore

import "github.com/holiman/uint256"

// Hop is one leg of a read-only multi-hop route quote: the pool to cross
// and the direction through it. Ported from original_source's
// multi_hop.rs, scoped down to quoting only — atomic cross-pool execution
// is an explicit Non-goal (spec.md §1), so there is no QuoteAndExecute
// here, only QuoteMultiHop.
type Hop struct {
	Pool       *PoolEngine
	ZeroForOne bool
}

// HopQuote is one leg's contribution to a multi-hop quote.
type HopQuote struct {
	AmountIn       *uint256.Int
	AmountOut      *uint256.Int
	FinalSqrtPrice *uint256.Int
	FinalTick      int32
	PriceImpactBps int64
}

// QuoteMultiHop walks amountIn through each hop in order, feeding each
// hop's output as the next hop's input, using the same single-pool quoting
// path the engine exposes for swaps. It never mutates pool state and never
// commits — it exists purely to answer "what would N hops produce," per
// spec.md §1's framing that peripheral routing sits "on top of" the core
// contracts without becoming part of them.
func QuoteMultiHop(hops []Hop, amountIn *uint256.Int, now int64, startSeq uint64) ([]HopQuote, *uint256.Int, error) {
	if len(hops) == 0 {
		return nil, nil, newErr("QuoteMultiHop", ErrInvalidInstruction, "no hops supplied")
	}
	quotes := make([]HopQuote, 0, len(hops))
	current := new(uint256.Int).Set(amountIn)
	seq := startSeq

	for i, hop := range hops {
		scratch := clonePoolForQuote(hop.Pool)
		limit := MinSqrtPrice
		if !hop.ZeroForOne {
			limit = MaxSqrtPrice
		}
		sqrtLimit := nudgeAwayFromBound(limit, hop.ZeroForOne)

		seq = scratch.LastSequenceNumber + 1
		result, err := scratch.Swap(hop.ZeroForOne, current, sqrtLimit, "quote", now, seq)
		if err != nil {
			return nil, nil, newErr("QuoteMultiHop", ErrInvalidPrice, "hop failed: "+hopLabel(i))
		}
		quotes = append(quotes, HopQuote{
			AmountIn:       result.AmountIn,
			AmountOut:      result.AmountOut,
			FinalSqrtPrice: result.FinalSqrtPrice,
			FinalTick:      result.FinalTick,
			PriceImpactBps: result.PriceImpactBps,
		})
		current = result.AmountOut
	}
	return quotes, current, nil
}

func hopLabel(i int) string {
	return "hop[" + itoa(i) + "]"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// nudgeAwayFromBound backs a sqrt-price limit off the absolute MIN/MAX
// bound by one so the swap's own precondition check (strict inequality
// against pool.sqrt_price_x96 and the bound) never spuriously rejects a
// quote's unconstrained limit.
func nudgeAwayFromBound(bound *uint256.Int, zeroForOne bool) *uint256.Int {
	if zeroForOne {
		return new(uint256.Int).AddUint64(bound, 1)
	}
	return new(uint256.Int).SubUint64(bound, 1)
}

// clonePoolForQuote produces a scratch copy of the pool's dynamic state
// sufficient to run a non-mutating swap quote without perturbing the real
// pool — the scalar dynamic-state fields are copied so LastSequenceNumber/
// Unlocked advance independently of the live pool, and the tick and
// position stores are deep-cloned so CrossTick and fee-growth writes during
// the quote stay in the copy. The oracle is a fresh, empty ring buffer.
// DynamicFee and BatchQueue are
// deep-cloned too: Swap unconditionally records every quote leg into the
// dynamic-fee rolling windows, so sharing either by reference would leak a
// read-only quote's volatility/volume/impact samples (and queued auction
// entries) into the live pool's state.
func clonePoolForQuote(p *PoolEngine) *PoolEngine {
	clone := *p
	clone.SqrtPriceX96 = wrapBig(new(uint256.Int).Set(p.SqrtPriceX96.v))
	clone.Liquidity = wrapBig(new(uint256.Int).Set(p.Liquidity.v))
	clone.FeeGrowthGlobal0X128 = wrapBig(new(uint256.Int).Set(p.FeeGrowthGlobal0X128.v))
	clone.FeeGrowthGlobal1X128 = wrapBig(new(uint256.Int).Set(p.FeeGrowthGlobal1X128.v))
	clone.Ticks = p.Ticks.CloneForQuote()
	clone.Positions = p.Positions.CloneForQuote()
	clone.Oracle = NewOracleRingBuffer(DefaultOracleCapacity)
	clone.DynamicFee = p.DynamicFee.CloneForQuote()
	clone.BatchQueue = p.BatchQueue.CloneForQuote()
	clone.Unlocked = true
	return &clone
}
