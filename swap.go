package clmmcore

import (
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// SwapResult is the C6 return tuple of spec.md §4.5's postconditions.
type SwapResult struct {
	AmountIn       *uint256.Int
	AmountOut      *uint256.Int
	FinalSqrtPrice *uint256.Int
	FinalTick      int32
	PriceImpactBps int64
	FeeInForcePpm  uint32
	Twap           float64
}

type swapState struct {
	amountRemaining     *uint256.Int
	amountCalculated    *uint256.Int
	sqrtPriceX96        *uint256.Int
	tick                int32
	liquidity           *uint256.Int
	feeGrowthGlobalX128 *uint256.Int
}

type stepComputations struct {
	sqrtPriceStartX96 *uint256.Int
	tickNext          int32
	initialized       bool
	sqrtPriceNextX96  *uint256.Int
	amountIn          *uint256.Int
	amountOut         *uint256.Int
	feeAmount         *uint256.Int
}

// computeSwapStep is the per-step quote of spec.md §4.5 step 4, ported from
// the Uniswap v3 SwapMath algorithm the teacher's HandleSwap loop drives
// (pool.go), rebuilt on this module's own FixedPoint/TickMath instead of the
// daoleno SDK's utils.ComputeSwapStep. Baseline covers exact-input only, per
// spec.md §4.5.
func computeSwapStep(sqrtRatioCurrent, sqrtRatioTarget, liquidity, amountRemaining *uint256.Int, feePpm uint32) (sqrtRatioNext, amountIn, amountOut, feeAmount *uint256.Int, err error) {
	zeroForOne := sqrtRatioCurrent.Cmp(sqrtRatioTarget) >= 0
	denom := uint256.NewInt(uint64(feeDenominatorPpm))
	feeFactor := new(uint256.Int).SubUint64(denom, uint64(feePpm))

	amountRemainingLessFee, err := MulDiv(amountRemaining, feeFactor, denom)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if zeroForOne {
		amountIn, err = GetAmount0Delta(sqrtRatioTarget, sqrtRatioCurrent, liquidity, true)
	} else {
		amountIn, err = GetAmount1Delta(sqrtRatioCurrent, sqrtRatioTarget, liquidity, true)
	}
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if amountRemainingLessFee.Cmp(amountIn) >= 0 {
		sqrtRatioNext = sqrtRatioTarget
	} else {
		sqrtRatioNext, err = getNextSqrtPriceFromInput(sqrtRatioCurrent, liquidity, amountRemainingLessFee, zeroForOne)
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}

	max := sqrtRatioNext.Eq(sqrtRatioTarget)

	if zeroForOne {
		if !max {
			amountIn, err = GetAmount0Delta(sqrtRatioNext, sqrtRatioCurrent, liquidity, true)
			if err != nil {
				return nil, nil, nil, nil, err
			}
		}
		amountOut, err = GetAmount1Delta(sqrtRatioNext, sqrtRatioCurrent, liquidity, false)
	} else {
		if !max {
			amountIn, err = GetAmount1Delta(sqrtRatioCurrent, sqrtRatioNext, liquidity, true)
			if err != nil {
				return nil, nil, nil, nil, err
			}
		}
		amountOut, err = GetAmount0Delta(sqrtRatioCurrent, sqrtRatioNext, liquidity, false)
	}
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if !sqrtRatioNext.Eq(sqrtRatioTarget) {
		feeAmount = new(uint256.Int).Sub(amountRemaining, amountIn)
	} else {
		feeAmount, err = MulDivRoundingUp(amountIn, uint256.NewInt(uint64(feePpm)), feeFactor)
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}
	return sqrtRatioNext, amountIn, amountOut, feeAmount, nil
}

func getNextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if zeroForOne {
		return NextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn, true)
	}
	return NextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn, true)
}

// Swap is the C6 Swap Engine's public contract (spec.md §4.5):
// amount_specified is exact-input, zero_for_one picks direction,
// sqrt_price_limit bounds how far the price may move, seq enforces
// sequence-number monotonicity against MEV reordering. Grounded on the
// teacher's CorePool.HandleSwap, rebuilt on uint256/TickStore/TickBitmap
// instead of decimal.Decimal/daoleno SDK, and extended with the MEV
// preconditions and oracle/fee postconditions spec.md adds.
func (p *PoolEngine) Swap(zeroForOne bool, amountSpecified *uint256.Int, sqrtPriceLimit *uint256.Int, recipient string, now int64, seq uint64) (*SwapResult, error) {
	if err := p.acquireLock("Swap"); err != nil {
		return nil, err
	}
	defer p.releaseLock()

	if amountSpecified == nil || amountSpecified.IsZero() {
		return nil, newErr("Swap", ErrInvalidInstruction, "amount_specified must be > 0")
	}

	if zeroForOne {
		if sqrtPriceLimit.Cmp(MinSqrtPrice) <= 0 || sqrtPriceLimit.Cmp(p.SqrtPriceX96.v) >= 0 {
			return nil, newErr("Swap", ErrInvalidPrice, "sqrt_price_limit out of range for zeroForOne swap")
		}
	} else {
		if sqrtPriceLimit.Cmp(MaxSqrtPrice) >= 0 || sqrtPriceLimit.Cmp(p.SqrtPriceX96.v) <= 0 {
			return nil, newErr("Swap", ErrInvalidPrice, "sqrt_price_limit out of range for oneForZero swap")
		}
	}

	if err := ValidateSequence(seq, p.LastSequenceNumber); err != nil {
		return nil, err
	}

	startSqrtPrice := new(uint256.Int).Set(p.SqrtPriceX96.v)

	if p.Mev.OracleEnabled && p.Oracle.Len() >= 2 {
		twap, err := p.Oracle.TWAP(p.Mev.OracleWindowSeconds)
		if err == nil {
			spot := SqrtPriceX96ToPrice(startSqrtPrice)
			if err := ValidateTwapVsSpot(spot, twap, p.Mev.MaxSlippageBps); err != nil {
				return nil, err
			}
			twapSqrtPrice := PriceToSqrtPriceX96(twap)
			if err := ValidateLimitSide(zeroForOne, sqrtPriceLimit, twapSqrtPrice); err != nil {
				return nil, err
			}
		}
	}

	feeGrowthGlobal0 := new(uint256.Int).Set(p.FeeGrowthGlobal0X128.v)
	feeGrowthGlobal1 := new(uint256.Int).Set(p.FeeGrowthGlobal1X128.v)

	state := swapState{
		amountRemaining:  new(uint256.Int).Set(amountSpecified),
		amountCalculated: new(uint256.Int),
		sqrtPriceX96:     new(uint256.Int).Set(p.SqrtPriceX96.v),
		tick:             p.Tick,
		liquidity:        new(uint256.Int).Set(p.Liquidity.v),
	}
	if zeroForOne {
		state.feeGrowthGlobalX128 = feeGrowthGlobal0
	} else {
		state.feeGrowthGlobalX128 = feeGrowthGlobal1
	}

	if logrus.GetLevel() >= logrus.DebugLevel {
		logrus.Debugf("Swap: pool=%s zeroForOne=%t amountSpecified=%s currentPrice=%s limitPrice=%s",
			p.PoolID, zeroForOne, amountSpecified.Dec(), state.sqrtPriceX96.Dec(), sqrtPriceLimit.Dec())
	}

	var amountInAccumulated, amountOutAccumulated uint256.Int

	loopCount := 0
	for !state.amountRemaining.IsZero() && !state.sqrtPriceX96.Eq(sqrtPriceLimit) {
		loopCount++
		if loopCount > 1000 {
			return nil, newErr("Swap", ErrMathOverflow, "excessive loop iterations (>1000)")
		}

		step := stepComputations{sqrtPriceStartX96: new(uint256.Int).Set(state.sqrtPriceX96)}

		tickNext, initialized := p.Ticks.NextInitializedTickWithinWord(state.tick, zeroForOne)
		if tickNext < MinTick {
			tickNext = MinTick
		}
		if tickNext > MaxTick {
			tickNext = MaxTick
		}
		step.tickNext = tickNext
		step.initialized = initialized

		sqrtPriceNext, err := SqrtRatioAtTick(step.tickNext)
		if err != nil {
			return nil, err
		}
		step.sqrtPriceNextX96 = sqrtPriceNext

		var sqrtPriceTarget *uint256.Int
		if zeroForOne {
			if sqrtPriceNext.Cmp(sqrtPriceLimit) < 0 {
				sqrtPriceTarget = sqrtPriceLimit
			} else {
				sqrtPriceTarget = sqrtPriceNext
			}
		} else {
			if sqrtPriceNext.Cmp(sqrtPriceLimit) > 0 {
				sqrtPriceTarget = sqrtPriceLimit
			} else {
				sqrtPriceTarget = sqrtPriceNext
			}
		}

		sqrtPriceAfter, amountIn, amountOut, feeStep, err := computeSwapStep(state.sqrtPriceX96, sqrtPriceTarget, state.liquidity, state.amountRemaining, p.currentFeePpm())
		if err != nil {
			return nil, err
		}
		step.amountIn, step.amountOut, step.feeAmount = amountIn, amountOut, feeStep

		if amountIn.IsZero() && feeStep.IsZero() && state.liquidity.IsZero() && !step.initialized {
			break
		}

		consumed := new(uint256.Int).Add(amountIn, feeStep)
		amountInAccumulated.Add(&amountInAccumulated, consumed)
		amountOutAccumulated.Add(&amountOutAccumulated, amountOut)
		if state.amountRemaining.Cmp(consumed) < 0 {
			return nil, newErr("Swap", ErrMathOverflow, "step consumed more than amount_remaining")
		}
		state.amountRemaining.Sub(state.amountRemaining, consumed)

		if !state.liquidity.IsZero() {
			feeGrowthDelta, err := MulDiv(feeStep, Q128(), state.liquidity)
			if err != nil {
				return nil, err
			}
			state.feeGrowthGlobalX128.Add(state.feeGrowthGlobalX128, feeGrowthDelta)
		}

		state.sqrtPriceX96 = sqrtPriceAfter

		switch {
		case sqrtPriceAfter.Eq(step.sqrtPriceNextX96) && step.initialized:
			deltaNet := p.Ticks.CrossTick(step.tickNext, feeGrowthGlobal0, feeGrowthGlobal1)
			if zeroForOne {
				deltaNet = deltaNet.Neg_()
			}
			newLiquidity, err := AddDelta(state.liquidity, deltaNet)
			if err != nil {
				return nil, err
			}
			state.liquidity = newLiquidity
			if zeroForOne {
				state.tick = step.tickNext - 1
			} else {
				state.tick = step.tickNext
			}
		case sqrtPriceAfter.Eq(step.sqrtPriceNextX96):
			if zeroForOne {
				state.tick = step.tickNext - 1
			} else {
				state.tick = step.tickNext
			}
		default:
			newTick, err := TickAtSqrtRatio(sqrtPriceAfter)
			if err != nil {
				return nil, err
			}
			state.tick = newTick
		}
	}

	p.SqrtPriceX96 = wrapBig(state.sqrtPriceX96)
	p.Tick = state.tick
	p.Liquidity = wrapBig(state.liquidity)
	if zeroForOne {
		p.FeeGrowthGlobal0X128 = wrapBig(feeGrowthGlobal0)
	} else {
		p.FeeGrowthGlobal1X128 = wrapBig(feeGrowthGlobal1)
	}
	p.LastSequenceNumber = seq
	p.LastUpdateTimestamp = now

	p.Oracle.Append(Observation{
		Timestamp: now,
		SqrtPrice: new(uint256.Int).Set(state.sqrtPriceX96),
		Tick:      state.tick,
		Liquidity: new(uint256.Int).Set(state.liquidity),
	})

	impactBps, err := PriceImpactBps(startSqrtPrice, state.sqrtPriceX96)
	if err != nil {
		impactBps = 0
	}
	twap, twapErr := p.Oracle.TWAP(p.Mev.OracleWindowSeconds)
	if twapErr != nil {
		twap = SqrtPriceX96ToPrice(state.sqrtPriceX96)
	}

	p.DynamicFee.AddMarketData(MarketDataPoint{
		Timestamp: now,
		Price:     SqrtPriceX96ToPrice(state.sqrtPriceX96),
		Volume:    new(uint256.Int).Set(&amountInAccumulated),
		ImpactBps: impactBps,
	})
	if p.DynamicFeeEnabled && ShouldAdjustFee(now, p.LastFeeAdjustment, p.FeeAdjustmentInterval) {
		adj := p.DynamicFee.CalculateFeeAdjustment(p.FeePpm)
		p.FeePpm = adj.NewFeePpm
		p.LastFeeAdjustment = now
	}

	return &SwapResult{
		AmountIn:       new(uint256.Int).Set(&amountInAccumulated),
		AmountOut:      new(uint256.Int).Set(&amountOutAccumulated),
		FinalSqrtPrice: new(uint256.Int).Set(state.sqrtPriceX96),
		FinalTick:      state.tick,
		PriceImpactBps: impactBps,
		FeeInForcePpm:  p.FeePpm,
		Twap:           twap,
	}, nil
}

func (p *PoolEngine) currentFeePpm() uint32 {
	return p.FeePpm
}
