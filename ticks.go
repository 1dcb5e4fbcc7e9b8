package clmmcore

import "github.com/holiman/uint256"

// Tick is the per-tick record of §3: gross/net liquidity, fee-growth-outside,
// and an initialized flag. Grounded on the teacher's TickManager usage in
// pool.go (GetTickAndInitIfAbsent, .Update, .Cross, Clear).
type Tick struct {
	Index                  int32 `gorm:"primaryKey;autoIncrement:false"`
	PoolID                 string `gorm:"primaryKey"`
	LiquidityGross         *BigInt `gorm:"type:text"`
	LiquidityNet           SignedBigInt `gorm:"type:text"`
	FeeGrowthOutside0X128  *BigInt `gorm:"type:text"`
	FeeGrowthOutside1X128  *BigInt `gorm:"type:text"`
	Initialized            bool
}

func newTick(index int32) *Tick {
	return &Tick{
		Index:                 index,
		LiquidityGross:        wrapBig(new(uint256.Int)),
		LiquidityNet:          wrapSigned(NewSigned(0)),
		FeeGrowthOutside0X128: wrapBig(new(uint256.Int)),
		FeeGrowthOutside1X128: wrapBig(new(uint256.Int)),
	}
}

// TickStore owns every Tick for one pool plus its bitmap (spec.md §3
// "Ownership": the pool exclusively owns its tick bitmap).
type TickStore struct {
	ticks       map[int32]*Tick
	bitmap      *TickBitmap
	tickSpacing int32
	maxLiqPerTick *uint256.Int
}

func NewTickStore(tickSpacing int32) *TickStore {
	return &TickStore{
		ticks:         make(map[int32]*Tick),
		bitmap:        NewTickBitmap(),
		tickSpacing:   tickSpacing,
		maxLiqPerTick: TickSpacingToMaxLiquidityPerTick(tickSpacing),
	}
}

func (ts *TickStore) getOrInit(index int32) *Tick {
	t, ok := ts.ticks[index]
	if !ok {
		t = newTick(index)
		ts.ticks[index] = t
	}
	return t
}

func (ts *TickStore) Get(index int32) (*Tick, bool) {
	t, ok := ts.ticks[index]
	return t, ok
}

// UpdateTick applies a signed liquidity delta to the tick at index, per
// spec.md §4.3. upperFlag selects the sign convention for liquidity_net
// (+delta for the lower endpoint, -delta for the upper). Returns whether the
// tick's initialized bit flipped (0<->positive liquidity_gross transition).
func (ts *TickStore) UpdateTick(index int32, delta SignedInt, upperFlag bool, currentTick int32, feeGrowthGlobal0, feeGrowthGlobal1 *uint256.Int) (flipped bool, err error) {
	t := ts.getOrInit(index)

	grossBefore := t.LiquidityGross.v
	grossAfter, err := AddToUnsigned(grossBefore, delta, "UpdateTick")
	if err != nil {
		return false, err
	}
	if grossAfter.Gt(ts.maxLiqPerTick) {
		return false, newErr("UpdateTick", ErrInsufficientLiquidity, "liquidity_gross exceeds max liquidity per tick")
	}

	netDelta := delta
	if upperFlag {
		netDelta = delta.Neg_()
	}
	t.LiquidityNet = wrapSigned(t.LiquidityNet.v.Add(netDelta))
	t.LiquidityGross = wrapBig(grossAfter)

	wasInit := !grossBefore.IsZero()
	isInit := !grossAfter.IsZero()

	if !wasInit && isInit {
		if index <= currentTick {
			t.FeeGrowthOutside0X128 = wrapBig(new(uint256.Int).Set(feeGrowthGlobal0))
			t.FeeGrowthOutside1X128 = wrapBig(new(uint256.Int).Set(feeGrowthGlobal1))
		} else {
			t.FeeGrowthOutside0X128 = wrapBig(new(uint256.Int))
			t.FeeGrowthOutside1X128 = wrapBig(new(uint256.Int))
		}
		ts.bitmap.Flip(index, ts.tickSpacing)
		t.Initialized = true
		return true, nil
	}
	if wasInit && !isInit {
		ts.bitmap.Flip(index, ts.tickSpacing)
		t.Initialized = false
		return true, nil
	}
	return false, nil
}

// Clear removes a tick record once liquidity_gross returns to zero.
// Implementations MAY garbage-collect per spec.md §3 "Lifecycle"; this one
// does, matching the teacher's TickManager.Clear call in pool.go.
func (ts *TickStore) Clear(index int32) {
	delete(ts.ticks, index)
}

// CrossTick flips the fee-growth-outside interpretation for tick index
// (spec.md §4.3/I-FEEOUT) and returns liquidity_net for the swap engine to
// fold into active liquidity.
func (ts *TickStore) CrossTick(index int32, feeGrowthGlobal0, feeGrowthGlobal1 *uint256.Int) SignedInt {
	t := ts.getOrInit(index)
	t.FeeGrowthOutside0X128 = wrapBig(new(uint256.Int).Sub(feeGrowthGlobal0, t.FeeGrowthOutside0X128.v))
	t.FeeGrowthOutside1X128 = wrapBig(new(uint256.Int).Sub(feeGrowthGlobal1, t.FeeGrowthOutside1X128.v))
	return t.LiquidityNet.v
}

// CloneForQuote produces an independent deep copy suitable for a
// non-mutating multi-hop quote (multihop.go): crossing ticks during a quote
// must not perturb the live pool's fee-growth-outside bookkeeping.
func (ts *TickStore) CloneForQuote() *TickStore {
	clone := &TickStore{
		ticks:         make(map[int32]*Tick, len(ts.ticks)),
		bitmap:        ts.bitmap.CloneForQuote(),
		tickSpacing:   ts.tickSpacing,
		maxLiqPerTick: ts.maxLiqPerTick,
	}
	for idx, t := range ts.ticks {
		copied := *t
		copied.LiquidityGross = wrapBig(new(uint256.Int).Set(t.LiquidityGross.v))
		copied.FeeGrowthOutside0X128 = wrapBig(new(uint256.Int).Set(t.FeeGrowthOutside0X128.v))
		copied.FeeGrowthOutside1X128 = wrapBig(new(uint256.Int).Set(t.FeeGrowthOutside1X128.v))
		clone.ticks[idx] = &copied
	}
	return clone
}

// NextInitializedTickWithinWord delegates to the pool's bitmap.
func (ts *TickStore) NextInitializedTickWithinWord(tick int32, lte bool) (int32, bool) {
	return ts.bitmap.NextInitializedTickWithinWord(tick, ts.tickSpacing, lte)
}

// FeeGrowthInside computes (fg_in_0, fg_in_1) for range [lower, upper) given
// the pool's current tick and global accumulators, per spec.md §4.4.
func (ts *TickStore) FeeGrowthInside(lower, upper, currentTick int32, feeGrowthGlobal0, feeGrowthGlobal1 *uint256.Int) (*uint256.Int, *uint256.Int) {
	lowerTick := ts.getOrInit(lower)
	upperTick := ts.getOrInit(upper)

	var fgBelow0, fgBelow1 *uint256.Int
	if currentTick >= lower {
		fgBelow0 = lowerTick.FeeGrowthOutside0X128.v
		fgBelow1 = lowerTick.FeeGrowthOutside1X128.v
	} else {
		fgBelow0 = new(uint256.Int).Sub(feeGrowthGlobal0, lowerTick.FeeGrowthOutside0X128.v)
		fgBelow1 = new(uint256.Int).Sub(feeGrowthGlobal1, lowerTick.FeeGrowthOutside1X128.v)
	}

	var fgAbove0, fgAbove1 *uint256.Int
	if currentTick < upper {
		fgAbove0 = upperTick.FeeGrowthOutside0X128.v
		fgAbove1 = upperTick.FeeGrowthOutside1X128.v
	} else {
		fgAbove0 = new(uint256.Int).Sub(feeGrowthGlobal0, upperTick.FeeGrowthOutside0X128.v)
		fgAbove1 = new(uint256.Int).Sub(feeGrowthGlobal1, upperTick.FeeGrowthOutside1X128.v)
	}

	fgIn0 := new(uint256.Int).Sub(feeGrowthGlobal0, fgBelow0)
	fgIn0.Sub(fgIn0, fgAbove0)
	fgIn1 := new(uint256.Int).Sub(feeGrowthGlobal1, fgBelow1)
	fgIn1.Sub(fgIn1, fgAbove1)
	return fgIn0, fgIn1
}
