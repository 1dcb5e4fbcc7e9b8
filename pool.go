package clmmcore

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PoolConfig is the construction-time identity and configuration of a pool
// (spec.md §3 "Config"/"Identity"), built via a plain constructor function
// rather than a generic options/env-var loader — grounded on the teacher's
// PoolConfig/NewPoolConfig in pool.go.
type PoolConfig struct {
	Token0      common.Address
	Token1      common.Address
	FeePpm      uint32
	TickSpacing int32

	BaseFeePpm            uint32
	MinFeePpm             uint32
	MaxFeePpm             uint32
	FeeAdjustmentInterval int64
	DynamicFeeEnabled     bool

	Mev MevConfig
}

// NewPoolConfig mirrors the teacher's NewPoolConfig constructor, adapted to
// the ppm fee convention and MEV config this engine adds.
func NewPoolConfig(token0, token1 common.Address, feePpm uint32, tickSpacing int32, mev MevConfig) PoolConfig {
	return PoolConfig{
		Token0:                token0,
		Token1:                token1,
		FeePpm:                feePpm,
		TickSpacing:           tickSpacing,
		BaseFeePpm:            feePpm,
		MinFeePpm:             MinFeePpm,
		MaxFeePpm:             MaxFeePpm,
		FeeAdjustmentInterval: 3600,
		DynamicFeeEnabled:     false,
		Mev:                   mev,
	}
}

// PoolEngine is the C5 aggregate: identity, dynamic state, and config, plus
// the in-memory component stores it owns exclusively (§3 "Ownership").
// Grounded on the teacher's CorePool, generalized from decimal.Decimal to
// uint256-backed state and from the daoleno SDK's tick/price math to this
// module's own FixedPoint/TickMath (C1/C2).
type PoolEngine struct {
	gorm.Model
	PoolID      string `gorm:"uniqueIndex"`
	Token0      string
	Token1      string
	FeePpm      uint32
	TickSpacing int32

	SqrtPriceX96         *BigInt `gorm:"type:text"`
	Tick                 int32
	Liquidity            *BigInt `gorm:"type:text"`
	FeeGrowthGlobal0X128 *BigInt `gorm:"type:text"`
	FeeGrowthGlobal1X128 *BigInt `gorm:"type:text"`
	ProtocolFees0        *BigInt `gorm:"type:text"`
	ProtocolFees1        *BigInt `gorm:"type:text"`
	PositionCount        uint64
	LastUpdateTimestamp  int64
	Unlocked             bool
	LastSequenceNumber   uint64
	LastFeeAdjustment    int64

	BaseFeePpm            uint32
	MinFeePpm             uint32
	MaxFeePpm             uint32
	FeeAdjustmentInterval int64
	DynamicFeeEnabled     bool
	Mev                   MevConfig `gorm:"-"`

	Ticks      *TickStore         `gorm:"-"`
	Positions  *PositionStore     `gorm:"-"`
	Oracle     *OracleRingBuffer  `gorm:"-"`
	DynamicFee *DynamicFeeEngine  `gorm:"-"`
	BatchQueue *BatchAuctionQueue `gorm:"-"`
}

// NewPoolEngine constructs an uninitialized pool per spec.md §6's
// initialize_pool, sorting the token pair as §3's Identity requires
// ("ordered pair (token_a, token_b) with token_a < token_b by lexicographic
// byte order"). Grounded on the teacher's NewCorePoolFromConfig.
func NewPoolEngine(poolID string, cfg PoolConfig) *PoolEngine {
	token0, token1 := cfg.Token0, cfg.Token1
	if bytesGreater(token0.Bytes(), token1.Bytes()) {
		token0, token1 = token1, token0
	}
	return &PoolEngine{
		PoolID:                poolID,
		Token0:                token0.Hex(),
		Token1:                token1.Hex(),
		FeePpm:                cfg.FeePpm,
		TickSpacing:           cfg.TickSpacing,
		SqrtPriceX96:          wrapBig(new(uint256.Int)),
		Liquidity:             wrapBig(new(uint256.Int)),
		FeeGrowthGlobal0X128:  wrapBig(new(uint256.Int)),
		FeeGrowthGlobal1X128:  wrapBig(new(uint256.Int)),
		ProtocolFees0:         wrapBig(new(uint256.Int)),
		ProtocolFees1:         wrapBig(new(uint256.Int)),
		Unlocked:              true,
		BaseFeePpm:            cfg.BaseFeePpm,
		MinFeePpm:             cfg.MinFeePpm,
		MaxFeePpm:             cfg.MaxFeePpm,
		FeeAdjustmentInterval: cfg.FeeAdjustmentInterval,
		DynamicFeeEnabled:     cfg.DynamicFeeEnabled,
		Mev:                   cfg.Mev,
		Ticks:                 NewTickStore(cfg.TickSpacing),
		Positions:             NewPositionStore(poolID),
		Oracle:                NewOracleRingBuffer(DefaultOracleCapacity),
		DynamicFee:            NewDynamicFeeEngine(cfg.MinFeePpm, cfg.MaxFeePpm),
		BatchQueue:            NewBatchAuctionQueue(),
	}
}

func bytesGreater(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// Initialize sets the pool's starting price and tick, per spec.md §6's
// initialize_pool. Grounded on the teacher's CorePool.Initialize.
func (p *PoolEngine) Initialize(sqrtPriceX96 *uint256.Int, now int64) error {
	if !p.SqrtPriceX96.v.IsZero() {
		return newErr("Initialize", ErrInvalidPrice, "pool already initialized")
	}
	tick, err := TickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return err
	}
	p.SqrtPriceX96 = wrapBig(new(uint256.Int).Set(sqrtPriceX96))
	p.Tick = tick
	p.LastUpdateTimestamp = now
	p.Oracle.Append(Observation{
		Timestamp: now,
		SqrtPrice: new(uint256.Int).Set(sqrtPriceX96),
		Tick:      tick,
		Liquidity: new(uint256.Int),
	})
	return nil
}

// acquireLock and releaseLock implement §5's reentrancy discipline: the
// engine asserts pool.unlocked around each mutating operation and releases
// it on every exit path, including error returns.
func (p *PoolEngine) acquireLock(op string) error {
	if !p.Unlocked {
		return newErr(op, ErrUnauthorized, "pool is locked (reentrant call)")
	}
	p.Unlocked = false
	return nil
}

func (p *PoolEngine) releaseLock() {
	p.Unlocked = true
}

// checkTicks validates a tick range per spec.md §4.6 step 1. Grounded on the
// teacher's checkTicks, generalized to tick_spacing divisibility and the
// floor/ceil-to-spacing bounds spec.md adds.
func (p *PoolEngine) checkTicks(lower, upper int32) error {
	if !(lower < upper) {
		return newErr("checkTicks", ErrInvalidTickRange, "tickLower must be less than tickUpper")
	}
	if lower%p.TickSpacing != 0 || upper%p.TickSpacing != 0 {
		return newErr("checkTicks", ErrInvalidTickRange, "ticks must be multiples of tick_spacing")
	}
	if lower < floorToSpacing(MinTick, p.TickSpacing) {
		return newErr("checkTicks", ErrInvalidTickRange, "tickLower below floorToSpacing(MIN_TICK)")
	}
	if upper > ceilToSpacing(MaxTick, p.TickSpacing) {
		return newErr("checkTicks", ErrInvalidTickRange, "tickUpper above ceilToSpacing(MAX_TICK)")
	}
	return nil
}

func floorToSpacing(tick, spacing int32) int32 {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

func ceilToSpacing(tick, spacing int32) int32 {
	q := tick / spacing
	if tick%spacing != 0 && tick > 0 {
		q++
	}
	return q * spacing
}

// ModifyLiquidity is the C7 Liquidity Manager's core routine (spec.md §4.6),
// shared by add_liquidity and remove_liquidity (delta's sign picks the
// direction). Grounded on the teacher's modifyPosition+updatePosition pair,
// rebuilt on TickStore/PositionStore/uint256 instead of
// TickManager/PositionManager/decimal.Decimal.
func (p *PoolEngine) ModifyLiquidity(owner string, lower, upper int32, delta SignedInt) (amount0, amount1 *uint256.Int, err error) {
	if err := p.acquireLock("ModifyLiquidity"); err != nil {
		return nil, nil, err
	}
	defer p.releaseLock()

	if err := p.checkTicks(lower, upper); err != nil {
		return nil, nil, err
	}

	if delta.Neg {
		key := PositionKey{Owner: owner, TickLower: lower, TickUpper: upper}
		pos, ok := p.Positions.Get(key)
		if !ok || pos.Liquidity.v.Cmp(delta.Mag) < 0 {
			return nil, nil, newErr("ModifyLiquidity", ErrInsufficientLiquidity, "burn exceeds owned liquidity")
		}
	}

	if logrus.GetLevel() >= logrus.DebugLevel {
		logrus.Debugf("ModifyLiquidity: pool=%s owner=%s [%d,%d) delta=%s", p.PoolID, owner, lower, upper, signedDebugString(delta))
	}

	if !delta.IsZero() {
		if _, err := p.Ticks.UpdateTick(lower, delta, false, p.Tick, p.FeeGrowthGlobal0X128.v, p.FeeGrowthGlobal1X128.v); err != nil {
			return nil, nil, err
		}
		if _, err := p.Ticks.UpdateTick(upper, delta, true, p.Tick, p.FeeGrowthGlobal0X128.v, p.FeeGrowthGlobal1X128.v); err != nil {
			return nil, nil, err
		}
	}

	fgIn0, fgIn1 := p.Ticks.FeeGrowthInside(lower, upper, p.Tick, p.FeeGrowthGlobal0X128.v, p.FeeGrowthGlobal1X128.v)
	key := PositionKey{Owner: owner, TickLower: lower, TickUpper: upper}
	if _, _, err := p.Positions.UpdatePosition(key, delta, fgIn0, fgIn1); err != nil {
		return nil, nil, err
	}

	if delta.Neg {
		lowerTick, _ := p.Ticks.Get(lower)
		upperTick, _ := p.Ticks.Get(upper)
		if lowerTick != nil && lowerTick.LiquidityGross.v.IsZero() {
			p.Ticks.Clear(lower)
		}
		if upperTick != nil && upperTick.LiquidityGross.v.IsZero() {
			p.Ticks.Clear(upper)
		}
	}

	amount0, amount1 = new(uint256.Int), new(uint256.Int)
	if !delta.IsZero() {
		roundUp := !delta.Neg
		mag := delta.Mag
		var err error
		switch {
		case p.Tick < lower:
			sqrtLower, e1 := SqrtRatioAtTick(lower)
			sqrtUpper, e2 := SqrtRatioAtTick(upper)
			if e1 != nil {
				return nil, nil, e1
			}
			if e2 != nil {
				return nil, nil, e2
			}
			amount0, err = GetAmount0Delta(sqrtLower, sqrtUpper, mag, roundUp)
		case p.Tick < upper:
			sqrtUpper, e1 := SqrtRatioAtTick(upper)
			sqrtLower, e2 := SqrtRatioAtTick(lower)
			if e1 != nil {
				return nil, nil, e1
			}
			if e2 != nil {
				return nil, nil, e2
			}
			amount0, err = GetAmount0Delta(p.SqrtPriceX96.v, sqrtUpper, mag, roundUp)
			if err != nil {
				return nil, nil, err
			}
			amount1, err = GetAmount1Delta(sqrtLower, p.SqrtPriceX96.v, mag, roundUp)
			if err != nil {
				return nil, nil, err
			}
			newLiquidity, lerr := AddDelta(p.Liquidity.v, delta)
			if lerr != nil {
				return nil, nil, lerr
			}
			p.Liquidity = wrapBig(newLiquidity)
		default:
			sqrtLower, e1 := SqrtRatioAtTick(lower)
			sqrtUpper, e2 := SqrtRatioAtTick(upper)
			if e1 != nil {
				return nil, nil, e1
			}
			if e2 != nil {
				return nil, nil, e2
			}
			amount1, err = GetAmount1Delta(sqrtLower, sqrtUpper, mag, roundUp)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	if !delta.Neg {
		p.PositionCount++
	}

	return amount0, amount1, nil
}

func signedDebugString(s SignedInt) string {
	if s.Neg {
		return "-" + s.Mag.Dec()
	}
	return s.Mag.Dec()
}

// AddLiquidity implements spec.md §6's add_liquidity: mints, then checks the
// resulting token pulls don't exceed the caller's declared maximums.
func (p *PoolEngine) AddLiquidity(owner string, lower, upper int32, liquidityDelta uint64, amount0Max, amount1Max *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	if liquidityDelta == 0 {
		return nil, nil, newErr("AddLiquidity", ErrInvalidInstruction, "delta must be > 0")
	}
	amount0, amount1, err = p.ModifyLiquidity(owner, lower, upper, NewSigned(int64(liquidityDelta)))
	if err != nil {
		return nil, nil, err
	}
	if amount0Max != nil && amount0.Cmp(amount0Max) > 0 {
		return nil, nil, newErr("AddLiquidity", ErrInsufficientLiquidity, "amount0 exceeds amount0Max")
	}
	if amount1Max != nil && amount1.Cmp(amount1Max) > 0 {
		return nil, nil, newErr("AddLiquidity", ErrInsufficientLiquidity, "amount1 exceeds amount1Max")
	}
	return amount0, amount1, nil
}

// RemoveLiquidity implements spec.md §6's remove_liquidity: burns, auto-pokes
// accrued fees into tokens_owed (handled inside ModifyLiquidity via
// UpdatePosition), and checks the payout meets the caller's declared
// minimums.
func (p *PoolEngine) RemoveLiquidity(owner string, lower, upper int32, liquidityDelta uint64, amount0Min, amount1Min *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	if liquidityDelta == 0 {
		return nil, nil, newErr("RemoveLiquidity", ErrInvalidInstruction, "delta must be > 0")
	}
	neg := NewSigned(int64(liquidityDelta)).Neg_()
	amount0, amount1, err = p.ModifyLiquidity(owner, lower, upper, neg)
	if err != nil {
		return nil, nil, err
	}
	if amount0Min != nil && amount0.Cmp(amount0Min) < 0 {
		return nil, nil, newErr("RemoveLiquidity", ErrInsufficientLiquidity, "amount0 below amount0Min")
	}
	if amount1Min != nil && amount1.Cmp(amount1Min) < 0 {
		return nil, nil, newErr("RemoveLiquidity", ErrInsufficientLiquidity, "amount1 below amount1Min")
	}
	key := PositionKey{Owner: owner, TickLower: lower, TickUpper: upper}
	if pos, ok := p.Positions.Get(key); ok && pos.Liquidity.v.IsZero() && pos.TokensOwed0.v.IsZero() && pos.TokensOwed1.v.IsZero() {
		p.PositionCount--
	}
	return amount0, amount1, nil
}

// CollectFees implements spec.md §6's collect_fees: pays min(req, owed) of
// each side. req of 0 means "collect all" of that side.
func (p *PoolEngine) CollectFees(owner string, lower, upper int32, req0, req1 *uint256.Int) (paid0, paid1 *uint256.Int, err error) {
	if err := p.acquireLock("CollectFees"); err != nil {
		return nil, nil, err
	}
	defer p.releaseLock()

	if err := p.checkTicks(lower, upper); err != nil {
		return nil, nil, err
	}
	key := PositionKey{Owner: owner, TickLower: lower, TickUpper: upper}
	pos, ok := p.Positions.Get(key)
	if !ok {
		return nil, nil, newErr("CollectFees", ErrUnauthorized, "no such position for owner")
	}
	r0, r1 := req0, req1
	if r0 == nil || r0.IsZero() {
		r0 = pos.TokensOwed0.v
	}
	if r1 == nil || r1.IsZero() {
		r1 = pos.TokensOwed1.v
	}
	return p.Positions.Collect(key, r0, r1)
}
