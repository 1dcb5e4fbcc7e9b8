package clmmcore

import "github.com/holiman/uint256"

// Position is the per-(owner, range) record of §3: liquidity, the last
// observed fee-growth-inside snapshot, and uncollected fees. Grounded on
// the teacher's Position/PositionManager usage in pool.go
// (GetPositionAndInitIfAbsent, .Update) and the fee-capture arithmetic in
// token_position_manager.go's TokenPosition.IncreaseLiquidity/DecreaseLiquidity.
type Position struct {
	PoolID                   string `gorm:"primaryKey"`
	Owner                    string `gorm:"primaryKey"`
	TickLower                int32  `gorm:"primaryKey"`
	TickUpper                int32  `gorm:"primaryKey"`
	Liquidity                *BigInt `gorm:"type:text"`
	FeeGrowthInside0LastX128 *BigInt `gorm:"type:text"`
	FeeGrowthInside1LastX128 *BigInt `gorm:"type:text"`
	TokensOwed0              *BigInt `gorm:"type:text"`
	TokensOwed1              *BigInt `gorm:"type:text"`
}

// PositionKey identifies a position by its compound key (spec.md §3).
type PositionKey struct {
	Owner     string
	TickLower int32
	TickUpper int32
}

func newPosition(poolID, owner string, lower, upper int32) *Position {
	return &Position{
		PoolID:                   poolID,
		Owner:                    owner,
		TickLower:                lower,
		TickUpper:                upper,
		Liquidity:                wrapBig(new(uint256.Int)),
		FeeGrowthInside0LastX128: wrapBig(new(uint256.Int)),
		FeeGrowthInside1LastX128: wrapBig(new(uint256.Int)),
		TokensOwed0:              wrapBig(new(uint256.Int)),
		TokensOwed1:              wrapBig(new(uint256.Int)),
	}
}

// PositionStore owns every Position for one pool, indexed by compound key.
type PositionStore struct {
	positions map[PositionKey]*Position
	poolID    string
}

func NewPositionStore(poolID string) *PositionStore {
	return &PositionStore{positions: make(map[PositionKey]*Position), poolID: poolID}
}

func (ps *PositionStore) getOrInit(key PositionKey) *Position {
	p, ok := ps.positions[key]
	if !ok {
		p = newPosition(ps.poolID, key.Owner, key.TickLower, key.TickUpper)
		ps.positions[key] = p
	}
	return p
}

func (ps *PositionStore) Get(key PositionKey) (*Position, bool) {
	p, ok := ps.positions[key]
	return p, ok
}

// UpdatePosition applies a liquidity delta and captures accrued fees, per
// spec.md §4.4. Fee-growth deltas are computed via modular (wraparound)
// 256-bit subtraction — the accumulators themselves wrap at 2^256 and the
// delta since last touch is only meaningful modulo that, per §3 I-FEEOUT
// and §9's note on fee-growth wraparound.
func (ps *PositionStore) UpdatePosition(key PositionKey, delta SignedInt, feeGrowthInside0, feeGrowthInside1 *uint256.Int) (tokensOwed0Delta, tokensOwed1Delta *uint256.Int, err error) {
	p := ps.getOrInit(key)

	deltaFg0 := new(uint256.Int).Sub(feeGrowthInside0, p.FeeGrowthInside0LastX128.v) // wraps mod 2^256
	deltaFg1 := new(uint256.Int).Sub(feeGrowthInside1, p.FeeGrowthInside1LastX128.v)

	owed0, err := MulDiv(p.Liquidity.v, deltaFg0, Q128())
	if err != nil {
		return nil, nil, err
	}
	owed1, err := MulDiv(p.Liquidity.v, deltaFg1, Q128())
	if err != nil {
		return nil, nil, err
	}

	newLiquidity, err := AddToUnsigned(p.Liquidity.v, delta, "UpdatePosition")
	if err != nil {
		return nil, nil, err
	}

	p.TokensOwed0 = wrapBig(new(uint256.Int).Add(p.TokensOwed0.v, owed0))
	p.TokensOwed1 = wrapBig(new(uint256.Int).Add(p.TokensOwed1.v, owed1))
	p.Liquidity = wrapBig(newLiquidity)
	p.FeeGrowthInside0LastX128 = wrapBig(new(uint256.Int).Set(feeGrowthInside0))
	p.FeeGrowthInside1LastX128 = wrapBig(new(uint256.Int).Set(feeGrowthInside1))

	return owed0, owed1, nil
}

// Poke captures fees without changing liquidity — a zero-delta touch.
func (ps *PositionStore) Poke(key PositionKey, feeGrowthInside0, feeGrowthInside1 *uint256.Int) error {
	_, _, err := ps.UpdatePosition(key, NewSigned(0), feeGrowthInside0, feeGrowthInside1)
	return err
}

// Collect pays out min(req, owed) per token and subtracts from tokens_owed,
// per spec.md §4.4/§6.
func (ps *PositionStore) Collect(key PositionKey, req0, req1 *uint256.Int) (paid0, paid1 *uint256.Int, err error) {
	p, ok := ps.Get(key)
	if !ok {
		return nil, nil, newErr("Collect", ErrInvalidAccount, "position not found")
	}
	paid0 = minUint(req0, p.TokensOwed0.v)
	paid1 = minUint(req1, p.TokensOwed1.v)
	p.TokensOwed0 = wrapBig(new(uint256.Int).Sub(p.TokensOwed0.v, paid0))
	p.TokensOwed1 = wrapBig(new(uint256.Int).Sub(p.TokensOwed1.v, paid1))
	return paid0, paid1, nil
}

// CloneForQuote deep-copies every position for a scratch, non-mutating
// quote (multihop.go).
func (ps *PositionStore) CloneForQuote() *PositionStore {
	clone := NewPositionStore(ps.poolID)
	for k, p := range ps.positions {
		copied := *p
		copied.Liquidity = wrapBig(new(uint256.Int).Set(p.Liquidity.v))
		copied.FeeGrowthInside0LastX128 = wrapBig(new(uint256.Int).Set(p.FeeGrowthInside0LastX128.v))
		copied.FeeGrowthInside1LastX128 = wrapBig(new(uint256.Int).Set(p.FeeGrowthInside1LastX128.v))
		copied.TokensOwed0 = wrapBig(new(uint256.Int).Set(p.TokensOwed0.v))
		copied.TokensOwed1 = wrapBig(new(uint256.Int).Set(p.TokensOwed1.v))
		clone.positions[k] = &copied
	}
	return clone
}

func minUint(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) < 0 {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}
