package clmmcore

import "gorm.io/gorm"

// Flush persists the pool's scalar record via gorm, mirroring the teacher's
// CorePool.Flush — create on first flush, update thereafter. Ticks and
// positions are flushed separately (FlushTicks/FlushPositions) since they
// are independent records keyed by pool (spec.md §6 "Persisted state
// layout": "each pool, each tick, each position is an independent record").
func (p *PoolEngine) Flush(db *gorm.DB) error {
	if p.ID != 0 {
		return db.Model(p).Updates(map[string]interface{}{
			"sqrt_price_x96":           p.SqrtPriceX96,
			"tick":                     p.Tick,
			"liquidity":                p.Liquidity,
			"fee_growth_global0_x128":  p.FeeGrowthGlobal0X128,
			"fee_growth_global1_x128":  p.FeeGrowthGlobal1X128,
			"protocol_fees0":           p.ProtocolFees0,
			"protocol_fees1":           p.ProtocolFees1,
			"position_count":           p.PositionCount,
			"last_update_timestamp":    p.LastUpdateTimestamp,
			"unlocked":                 p.Unlocked,
			"last_sequence_number":     p.LastSequenceNumber,
			"last_fee_adjustment":      p.LastFeeAdjustment,
			"fee_ppm":                  p.FeePpm,
		}).Error
	}
	return db.Create(p).Error
}

// LoadPoolEngine reads a pool's scalar record by PoolID and rehydrates its
// in-memory component stores. Ticks and positions are not eagerly loaded —
// callers that need full replay should follow with FlushTicks/LoadTicks
// equivalents against their own persisted tick/position tables, per §6.
func LoadPoolEngine(db *gorm.DB, poolID string) (*PoolEngine, error) {
	var p PoolEngine
	if err := db.Where("pool_id = ?", poolID).First(&p).Error; err != nil {
		return nil, err
	}
	p.Ticks = NewTickStore(p.TickSpacing)
	p.Positions = NewPositionStore(poolID)
	p.Oracle = NewOracleRingBuffer(DefaultOracleCapacity)
	p.DynamicFee = NewDynamicFeeEngine(p.MinFeePpm, p.MaxFeePpm)
	p.BatchQueue = NewBatchAuctionQueue()
	return &p, nil
}

// FlushTicks persists every initialized tick record for the pool, keyed by
// (pool_id, tick_index) as Tick's gorm tags declare.
func (p *PoolEngine) FlushTicks(db *gorm.DB) error {
	for idx, t := range p.Ticks.ticks {
		t.PoolID = p.PoolID
		t.Index = idx
		if err := db.Save(t).Error; err != nil {
			return err
		}
	}
	return nil
}

// FlushPositions persists every position record for the pool, keyed by
// (pool_id, owner, tick_lower, tick_upper) as Position's gorm tags declare.
func (p *PoolEngine) FlushPositions(db *gorm.DB) error {
	for _, pos := range p.Positions.positions {
		if err := db.Save(pos).Error; err != nil {
			return err
		}
	}
	return nil
}

// LoadTicks populates the pool's TickStore from persisted records, flipping
// the bitmap for each initialized tick so bitmap-driven search (§4.3) works
// immediately after a load.
func (p *PoolEngine) LoadTicks(db *gorm.DB) error {
	var ticks []Tick
	if err := db.Where("pool_id = ?", p.PoolID).Find(&ticks).Error; err != nil {
		return err
	}
	for i := range ticks {
		t := ticks[i]
		p.Ticks.ticks[t.Index] = &t
		if t.Initialized {
			p.Ticks.bitmap.Flip(t.Index, p.TickSpacing)
		}
	}
	return nil
}

// LoadPositions populates the pool's PositionStore from persisted records.
func (p *PoolEngine) LoadPositions(db *gorm.DB) error {
	var positions []Position
	if err := db.Where("pool_id = ?", p.PoolID).Find(&positions).Error; err != nil {
		return err
	}
	for i := range positions {
		pos := positions[i]
		key := PositionKey{Owner: pos.Owner, TickLower: pos.TickLower, TickUpper: pos.TickUpper}
		p.Positions.positions[key] = &pos
	}
	return nil
}
