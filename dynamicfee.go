package clmmcore

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// MarketDataPoint is one rolling-window sample of price/volume/impact, per
// spec.md §4.8. Ported from dynamic_fee.rs's MarketDataPoint. Volatility and
// volume are heuristic-only per §4.1/§9 — they never gate a state
// transition directly, only feed the bounded fee-adjustment delta.
type MarketDataPoint struct {
	Timestamp int64
	Price     float64
	Volume    *uint256.Int
	ImpactBps int64
}

// FeeAdjustment is the result of one dynamic-fee recomputation, carrying the
// reasons for observability the way dynamic_fee.rs's generate_adjustment_reason
// does.
type FeeAdjustment struct {
	PreviousFeePpm uint32
	NewFeePpm      uint32
	Reasons        []string
}

// DynamicFeeEngine holds the three bounded rolling buffers of §4.8 and
// recomputes the pool's fee at most once per fee_adjustment_interval.
// Grounded on dynamic_fee.rs's DynamicFeeEngine.
type DynamicFeeEngine struct {
	priceHistory  []MarketDataPoint
	volumeHistory []MarketDataPoint
	impactHistory []MarketDataPoint

	minFeePpm uint32
	maxFeePpm uint32
}

func NewDynamicFeeEngine(minFeePpm, maxFeePpm uint32) *DynamicFeeEngine {
	return &DynamicFeeEngine{minFeePpm: minFeePpm, maxFeePpm: maxFeePpm}
}

// AddMarketData records one sample into all three windows, trimming each to
// its bound (spec.md §4.8's VOLATILITY_WINDOW=24/VOLUME_WINDOW=24/
// PRICE_IMPACT_WINDOW=12), as dynamic_fee.rs's add_market_data does.
func (e *DynamicFeeEngine) AddMarketData(point MarketDataPoint) {
	e.priceHistory = append(e.priceHistory, point)
	if len(e.priceHistory) > VolatilityWindow {
		e.priceHistory = e.priceHistory[len(e.priceHistory)-VolatilityWindow:]
	}
	e.volumeHistory = append(e.volumeHistory, point)
	if len(e.volumeHistory) > VolumeWindow {
		e.volumeHistory = e.volumeHistory[len(e.volumeHistory)-VolumeWindow:]
	}
	e.impactHistory = append(e.impactHistory, point)
	if len(e.impactHistory) > PriceImpactWindow {
		e.impactHistory = e.impactHistory[len(e.impactHistory)-PriceImpactWindow:]
	}
}

// CloneForQuote deep-copies the three rolling windows so a read-only quote
// can run AddMarketData against a scratch engine without polluting the live
// pool's volatility/volume/impact history.
func (e *DynamicFeeEngine) CloneForQuote() *DynamicFeeEngine {
	clone := &DynamicFeeEngine{minFeePpm: e.minFeePpm, maxFeePpm: e.maxFeePpm}
	clone.priceHistory = append([]MarketDataPoint(nil), e.priceHistory...)
	clone.volumeHistory = append([]MarketDataPoint(nil), e.volumeHistory...)
	clone.impactHistory = append([]MarketDataPoint(nil), e.impactHistory...)
	return clone
}

// ShouldAdjustFee reports whether enough time has elapsed since the pool's
// last_fee_adjustment to run another recomputation (dynamic_fee.rs's
// should_adjust_fee, parameterized by the pool's configured interval rather
// than a hardcoded 3600s).
func ShouldAdjustFee(now, lastFeeAdjustment, intervalSeconds int64) bool {
	return now-lastFeeAdjustment >= intervalSeconds
}

// calculateVolatility computes the coefficient of variation (stddev/mean)
// of the price history, via shopspring/decimal for stable accumulation —
// this is display/heuristic math per §4.1/§9, never state-gating on its
// own. Ported from dynamic_fee.rs's calculate_volatility.
func calculateVolatility(points []MarketDataPoint) decimal.Decimal {
	if len(points) < 2 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, p := range points {
		sum = sum.Add(decimal.NewFromFloat(p.Price))
	}
	n := decimal.NewFromInt(int64(len(points)))
	mean := sum.Div(n)
	if mean.IsZero() {
		return decimal.Zero
	}

	variance := decimal.Zero
	for _, p := range points {
		diff := decimal.NewFromFloat(p.Price).Sub(mean)
		variance = variance.Add(diff.Mul(diff))
	}
	variance = variance.Div(n)
	stddev := decimalSqrt(variance)
	return stddev.Div(mean).Abs()
}

// decimalSqrt computes an approximate square root of a non-negative decimal
// via a handful of Newton iterations, seeded from float64 — adequate for a
// display/heuristic-only volatility measure.
func decimalSqrt(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() || d.IsZero() {
		return decimal.Zero
	}
	f, _ := d.Float64()
	x := decimal.NewFromFloat(f).Div(decimal.NewFromInt(2))
	if x.IsZero() {
		x = decimal.NewFromFloat(1)
	}
	for i := 0; i < 8; i++ {
		x = x.Add(d.Div(x)).Div(decimal.NewFromInt(2))
	}
	return x
}

func calculateAverageVolume(points []MarketDataPoint) *uint256.Int {
	sum := new(uint256.Int)
	for _, p := range points {
		if p.Volume != nil {
			sum.Add(sum, p.Volume)
		}
	}
	if len(points) == 0 {
		return sum
	}
	avg, _ := new(uint256.Int).DivMod(sum, uint256.NewInt(uint64(len(points))), new(uint256.Int))
	return avg
}

func calculateAverageImpact(points []MarketDataPoint) int64 {
	if len(points) == 0 {
		return 0
	}
	var sum int64
	for _, p := range points {
		sum += p.ImpactBps
	}
	return sum / int64(len(points))
}

// CalculateFeeAdjustment recomputes a new ppm fee from the rolling windows,
// bounded to [minFeePpm, maxFeePpm], per spec.md §4.8. Ported from
// dynamic_fee.rs's calculate_fee_adjustment; falls back to currentFeePpm
// unchanged on any internal inconsistency, per §7's "dynamic-fee engine
// falling back to current fee on any computation error."
func (e *DynamicFeeEngine) CalculateFeeAdjustment(currentFeePpm uint32) FeeAdjustment {
	adj := FeeAdjustment{PreviousFeePpm: currentFeePpm, NewFeePpm: currentFeePpm}

	delta := int64(0)

	vol := calculateVolatility(e.priceHistory)
	volHighThreshold := decimal.NewFromInt(feeAdjVolatilityHighBps).Div(decimal.NewFromInt(10_000))
	volLowThreshold := decimal.NewFromInt(feeAdjVolatilityLowBps).Div(decimal.NewFromInt(10_000))
	switch {
	case vol.GreaterThan(volHighThreshold):
		delta += feeAdjUp
		adj.Reasons = append(adj.Reasons, "high volatility")
	case vol.LessThan(volLowThreshold):
		delta += feeAdjDownSmall
		adj.Reasons = append(adj.Reasons, "low volatility")
	}

	avgVolume := calculateAverageVolume(e.volumeHistory)
	switch {
	case avgVolume.Cmp(volumeThresholdLow) < 0:
		delta += feeAdjUpVolume
		adj.Reasons = append(adj.Reasons, "low volume")
	case avgVolume.Cmp(volumeThresholdHigh) > 0:
		delta += feeAdjDownVolume
		adj.Reasons = append(adj.Reasons, "high volume")
	}

	avgImpact := calculateAverageImpact(e.impactHistory)
	switch {
	case avgImpact > impactHighBps:
		delta += feeAdjUpImpact
		adj.Reasons = append(adj.Reasons, "high price impact")
	case avgImpact < impactLowBps:
		delta += feeAdjDownImpact
		adj.Reasons = append(adj.Reasons, "low price impact")
	}

	newFeeBps := int64(currentFeePpm)/100 + delta
	newFeePpm := FeeBpsToPpm(uint32(clampInt64(newFeeBps, 0, 1<<31-1)))
	if newFeePpm < e.minFeePpm {
		newFeePpm = e.minFeePpm
	}
	if newFeePpm > e.maxFeePpm {
		newFeePpm = e.maxFeePpm
	}
	adj.NewFeePpm = newFeePpm
	return adj
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
