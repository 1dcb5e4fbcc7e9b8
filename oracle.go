package clmmcore

import (
	"sort"

	"github.com/holiman/uint256"
)

// Observation is one ring-buffer entry of §3/§4.7: a timestamped snapshot of
// spot price, tick, and active liquidity, appended at Initialize and on
// every swap. ModifyLiquidity (add/remove-liquidity) does not append one.
// Grounded on mev_protection.rs's OracleObservation.
type Observation struct {
	Timestamp int64
	SqrtPrice *uint256.Int
	Tick      int32
	Liquidity *uint256.Int
}

// MevConfig mirrors mev_protection.rs's MevConfig: the knobs that gate a
// swap's preconditions (§4.5/§4.7), minus the social-media fields the
// original carries — those are explicitly not ported (spec.md §9).
type MevConfig struct {
	OracleEnabled       bool
	OracleWindowSeconds int64
	MinUpdateInterval   int64
	MaxSlippageBps      uint32
	BatchAuctionEnabled bool
	BatchWindowSeconds  int64
}

func DefaultMevConfig() MevConfig {
	return MevConfig{
		OracleEnabled:       true,
		OracleWindowSeconds: 1800,
		MinUpdateInterval:   1,
		MaxSlippageBps:      500,
		BatchAuctionEnabled: false,
		BatchWindowSeconds:  12,
	}
}

// OracleRingBuffer is the bounded observation history of §3 ("Oracle
// observation: ... ring buffer of bounded capacity (default 100)").
type OracleRingBuffer struct {
	capacity     int
	observations []Observation
	lastUpdate   int64
}

func NewOracleRingBuffer(capacity int) *OracleRingBuffer {
	if capacity <= 0 {
		capacity = DefaultOracleCapacity
	}
	return &OracleRingBuffer{capacity: capacity}
}

// Append records a new observation, trimming the oldest entry once capacity
// is exceeded (ring-buffer semantics via a backing slice).
func (o *OracleRingBuffer) Append(obs Observation) {
	o.observations = append(o.observations, obs)
	if len(o.observations) > o.capacity {
		o.observations = o.observations[len(o.observations)-o.capacity:]
	}
	o.lastUpdate = obs.Timestamp
}

func (o *OracleRingBuffer) Len() int { return len(o.observations) }

func (o *OracleRingBuffer) Latest() (Observation, bool) {
	if len(o.observations) == 0 {
		return Observation{}, false
	}
	return o.observations[len(o.observations)-1], true
}

// TWAP computes the time-weighted average price over the trailing window,
// per spec.md §4.7: a piecewise-linear integral over observations within
// [t_now-window, t_now], weighted by the time each adjacent pair's average
// price holds. Ported from mev_protection.rs's calculate_twap.
func (o *OracleRingBuffer) TWAP(windowSeconds int64) (float64, error) {
	if len(o.observations) == 0 {
		return 0, newErr("TWAP", ErrInvalidOracle, "no observations")
	}
	tNow := o.observations[len(o.observations)-1].Timestamp
	tStart := tNow - windowSeconds

	filtered := make([]Observation, 0, len(o.observations))
	for _, obs := range o.observations {
		if obs.Timestamp >= tStart {
			filtered = append(filtered, obs)
		}
	}
	if len(filtered) < 2 {
		return 0, newErr("TWAP", ErrInvalidOracle, "fewer than 2 observations in window")
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp < filtered[j].Timestamp })

	var weightedSum, totalWeight float64
	for i := 0; i < len(filtered)-1; i++ {
		a, b := filtered[i], filtered[i+1]
		pa := SqrtPriceX96ToPrice(a.SqrtPrice)
		pb := SqrtPriceX96ToPrice(b.SqrtPrice)
		avgPrice := (pa + pb) / 2

		lo := a.Timestamp
		if lo < tStart {
			lo = tStart
		}
		hi := b.Timestamp
		if hi > tNow {
			hi = tNow
		}
		weight := float64(hi - lo)
		if weight <= 0 {
			continue
		}
		weightedSum += avgPrice * weight
		totalWeight += weight
	}
	if totalWeight <= 0 {
		return 0, newErr("TWAP", ErrInvalidOracle, "degenerate window: zero total weight")
	}
	return weightedSum / totalWeight, nil
}

// ValidateTwapVsSpot implements §4.7's TWAP-vs-spot gate: the relative
// deviation of spot from twap, in bps, must not exceed maxSlippageBps.
func ValidateTwapVsSpot(spot, twap float64, maxSlippageBps uint32) error {
	if twap == 0 {
		return newErr("ValidateTwapVsSpot", ErrInvalidOracle, "twap is zero")
	}
	deviation := spot - twap
	if deviation < 0 {
		deviation = -deviation
	}
	bps := deviation * 10000 / twap
	if bps > float64(maxSlippageBps) {
		return newErr("ValidateTwapVsSpot", ErrInvalidPrice, "spot deviates from twap beyond max slippage")
	}
	return nil
}

// ValidateLimitSide implements §4.7's limit-side gate: the user's price
// limit must sit on the protective side of twap for the swap direction.
func ValidateLimitSide(zeroForOne bool, sqrtPriceLimit *uint256.Int, twapSqrtPrice *uint256.Int) error {
	if zeroForOne {
		if sqrtPriceLimit.Cmp(twapSqrtPrice) < 0 {
			return newErr("ValidateLimitSide", ErrInvalidPrice, "sqrt_price_limit below twap for zeroForOne swap")
		}
		return nil
	}
	if sqrtPriceLimit.Cmp(twapSqrtPrice) > 0 {
		return newErr("ValidateLimitSide", ErrInvalidPrice, "sqrt_price_limit above twap for oneForZero swap")
	}
	return nil
}

// ValidateUpdateFrequency enforces MinUpdateInterval between oracle writes,
// ported from mev_protection.rs's validate_update_frequency.
func (o *OracleRingBuffer) ValidateUpdateFrequency(now int64, minInterval int64) error {
	if o.lastUpdate == 0 {
		return nil
	}
	if now-o.lastUpdate < minInterval {
		return newErr("ValidateUpdateFrequency", ErrInvalidOracle, "update interval too short")
	}
	return nil
}

// ValidateSequence implements §4.7's sequence-ordering gate.
func ValidateSequence(seq, lastSequenceNumber uint64) error {
	if seq != lastSequenceNumber+1 {
		return newErr("ValidateSequence", ErrInvalidInstruction, "sequence number out of order")
	}
	return nil
}

// BatchOperationKind enumerates the pending-operation variants of
// mev_protection.rs's BatchOperation enum.
type BatchOperationKind int

const (
	BatchOpSwap BatchOperationKind = iota
	BatchOpAddLiquidity
	BatchOpRemoveLiquidity
)

// BatchAuctionEntry is a single queued operation awaiting batch clearing,
// per spec.md §4.7's "Batch auction (optional)" and mev_protection.rs's
// BatchAuctionEntry.
type BatchAuctionEntry struct {
	Sequence  uint64
	Timestamp int64
	Kind      BatchOperationKind
	Owner     string
	Amount    *uint256.Int
	ZeroForOne bool
}

// BatchAuctionQueue is a FIFO queue of pending operations, drained in
// timestamp-then-sequence order once each entry's batch_window has elapsed.
// Enqueue places no limit on the number of entries. Grounded on mev_protection.rs's BatchState/process_batch_auction.
type BatchAuctionQueue struct {
	entries []BatchAuctionEntry
}

func NewBatchAuctionQueue() *BatchAuctionQueue {
	return &BatchAuctionQueue{}
}

func (q *BatchAuctionQueue) Enqueue(e BatchAuctionEntry) {
	q.entries = append(q.entries, e)
}

// CloneForQuote deep-copies the pending-entry slice so a scratch queue used
// during quoting never shares backing storage with the live pool's queue.
func (q *BatchAuctionQueue) CloneForQuote() *BatchAuctionQueue {
	return &BatchAuctionQueue{entries: append([]BatchAuctionEntry(nil), q.entries...)}
}

// DrainEligible removes and returns, in FIFO (timestamp then sequence)
// order, every entry old enough to clear against now and batchWindow.
func (q *BatchAuctionQueue) DrainEligible(now int64, batchWindow int64) []BatchAuctionEntry {
	sort.SliceStable(q.entries, func(i, j int) bool {
		if q.entries[i].Timestamp != q.entries[j].Timestamp {
			return q.entries[i].Timestamp < q.entries[j].Timestamp
		}
		return q.entries[i].Sequence < q.entries[j].Sequence
	})
	var eligible []BatchAuctionEntry
	var remaining []BatchAuctionEntry
	for _, e := range q.entries {
		if now-e.Timestamp >= batchWindow {
			eligible = append(eligible, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	q.entries = remaining
	return eligible
}

func (q *BatchAuctionQueue) Len() int { return len(q.entries) }
