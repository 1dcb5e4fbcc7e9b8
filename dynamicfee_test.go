package clmmcore

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestShouldAdjustFeeRespectsInterval(t *testing.T) {
	require.False(t, ShouldAdjustFee(100, 50, 100))
	require.True(t, ShouldAdjustFee(200, 50, 100))
}

func TestCalculateFeeAdjustmentStableMarketLeavesFeeUnchanged(t *testing.T) {
	e := NewDynamicFeeEngine(MinFeePpm, MaxFeePpm)
	// a mild 3-cycle oscillation (100/102/98) gives a coefficient of
	// variation of about 0.0163 -- inside the (0.01, 0.05) band that
	// triggers neither the high- nor low-volatility adjustment.
	wobble := []float64{100, 102, 98}
	for i := int64(0); i < 24; i++ {
		e.AddMarketData(MarketDataPoint{
			Timestamp: i,
			Price:     wobble[i%3],
			Volume:    uint256.NewInt(100_000_000_000), // inside [low, high] volume band
			ImpactBps: 300,                             // inside [low, high] impact band
		})
	}
	adj := e.CalculateFeeAdjustment(FeeBpsToPpm(30))
	require.Equal(t, adj.PreviousFeePpm, adj.NewFeePpm)
	require.Empty(t, adj.Reasons)
}

func TestCalculateFeeAdjustmentHighVolatilityRaisesFee(t *testing.T) {
	e := NewDynamicFeeEngine(MinFeePpm, MaxFeePpm)
	prices := []float64{100, 150, 80, 170, 60, 180, 50}
	for i, p := range prices {
		e.AddMarketData(MarketDataPoint{
			Timestamp: int64(i),
			Price:     p,
			Volume:    uint256.NewInt(100_000_000_000),
			ImpactBps: 300,
		})
	}
	adj := e.CalculateFeeAdjustment(FeeBpsToPpm(30))
	require.Contains(t, adj.Reasons, "high volatility")
	require.True(t, adj.NewFeePpm > adj.PreviousFeePpm)
}

func TestCalculateFeeAdjustmentBoundedToMinMax(t *testing.T) {
	e := NewDynamicFeeEngine(FeeBpsToPpm(1), FeeBpsToPpm(5))
	for i := int64(0); i < 24; i++ {
		e.AddMarketData(MarketDataPoint{
			Timestamp: i,
			Price:     float64(100 + i*1000), // wildly volatile, pushes fee up repeatedly
			Volume:    uint256.NewInt(1),      // low volume also pushes fee up
			ImpactBps: 900,                    // high impact also pushes fee up
		})
	}
	adj := e.CalculateFeeAdjustment(FeeBpsToPpm(4))
	require.LessOrEqual(t, adj.NewFeePpm, FeeBpsToPpm(5))
	require.GreaterOrEqual(t, adj.NewFeePpm, FeeBpsToPpm(1))
}

func TestAddMarketDataTrimsWindowsIndependently(t *testing.T) {
	e := NewDynamicFeeEngine(MinFeePpm, MaxFeePpm)
	for i := 0; i < 50; i++ {
		e.AddMarketData(MarketDataPoint{Timestamp: int64(i), Price: 100, Volume: uint256.NewInt(1), ImpactBps: 0})
	}
	require.Len(t, e.priceHistory, VolatilityWindow)
	require.Len(t, e.volumeHistory, VolumeWindow)
	require.Len(t, e.impactHistory, PriceImpactWindow)
}
