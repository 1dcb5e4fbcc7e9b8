package clmmcore

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestMulDivBasic(t *testing.T) {
	x := uint256.NewInt(1_000_000)
	y := uint256.NewInt(3)
	d := uint256.NewInt(7)
	got, err := MulDiv(x, y, d)
	require.NoError(t, err)
	require.Equal(t, uint64(428571), got.Uint64())
}

func TestMulDivDivisionByZero(t *testing.T) {
	x := uint256.NewInt(1)
	y := uint256.NewInt(1)
	_, err := MulDiv(x, y, uint256.NewInt(0))
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, ErrMathOverflow, kind)
}

func TestMulDivWidensPast128Bits(t *testing.T) {
	// x*y overflows a 128-bit intermediate but the true product fits in 256
	// bits; this is exactly the case original_source's hand-split 128-bit
	// aliasing gets wrong.
	x, _ := uint256.FromHex("0xffffffffffffffffffffffffffffffff")
	y, _ := uint256.FromHex("0xffffffffffffffffffffffffffffffff")
	d := uint256.NewInt(1)
	got, err := MulDiv(x, y, d)
	require.NoError(t, err)

	want := new(big.Int).Mul(x.ToBig(), y.ToBig())
	require.Equal(t, want, got.ToBig())
}

func TestMulDivRoundingUpExact(t *testing.T) {
	got, err := MulDivRoundingUp(uint256.NewInt(10), uint256.NewInt(2), uint256.NewInt(5))
	require.NoError(t, err)
	require.Equal(t, uint64(4), got.Uint64())
}

func TestMulDivRoundingUpNonExact(t *testing.T) {
	got, err := MulDivRoundingUp(uint256.NewInt(10), uint256.NewInt(1), uint256.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(4), got.Uint64())
}

func TestDivRoundingUp(t *testing.T) {
	got, err := DivRoundingUp(uint256.NewInt(10), uint256.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(4), got.Uint64())

	got, err = DivRoundingUp(uint256.NewInt(9), uint256.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.Uint64())
}

func TestSqrtExactSquares(t *testing.T) {
	cases := []uint64{0, 1, 4, 9, 16, 1_000_000, 123456789}
	for _, c := range cases {
		x := new(uint256.Int).Mul(uint256.NewInt(c), uint256.NewInt(c))
		got := Sqrt(x)
		require.Equal(t, c, got.Uint64(), "sqrt(%d^2)", c)
	}
}

func TestSqrtFloorsNonSquares(t *testing.T) {
	got := Sqrt(uint256.NewInt(10))
	require.Equal(t, uint64(3), got.Uint64())
}

func TestSqrtPriceRoundTripIsApproximatelyStable(t *testing.T) {
	sp, err := SqrtRatioAtTick(0)
	require.NoError(t, err)
	price := SqrtPriceX96ToPrice(sp)
	require.InDelta(t, 1.0, price, 1e-9)
}
