package clmmcore

import "github.com/holiman/uint256"

// SignedInt is a sign-magnitude 256-bit signed integer, used wherever the
// spec calls for a signed liquidity or token delta (liquidity_net, Δliquidity,
// crossTick's folding into active liquidity). spec.md §9 explicitly warns
// against the original source's approach of constructing a signed value by
// byte-copying a U256 into an "I256" — that silently reinterprets the sign
// bit and is unsound. Sign-magnitude, as the spec allows, sidesteps that
// entirely: the sign and the 256-bit magnitude are never confused.
type SignedInt struct {
	Neg bool
	Mag *uint256.Int
}

// NewSigned builds a SignedInt from an int64 delta.
func NewSigned(v int64) SignedInt {
	if v < 0 {
		return SignedInt{Neg: true, Mag: uint256.NewInt(uint64(-v))}
	}
	return SignedInt{Neg: false, Mag: uint256.NewInt(uint64(v))}
}

// NewSignedMag builds a SignedInt from an explicit sign and magnitude.
func NewSignedMag(neg bool, mag *uint256.Int) SignedInt {
	if mag.IsZero() {
		neg = false
	}
	return SignedInt{Neg: neg, Mag: mag}
}

func (s SignedInt) IsZero() bool { return s.Mag == nil || s.Mag.IsZero() }

func (s SignedInt) Neg_() SignedInt {
	return NewSignedMag(!s.Neg, s.Mag)
}

// Add returns s + o.
func (s SignedInt) Add(o SignedInt) SignedInt {
	if s.Neg == o.Neg {
		return NewSignedMag(s.Neg, new(uint256.Int).Add(s.Mag, o.Mag))
	}
	if s.Mag.Cmp(o.Mag) >= 0 {
		return NewSignedMag(s.Neg, new(uint256.Int).Sub(s.Mag, o.Mag))
	}
	return NewSignedMag(o.Neg, new(uint256.Int).Sub(o.Mag, s.Mag))
}

// AddToUnsigned computes u + s, returning InsufficientLiquidity if the
// result would be negative (spec's "must remain non-negative" guard for
// liquidity_gross/liquidity/position.liquidity updates).
func AddToUnsigned(u *uint256.Int, s SignedInt, op string) (*uint256.Int, error) {
	if !s.Neg {
		sum := new(uint256.Int).Add(u, s.Mag)
		if sum.Cmp(u) < 0 {
			return nil, newErr(op, ErrMathOverflow, "liquidity addition overflowed 2^256")
		}
		return sum, nil
	}
	if u.Cmp(s.Mag) < 0 {
		return nil, newErr(op, ErrInsufficientLiquidity, "delta would drive value negative")
	}
	return new(uint256.Int).Sub(u, s.Mag), nil
}

// AbsUint64 returns the magnitude truncated to uint64 for display purposes.
func (s SignedInt) AbsUint64() uint64 {
	return s.Mag.Uint64()
}
