package clmmcore

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// BigInt adapts *uint256.Int to gorm's Scanner/Valuer contract, stored as a
// decimal string column — the same "serialize the big number as text"
// approach the teacher uses for decimal.Decimal fields on CorePool, applied
// here to our own 256-bit type (gorm has no native support for it).
type BigInt struct {
	v *uint256.Int
}

func wrapBig(v *uint256.Int) *BigInt {
	if v == nil {
		v = new(uint256.Int)
	}
	return &BigInt{v: v}
}

func (b *BigInt) GormDataType() string { return "text" }

func (b *BigInt) Scan(value interface{}) error {
	if value == nil {
		b.v = new(uint256.Int)
		return nil
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("unsupported BigInt scan source: %T", value)
	}
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return err
	}
	b.v = n
	return nil
}

func (b BigInt) Value() (driver.Value, error) {
	if b.v == nil {
		return "0", nil
	}
	return b.v.Dec(), nil
}

// SignedBigInt adapts SignedInt to gorm's Scanner/Valuer, stored as a
// sign-prefixed decimal string ("-123" / "123").
type SignedBigInt struct {
	v SignedInt
}

func wrapSigned(v SignedInt) SignedBigInt {
	return SignedBigInt{v: v}
}

func (s *SignedBigInt) GormDataType() string { return "text" }

func (s *SignedBigInt) Scan(value interface{}) error {
	if value == nil {
		s.v = NewSigned(0)
		return nil
	}
	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("unsupported SignedBigInt scan source: %T", value)
	}
	neg := strings.HasPrefix(str, "-")
	str = strings.TrimPrefix(str, "-")
	str = strings.TrimPrefix(str, "+")
	mag, err := uint256.FromDecimal(str)
	if err != nil {
		return err
	}
	s.v = NewSignedMag(neg, mag)
	return nil
}

func (s SignedBigInt) Value() (driver.Value, error) {
	if s.v.Mag == nil {
		return "0", nil
	}
	if s.v.Neg {
		return "-" + s.v.Mag.Dec(), nil
	}
	return s.v.Mag.Dec(), nil
}
