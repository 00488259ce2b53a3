package model

import (
	"encoding/json"
	"math/big"

	"github.com/shopspring/decimal"
)

const BpsDenominator = 10_000

// Percent is an exact fraction num/den. A zero denominator reads as zero.
type Percent struct {
	Num *big.Int
	Den *big.Int
}

// NewPercent copies num and den into a Percent.
func NewPercent(num, den *big.Int) Percent {
	p := Percent{Num: new(big.Int), Den: big.NewInt(1)}
	if num != nil {
		p.Num.Set(num)
	}
	if den != nil && den.Sign() != 0 {
		p.Den.Set(den)
	}
	if p.Den.Sign() < 0 {
		p.Num.Neg(p.Num)
		p.Den.Neg(p.Den)
	}
	return p
}

// PercentFromBps builds a Percent from basis points.
func PercentFromBps(bps uint64) Percent {
	return NewPercent(new(big.Int).SetUint64(bps), big.NewInt(BpsDenominator))
}

// ZeroPercent returns 0%.
func ZeroPercent() Percent {
	return NewPercent(nil, nil)
}

func (p Percent) num() *big.Int {
	if p.Num == nil {
		return new(big.Int)
	}
	return p.Num
}

func (p Percent) den() *big.Int {
	if p.Den == nil || p.Den.Sign() == 0 {
		return big.NewInt(1)
	}
	return p.Den
}

// IsZero reports whether the fraction is zero.
func (p Percent) IsZero() bool {
	return p.num().Sign() == 0
}

// Cmp compares two fractions exactly.
func (p Percent) Cmp(other Percent) int {
	left := new(big.Int).Mul(p.num(), other.den())
	right := new(big.Int).Mul(other.num(), p.den())
	return left.Cmp(right)
}

// AtLeastBps reports whether p >= bps/10000.
func (p Percent) AtLeastBps(bps uint64) bool {
	return p.Cmp(PercentFromBps(bps)) >= 0
}

// Rat returns the fraction as a big.Rat.
func (p Percent) Rat() *big.Rat {
	return new(big.Rat).SetFrac(p.num(), p.den())
}

// Bps returns the fraction in basis points, truncated.
func (p Percent) Bps() uint64 {
	value := new(big.Int).Mul(p.num(), big.NewInt(BpsDenominator))
	value.Quo(value, p.den())
	if value.Sign() <= 0 {
		return 0
	}
	if !value.IsUint64() {
		return ^uint64(0)
	}
	return value.Uint64()
}

// Significant formats the value as a percentage (x100) rounded to digits.
func (p Percent) Significant(digits int) string {
	hundred := decimal.NewFromBigInt(new(big.Int).Mul(p.num(), big.NewInt(100)), 0)
	value := hundred.DivRound(decimal.NewFromBigInt(p.den(), 0), 18)
	return significant(value, digits)
}

func (p Percent) String() string {
	return p.Significant(4) + "%"
}

// MarshalJSON encodes the percentage as a human readable string.
func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// MaxPercent returns the larger of a and b.
func MaxPercent(a, b Percent) Percent {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
