package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedAmount is returned when a typed amount cannot be parsed exactly.
var ErrMalformedAmount = errors.New("malformed amount")

// nativeGasReserve is kept back from native balances when spending the maximum.
var nativeGasReserve = new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil)

// Amount pairs an Asset with a raw integer magnitude scaled by its decimals.
type Amount struct {
	Asset Asset
	Raw   *big.Int
}

// NewAmount copies raw into a new Amount. A nil raw is treated as zero.
func NewAmount(asset Asset, raw *big.Int) Amount {
	value := new(big.Int)
	if raw != nil {
		value.Set(raw)
	}
	return Amount{Asset: asset, Raw: value}
}

// ZeroAmount returns the zero Amount of asset.
func ZeroAmount(asset Asset) Amount {
	return Amount{Asset: asset, Raw: new(big.Int)}
}

// ParseAmount parses a decimal string in human units into an exact Amount.
// A blank string returns nil without error.
func ParseAmount(asset Asset, typed string) (*Amount, error) {
	typed = strings.TrimSpace(typed)
	if typed == "" {
		return nil, nil
	}
	if strings.ContainsAny(typed, "eE+") {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, typed)
	}

	value, err := decimal.NewFromString(typed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, typed)
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("%w: negative value %q", ErrMalformedAmount, typed)
	}

	scaled := value.Shift(int32(asset.Decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: more than %d decimals in %q", ErrMalformedAmount, asset.Decimals, typed)
	}

	amount := NewAmount(asset, scaled.BigInt())
	return &amount, nil
}

// IsZero reports whether the amount is zero or unset.
func (a Amount) IsZero() bool {
	return a.Raw == nil || a.Raw.Sign() == 0
}

// Cmp compares raw magnitudes.
func (a Amount) Cmp(other Amount) int {
	return a.raw().Cmp(other.raw())
}

// Add returns a + other in a's asset.
func (a Amount) Add(other Amount) Amount {
	return Amount{Asset: a.Asset, Raw: new(big.Int).Add(a.raw(), other.raw())}
}

// Sub returns a - other in a's asset.
func (a Amount) Sub(other Amount) Amount {
	return Amount{Asset: a.Asset, Raw: new(big.Int).Sub(a.raw(), other.raw())}
}

// Decimal returns the amount in human units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.raw(), -int32(a.Asset.Decimals))
}

// Exact formats the amount with every significant decimal.
func (a Amount) Exact() string {
	return a.Decimal().String()
}

// Significant formats the amount rounded to the given significant digits.
func (a Amount) Significant(digits int) string {
	return significant(a.Decimal(), digits)
}

func (a Amount) String() string {
	return a.Exact() + " " + a.Asset.String()
}

// MarshalJSON encodes raw values as strings to keep 256-bit precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Asset string `json:"asset"`
		Raw   string `json:"raw"`
		Exact string `json:"exact"`
	}{
		Asset: a.Asset.String(),
		Raw:   a.raw().String(),
		Exact: a.Exact(),
	})
}

func (a Amount) raw() *big.Int {
	if a.Raw == nil {
		return new(big.Int)
	}
	return a.Raw
}

// MaxAmountSpend returns the largest spendable part of a balance. Native
// balances keep a small reserve for gas.
func MaxAmountSpend(balance Amount) Amount {
	if !balance.Asset.Native {
		return NewAmount(balance.Asset, balance.raw())
	}
	if balance.raw().Cmp(nativeGasReserve) <= 0 {
		return ZeroAmount(balance.Asset)
	}
	return Amount{Asset: balance.Asset, Raw: new(big.Int).Sub(balance.raw(), nativeGasReserve)}
}

func significant(value decimal.Decimal, digits int) string {
	if digits <= 0 {
		digits = 1
	}
	if value.IsZero() {
		return "0"
	}

	// exponent of the leading digit: value = d.ddd * 10^lead
	coefficient := new(big.Int).Abs(value.Coefficient())
	lead := len(coefficient.String()) - 1 + int(value.Exponent())
	places := int32(digits - 1 - lead)
	return value.Round(places).String()
}
