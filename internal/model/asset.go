package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is an ERC20 token or the chain's native currency.
// The native currency uses the zero address with Native set.
type Asset struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name,omitempty"`
	Decimals uint8          `json:"decimals"`
	Native   bool           `json:"native,omitempty"`
}

// NativeAsset returns the native currency sentinel.
func NativeAsset(symbol string) Asset {
	if symbol == "" {
		symbol = "ETH"
	}
	return Asset{Symbol: symbol, Name: symbol, Decimals: 18, Native: true}
}

// Equal reports whether both assets refer to the same currency.
func (a Asset) Equal(other Asset) bool {
	return a.Native == other.Native && a.Address == other.Address
}

// Wrapped maps the native currency onto its wrapped token.
func (a Asset) Wrapped(wrappedNative Asset) Asset {
	if a.Native {
		return wrappedNative
	}
	return a
}

// ID returns the identifier used in routes and logs.
func (a Asset) ID() string {
	if a.Native {
		return "NATIVE"
	}
	return a.Address.Hex()
}

func (a Asset) String() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.ID()
}

// IsNativeID reports whether an identifier names the native currency.
func IsNativeID(id string) bool {
	switch strings.ToUpper(strings.TrimSpace(id)) {
	case "NATIVE", "ETH", "ETHER", "0X0000000000000000000000000000000000000000":
		return true
	default:
		return false
	}
}
