package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Trade is an exact-input swap along a path of pairs.
type Trade struct {
	Path        []Asset          `json:"path"`
	Pairs       []common.Address `json:"pairs"`
	Input       Amount           `json:"input"`
	Output      Amount           `json:"output"`
	PriceImpact Percent          `json:"price_impact"`
}

// Validate checks the path invariants.
func (t *Trade) Validate() error {
	if t == nil {
		return fmt.Errorf("trade is nil")
	}
	if len(t.Path) < 2 {
		return fmt.Errorf("trade path must have at least 2 assets, got %d", len(t.Path))
	}
	if len(t.Pairs) != len(t.Path)-1 {
		return fmt.Errorf("trade has %d pairs for %d path assets", len(t.Pairs), len(t.Path))
	}
	return nil
}

// IsMultiHop reports whether the trade goes through an intermediate asset.
func (t *Trade) IsMultiHop() bool {
	return t != nil && len(t.Path) > 2
}

// Route renders the path as "A > B > C".
func (t *Trade) Route() string {
	if t == nil {
		return ""
	}
	symbols := make([]string, 0, len(t.Path))
	for _, asset := range t.Path {
		symbols = append(symbols, asset.String())
	}
	return strings.Join(symbols, " > ")
}

// PathAddresses returns the token addresses along the path.
func (t *Trade) PathAddresses() []common.Address {
	if t == nil {
		return nil
	}
	out := make([]common.Address, 0, len(t.Path))
	for _, asset := range t.Path {
		out = append(out, asset.Address)
	}
	return out
}
