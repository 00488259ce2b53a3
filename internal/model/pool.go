package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is a constant-product pair with its current reserves.
type Pool struct {
	Address        common.Address `json:"address"`
	Token0         Asset          `json:"token0"`
	Token1         Asset          `json:"token1"`
	Reserve0       *big.Int       `json:"-"`
	Reserve1       *big.Int       `json:"-"`
	TotalSupply    *big.Int       `json:"-"`
	LiquidityToken Asset          `json:"liquidity_token"`
}

// Involves reports whether asset is one of the pool's underlying tokens.
func (p Pool) Involves(asset Asset) bool {
	return p.Token0.Equal(asset) || p.Token1.Equal(asset)
}

// Other returns the underlying token that is not asset.
func (p Pool) Other(asset Asset) Asset {
	if p.Token0.Equal(asset) {
		return p.Token1
	}
	return p.Token0
}

// Reserves returns (reserveIn, reserveOut) for a swap that sells asset.
func (p Pool) Reserves(asset Asset) (*big.Int, *big.Int, error) {
	switch {
	case p.Token0.Equal(asset):
		return p.Reserve0, p.Reserve1, nil
	case p.Token1.Equal(asset):
		return p.Reserve1, p.Reserve0, nil
	default:
		return nil, nil, fmt.Errorf("asset %s not in pool %s", asset, p.Address.Hex())
	}
}

// Name returns "SYMBOL0/SYMBOL1".
func (p Pool) Name() string {
	return p.Token0.String() + "/" + p.Token1.String()
}
