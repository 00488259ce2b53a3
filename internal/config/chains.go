package config

import "strings"

// ChainDefaults are the built-in contract addresses of a supported chain.
type ChainDefaults struct {
	Name          string
	NativeSymbol  string
	Router        string
	Factory       string
	WrappedNative string
	BaseTokens    []string
}

var chainDefaults = map[uint64]ChainDefaults{
	1: {
		Name:          "ethereum",
		NativeSymbol:  "ETH",
		Router:        "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F",
		Factory:       "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac",
		WrappedNative: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		BaseTokens: []string{
			"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", // WETH
			"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", // USDC
			"0xdAC17F958D2ee523a2206206994597C13D831ec7", // USDT
			"0x6B175474E89094C44Da98b954EedeAC495271d0F", // DAI
		},
	},
	56: {
		Name:          "bsc",
		NativeSymbol:  "BNB",
		Router:        "0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506",
		Factory:       "0xc35DADB65012eC5796536bD9864eD8773aBc74C4",
		WrappedNative: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
		BaseTokens: []string{
			"0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", // WBNB
			"0x55d398326f99059fF775485246999027B3197955", // USDT
		},
	},
	137: {
		Name:          "polygon",
		NativeSymbol:  "MATIC",
		Router:        "0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506",
		Factory:       "0xc35DADB65012eC5796536bD9864eD8773aBc74C4",
		WrappedNative: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270",
		BaseTokens: []string{
			"0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", // WMATIC
		},
	},
	42161: {
		Name:          "arbitrum",
		NativeSymbol:  "ETH",
		Router:        "0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506",
		Factory:       "0xc35DADB65012eC5796536bD9864eD8773aBc74C4",
		WrappedNative: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
		BaseTokens: []string{
			"0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", // WETH
		},
	},
}

// DefaultsFor returns the built-in addresses for chainID.
func DefaultsFor(chainID uint64) (ChainDefaults, bool) {
	d, ok := chainDefaults[chainID]
	if !ok {
		return ChainDefaults{}, false
	}
	d.BaseTokens = append([]string(nil), d.BaseTokens...)
	return d, true
}

// applyChainDefaults fills empty contract fields from the chain table.
func applyChainDefaults(cfg *Config) {
	d, ok := DefaultsFor(cfg.ChainID)
	if !ok {
		return
	}
	if strings.TrimSpace(cfg.Router) == "" {
		cfg.Router = d.Router
	}
	if strings.TrimSpace(cfg.Factory) == "" {
		cfg.Factory = d.Factory
	}
	if strings.TrimSpace(cfg.WrappedNative) == "" {
		cfg.WrappedNative = d.WrappedNative
	}
	if len(cfg.BaseTokens) == 0 {
		cfg.BaseTokens = d.BaseTokens
	}
	if cfg.NativeSymbol == "" {
		cfg.NativeSymbol = d.NativeSymbol
	}
}
