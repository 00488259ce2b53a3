package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"zapScope/internal/model"
)

// ChainReader is the subset of the chain client used for reads.
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.Asset
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.Asset)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.Asset, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.Asset) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

type pairTokens struct {
	token0 common.Address
	token1 common.Address
}

// Reader resolves tokens, pools, balances and allowances over eth_call.
type Reader struct {
	chain   ChainReader
	native  model.Asset
	factory common.Address
	tokens  *TokenMetaCache
	logger  *zap.Logger

	mu    sync.RWMutex
	pairs map[common.Address]pairTokens
}

// NewReader builds a Reader. factory may be zero when PairFor is unused.
func NewReader(chainReader ChainReader, native model.Asset, factory common.Address, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		chain:   chainReader,
		native:  native,
		factory: factory,
		tokens:  NewTokenMetaCache(),
		logger:  logger,
		pairs:   make(map[common.Address]pairTokens),
	}
}

// ResolveAsset maps an identifier (address or native alias) onto an Asset.
func (r *Reader) ResolveAsset(ctx context.Context, id string) (model.Asset, error) {
	if model.IsNativeID(id) {
		return r.native, nil
	}
	if !common.IsHexAddress(id) {
		return model.Asset{}, fmt.Errorf("invalid asset id: %q", id)
	}
	return r.Token(ctx, common.HexToAddress(id))
}

// Token loads token metadata, using the cache when possible.
func (r *Reader) Token(ctx context.Context, token common.Address) (model.Asset, error) {
	if meta, ok := r.tokens.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, r.chain, token, r.logger)
	if err != nil {
		return model.Asset{}, err
	}
	r.tokens.Set(token, meta)
	return meta, nil
}

// GetPool loads the pair's tokens (cached) and its live reserves and supply.
func (r *Reader) GetPool(ctx context.Context, pair common.Address) (model.Pool, error) {
	if r.chain == nil {
		return model.Pool{}, fmt.Errorf("chain client is nil")
	}

	pairABI, err := PairABI()
	if err != nil {
		return model.Pool{}, fmt.Errorf("parse pair abi: %w", err)
	}

	tokens, err := r.pairTokens(ctx, pair, pairABI)
	if err != nil {
		return model.Pool{}, err
	}

	token0, err := r.Token(ctx, tokens.token0)
	if err != nil {
		return model.Pool{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := r.Token(ctx, tokens.token1)
	if err != nil {
		return model.Pool{}, fmt.Errorf("token1: %w", err)
	}

	values, err := callMethod(ctx, r.chain, pair, pairABI, "getReserves")
	if err != nil {
		return model.Pool{}, err
	}
	if len(values) < 2 {
		return model.Pool{}, fmt.Errorf("getReserves returned %d values", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.Pool{}, fmt.Errorf("reserve1: %w", err)
	}

	values, err = callMethod(ctx, r.chain, pair, pairABI, "totalSupply")
	if err != nil {
		return model.Pool{}, err
	}
	supply, err := asBigInt(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("total supply: %w", err)
	}

	return model.Pool{
		Address:     pair,
		Token0:      token0,
		Token1:      token1,
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		TotalSupply: supply,
		LiquidityToken: model.Asset{
			Address:  pair,
			Symbol:   token0.Symbol + "-" + token1.Symbol + " LP",
			Decimals: 18,
		},
	}, nil
}

func (r *Reader) pairTokens(ctx context.Context, pair common.Address, pairABI abi.ABI) (pairTokens, error) {
	r.mu.RLock()
	cached, ok := r.pairs[pair]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	values, err := callMethod(ctx, r.chain, pair, pairABI, "token0")
	if err != nil {
		return pairTokens{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return pairTokens{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callMethod(ctx, r.chain, pair, pairABI, "token1")
	if err != nil {
		return pairTokens{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return pairTokens{}, fmt.Errorf("token1: %w", err)
	}

	tokens := pairTokens{token0: token0, token1: token1}
	r.mu.Lock()
	r.pairs[pair] = tokens
	r.mu.Unlock()
	return tokens, nil
}

// PairFor asks the factory for the pair of two tokens. A zero address means
// the pair does not exist.
func (r *Reader) PairFor(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	if r.factory == (common.Address{}) {
		return common.Address{}, fmt.Errorf("factory address is not configured")
	}
	factoryABI, err := FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := callMethod(ctx, r.chain, r.factory, factoryABI, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// GetBalance returns the balance of account in asset.
func (r *Reader) GetBalance(ctx context.Context, account common.Address, asset model.Asset) (model.Amount, error) {
	if r.chain == nil {
		return model.Amount{}, fmt.Errorf("chain client is nil")
	}
	if asset.Native {
		balance, err := r.chain.BalanceAt(ctx, account)
		if err != nil {
			return model.Amount{}, fmt.Errorf("native balance: %w", err)
		}
		return model.NewAmount(asset, balance), nil
	}

	erc20, err := ERC20ABI()
	if err != nil {
		return model.Amount{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, r.chain, asset.Address, erc20, "balanceOf", account)
	if err != nil {
		return model.Amount{}, err
	}
	balance, err := asBigInt(values[0])
	if err != nil {
		return model.Amount{}, fmt.Errorf("balanceOf: %w", err)
	}
	return model.NewAmount(asset, balance), nil
}

// GetAllowance returns the raw allowance granted by owner to spender.
func (r *Reader) GetAllowance(ctx context.Context, owner, spender common.Address, asset model.Asset) (*big.Int, error) {
	if r.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if asset.Native {
		return nil, fmt.Errorf("native asset has no allowance")
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, r.chain, asset.Address, erc20, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func callMethod(ctx context.Context, caller ChainReader, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls.
func FetchTokenMeta(ctx context.Context, chainReader ChainReader, token common.Address, logger *zap.Logger) (model.Asset, error) {
	meta := model.Asset{Address: token}
	if chainReader == nil {
		return meta, fmt.Errorf("chain client is nil")
	}

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, chainReader, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := callMethod(ctx, chainReader, token, stringABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := callMethod(ctx, chainReader, token, bytes32ABI, "symbol"); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := callMethod(ctx, chainReader, token, stringABI, "name"); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := callMethod(ctx, chainReader, token, bytes32ABI, "name"); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
