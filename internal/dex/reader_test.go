package dex

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"zapScope/internal/model"
)

var (
	testPair    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testFactory = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testToken0  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testToken1  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testAccount = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testSpender = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

// fakeChain answers eth_call by (to, calldata), falling back to (to, selector).
type fakeChain struct {
	exact    map[string][]byte
	selector map[string][]byte
	balance  *big.Int
	calls    int
}

func newFakeChain() *fakeChain {
	return &fakeChain{exact: make(map[string][]byte), selector: make(map[string][]byte)}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("bad call")
	}
	if out, ok := f.exact[msg.To.Hex()+hexutil.Encode(msg.Data)]; ok {
		return out, nil
	}
	if out, ok := f.selector[msg.To.Hex()+hexutil.Encode(msg.Data[:4])]; ok {
		return out, nil
	}
	return nil, fmt.Errorf("execution reverted")
}

func (f *fakeChain) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	if f.balance == nil {
		return nil, fmt.Errorf("no balance")
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) respond(t *testing.T, to common.Address, parsed abi.ABI, method string, outputs ...interface{}) {
	t.Helper()
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("unknown method %s", method)
	}
	data, err := m.Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	f.selector[to.Hex()+hexutil.Encode(m.ID)] = data
}

func (f *fakeChain) respondTo(t *testing.T, to common.Address, parsed abi.ABI, method string, args []interface{}, outputs ...interface{}) {
	t.Helper()
	input, err := parsed.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack %s inputs: %v", method, err)
	}
	data, err := parsed.Methods[method].Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	f.exact[to.Hex()+hexutil.Encode(input)] = data
}

func seedToken(t *testing.T, f *fakeChain, token common.Address, symbol string, decimals uint8) {
	t.Helper()
	erc20, err := ERC20ABI()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	f.respond(t, token, erc20, "decimals", decimals)
	f.respond(t, token, erc20, "symbol", symbol)
	f.respond(t, token, erc20, "name", symbol+" Token")
}

func seedPair(t *testing.T, f *fakeChain, reserve0, reserve1, supply int64) {
	t.Helper()
	pairABI, err := PairABI()
	if err != nil {
		t.Fatalf("pair abi: %v", err)
	}
	f.respond(t, testPair, pairABI, "token0", testToken0)
	f.respond(t, testPair, pairABI, "token1", testToken1)
	f.respond(t, testPair, pairABI, "getReserves", big.NewInt(reserve0), big.NewInt(reserve1), uint32(1700000000))
	f.respond(t, testPair, pairABI, "totalSupply", big.NewInt(supply))
}

func TestReaderGetPool(t *testing.T) {
	chain := newFakeChain()
	seedToken(t, chain, testToken0, "USDC", 6)
	seedToken(t, chain, testToken1, "WETH", 18)
	seedPair(t, chain, 5_000_000, 2_000, 1_000)

	reader := NewReader(chain, model.NativeAsset("ETH"), testFactory, zap.NewNop())
	pool, err := reader.GetPool(context.Background(), testPair)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.Token0.Symbol != "USDC" || pool.Token0.Decimals != 6 {
		t.Fatalf("token0 mismatch: %+v", pool.Token0)
	}
	if pool.Token1.Symbol != "WETH" || pool.Token1.Name != "WETH Token" {
		t.Fatalf("token1 mismatch: %+v", pool.Token1)
	}
	if pool.Reserve0.Int64() != 5_000_000 || pool.Reserve1.Int64() != 2_000 || pool.TotalSupply.Int64() != 1_000 {
		t.Fatalf("reserves mismatch: %s %s %s", pool.Reserve0, pool.Reserve1, pool.TotalSupply)
	}
	if pool.LiquidityToken.Symbol != "USDC-WETH LP" || pool.LiquidityToken.Address != testPair {
		t.Fatalf("liquidity token mismatch: %+v", pool.LiquidityToken)
	}

	// token metadata and pair tokens are cached on the second load
	before := chain.calls
	if _, err := reader.GetPool(context.Background(), testPair); err != nil {
		t.Fatalf("second get pool: %v", err)
	}
	if chain.calls-before != 2 {
		t.Fatalf("expected only reserves and supply calls, got %d", chain.calls-before)
	}
}

func TestReaderBytes32Symbol(t *testing.T) {
	chain := newFakeChain()
	erc20, _ := ERC20ABI()
	bytes32ABI, _ := erc20ABIBytes32Instance()
	chain.respond(t, testToken0, erc20, "decimals", uint8(18))
	var symbol [32]byte
	copy(symbol[:], "MKR")
	chain.respond(t, testToken0, bytes32ABI, "symbol", symbol)

	meta, err := FetchTokenMeta(context.Background(), chain, testToken0, zap.NewNop())
	if err != nil {
		t.Fatalf("fetch meta: %v", err)
	}
	if meta.Symbol != "MKR" || meta.Decimals != 18 {
		t.Fatalf("meta mismatch: %+v", meta)
	}
}

func TestReaderBalanceAndAllowance(t *testing.T) {
	chain := newFakeChain()
	chain.balance = big.NewInt(42)
	erc20, _ := ERC20ABI()
	chain.respondTo(t, testToken0, erc20, "balanceOf", []interface{}{testAccount}, big.NewInt(7))
	chain.respondTo(t, testToken0, erc20, "allowance", []interface{}{testAccount, testSpender}, big.NewInt(100))

	reader := NewReader(chain, model.NativeAsset("ETH"), testFactory, nil)
	token := model.Asset{Address: testToken0, Symbol: "USDC", Decimals: 6}

	balance, err := reader.GetBalance(context.Background(), testAccount, token)
	if err != nil || balance.Raw.Int64() != 7 {
		t.Fatalf("token balance: %v %v", balance, err)
	}
	native, err := reader.GetBalance(context.Background(), testAccount, model.NativeAsset("ETH"))
	if err != nil || native.Raw.Int64() != 42 {
		t.Fatalf("native balance: %v %v", native, err)
	}
	allowance, err := reader.GetAllowance(context.Background(), testAccount, testSpender, token)
	if err != nil || allowance.Int64() != 100 {
		t.Fatalf("allowance: %v %v", allowance, err)
	}
	if _, err := reader.GetAllowance(context.Background(), testAccount, testSpender, model.NativeAsset("ETH")); err == nil {
		t.Fatalf("expected error for native allowance")
	}
}

func TestReaderPairForAndResolve(t *testing.T) {
	chain := newFakeChain()
	factoryABI, _ := FactoryABI()
	chain.respondTo(t, testFactory, factoryABI, "getPair", []interface{}{testToken0, testToken1}, testPair)
	seedToken(t, chain, testToken0, "USDC", 6)

	reader := NewReader(chain, model.NativeAsset("ETH"), testFactory, nil)
	pair, err := reader.PairFor(context.Background(), testToken0, testToken1)
	if err != nil || pair != testPair {
		t.Fatalf("pair for: %s %v", pair.Hex(), err)
	}

	asset, err := reader.ResolveAsset(context.Background(), "eth")
	if err != nil || !asset.Native {
		t.Fatalf("resolve native: %+v %v", asset, err)
	}
	asset, err = reader.ResolveAsset(context.Background(), testToken0.Hex())
	if err != nil || asset.Symbol != "USDC" {
		t.Fatalf("resolve token: %+v %v", asset, err)
	}
	if _, err := reader.ResolveAsset(context.Background(), "not-an-address"); err == nil {
		t.Fatalf("expected error for invalid id")
	}
}
