package zapper

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"zapScope/internal/model"
)

var (
	poolAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	zapperAddr  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	routerAddr  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	accountAddr = common.HexToAddress("0x4444444444444444444444444444444444444444")

	token0 = model.Asset{Address: common.HexToAddress("0xa0"), Symbol: "T0", Decimals: 0}
	token1 = model.Asset{Address: common.HexToAddress("0xa1"), Symbol: "T1", Decimals: 0}
	tokenX = model.Asset{Address: common.HexToAddress("0xa2"), Symbol: "X", Decimals: 0}
	weth   = model.Asset{Address: common.HexToAddress("0xc0"), Symbol: "WETH", Decimals: 18}
	lp     = model.Asset{Address: poolAddr, Symbol: "T0-T1 LP", Decimals: 18}
)

func testPool() model.Pool {
	return model.Pool{
		Address:        poolAddr,
		Token0:         token0,
		Token1:         token1,
		Reserve0:       big.NewInt(1_000_000),
		Reserve1:       big.NewInt(1_000_000),
		TotalSupply:    big.NewInt(1_000_000),
		LiquidityToken: lp,
	}
}

type fakePools struct {
	pools map[common.Address]model.Pool
}

func (f *fakePools) GetPool(_ context.Context, pair common.Address) (model.Pool, error) {
	pool, ok := f.pools[pair]
	if !ok {
		return model.Pool{}, fmt.Errorf("no pool %s", pair.Hex())
	}
	return pool, nil
}

type fakeQuoter struct {
	mu     sync.Mutex
	trades map[common.Address]*model.Trade
	err    error
	calls  int
}

func (f *fakeQuoter) GetBestTrade(_ context.Context, input, output model.Asset, amountIn model.Amount) (*model.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	trade, ok := f.trades[output.Address]
	if !ok {
		return nil, nil
	}
	out := *trade
	out.Input = model.NewAmount(input, amountIn.Raw)
	return &out, nil
}

type fakeBalances struct {
	balance *big.Int
	err     error
}

func (f *fakeBalances) GetBalance(_ context.Context, _ common.Address, asset model.Asset) (model.Amount, error) {
	if f.err != nil {
		return model.Amount{}, f.err
	}
	return model.NewAmount(asset, f.balance), nil
}

type fakeAllowances struct {
	mu        sync.Mutex
	allowance *big.Int
	err       error
}

func (f *fakeAllowances) set(v int64) {
	f.mu.Lock()
	f.allowance = big.NewInt(v)
	f.mu.Unlock()
}

func (f *fakeAllowances) GetAllowance(context.Context, common.Address, common.Address, model.Asset) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).Set(f.allowance), nil
}

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []TxRequest
	submitErr error
	receipts  map[common.Hash]*types.Receipt
	waitErr   error
}

func (f *fakeSubmitter) Submit(_ context.Context, req TxRequest) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return common.Hash{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return common.BigToHash(big.NewInt(int64(len(f.submitted)))), nil
}

func (f *fakeSubmitter) WaitMined(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	receipt, ok := f.receipts[hash]
	if !ok {
		return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash, BlockNumber: big.NewInt(1)}, nil
	}
	return receipt, nil
}

func (f *fakeSubmitter) last() TxRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted[len(f.submitted)-1]
}

type fakeEncoder struct {
	trade  *model.Trade
	minOut *big.Int
}

func (f *fakeEncoder) EncodeSwap(trade *model.Trade, minOut *big.Int, _ common.Address) ([]byte, error) {
	f.trade = trade
	f.minOut = minOut
	return []byte{0x01, 0x02}, nil
}

type memJournal struct {
	mu      sync.Mutex
	records []model.SubmissionRecord
}

func (j *memJournal) Record(_ context.Context, rec model.SubmissionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *memJournal) statuses() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.records))
	for _, rec := range j.records {
		out = append(out, rec.Kind+":"+rec.Status)
	}
	return out
}

type staticSlippage struct {
	bps uint16
	err error
}

func (s staticSlippage) SlippageBps(context.Context) (uint16, error) {
	return s.bps, s.err
}

var errBoom = errors.New("boom")
