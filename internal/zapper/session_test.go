package zapper

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapScope/internal/dex"
	"zapScope/internal/model"
)

// hookQuoter runs hook once, in the middle of the first quote.
type hookQuoter struct {
	fakeQuoter
	once sync.Once
	hook func()
}

func (h *hookQuoter) GetBestTrade(ctx context.Context, input, output model.Asset, amountIn model.Amount) (*model.Trade, error) {
	h.once.Do(h.hook)
	return h.fakeQuoter.GetBestTrade(ctx, input, output, amountIn)
}

type sessionFixture struct {
	session   *Session
	submitter *fakeSubmitter
	journal   *memJournal
}

func newSessionFixture(q TradeQuoter, balances BalanceReader, slippage SlippageSource) sessionFixture {
	pools := &fakePools{pools: map[common.Address]model.Pool{poolAddr: testPool()}}
	deriver := NewDeriver(pools, q, balances, weth, nil)
	submitter := &fakeSubmitter{receipts: map[common.Hash]*types.Receipt{}}
	journal := &memJournal{}
	allowance := NewAllowanceMachine(&fakeAllowances{allowance: big.NewInt(1_000_000_000)}, submitter, AllowanceOptions{Journal: journal}, nil)
	executor := NewExecutor(testExecutorConfig(), submitter, &fakeEncoder{}, nil, journal, nil)
	session := NewSession(deriver, allowance, executor, slippage, SessionConfig{Spender: zapperAddr}, nil)
	session.SetAccount(accountAddr)
	session.SetPool(poolAddr)
	return sessionFixture{session: session, submitter: submitter, journal: journal}
}

func TestSessionRefreshKeepsLatestInput(t *testing.T) {
	q := &hookQuoter{fakeQuoter: fakeQuoter{trades: map[common.Address]*model.Trade{
		token1.Address: routerTrade(token1, 2000, 20),
	}}}
	fx := newSessionFixture(q, nil, nil)
	q.hook = func() { fx.session.SetTyped("6000") }

	fx.session.SetInput(tokenX)
	fx.session.SetTyped("5000")

	_, kept := fx.session.Refresh(context.Background())
	assert.False(t, kept, "typing during derivation supersedes it")
	_, ok := fx.session.Info()
	assert.False(t, ok)

	info, kept := fx.session.Refresh(context.Background())
	require.True(t, kept)
	assert.Equal(t, "6000", info.Typed)

	current, ok := fx.session.Info()
	require.True(t, ok)
	assert.Equal(t, "6000", current.Typed)
}

func TestSessionInputChangeInvalidatesInfo(t *testing.T) {
	fx := newSessionFixture(&fakeQuoter{}, nil, nil)
	fx.session.SetInput(token0)
	fx.session.SetTyped("1000")
	_, kept := fx.session.Refresh(context.Background())
	require.True(t, kept)

	fx.session.SetTyped("1001")
	_, ok := fx.session.Info()
	assert.False(t, ok)
	assert.Equal(t, GuardInputError, fx.session.Decision().State)
}

func TestSessionOnDerived(t *testing.T) {
	fx := newSessionFixture(&fakeQuoter{}, nil, nil)
	var got []string
	fx.session.OnDerived(func(info DerivedZapInfo) { got = append(got, info.Typed) })
	fx.session.SetInput(token0)
	fx.session.SetTyped("1000")
	fx.session.Refresh(context.Background())
	assert.Equal(t, []string{"1000"}, got)
}

func TestSessionZapResetsInput(t *testing.T) {
	fx := newSessionFixture(&fakeQuoter{}, nil, staticSlippage{bps: 100})
	fx.session.SetInput(token0)
	fx.session.SetTyped("1000")
	_, kept := fx.session.Refresh(context.Background())
	require.True(t, kept)
	require.Equal(t, GuardReady, fx.session.Decision().State)

	sub, err := fx.session.Zap(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(493), sub.Call.MinPoolTokens.Int64(), "498 * 9900 / 10000")
	assert.Equal(t, "", fx.session.Typed())
	_, ok := fx.session.Info()
	assert.False(t, ok)
}

func TestSessionZapFailureKeepsInput(t *testing.T) {
	fx := newSessionFixture(&fakeQuoter{}, nil, nil)
	fx.submitter.submitErr = errBoom
	fx.session.SetInput(token0)
	fx.session.SetTyped("1000")
	fx.session.Refresh(context.Background())

	_, err := fx.session.Zap(context.Background(), false)
	require.ErrorIs(t, err, ErrSubmission)
	assert.Equal(t, "1000", fx.session.Typed())
	info, ok := fx.session.Info()
	require.True(t, ok)
	assert.Equal(t, int64(498), info.LiquidityMinted.Raw.Int64())
}

func TestSessionSlippageFallback(t *testing.T) {
	fx := newSessionFixture(&fakeQuoter{}, nil, staticSlippage{err: errBoom})
	fx.session.SetInput(token0)
	fx.session.SetTyped("1000")
	fx.session.Refresh(context.Background())

	sub, err := fx.session.Zap(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(495), sub.Call.MinPoolTokens.Int64(), "default 50 bps")

	call, err := dex.DecodeZapIn(fx.submitter.last().Data)
	require.NoError(t, err)
	assert.Equal(t, int64(495), call.MinPoolTokens.Int64())
}

func TestSessionApprovalFlow(t *testing.T) {
	fx := newSessionFixture(&fakeQuoter{}, nil, nil)
	reader := &fakeAllowances{allowance: big.NewInt(0)}
	fx.session.allowance = NewAllowanceMachine(reader, fx.submitter, AllowanceOptions{}, nil)
	fx.session.SetInput(token0)
	fx.session.SetTyped("1000")
	fx.session.Refresh(context.Background())

	d := fx.session.Decision()
	require.Equal(t, GuardApprovalRequired, d.State)
	assert.True(t, d.CanApprove)

	hash, err := fx.session.Approve(context.Background())
	require.NoError(t, err)
	d = fx.session.Decision()
	assert.Equal(t, "Approving", d.ApproveLabel)
	assert.False(t, d.CanApprove)

	reader.set(1000)
	state, err := fx.session.ResolveApproval(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, AllowanceApproved, state)
	assert.Equal(t, GuardReady, fx.session.Decision().State)
}

func TestSessionMaxInput(t *testing.T) {
	fx := newSessionFixture(&fakeQuoter{}, &fakeBalances{balance: big.NewInt(12345)}, nil)
	fx.session.SetInput(token0)
	fx.session.SetTyped("1")
	_, ok := fx.session.MaxInput()
	assert.False(t, ok, "no derivation yet")

	fx.session.Refresh(context.Background())
	typed, ok := fx.session.MaxInput()
	require.True(t, ok)
	assert.Equal(t, "12345", typed)
	assert.Equal(t, "12345", fx.session.Typed())
}

func TestSessionScheduleDebounces(t *testing.T) {
	fx := newSessionFixture(&fakeQuoter{}, nil, nil)
	defer fx.session.Close()
	derived := make(chan string, 4)
	fx.session.OnDerived(func(info DerivedZapInfo) { derived <- info.Typed })
	fx.session.cfg.Debounce = 20 * time.Millisecond
	fx.session.SetInput(token0)

	for _, typed := range []string{"1", "10", "100"} {
		fx.session.SetTyped(typed)
		fx.session.Schedule(context.Background())
	}

	select {
	case typed := <-derived:
		assert.Equal(t, "100", typed)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced derivation never ran")
	}
	select {
	case typed := <-derived:
		t.Fatalf("unexpected extra derivation %q", typed)
	case <-time.After(100 * time.Millisecond):
	}
}
