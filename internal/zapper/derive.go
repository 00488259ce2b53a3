package zapper

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"zapScope/internal/dex"
	"zapScope/internal/metrics"
	"zapScope/internal/model"
)

// PoolReader loads a pool's underlying assets, reserves and supply.
type PoolReader interface {
	GetPool(ctx context.Context, pair common.Address) (model.Pool, error)
}

// TradeQuoter returns the best exact-input trade, or nil when there is none.
type TradeQuoter interface {
	GetBestTrade(ctx context.Context, input, output model.Asset, amountIn model.Amount) (*model.Trade, error)
}

// BalanceReader reports an account's balance of an asset.
type BalanceReader interface {
	GetBalance(ctx context.Context, account common.Address, asset model.Asset) (model.Amount, error)
}

// DeriveRequest is the user input of one derivation pass.
type DeriveRequest struct {
	// Account is zero when no wallet is connected.
	Account common.Address
	Input   model.Asset
	Typed   string
	Pool    common.Address
}

// DerivedZapInfo is the derived quote for a typed zap input.
type DerivedZapInfo struct {
	Typed  string
	Input  model.Asset
	Parsed *model.Amount

	Pool      model.Pool
	Currency0 model.Asset
	Currency1 model.Asset

	// Trade is nil when no route was found.
	Trade               *model.Trade
	IsTradingUnderlying bool
	// Intermediate is the pool token that is split inside the pool.
	Intermediate model.Amount
	// SwapIn is the part of Intermediate swapped into the other pool token.
	SwapIn model.Amount

	LiquidityMinted    model.Amount
	CurrencyZeroOutput model.Amount
	CurrencyOneOutput  model.Amount
	PoolShare          model.Percent
	PriceImpact        model.Percent

	// Balance is nil when no account is connected.
	Balance *model.Amount

	Error  error
	Reason string
}

// HasAmount reports whether a non-zero amount was typed.
func (d DerivedZapInfo) HasAmount() bool {
	return d.Parsed != nil && !d.Parsed.IsZero()
}

// Deriver computes DerivedZapInfo from its collaborators.
type Deriver struct {
	pools         PoolReader
	quoter        TradeQuoter
	balances      BalanceReader
	wrappedNative model.Asset
	logger        *zap.Logger
}

// NewDeriver builds a Deriver. balances may be nil to skip balance checks.
func NewDeriver(pools PoolReader, quoter TradeQuoter, balances BalanceReader, wrappedNative model.Asset, logger *zap.Logger) *Deriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deriver{
		pools:         pools,
		quoter:        quoter,
		balances:      balances,
		wrappedNative: wrappedNative,
		logger:        logger,
	}
}

// Derive turns a typed input into a zap quote. It never returns an error:
// every failure is reported through DerivedZapInfo.Error.
func (d *Deriver) Derive(ctx context.Context, req DeriveRequest) DerivedZapInfo {
	start := time.Now()
	info := d.derive(ctx, req)
	metrics.DeriveDuration.Observe(time.Since(start).Seconds())
	metrics.Derivations.WithLabelValues(outcomeLabel(info.Error)).Inc()
	return info
}

func (d *Deriver) derive(ctx context.Context, req DeriveRequest) DerivedZapInfo {
	info := DerivedZapInfo{
		Typed:       req.Typed,
		Input:       req.Input,
		PoolShare:   model.ZeroPercent(),
		PriceImpact: model.ZeroPercent(),
	}

	pool, err := d.pools.GetPool(ctx, req.Pool)
	if err != nil {
		d.logger.Debug("pool lookup failed", zap.String("pool", req.Pool.Hex()), zap.Error(err))
		return info.fail(fmt.Errorf("%w: %s: %v", ErrPoolNotFound, req.Pool.Hex(), err))
	}
	info.Pool = pool
	info.Currency0 = pool.Token0
	info.Currency1 = pool.Token1
	info.LiquidityMinted = model.ZeroAmount(pool.LiquidityToken)
	info.CurrencyZeroOutput = model.ZeroAmount(pool.Token0)
	info.CurrencyOneOutput = model.ZeroAmount(pool.Token1)

	wrappedInput := req.Input.Wrapped(d.wrappedNative)
	info.IsTradingUnderlying = pool.Involves(wrappedInput)

	if req.Account != (common.Address{}) && d.balances != nil {
		balance, err := d.balances.GetBalance(ctx, req.Account, req.Input)
		if err != nil {
			d.logger.Debug("balance read failed", zap.String("account", req.Account.Hex()), zap.Error(err))
			balance = model.ZeroAmount(req.Input)
		}
		info.Balance = &balance
	}

	parsed, err := model.ParseAmount(req.Input, req.Typed)
	if err != nil {
		return info.fail(fmt.Errorf("%w: %v", ErrInvalidAmount, err))
	}
	if parsed == nil || parsed.IsZero() {
		return info.fail(ErrNoAmount)
	}
	info.Parsed = parsed

	if info.IsTradingUnderlying {
		intermediate := model.NewAmount(wrappedInput, parsed.Raw)
		split, err := splitDeposit(pool, intermediate)
		if err != nil {
			return info.fail(fmt.Errorf("%w: %v", ErrNoRouteFound, err))
		}
		trade, err := dex.PoolTrade(pool, model.NewAmount(req.Input, split.swapIn), wrappedInput)
		if err != nil {
			return info.fail(fmt.Errorf("%w: %v", ErrNoRouteFound, err))
		}
		info.apply(split, intermediate, trade)
	} else {
		trade, split, err := d.bestRoute(ctx, pool, *parsed)
		if err != nil {
			return info.fail(err)
		}
		info.apply(split, trade.Output, trade)
	}

	if info.Balance != nil && parsed.Cmp(*info.Balance) > 0 {
		return info.fail(fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, info.Balance.Exact(), parsed.Exact()))
	}
	return info
}

// bestRoute quotes input into each pool token and keeps the route that mints
// more liquidity.
func (d *Deriver) bestRoute(ctx context.Context, pool model.Pool, amount model.Amount) (*model.Trade, depositSplit, error) {
	outputs := []model.Asset{pool.Token0, pool.Token1}
	trades := make([]*model.Trade, len(outputs))

	g, gctx := errgroup.WithContext(ctx)
	for i, output := range outputs {
		i, output := i, output
		g.Go(func() error {
			trade, err := d.quoter.GetBestTrade(gctx, amount.Asset, output, amount)
			if err != nil {
				metrics.QuoteRequests.WithLabelValues("error").Inc()
				d.logger.Debug("quote failed", zap.String("output", output.String()), zap.Error(err))
				return nil
			}
			if trade == nil {
				metrics.QuoteRequests.WithLabelValues("no_route").Inc()
				return nil
			}
			metrics.QuoteRequests.WithLabelValues("ok").Inc()
			trades[i] = trade
			return nil
		})
	}
	_ = g.Wait()

	var (
		bestTrade *model.Trade
		bestSplit depositSplit
	)
	for _, trade := range trades {
		if trade == nil || trade.Output.IsZero() {
			continue
		}
		// the split is priced at the pool's current reserves
		if routesThrough(trade, pool.Address) {
			d.logger.Debug("route through target pool skipped", zap.String("route", trade.Route()))
			continue
		}
		split, err := splitDeposit(pool, trade.Output)
		if err != nil {
			continue
		}
		if bestTrade == nil || split.minted.Cmp(bestSplit.minted) > 0 {
			bestTrade, bestSplit = trade, split
		}
	}
	if bestTrade == nil {
		return nil, depositSplit{}, ErrNoRouteFound
	}
	return bestTrade, bestSplit, nil
}

func routesThrough(trade *model.Trade, pool common.Address) bool {
	for _, pair := range trade.Pairs {
		if pair == pool {
			return true
		}
	}
	return false
}

// depositSplit is the in-pool half swap and resulting deposit of a zap.
type depositSplit struct {
	swapIn  *big.Int
	amount0 *big.Int
	amount1 *big.Int
	minted  *big.Int
	impact  model.Percent
}

// splitDeposit swaps the optimal part of intermediate into the other pool
// token and deposits both sides at the post-swap reserves.
func splitDeposit(pool model.Pool, intermediate model.Amount) (depositSplit, error) {
	reserveIn, reserveOut, err := pool.Reserves(intermediate.Asset)
	if err != nil {
		return depositSplit{}, err
	}
	swapIn := dex.OptimalSwapIn(reserveIn, intermediate.Raw)
	if swapIn.Sign() == 0 {
		return depositSplit{}, dex.ErrInsufficientLiquidity
	}
	swapOut, err := dex.GetAmountOut(swapIn, reserveIn, reserveOut)
	if err != nil {
		return depositSplit{}, err
	}

	keep := new(big.Int).Sub(intermediate.Raw, swapIn)
	postIn := new(big.Int).Add(reserveIn, swapIn)
	postOut := new(big.Int).Sub(reserveOut, swapOut)

	split := depositSplit{
		swapIn: swapIn,
		impact: dex.PriceImpactWithoutFee(swapIn, swapOut, []dex.Hop{{ReserveIn: reserveIn, ReserveOut: reserveOut}}),
	}
	if pool.Token0.Equal(intermediate.Asset) {
		split.amount0, split.amount1 = keep, swapOut
		split.minted = dex.LiquidityMinted(pool.TotalSupply, keep, swapOut, postIn, postOut)
	} else {
		split.amount0, split.amount1 = swapOut, keep
		split.minted = dex.LiquidityMinted(pool.TotalSupply, swapOut, keep, postOut, postIn)
	}
	if split.minted.Sign() == 0 {
		return depositSplit{}, dex.ErrInsufficientLiquidity
	}
	return split, nil
}

func (d *DerivedZapInfo) apply(split depositSplit, intermediate model.Amount, trade *model.Trade) {
	d.Trade = trade
	d.Intermediate = intermediate
	d.SwapIn = model.NewAmount(intermediate.Asset, split.swapIn)
	d.LiquidityMinted = model.NewAmount(d.Pool.LiquidityToken, split.minted)
	d.CurrencyZeroOutput = model.NewAmount(d.Pool.Token0, split.amount0)
	d.CurrencyOneOutput = model.NewAmount(d.Pool.Token1, split.amount1)

	supply := new(big.Int)
	if d.Pool.TotalSupply != nil {
		supply.Set(d.Pool.TotalSupply)
	}
	d.PoolShare = model.NewPercent(split.minted, supply.Add(supply, split.minted))

	d.PriceImpact = split.impact
	if trade != nil && !d.IsTradingUnderlying {
		d.PriceImpact = model.MaxPercent(trade.PriceImpact, split.impact)
	}
}

func (d DerivedZapInfo) fail(err error) DerivedZapInfo {
	d.Error = err
	d.Reason = reasonFor(err, d.Input.String())
	return d
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoAmount), errors.Is(err, ErrInvalidAmount):
		return "no_amount"
	case errors.Is(err, ErrPoolNotFound):
		return "pool_not_found"
	case errors.Is(err, ErrNoRouteFound):
		return "no_route"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	default:
		return "error"
	}
}
