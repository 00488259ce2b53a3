package dex

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"zapScope/internal/model"
)

// PairSource resolves and loads constant-product pairs.
type PairSource interface {
	PairFor(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error)
	GetPool(ctx context.Context, pair common.Address) (model.Pool, error)
}

// QuoterConfig controls candidate path generation.
type QuoterConfig struct {
	WrappedNative model.Asset
	BaseTokens    []model.Asset
	// Multihop enables paths through one base token.
	Multihop    bool
	Concurrency int
}

// Quoter finds the best exact-input trade across direct and one-hop paths.
type Quoter struct {
	source PairSource
	cfg    QuoterConfig
	logger *zap.Logger
}

// NewQuoter builds a Quoter.
func NewQuoter(source PairSource, cfg QuoterConfig, logger *zap.Logger) *Quoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Quoter{source: source, cfg: cfg, logger: logger}
}

// GetBestTrade returns the trade with the largest output, or nil when no
// candidate path can fill the amount.
func (q *Quoter) GetBestTrade(ctx context.Context, input, output model.Asset, amountIn model.Amount) (*model.Trade, error) {
	if q.source == nil {
		return nil, fmt.Errorf("pair source is nil")
	}
	if amountIn.IsZero() {
		return nil, nil
	}

	tokenIn := input.Wrapped(q.cfg.WrappedNative)
	tokenOut := output.Wrapped(q.cfg.WrappedNative)
	if tokenIn.Equal(tokenOut) {
		return nil, fmt.Errorf("input and output resolve to the same token %s", tokenIn)
	}

	paths := q.candidatePaths(tokenIn, tokenOut)
	trades := make([]*model.Trade, len(paths))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.cfg.Concurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			trade, err := q.evaluate(gctx, path, amountIn)
			if err != nil {
				q.logger.Debug("candidate path skipped", zap.String("path", routeString(path)), zap.Error(err))
				return nil
			}
			mu.Lock()
			trades[i] = trade
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var best *model.Trade
	for _, trade := range trades {
		if trade == nil {
			continue
		}
		if best == nil || trade.Output.Cmp(best.Output) > 0 {
			best = trade
		}
	}
	return best, nil
}

func (q *Quoter) candidatePaths(tokenIn, tokenOut model.Asset) [][]model.Asset {
	paths := [][]model.Asset{{tokenIn, tokenOut}}
	if !q.cfg.Multihop {
		return paths
	}
	for _, base := range q.cfg.BaseTokens {
		if base.Equal(tokenIn) || base.Equal(tokenOut) {
			continue
		}
		paths = append(paths, []model.Asset{tokenIn, base, tokenOut})
	}
	return paths
}

func (q *Quoter) evaluate(ctx context.Context, path []model.Asset, amountIn model.Amount) (*model.Trade, error) {
	hops := make([]Hop, 0, len(path)-1)
	pairs := make([]common.Address, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		pairAddr, err := q.source.PairFor(ctx, path[i].Address, path[i+1].Address)
		if err != nil {
			return nil, err
		}
		if pairAddr == (common.Address{}) {
			return nil, fmt.Errorf("no pair for %s/%s", path[i], path[i+1])
		}
		pool, err := q.source.GetPool(ctx, pairAddr)
		if err != nil {
			return nil, err
		}
		reserveIn, reserveOut, err := pool.Reserves(path[i])
		if err != nil {
			return nil, err
		}
		hops = append(hops, Hop{ReserveIn: reserveIn, ReserveOut: reserveOut})
		pairs = append(pairs, pairAddr)
	}

	out, err := SimulatePath(amountIn.Raw, hops)
	if err != nil {
		return nil, err
	}

	return &model.Trade{
		Path:        path,
		Pairs:       pairs,
		Input:       model.NewAmount(amountIn.Asset, amountIn.Raw),
		Output:      model.NewAmount(path[len(path)-1], out),
		PriceImpact: PriceImpactWithoutFee(amountIn.Raw, out, hops),
	}, nil
}

// PoolTrade simulates the internal half swap of a zap inside a single pool.
func PoolTrade(pool model.Pool, amountIn model.Amount, tokenIn model.Asset) (*model.Trade, error) {
	reserveIn, reserveOut, err := pool.Reserves(tokenIn)
	if err != nil {
		return nil, err
	}
	out, err := GetAmountOut(amountIn.Raw, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	hops := []Hop{{ReserveIn: reserveIn, ReserveOut: reserveOut}}
	return &model.Trade{
		Path:        []model.Asset{tokenIn, pool.Other(tokenIn)},
		Pairs:       []common.Address{pool.Address},
		Input:       model.NewAmount(amountIn.Asset, amountIn.Raw),
		Output:      model.NewAmount(pool.Other(tokenIn), out),
		PriceImpact: PriceImpactWithoutFee(amountIn.Raw, out, hops),
	}, nil
}

func routeString(path []model.Asset) string {
	t := model.Trade{Path: path}
	return t.Route()
}
