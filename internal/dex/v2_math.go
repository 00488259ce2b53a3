package dex

import (
	"errors"
	"math/big"

	"zapScope/internal/model"
)

// ErrInsufficientLiquidity is returned when a pair cannot fill a swap.
var ErrInsufficientLiquidity = errors.New("insufficient liquidity")

// 0.3% swap fee: multiplier 997/1000.
var (
	feeMul            = big.NewInt(997)
	feeDen            = big.NewInt(1000)
	minimumLiquidity  = big.NewInt(1000)
	optimalSwapFactor = big.NewInt(3988009)
	optimalSwapInput  = big.NewInt(3988000)
	optimalSwapOffset = big.NewInt(1997)
	optimalSwapDen    = big.NewInt(1994)
)

// Hop is one pair traversal with reserves ordered for the swap direction.
type Hop struct {
	ReserveIn  *big.Int
	ReserveOut *big.Int
}

// GetAmountOut returns the output of an exact-input swap against a pair.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, errors.New("insufficient input amount")
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	amountInWithFee := new(big.Int).Mul(amountIn, feeMul)
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, feeDen)
	denominator.Add(denominator, amountInWithFee)
	out := numerator.Quo(numerator, denominator)
	if out.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	return out, nil
}

// OptimalSwapIn returns how much of amountIn to swap into the other side so
// that the remainder and the swap output can be deposited at the post-swap
// reserve ratio:
//
//	(sqrt(r*(r*3988009 + x*3988000)) - r*1997) / 1994
func OptimalSwapIn(reserveIn, amountIn *big.Int) *big.Int {
	if reserveIn == nil || amountIn == nil || reserveIn.Sign() <= 0 || amountIn.Sign() <= 0 {
		return new(big.Int)
	}
	inner := new(big.Int).Mul(reserveIn, optimalSwapFactor)
	inner.Add(inner, new(big.Int).Mul(amountIn, optimalSwapInput))
	inner.Mul(inner, reserveIn)

	root := new(big.Int).Sqrt(inner)
	root.Sub(root, new(big.Int).Mul(reserveIn, optimalSwapOffset))
	if root.Sign() <= 0 {
		return new(big.Int)
	}
	return root.Quo(root, optimalSwapDen)
}

// LiquidityMinted applies the constant-product deposit rule.
func LiquidityMinted(totalSupply, amount0, amount1, reserve0, reserve1 *big.Int) *big.Int {
	if amount0 == nil || amount1 == nil || amount0.Sign() <= 0 || amount1.Sign() <= 0 {
		return new(big.Int)
	}
	if totalSupply == nil || totalSupply.Sign() == 0 {
		liquidity := new(big.Int).Mul(amount0, amount1)
		liquidity.Sqrt(liquidity)
		liquidity.Sub(liquidity, minimumLiquidity)
		if liquidity.Sign() < 0 {
			return new(big.Int)
		}
		return liquidity
	}
	if reserve0 == nil || reserve1 == nil || reserve0.Sign() <= 0 || reserve1.Sign() <= 0 {
		return new(big.Int)
	}

	liquidity0 := new(big.Int).Mul(amount0, totalSupply)
	liquidity0.Quo(liquidity0, reserve0)
	liquidity1 := new(big.Int).Mul(amount1, totalSupply)
	liquidity1.Quo(liquidity1, reserve1)
	if liquidity0.Cmp(liquidity1) <= 0 {
		return liquidity0
	}
	return liquidity1
}

// SimulatePath runs amountIn through the hops and returns the final output.
func SimulatePath(amountIn *big.Int, hops []Hop) (*big.Int, error) {
	if len(hops) == 0 {
		return nil, errors.New("empty path")
	}
	current := new(big.Int).Set(amountIn)
	for _, hop := range hops {
		out, err := GetAmountOut(current, hop.ReserveIn, hop.ReserveOut)
		if err != nil {
			return nil, err
		}
		current = out
	}
	return current, nil
}

// PriceImpactWithoutFee measures how far amountOut falls short of the mid
// price quote after removing the LP fee realised on each hop:
//
//	(in * prod(rOut) * 997^n - out * prod(rIn) * 1000^n) / (in * prod(rOut) * 1000^n)
//
// Results below zero are clamped to zero.
func PriceImpactWithoutFee(amountIn, amountOut *big.Int, hops []Hop) model.Percent {
	if amountIn == nil || amountOut == nil || amountIn.Sign() <= 0 || len(hops) == 0 {
		return model.ZeroPercent()
	}

	prodIn := big.NewInt(1)
	prodOut := big.NewInt(1)
	for _, hop := range hops {
		if hop.ReserveIn == nil || hop.ReserveOut == nil || hop.ReserveIn.Sign() <= 0 || hop.ReserveOut.Sign() <= 0 {
			return model.ZeroPercent()
		}
		prodIn.Mul(prodIn, hop.ReserveIn)
		prodOut.Mul(prodOut, hop.ReserveOut)
	}
	n := big.NewInt(int64(len(hops)))
	feeMulN := new(big.Int).Exp(feeMul, n, nil)
	feeDenN := new(big.Int).Exp(feeDen, n, nil)

	midOut := new(big.Int).Mul(amountIn, prodOut)

	numerator := new(big.Int).Mul(midOut, feeMulN)
	numerator.Sub(numerator, new(big.Int).Mul(new(big.Int).Mul(amountOut, prodIn), feeDenN))
	if numerator.Sign() <= 0 {
		return model.ZeroPercent()
	}
	denominator := new(big.Int).Mul(midOut, feeDenN)
	return model.NewPercent(numerator, denominator)
}
