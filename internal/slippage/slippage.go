package slippage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// DefaultBps is the tolerance used until the user picks one.
	DefaultBps uint16 = 50
	// MaxBps is 100%.
	MaxBps uint16 = 10_000
)

// ErrOutOfRange is returned for tolerances above MaxBps.
var ErrOutOfRange = errors.New("slippage out of range")

// Store reads and writes the slippage tolerance in basis points.
type Store interface {
	SlippageBps(ctx context.Context) (uint16, error)
	SetSlippageBps(ctx context.Context, bps uint16) error
}

// Validate checks that bps lies in [0, MaxBps].
func Validate(bps int64) (uint16, error) {
	if bps < 0 || bps > int64(MaxBps) {
		return 0, fmt.Errorf("%w: %d bps", ErrOutOfRange, bps)
	}
	return uint16(bps), nil
}

// Parse accepts either basis points ("50") or a percentage ("0.5%").
func Parse(input string) (uint16, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, fmt.Errorf("empty slippage")
	}
	if pct, ok := strings.CutSuffix(input, "%"); ok {
		value, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return 0, fmt.Errorf("parse slippage %q: %w", input, err)
		}
		bps := value.Mul(decimal.NewFromInt(100))
		if bps.IsNegative() || bps.GreaterThan(decimal.NewFromInt(int64(MaxBps))) {
			return 0, fmt.Errorf("%w: %s", ErrOutOfRange, input)
		}
		if !bps.Equal(bps.Truncate(0)) {
			return 0, fmt.Errorf("slippage %q is finer than 1 bps", input)
		}
		return Validate(bps.IntPart())
	}
	bps, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse slippage %q: %w", input, err)
	}
	return Validate(bps)
}

// Format renders bps as a percentage, e.g. 50 -> "0.5%".
func Format(bps uint16) string {
	return decimal.New(int64(bps), -2).String() + "%"
}

// Static is a fixed tolerance. Writes are rejected.
type Static uint16

func (s Static) SlippageBps(context.Context) (uint16, error) {
	return Validate(int64(s))
}

func (s Static) SetSlippageBps(context.Context, uint16) error {
	return fmt.Errorf("static slippage is read-only")
}
