package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"zapScope/internal/chain"
	"zapScope/internal/model"
	"zapScope/internal/slippage"
	"zapScope/internal/zapper"
)

func addZapFlags(cmd *cobra.Command) {
	cmd.Flags().String("pool", "", "target pair address")
	cmd.Flags().String("input", "", "input token address or ETH for the native currency")
	cmd.Flags().String("amount", "", "input amount in human units, e.g. 1.5")
	cmd.Flags().String("slippage", "", "slippage override, e.g. 50 or 0.5% (default: stored preference)")
}

type zapArgs struct {
	pool     common.Address
	input    string
	amount   string
	slippage string
}

func readZapArgs(cmd *cobra.Command) (zapArgs, error) {
	pool, _ := cmd.Flags().GetString("pool")
	input, _ := cmd.Flags().GetString("input")
	amount, _ := cmd.Flags().GetString("amount")
	override, _ := cmd.Flags().GetString("slippage")
	if input == "" {
		return zapArgs{}, fmt.Errorf("input is required")
	}
	if amount == "" {
		return zapArgs{}, fmt.Errorf("amount is required")
	}
	addr, err := chain.ParseAddress(pool)
	if err != nil {
		return zapArgs{}, fmt.Errorf("pool: %w", err)
	}
	return zapArgs{pool: addr, input: input, amount: amount, slippage: override}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// prepare resolves the input, picks the slippage source and derives once.
func (a *app) prepare(ctx context.Context, args zapArgs) (*zapper.Session, zapper.DerivedZapInfo, uint16, error) {
	input, err := a.reader.ResolveAsset(ctx, args.input)
	if err != nil {
		return nil, zapper.DerivedZapInfo{}, 0, fmt.Errorf("resolve input: %w", err)
	}

	var source slippage.Store = a.slippageStore(a.account)
	if args.slippage != "" {
		bps, err := slippage.Parse(args.slippage)
		if err != nil {
			return nil, zapper.DerivedZapInfo{}, 0, err
		}
		source = slippage.Static(bps)
	}
	bps, err := source.SlippageBps(ctx)
	if err != nil {
		bps = slippage.DefaultBps
	}

	session := a.session(source, input, args.pool, args.amount)
	info, _ := session.Refresh(ctx)
	return session, info, bps, nil
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Derive a zap quote without submitting anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := readZapArgs(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			session, info, bps, err := a.prepare(ctx, args)
			if err != nil {
				return err
			}
			defer session.Close()
			return printQuote(cmd.OutOrStdout(), info, session.Decision(), bps)
		},
	}
	addZapFlags(cmd)
	return cmd
}

func printQuote(w io.Writer, info zapper.DerivedZapInfo, d zapper.Decision, bps uint16) error {
	fmt.Fprintf(w, "pool:              %s (%s)\n", info.Pool.Name(), info.Pool.Address.Hex())
	if info.Parsed != nil {
		fmt.Fprintf(w, "input:             %s %s\n", info.Parsed.Exact(), info.Input)
	}
	if info.Trade != nil {
		fmt.Fprintf(w, "route:             %s\n", info.Trade.Route())
		fmt.Fprintf(w, "swap in pool:      %s\n", info.SwapIn.Significant(6))
	}
	minimum, err := zapper.MinimumOutput(info.LiquidityMinted.Raw, uint64(bps))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "deposit:           %s + %s\n", info.CurrencyZeroOutput.Significant(6), info.CurrencyOneOutput.Significant(6))
	fmt.Fprintf(w, "pool tokens:       %s\n", info.LiquidityMinted.Significant(6))
	fmt.Fprintf(w, "minimum received:  %s (slippage %s)\n", model.NewAmount(info.LiquidityMinted.Asset, minimum).Significant(6), slippage.Format(bps))
	fmt.Fprintf(w, "pool share:        %s\n", info.PoolShare.Significant(4))
	fmt.Fprintf(w, "price impact:      %s (%s)\n", info.PriceImpact.Significant(4), d.Severity)
	if info.Balance != nil {
		fmt.Fprintf(w, "balance:           %s\n", info.Balance.Significant(6))
	}
	fmt.Fprintf(w, "status:            %s\n", d.Label)
	if d.ShowApproveFlow {
		fmt.Fprintf(w, "approval:          %s\n", d.ApproveLabel)
	}
	return nil
}
