package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"zapScope/internal/zapper"
)

func newZapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zap",
		Short: "Submit a zapIn and wait for the minted pool tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := readZapArgs(cmd)
			if err != nil {
				return err
			}
			yes, _ := cmd.Flags().GetBool("yes")
			approve, _ := cmd.Flags().GetBool("approve")

			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.zapper == (common.Address{}) {
				return fmt.Errorf("zapper address is required")
			}

			session, info, bps, err := a.prepare(ctx, args)
			if err != nil {
				return err
			}
			defer session.Close()
			out := cmd.OutOrStdout()
			if err := printQuote(out, info, session.Decision(), bps); err != nil {
				return err
			}

			if d := session.Decision(); d.State == zapper.GuardApprovalRequired && d.CanApprove && approve {
				hash, err := session.Approve(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "approval sent: %s\n", hash.Hex())
				if _, err := session.ResolveApproval(ctx, hash); err != nil {
					return err
				}
			}

			d := session.Decision()
			if !d.CanExecute {
				return fmt.Errorf("cannot zap: %s", d.Label)
			}
			if d.NeedsConfirm && !yes {
				return fmt.Errorf("price impact %s is %s; rerun with --yes to zap anyway", info.PriceImpact.Significant(4), d.Severity)
			}

			sub, err := session.Zap(ctx, yes)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "zap sent: %s\n", sub.Hash.Hex())

			receipt, err := a.executor.Confirm(ctx, sub)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "confirmed in block %d: %s pool tokens minted (minimum %s)\n",
				receipt.BlockNumber, receipt.LiquidityMinted, sub.MinimumOutput.Raw)
			return nil
		},
	}
	addZapFlags(cmd)
	cmd.Flags().Bool("yes", false, "confirm a price impact warning")
	cmd.Flags().Bool("approve", false, "send the approval first when needed")
	return cmd
}
