package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve the zapper to spend the input token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := readZapArgs(cmd)
			if err != nil {
				return err
			}
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

			session, _, _, err := a.prepare(ctx, args)
			if err != nil {
				return err
			}
			defer session.Close()

			d := session.Decision()
			if !d.CanApprove {
				fmt.Fprintf(cmd.OutOrStdout(), "nothing to approve: %s\n", d.Label)
				return nil
			}

			hash, err := session.Approve(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approval sent: %s\n", hash.Hex())

			state, err := session.ResolveApproval(ctx, hash)
			if err != nil {
				return err
			}
			a.logger.Info("approval resolved", zap.String("tx", hash.Hex()), zap.String("state", state.String()))
			fmt.Fprintf(cmd.OutOrStdout(), "allowance: %s\n", state)
			return nil
		},
	}
	addZapFlags(cmd)
	return cmd
}
