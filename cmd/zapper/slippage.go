package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"zapScope/internal/chain"
	"zapScope/internal/config"
	"zapScope/internal/slippage"
	"zapScope/internal/storage/postgres"
	"zapScope/internal/wallet"
)

func newSlippageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slippage",
		Short: "Show or change the slippage tolerance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the stored slippage tolerance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeFn, err := openSlippageStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			bps, err := store.SlippageBps(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bps)\n", slippage.Format(bps), bps)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <bps|percent>",
		Short: "Store a slippage tolerance, e.g. 50 or 0.5%",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bps, err := slippage.Parse(args[0])
			if err != nil {
				return err
			}
			store, closeFn, err := openSlippageStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if err := store.SetSlippageBps(cmd.Context(), bps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "slippage set to %s\n", slippage.Format(bps))
			return nil
		},
	})
	return cmd
}

// openSlippageStore needs no RPC: Postgres when a DSN and account are
// known, the local file otherwise.
func openSlippageStore(cmd *cobra.Command) (slippage.Store, func(), error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	noop := func() { _ = logger.Sync() }

	account, err := configuredAccount(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.PGDSN == "" || account == (common.Address{}) {
		return slippage.NewFileStore(cfg.SlippageFile), noop, nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pg, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return slippage.NewAccountStore(pg, cfg.ChainID, account), func() { pg.Close(); noop() }, nil
}

func configuredAccount(cfg config.Config) (common.Address, error) {
	if cfg.PrivateKey != "" {
		signer, err := wallet.NewSigner(nil, cfg.PrivateKey, cfg.ChainID, wallet.Options{}, nil)
		if err != nil {
			return common.Address{}, err
		}
		return signer.Address(), nil
	}
	if cfg.Account == "" {
		return common.Address{}, nil
	}
	return chain.ParseAddress(cfg.Account)
}
