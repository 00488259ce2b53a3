package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"zapScope/internal/model"
	"zapScope/internal/storage"
	"zapScope/internal/storage/postgres"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled approval and zap submissions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			limit, _ := cmd.Flags().GetInt("limit")

			var records []model.SubmissionRecord
			account, err := configuredAccount(cfg)
			if err != nil {
				return err
			}
			if cfg.PGDSN != "" && account != (common.Address{}) {
				store, err := postgres.NewStore(cmd.Context(), cfg.PGDSN)
				if err != nil {
					return fmt.Errorf("connect postgres: %w", err)
				}
				defer store.Close()
				if records, err = store.ListSubmissions(cmd.Context(), cfg.ChainID, account.Hex(), limit); err != nil {
					return err
				}
			} else {
				if records, err = storage.NewJsonlJournal(cfg.Journal).Latest(); err != nil {
					return err
				}
				if limit > 0 && len(records) > limit {
					records = records[len(records)-limit:]
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SUBMITTED\tKIND\tSTATUS\tTX\tAMOUNT\tMINTED")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					rec.SubmittedAt.Format("2006-01-02 15:04:05"), rec.Kind, rec.Status, rec.TxHash, rec.Amount, rec.LiquidityMinted)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of submissions")
	return cmd
}
