package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zapScope/internal/api"
	"zapScope/internal/slippage"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve zap quotes and unsigned transactions over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			listen, _ := cmd.Flags().GetString("listen")
			rps, _ := cmd.Flags().GetFloat64("http-rate-limit")
			burst, _ := cmd.Flags().GetInt("http-rate-burst")

			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.zapper == (common.Address{}) {
				return fmt.Errorf("zapper address is required to serve transactions")
			}

			if a.cfg.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			server := api.NewServer(api.Deps{
				Assets:     a.reader,
				Deriver:    a.deriver,
				Guard:      a.guard,
				Executor:   a.executor,
				Allowances: a.reader,
				Spender:    a.zapper,
				Slippage: func(account common.Address) slippage.Store {
					return a.slippageStore(account)
				},
			}, api.Options{Addr: listen, RateLimit: rps, RateBurst: burst}, a.logger)

			a.logger.Info("zapper api start",
				zap.String("listen", listen),
				zap.Uint64("chain_id", a.cfg.ChainID),
				zap.String("zapper", a.zapper.Hex()),
			)
			return server.Run(ctx)
		},
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	cmd.Flags().Float64("http-rate-limit", 10, "requests per second per client IP, 0 disables")
	cmd.Flags().Int("http-rate-burst", 20, "per client burst")
	return cmd
}
