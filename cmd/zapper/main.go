package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "zapper",
		Short:        "Single-sided liquidity deposits into constant-product pools",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			// .env is optional
			_ = godotenv.Load()
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("rpc", "", "EVM RPC URL")
	flags.Uint64("chain-id", 1, "chain id (selects built-in contract defaults)")
	flags.String("zapper", "", "zapper contract address")
	flags.String("router", "", "router address (default per chain)")
	flags.String("factory", "", "factory address (default per chain)")
	flags.String("wrapped-native", "", "wrapped native token address (default per chain)")
	flags.StringSlice("base-tokens", nil, "intermediate tokens for one-hop routes (comma-separated)")
	flags.Bool("multihop", true, "allow routes through one base token")
	flags.String("account", "", "account for read-only commands")
	flags.String("private-key", "", "hex private key used to sign (prefer ZAPPER_PRIVATE_KEY)")
	flags.Float64("rate-limit", 0, "max RPC calls per second, 0 disables")
	flags.Int("rate-burst", 1, "RPC rate limit burst")
	flags.Int("max-retries", 3, "maximum RPC read retries")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.Duration("poll-interval", 2*time.Second, "receipt polling interval")
	flags.Uint64("gas-buffer-bps", 2000, "gas limit buffer over the estimate in bps")
	flags.Duration("swap-deadline", 20*time.Minute, "router swap deadline")
	flags.Bool("exact-approval", false, "approve the exact amount instead of unlimited")
	flags.String("slippage-file", "./data/slippage.json", "slippage preference file")
	flags.String("journal", "./data/submissions.jsonl", "submission journal JSONL path")
	flags.String("pg-dsn", "", "Postgres DSN for the journal and slippage preferences")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newQuoteCmd(),
		newApproveCmd(),
		newZapCmd(),
		newSlippageCmd(),
		newHistoryCmd(),
		newServeCmd(),
		newMigrateCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
