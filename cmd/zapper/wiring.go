package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zapScope/internal/chain"
	"zapScope/internal/config"
	"zapScope/internal/dex"
	"zapScope/internal/model"
	"zapScope/internal/slippage"
	"zapScope/internal/storage"
	"zapScope/internal/storage/postgres"
	"zapScope/internal/wallet"
	"zapScope/internal/zapper"
)

// app holds the wired components of one command invocation.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	client   *chain.Client
	reader   *dex.Reader
	quoter   *dex.Quoter
	pg       *postgres.Store
	signer   *wallet.Signer
	account  common.Address
	native   model.Asset
	wrapped  model.Asset
	zapper   common.Address
	router   common.Address
	guard    *zapper.Guard
	journal  zapper.Journal
	jsonl    *storage.JsonlJournal
	deriver  *zapper.Deriver
	executor *zapper.Executor
	approval *zapper.AllowanceMachine

	closers []func()
}

// loadConfig reads config and builds the logger only.
func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// newApp connects to the chain and wires the zap pipeline. needSigner
// requires a private key.
func newApp(ctx context.Context, cmd *cobra.Command, needSigner bool) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if err := a.wire(ctx, needSigner); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, needSigner bool) error {
	cfg := a.cfg
	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL,
		chain.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		chain.WithRetries(cfg.MaxRetries, cfg.RetryBackoff),
	)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	a.client = client
	a.closers = append(a.closers, client.Close)

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if chainID.Uint64() != cfg.ChainID {
		return fmt.Errorf("rpc serves chain %s but config expects %d", chainID, cfg.ChainID)
	}

	factory, err := optionalAddress("factory", cfg.Factory)
	if err != nil {
		return err
	}
	if a.router, err = optionalAddress("router", cfg.Router); err != nil {
		return err
	}
	if a.zapper, err = optionalAddress("zapper", cfg.Zapper); err != nil {
		return err
	}

	a.native = model.NativeAsset(cfg.NativeSymbol)
	a.reader = dex.NewReader(client, a.native, factory, a.logger)

	if cfg.WrappedNative == "" {
		return fmt.Errorf("wrapped native address is required for chain %d", cfg.ChainID)
	}
	if a.wrapped, err = a.reader.ResolveAsset(ctx, cfg.WrappedNative); err != nil {
		return fmt.Errorf("resolve wrapped native: %w", err)
	}
	bases := make([]model.Asset, 0, len(cfg.BaseTokens))
	for _, id := range cfg.BaseTokens {
		base, err := a.reader.ResolveAsset(ctx, id)
		if err != nil {
			return fmt.Errorf("resolve base token %s: %w", id, err)
		}
		bases = append(bases, base)
	}
	a.quoter = dex.NewQuoter(a.reader, dex.QuoterConfig{
		WrappedNative: a.wrapped,
		BaseTokens:    bases,
		Multihop:      cfg.Multihop,
	}, a.logger)

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.pg = store
		a.closers = append(a.closers, store.Close)
	}
	a.jsonl = storage.NewJsonlJournal(cfg.Journal)
	journals := storage.Multi{a.jsonl}
	if a.pg != nil {
		journals = append(journals, a.pg)
	}
	a.journal = journals

	if cfg.PrivateKey != "" {
		signer, err := wallet.NewSigner(client, cfg.PrivateKey, cfg.ChainID, wallet.Options{
			GasLimitBufferBps: cfg.GasBufferBps,
			PollInterval:      cfg.PollInterval,
		}, a.logger)
		if err != nil {
			return err
		}
		a.signer = signer
		a.account = signer.Address()
	} else if needSigner {
		return fmt.Errorf("private key is required to sign transactions")
	} else if cfg.Account != "" {
		if a.account, err = chain.ParseAddress(cfg.Account); err != nil {
			return err
		}
	}

	a.guard = zapper.NewGuard(cfg.Severity)
	a.deriver = zapper.NewDeriver(a.reader, a.quoter, a.reader, a.wrapped, a.logger)

	var submitter zapper.Submitter
	if a.signer != nil {
		submitter = a.signer
	}
	a.executor = zapper.NewExecutor(zapper.ExecutorConfig{
		ChainID:       cfg.ChainID,
		Zapper:        a.zapper,
		Router:        a.router,
		WrappedNative: a.wrapped,
	}, submitter, dex.NewRouterEncoder(cfg.SwapDeadline), a.guard, a.journal, a.logger)
	a.approval = zapper.NewAllowanceMachine(a.reader, submitter, zapper.AllowanceOptions{
		ChainID:       cfg.ChainID,
		ExactApproval: cfg.ExactApproval,
		Journal:       a.journal,
	}, a.logger)

	if cfg.MetricsAddr != "" {
		a.serveMetrics(cfg.MetricsAddr)
	}
	return nil
}

// slippageStore prefers per-account Postgres preferences over the file.
func (a *app) slippageStore(account common.Address) slippage.Store {
	if a.pg != nil && account != (common.Address{}) {
		return slippage.NewAccountStore(a.pg, a.cfg.ChainID, account)
	}
	return slippage.NewFileStore(a.cfg.SlippageFile)
}

// session builds a zap session for the given inputs.
func (a *app) session(source zapper.SlippageSource, input model.Asset, pool common.Address, typed string) *zapper.Session {
	if a.zapper == (common.Address{}) {
		a.logger.Warn("zapper address is not configured; quotes only")
	}
	s := zapper.NewSession(a.deriver, a.approval, a.executor, source, zapper.SessionConfig{
		Spender:  a.zapper,
		Debounce: a.cfg.Debounce,
	}, a.logger)
	s.SetAccount(a.account)
	s.SetInput(input)
	s.SetPool(pool)
	s.SetTyped(typed)
	return s
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
	a.closers = append(a.closers, func() { _ = srv.Close() })
}

// Close releases resources in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func optionalAddress(name, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	addr, err := chain.ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}
