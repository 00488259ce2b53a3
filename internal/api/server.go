package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"zapScope/internal/model"
	"zapScope/internal/slippage"
	"zapScope/internal/zapper"
)

const apiVersion = "v1"

// AssetResolver maps an address or native alias onto an Asset.
type AssetResolver interface {
	ResolveAsset(ctx context.Context, id string) (model.Asset, error)
}

// Deps are the collaborators behind the HTTP API.
type Deps struct {
	Assets     AssetResolver
	Deriver    *zapper.Deriver
	Guard      *zapper.Guard
	Executor   *zapper.Executor
	Allowances zapper.AllowanceReader
	// Spender is the zapper contract.
	Spender common.Address
	// Slippage returns the preference store of an account; nil means
	// DefaultBps for everyone.
	Slippage func(account common.Address) slippage.Store
}

// Options configures the listener.
type Options struct {
	Addr      string
	RateLimit float64
	RateBurst int
}

// Server exposes quotes, unsigned transactions and slippage preferences.
type Server struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
	engine *gin.Engine
}

func NewServer(deps Deps, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, opts: opts, logger: logger}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(metricsMiddleware())
	r.Use(loggingMiddleware(s.logger))
	if s.opts.RateLimit > 0 {
		r.Use(newIPLimiter(s.opts.RateLimit, s.opts.RateBurst).middleware())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/" + apiVersion)
	zapGroup := v1.Group("/zap")
	zapGroup.GET("/quote", s.getQuote)
	zapGroup.GET("/tx", s.getZapTx)
	zapGroup.GET("/approve-tx", s.getApproveTx)

	v1.GET("/slippage", s.getSlippage)
	v1.PUT("/slippage", s.putSlippage)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("failed to stop http server", zap.Error(err))
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
