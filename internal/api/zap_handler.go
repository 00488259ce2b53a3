package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zapScope/internal/dex"
	"zapScope/internal/model"
	"zapScope/internal/slippage"
	"zapScope/internal/zapper"
)

// QuoteRequest is the query of the quote and tx endpoints.
type QuoteRequest struct {
	Pool    string `form:"pool" binding:"required"`
	Input   string `form:"input" binding:"required"`
	Amount  string `form:"amount" binding:"required"`
	Account string `form:"account"`
	// Slippage overrides the stored preference, e.g. "50" or "0.5%".
	Slippage string `form:"slippage"`
	// Confirmed acknowledges a price impact warning.
	Confirmed bool `form:"confirmed"`
}

// DecisionView is the guard verdict.
type DecisionView struct {
	State           string `json:"state"`
	Label           string `json:"label"`
	Severity        string `json:"severity"`
	CanExecute      bool   `json:"canExecute"`
	NeedsConfirm    bool   `json:"needsConfirm"`
	ShowApproveFlow bool   `json:"showApproveFlow"`
	CanApprove      bool   `json:"canApprove"`
	ApproveLabel    string `json:"approveLabel"`
}

// QuoteResponse is the derived zap quote.
type QuoteResponse struct {
	Pool                string        `json:"pool"`
	PoolName            string        `json:"poolName"`
	Input               model.Asset   `json:"input"`
	Amount              string        `json:"amount"`
	Route               string        `json:"route,omitempty"`
	IsTradingUnderlying bool          `json:"isTradingUnderlying"`
	Intermediate        *model.Amount `json:"intermediate,omitempty"`
	SwapIn              *model.Amount `json:"swapIn,omitempty"`
	LiquidityMinted     model.Amount  `json:"liquidityMinted"`
	MinimumOutput       model.Amount  `json:"minimumOutput"`
	Currency0Output     model.Amount  `json:"currency0Output"`
	Currency1Output     model.Amount  `json:"currency1Output"`
	PoolShare           string        `json:"poolShare"`
	PriceImpactBps      uint64        `json:"priceImpactBps"`
	PriceImpact         string        `json:"priceImpact"`
	SlippageBps         uint16        `json:"slippageBps"`
	Balance             *model.Amount `json:"balance,omitempty"`
	Allowance           string        `json:"allowance"`
	Decision            DecisionView  `json:"decision"`
	Reason              string        `json:"reason,omitempty"`
}

// TxResponse is an unsigned transaction for an external wallet.
type TxResponse struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data"`
	// MinPoolTokens is set for zap transactions.
	MinPoolTokens string `json:"minPoolTokens,omitempty"`
}

type quoteState struct {
	req       QuoteRequest
	account   common.Address
	info      zapper.DerivedZapInfo
	allowance zapper.AllowanceState
	bps       uint16
	decision  zapper.Decision
}

func (s *Server) quote(ctx context.Context, req QuoteRequest) (quoteState, error) {
	st := quoteState{req: req, allowance: zapper.AllowanceUnknown}
	if !common.IsHexAddress(req.Pool) {
		return st, fmt.Errorf("invalid pool address %q", req.Pool)
	}
	if req.Account != "" {
		if !common.IsHexAddress(req.Account) {
			return st, fmt.Errorf("invalid account address %q", req.Account)
		}
		st.account = common.HexToAddress(req.Account)
	}
	input, err := s.deps.Assets.ResolveAsset(ctx, req.Input)
	if err != nil {
		return st, fmt.Errorf("resolve input: %w", err)
	}
	st.bps, err = s.slippageFor(ctx, st.account, req.Slippage)
	if err != nil {
		return st, err
	}

	st.info = s.deps.Deriver.Derive(ctx, zapper.DeriveRequest{
		Account: st.account,
		Input:   input,
		Typed:   req.Amount,
		Pool:    common.HexToAddress(req.Pool),
	})
	if st.info.Parsed != nil {
		st.allowance = s.allowanceState(ctx, st.account, *st.info.Parsed)
	}
	st.decision = s.deps.Guard.Decide(zapper.GuardInput{
		Connected: st.account != (common.Address{}),
		Info:      st.info,
		Allowance: st.allowance,
	})
	return st, nil
}

func (s *Server) slippageFor(ctx context.Context, account common.Address, override string) (uint16, error) {
	if override != "" {
		return slippage.Parse(override)
	}
	if s.deps.Slippage == nil || account == (common.Address{}) {
		return slippage.DefaultBps, nil
	}
	bps, err := s.deps.Slippage(account).SlippageBps(ctx)
	if err != nil {
		s.logger.Warn("slippage preference unavailable, using default", zap.String("account", account.Hex()), zap.Error(err))
		return slippage.DefaultBps, nil
	}
	return bps, nil
}

func (s *Server) allowanceState(ctx context.Context, account common.Address, required model.Amount) zapper.AllowanceState {
	if required.Asset.Native {
		return zapper.AllowanceApproved
	}
	if account == (common.Address{}) || s.deps.Allowances == nil {
		return zapper.AllowanceUnknown
	}
	allowance, err := s.deps.Allowances.GetAllowance(ctx, account, s.deps.Spender, required.Asset)
	if err != nil {
		s.logger.Warn("allowance read failed", zap.String("account", account.Hex()), zap.Error(err))
		return zapper.AllowanceUnknown
	}
	if allowance.Cmp(required.Raw) >= 0 {
		return zapper.AllowanceApproved
	}
	return zapper.AllowanceNotApproved
}

func (s *Server) getQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	st, err := s.quote(c.Request.Context(), req)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	resp, err := quoteView(st)
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, resp)
}

func quoteView(st quoteState) (QuoteResponse, error) {
	info := st.info
	minimum, err := zapper.MinimumOutput(info.LiquidityMinted.Raw, uint64(st.bps))
	if err != nil {
		return QuoteResponse{}, err
	}
	resp := QuoteResponse{
		Pool:                info.Pool.Address.Hex(),
		PoolName:            info.Pool.Name(),
		Input:               info.Input,
		Amount:              st.req.Amount,
		IsTradingUnderlying: info.IsTradingUnderlying,
		LiquidityMinted:     info.LiquidityMinted,
		MinimumOutput:       model.NewAmount(info.LiquidityMinted.Asset, minimum),
		Currency0Output:     info.CurrencyZeroOutput,
		Currency1Output:     info.CurrencyOneOutput,
		PoolShare:           info.PoolShare.String(),
		PriceImpactBps:      info.PriceImpact.Bps(),
		PriceImpact:         info.PriceImpact.String(),
		SlippageBps:         st.bps,
		Balance:             info.Balance,
		Allowance:           st.allowance.String(),
		Decision:            decisionView(st.decision),
		Reason:              info.Reason,
	}
	if info.Trade != nil {
		resp.Route = info.Trade.Route()
		intermediate, swapIn := info.Intermediate, info.SwapIn
		resp.Intermediate, resp.SwapIn = &intermediate, &swapIn
	}
	return resp, nil
}

func decisionView(d zapper.Decision) DecisionView {
	return DecisionView{
		State:           d.State.String(),
		Label:           d.Label,
		Severity:        d.Severity.String(),
		CanExecute:      d.CanExecute,
		NeedsConfirm:    d.NeedsConfirm,
		ShowApproveFlow: d.ShowApproveFlow,
		CanApprove:      d.CanApprove,
		ApproveLabel:    d.ApproveLabel,
	}
}

// requireSpender rejects transaction building without a zapper contract.
func (s *Server) requireSpender(c *gin.Context) bool {
	if s.deps.Spender == (common.Address{}) {
		failure(c, http.StatusServiceUnavailable, "zapper address is not configured")
		return false
	}
	return true
}

// getZapTx returns the zapIn transaction once the guard allows execution.
func (s *Server) getZapTx(c *gin.Context) {
	if !s.requireSpender(c) {
		return
	}
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	st, err := s.quote(c.Request.Context(), req)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if !st.decision.CanExecute || (st.decision.NeedsConfirm && !req.Confirmed) {
		c.JSON(http.StatusConflict, Response{Data: decisionView(st.decision), Error: st.decision.Label})
		return
	}

	call, value, err := s.deps.Executor.Build(st.info, uint64(st.bps))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, zapper.ErrGuardViolation):
			status = http.StatusConflict
		case errors.Is(err, zapper.ErrNotConfigured):
			status = http.StatusServiceUnavailable
		}
		failure(c, status, err.Error())
		return
	}
	data, err := dex.EncodeZapIn(call)
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, TxResponse{
		From:          st.account.Hex(),
		To:            s.deps.Spender.Hex(),
		Value:         value.String(),
		Data:          hexutil.Encode(data),
		MinPoolTokens: call.MinPoolTokens.String(),
	})
}

// getApproveTx returns an ERC20 approve of the zapper for the input token.
func (s *Server) getApproveTx(c *gin.Context) {
	if !s.requireSpender(c) {
		return
	}
	input := c.Query("input")
	if input == "" {
		badRequest(c, "input is required")
		return
	}
	asset, err := s.deps.Assets.ResolveAsset(c.Request.Context(), input)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if asset.Native {
		badRequest(c, "native input needs no approval")
		return
	}

	amount := math.MaxBig256
	if typed := c.Query("amount"); typed != "" && c.Query("exact") == "true" {
		parsed, err := model.ParseAmount(asset, typed)
		if err != nil || parsed == nil {
			badRequest(c, fmt.Sprintf("invalid amount %q", typed))
			return
		}
		amount = parsed.Raw
	}
	data, err := dex.EncodeApprove(s.deps.Spender, amount)
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, TxResponse{
		From:  c.Query("account"),
		To:    asset.Address.Hex(),
		Value: "0",
		Data:  hexutil.Encode(data),
	})
}
