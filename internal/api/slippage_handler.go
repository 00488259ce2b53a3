package api

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"zapScope/internal/slippage"
)

// SlippageView is the stored tolerance of an account.
type SlippageView struct {
	Account     string `json:"account"`
	SlippageBps uint16 `json:"slippageBps"`
	Slippage    string `json:"slippage"`
}

type slippageUpdate struct {
	Account  string `json:"account" binding:"required"`
	Slippage string `json:"slippage" binding:"required"`
}

func (s *Server) storeFor(c *gin.Context, account string) (slippage.Store, common.Address, bool) {
	if s.deps.Slippage == nil {
		failure(c, http.StatusNotImplemented, "slippage preferences are not configured")
		return nil, common.Address{}, false
	}
	if !common.IsHexAddress(account) {
		badRequest(c, "invalid account address")
		return nil, common.Address{}, false
	}
	addr := common.HexToAddress(account)
	return s.deps.Slippage(addr), addr, true
}

func (s *Server) getSlippage(c *gin.Context) {
	store, addr, ok := s.storeFor(c, c.Query("account"))
	if !ok {
		return
	}
	bps, err := store.SlippageBps(c.Request.Context())
	if err != nil {
		internalError(c, err.Error())
		return
	}
	success(c, SlippageView{Account: addr.Hex(), SlippageBps: bps, Slippage: slippage.Format(bps)})
}

func (s *Server) putSlippage(c *gin.Context) {
	var body slippageUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	store, addr, ok := s.storeFor(c, body.Account)
	if !ok {
		return
	}
	bps, err := slippage.Parse(body.Slippage)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := store.SetSlippageBps(c.Request.Context(), bps); err != nil {
		if errors.Is(err, slippage.ErrOutOfRange) {
			badRequest(c, err.Error())
			return
		}
		internalError(c, err.Error())
		return
	}
	success(c, SlippageView{Account: addr.Hex(), SlippageBps: bps, Slippage: slippage.Format(bps)})
}
