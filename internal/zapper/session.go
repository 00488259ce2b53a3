package zapper

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"zapScope/internal/metrics"
	"zapScope/internal/model"
)

// SlippageSource supplies the user's slippage tolerance in basis points.
type SlippageSource interface {
	SlippageBps(ctx context.Context) (uint16, error)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// Spender is the zapper contract that needs the allowance.
	Spender  common.Address
	Debounce time.Duration
}

// Session owns the user inputs of one zap screen and keeps only the most
// recent derivation.
type Session struct {
	deriver   *Deriver
	allowance *AllowanceMachine
	executor  *Executor
	slippage  SlippageSource
	cfg       SessionConfig
	logger    *zap.Logger

	mu        sync.Mutex
	account   common.Address
	input     model.Asset
	typed     string
	pool      common.Address
	seq       uint64
	cancel    context.CancelFunc
	timer     *time.Timer
	info      *DerivedZapInfo
	infoSeq   uint64
	approval  AllowanceState
	onDerived func(DerivedZapInfo)
}

// NewSession builds a Session.
func NewSession(deriver *Deriver, allowance *AllowanceMachine, executor *Executor, slippage SlippageSource, cfg SessionConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		deriver:   deriver,
		allowance: allowance,
		executor:  executor,
		slippage:  slippage,
		cfg:       cfg,
		logger:    logger,
	}
}

// OnDerived registers a callback for every derivation that is kept.
func (s *Session) OnDerived(fn func(DerivedZapInfo)) {
	s.mu.Lock()
	s.onDerived = fn
	s.mu.Unlock()
}

// SetAccount sets the connected wallet. Zero disconnects.
func (s *Session) SetAccount(account common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
	s.retargetLocked()
	s.bumpLocked()
}

// SetInput selects the input asset.
func (s *Session) SetInput(asset model.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = asset
	s.retargetLocked()
	s.bumpLocked()
}

// SetPool selects the target pool.
func (s *Session) SetPool(pool common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = pool
	s.bumpLocked()
}

// SetTyped records the typed amount.
func (s *Session) SetTyped(typed string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typed = typed
	s.bumpLocked()
}

// Typed returns the current typed amount.
func (s *Session) Typed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typed
}

func (s *Session) retargetLocked() {
	if s.allowance != nil {
		s.allowance.SetTarget(s.account, s.cfg.Spender, s.input)
	}
	s.approval = AllowanceUnknown
}

// bumpLocked marks earlier derivations stale and cancels them.
func (s *Session) bumpLocked() {
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Schedule runs Refresh after the debounce delay. Calls inside the window
// collapse into one derivation.
func (s *Session) Schedule(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, func() {
		s.Refresh(ctx)
	})
}

// Refresh derives the current inputs. The result is kept only if no newer
// input arrived meanwhile; the bool reports whether it was kept.
func (s *Session) Refresh(ctx context.Context) (DerivedZapInfo, bool) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	deriveCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	seq := s.seq
	req := DeriveRequest{Account: s.account, Input: s.input, Typed: s.typed, Pool: s.pool}
	s.mu.Unlock()
	defer cancel()

	info := s.deriver.Derive(deriveCtx, req)
	approval := AllowanceUnknown
	if info.Parsed != nil && s.allowance != nil {
		approval = s.allowance.Check(deriveCtx, *info.Parsed, s.cfg.Spender)
	}

	s.mu.Lock()
	if seq != s.seq || deriveCtx.Err() != nil {
		s.mu.Unlock()
		metrics.SupersededDerivations.Inc()
		s.logger.Debug("derivation superseded", zap.Uint64("seq", seq))
		return info, false
	}
	s.info = &info
	s.infoSeq = seq
	s.approval = approval
	s.cancel = nil
	onDerived := s.onDerived
	s.mu.Unlock()

	if onDerived != nil {
		onDerived(info)
	}
	return info, true
}

// Info returns the last kept derivation.
func (s *Session) Info() (DerivedZapInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil || s.infoSeq != s.seq {
		return DerivedZapInfo{}, false
	}
	return *s.info, true
}

// Decision runs the guard over the current state.
func (s *Session) Decision() Decision {
	info, ok := s.Info()
	if !ok {
		info = DerivedZapInfo{}.fail(ErrNoAmount)
	}
	s.mu.Lock()
	in := GuardInput{
		Connected: s.account != (common.Address{}),
		Info:      info,
		Allowance: s.approval,
	}
	s.mu.Unlock()
	if s.allowance != nil {
		in.ApprovalSubmitted = s.allowance.Session().Submitted
	}
	return s.executor.guard.Decide(in)
}

// Approve submits an approval for the current parsed amount.
func (s *Session) Approve(ctx context.Context) (common.Hash, error) {
	info, ok := s.Info()
	if !ok || info.Parsed == nil {
		return common.Hash{}, ErrNoAmount
	}
	hash, err := s.allowance.Approve(ctx, *info.Parsed, s.cfg.Spender)
	s.mu.Lock()
	s.approval = s.allowance.State()
	s.mu.Unlock()
	return hash, err
}

// ResolveApproval waits for an approval and refreshes the allowance state.
func (s *Session) ResolveApproval(ctx context.Context, hash common.Hash) (AllowanceState, error) {
	state, err := s.allowance.Resolve(ctx, hash)
	s.mu.Lock()
	s.approval = state
	s.mu.Unlock()
	return state, err
}

// Zap executes the current derivation. On success the typed input and the
// derived state are cleared; on failure they are kept for a retry.
func (s *Session) Zap(ctx context.Context, confirmed bool) (*Submission, error) {
	info, ok := s.Info()
	if !ok {
		return nil, ErrNoAmount
	}

	bps := uint64(DefaultSlippageBps)
	if s.slippage != nil {
		value, err := s.slippage.SlippageBps(ctx)
		if err != nil {
			s.logger.Warn("slippage preference unavailable, using default", zap.Uint64("bps", bps), zap.Error(err))
		} else {
			bps = uint64(value)
		}
	}

	s.mu.Lock()
	req := ExecuteRequest{
		Account:   s.account,
		Info:      info,
		Allowance: s.approval,
		Confirmed: confirmed,
	}
	s.mu.Unlock()
	req.SlippageBps = bps
	if s.allowance != nil {
		req.ApprovalSubmitted = s.allowance.Session().Submitted
	}

	sub, err := s.executor.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.typed = ""
	s.info = nil
	s.bumpLocked()
	s.mu.Unlock()
	return sub, nil
}

// AbandonZap gives up on a submitted zap whose receipt never arrived so the
// session can zap again.
func (s *Session) AbandonZap(hash common.Hash) bool {
	return s.executor.Release(hash)
}

// MaxInput sets the typed value to the largest spendable balance.
func (s *Session) MaxInput() (string, bool) {
	info, ok := s.Info()
	if !ok || info.Balance == nil {
		return "", false
	}
	typed := model.MaxAmountSpend(*info.Balance).Exact()
	s.SetTyped(typed)
	return typed, true
}

// Close stops any pending debounce timer and derivation.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
