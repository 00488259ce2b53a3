package zapper

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"zapScope/internal/dex"
	"zapScope/internal/metrics"
	"zapScope/internal/model"
)

// DefaultSlippageBps is used when no preference is available.
const DefaultSlippageBps = 50

// SwapEncoder builds the router calldata executed by the zapper.
type SwapEncoder interface {
	EncodeSwap(trade *model.Trade, minOut *big.Int, recipient common.Address) ([]byte, error)
}

// ExecutorConfig holds the chain contracts used by the executor.
type ExecutorConfig struct {
	ChainID       uint64
	Zapper        common.Address
	Router        common.Address
	WrappedNative model.Asset
}

// ExecuteRequest is one zap attempt.
type ExecuteRequest struct {
	Account           common.Address
	Info              DerivedZapInfo
	Allowance         AllowanceState
	ApprovalSubmitted bool
	SlippageBps       uint64
	// Confirmed acknowledges a price impact warning.
	Confirmed bool
}

// Submission is an accepted zap transaction.
type Submission struct {
	Hash          common.Hash
	Call          dex.ZapCall
	Value         *big.Int
	MinimumOutput model.Amount
	Record        model.SubmissionRecord
}

// Executor assembles and submits zapIn transactions, one at a time.
type Executor struct {
	cfg       ExecutorConfig
	submitter Submitter
	encoder   SwapEncoder
	guard     *Guard
	journal   Journal
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	inFlight *Submission
}

// NewExecutor builds an Executor. journal may be nil.
func NewExecutor(cfg ExecutorConfig, submitter Submitter, encoder SwapEncoder, guard *Guard, journal Journal, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = NewGuard(DefaultSeverityPolicy())
	}
	if journal == nil {
		journal = nopJournal{}
	}
	return &Executor{
		cfg:       cfg,
		submitter: submitter,
		encoder:   encoder,
		guard:     guard,
		journal:   journal,
		logger:    logger,
		now:       time.Now,
	}
}

// MinimumOutput returns floor(amount * (10000 - slippageBps) / 10000).
func MinimumOutput(amount *big.Int, slippageBps uint64) (*big.Int, error) {
	if slippageBps > model.BpsDenominator {
		return nil, fmt.Errorf("slippage %d bps out of range [0, %d]", slippageBps, model.BpsDenominator)
	}
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int), nil
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("amount %s exceeds 256 bits", amount)
	}
	keep := uint256.NewInt(model.BpsDenominator - slippageBps)
	out, overflow := new(uint256.Int).MulDivOverflow(value, keep, uint256.NewInt(model.BpsDenominator))
	if overflow {
		return nil, fmt.Errorf("minimum output overflow for %s", amount)
	}
	return out.ToBig(), nil
}

// ResolveTarget picks the zapper swap target: the wrapped native contract for
// native input into an underlying token, the pool for any other underlying
// input, and the router otherwise.
func ResolveTarget(info DerivedZapInfo, cfg ExecutorConfig) common.Address {
	switch {
	case info.Input.Native && info.IsTradingUnderlying:
		return cfg.WrappedNative.Address
	case info.IsTradingUnderlying:
		return info.Pool.Address
	default:
		return cfg.Router
	}
}

// Build assembles the zapIn argument tuple without submitting it.
func (e *Executor) Build(info DerivedZapInfo, slippageBps uint64) (dex.ZapCall, *big.Int, error) {
	if e.cfg.Zapper == (common.Address{}) {
		return dex.ZapCall{}, nil, fmt.Errorf("%w: zapper address", ErrNotConfigured)
	}
	if info.Parsed == nil || info.Parsed.IsZero() {
		return dex.ZapCall{}, nil, fmt.Errorf("%w: no input amount", ErrGuardViolation)
	}
	minimum, err := MinimumOutput(info.LiquidityMinted.Raw, slippageBps)
	if err != nil {
		return dex.ZapCall{}, nil, err
	}

	call := dex.ZapCall{
		FromToken:     info.Input.Address,
		Pool:          info.Pool.Address,
		Amount:        new(big.Int).Set(info.Parsed.Raw),
		MinPoolTokens: minimum,
		SwapTarget:    ResolveTarget(info, e.cfg),
		SwapData:      []byte{},
	}
	if info.Input.Native {
		call.FromToken = common.Address{}
	}

	if !info.IsTradingUnderlying {
		if info.Trade == nil {
			return dex.ZapCall{}, nil, fmt.Errorf("%w: no route", ErrGuardViolation)
		}
		if e.encoder == nil {
			return dex.ZapCall{}, nil, fmt.Errorf("swap encoder is not configured")
		}
		tradeMin, err := MinimumOutput(info.Trade.Output.Raw, slippageBps)
		if err != nil {
			return dex.ZapCall{}, nil, err
		}
		swapData, err := e.encoder.EncodeSwap(info.Trade, tradeMin, e.cfg.Zapper)
		if err != nil {
			return dex.ZapCall{}, nil, fmt.Errorf("encode swap: %w", err)
		}
		call.SwapData = swapData
	}

	value := new(big.Int)
	if info.Input.Native {
		value.Set(info.Parsed.Raw)
	}
	return call, value, nil
}

// InFlight reports whether a zap is awaiting its receipt.
func (e *Executor) InFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight != nil
}

// Execute re-runs the guard, builds the call and submits it. Failures leave
// the caller's derived state untouched and are never retried.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (*Submission, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inFlight != nil {
		return nil, fmt.Errorf("%w: zap %s still pending", ErrGuardViolation, e.inFlight.Hash.Hex())
	}
	if e.submitter == nil {
		return nil, fmt.Errorf("%w: no submitter configured", ErrSubmission)
	}
	if e.cfg.Zapper == (common.Address{}) {
		return nil, fmt.Errorf("%w: zapper address", ErrNotConfigured)
	}

	decision := e.guard.Decide(GuardInput{
		Connected:         req.Account != (common.Address{}),
		Info:              req.Info,
		Allowance:         req.Allowance,
		ApprovalSubmitted: req.ApprovalSubmitted,
	})
	if !decision.CanExecute {
		return nil, fmt.Errorf("%w: %s (%s)", ErrGuardViolation, decision.State, decision.Label)
	}
	if decision.NeedsConfirm && !req.Confirmed {
		return nil, fmt.Errorf("%w: price impact %s needs confirmation", ErrGuardViolation, req.Info.PriceImpact)
	}

	call, value, err := e.Build(req.Info, req.SlippageBps)
	if err != nil {
		return nil, err
	}
	data, err := dex.EncodeZapIn(call)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	record := model.SubmissionRecord{
		ChainID:       e.cfg.ChainID,
		Kind:          model.SubmissionZap,
		Account:       req.Account.Hex(),
		Pool:          call.Pool.Hex(),
		Asset:         req.Info.Input.ID(),
		Amount:        call.Amount.String(),
		MinimumOutput: call.MinPoolTokens.String(),
		Target:        call.SwapTarget.Hex(),
		SubmittedAt:   now,
		UpdatedAt:     now,
	}

	hash, err := e.submitter.Submit(ctx, TxRequest{From: req.Account, To: e.cfg.Zapper, Value: value, Data: data})
	if err != nil {
		metrics.Submissions.WithLabelValues(model.SubmissionZap, model.StatusFailed).Inc()
		e.logger.Warn("zap submission failed", zap.String("pool", call.Pool.Hex()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	record.TxHash = hash.Hex()
	record.Status = model.StatusPending
	sub := &Submission{
		Hash:          hash,
		Call:          call,
		Value:         value,
		MinimumOutput: model.NewAmount(req.Info.Pool.LiquidityToken, call.MinPoolTokens),
		Record:        record,
	}
	e.inFlight = sub

	metrics.Submissions.WithLabelValues(model.SubmissionZap, model.StatusPending).Inc()
	e.logger.Info("zap submitted",
		zap.String("tx", hash.Hex()),
		zap.String("pool", call.Pool.Hex()),
		zap.String("amount", req.Info.Parsed.Exact()),
		zap.String("min_pool_tokens", call.MinPoolTokens.String()),
		zap.String("target", call.SwapTarget.Hex()),
	)
	if err := e.journal.Record(ctx, record); err != nil {
		e.logger.Warn("journal zap failed", zap.String("tx", hash.Hex()), zap.Error(err))
	}
	return sub, nil
}

// Release frees the in-flight slot held by hash, e.g. after the transaction
// was dropped or replaced. It reports whether the slot was released.
func (e *Executor) Release(hash common.Hash) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight == nil || e.inFlight.Hash != hash {
		return false
	}
	e.logger.Warn("zap released without receipt", zap.String("tx", hash.Hex()))
	e.inFlight = nil
	return true
}

// Confirm waits for the zap receipt, records the outcome and frees the
// in-flight slot. If waiting fails the slot stays taken until Confirm is
// retried or Release is called.
func (e *Executor) Confirm(ctx context.Context, sub *Submission) (dex.ZapReceipt, error) {
	if sub == nil {
		return dex.ZapReceipt{}, fmt.Errorf("submission is nil")
	}
	start := e.now()
	receipt, err := e.submitter.WaitMined(ctx, sub.Hash)
	if err != nil {
		return dex.ZapReceipt{}, fmt.Errorf("wait zap %s: %w", sub.Hash.Hex(), err)
	}
	metrics.ConfirmDuration.WithLabelValues(model.SubmissionZap).Observe(e.now().Sub(start).Seconds())

	e.mu.Lock()
	if e.inFlight != nil && e.inFlight.Hash == sub.Hash {
		e.inFlight = nil
	}
	e.mu.Unlock()

	record := sub.Record
	record.UpdatedAt = e.now().UTC()

	account := common.HexToAddress(record.Account)
	decoded, err := dex.DecodeZapReceipt(receipt, sub.Call.Pool, account)
	if err != nil {
		e.logger.Warn("decode zap receipt failed", zap.String("tx", sub.Hash.Hex()), zap.Error(err))
		decoded = dex.ZapReceipt{Success: receipt.Status == types.ReceiptStatusSuccessful, LiquidityMinted: new(big.Int)}
	}

	if !decoded.Success {
		record.Status = model.StatusFailed
		record.Error = "reverted"
		metrics.Submissions.WithLabelValues(model.SubmissionZap, model.StatusFailed).Inc()
		e.journalRecord(ctx, record)
		return decoded, fmt.Errorf("%w: zap %s reverted", ErrSubmission, sub.Hash.Hex())
	}

	record.Status = model.StatusConfirmed
	record.LiquidityMinted = decoded.LiquidityMinted.String()
	metrics.Submissions.WithLabelValues(model.SubmissionZap, model.StatusConfirmed).Inc()
	e.logger.Info("zap confirmed",
		zap.String("tx", sub.Hash.Hex()),
		zap.Uint64("block", decoded.BlockNumber),
		zap.String("liquidity_minted", record.LiquidityMinted),
	)
	e.journalRecord(ctx, record)
	return decoded, nil
}

func (e *Executor) journalRecord(ctx context.Context, record model.SubmissionRecord) {
	if err := e.journal.Record(ctx, record); err != nil {
		e.logger.Warn("journal zap failed", zap.String("tx", record.TxHash), zap.Error(err))
	}
}
