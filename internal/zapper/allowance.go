package zapper

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"zapScope/internal/dex"
	"zapScope/internal/metrics"
	"zapScope/internal/model"
)

// AllowanceState is the approval lifecycle of (owner, spender, asset).
type AllowanceState int

const (
	AllowanceUnknown AllowanceState = iota
	AllowanceNotApproved
	AllowancePending
	AllowanceApproved
)

func (s AllowanceState) String() string {
	switch s {
	case AllowanceNotApproved:
		return "not_approved"
	case AllowancePending:
		return "pending"
	case AllowanceApproved:
		return "approved"
	default:
		return "unknown"
	}
}

// AllowanceReader reads ERC20 allowances.
type AllowanceReader interface {
	GetAllowance(ctx context.Context, owner, spender common.Address, asset model.Asset) (*big.Int, error)
}

// ApprovalSession is the session-scoped approval target. Submitted records
// that an approval was requested in this session.
type ApprovalSession struct {
	Owner     common.Address
	Spender   common.Address
	Asset     model.Asset
	Submitted bool
}

func (s ApprovalSession) sameTarget(owner, spender common.Address, asset model.Asset) bool {
	return s.Owner == owner && s.Spender == spender && s.Asset.Equal(asset)
}

// AllowanceOptions configures an AllowanceMachine.
type AllowanceOptions struct {
	ChainID uint64
	// ExactApproval approves the required amount instead of the max uint256.
	ExactApproval bool
	Journal       Journal
}

// AllowanceMachine tracks the approval state of the session target.
type AllowanceMachine struct {
	reader    AllowanceReader
	submitter Submitter
	opts      AllowanceOptions
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	session  ApprovalSession
	state    AllowanceState
	pending  common.Hash
	required model.Amount
	// submitting is set while Approve waits on the submitter.
	submitting bool
	// generation changes with every target change so stale reads are dropped.
	generation uint64
}

// NewAllowanceMachine builds an AllowanceMachine.
func NewAllowanceMachine(reader AllowanceReader, submitter Submitter, opts AllowanceOptions, logger *zap.Logger) *AllowanceMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Journal == nil {
		opts.Journal = nopJournal{}
	}
	return &AllowanceMachine{
		reader:    reader,
		submitter: submitter,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// SetTarget switches the approval target. Any change resets the state to
// Unknown and clears the session flag.
func (m *AllowanceMachine) SetTarget(owner, spender common.Address, asset model.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setTargetLocked(owner, spender, asset)
}

func (m *AllowanceMachine) setTargetLocked(owner, spender common.Address, asset model.Asset) {
	if m.session.sameTarget(owner, spender, asset) {
		return
	}
	m.session = ApprovalSession{Owner: owner, Spender: spender, Asset: asset}
	m.state = AllowanceUnknown
	m.pending = common.Hash{}
	m.required = model.Amount{}
	m.submitting = false
	m.generation++
}

// Session returns a copy of the session state.
func (m *AllowanceMachine) Session() ApprovalSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// State returns the last computed state.
func (m *AllowanceMachine) State() AllowanceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Check reads the allowance of the session owner for spender and compares it
// with amount. A failed read yields Unknown.
func (m *AllowanceMachine) Check(ctx context.Context, amount model.Amount, spender common.Address) AllowanceState {
	m.mu.Lock()
	m.setTargetLocked(m.session.Owner, spender, amount.Asset)
	m.required = model.NewAmount(amount.Asset, amount.Raw)
	owner := m.session.Owner
	generation := m.generation
	if amount.Asset.Native {
		m.state = AllowanceApproved
		m.mu.Unlock()
		return AllowanceApproved
	}
	if owner == (common.Address{}) || m.reader == nil {
		m.state = AllowanceUnknown
		m.mu.Unlock()
		return AllowanceUnknown
	}
	m.mu.Unlock()

	allowance, err := m.reader.GetAllowance(ctx, owner, spender, amount.Asset)

	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return m.state
	}
	if err != nil {
		m.logger.Debug("allowance read failed", zap.String("owner", owner.Hex()), zap.String("asset", amount.Asset.String()), zap.Error(err))
		m.state = AllowanceUnknown
		return m.state
	}
	switch {
	case allowance != nil && amount.Raw != nil && allowance.Cmp(amount.Raw) >= 0:
		m.state = AllowanceApproved
		m.pending = common.Hash{}
	case m.pending != (common.Hash{}) || m.submitting:
		m.state = AllowancePending
	default:
		m.state = AllowanceNotApproved
	}
	return m.state
}

// Approve submits an ERC20 approval for spender. The state moves to Pending
// as soon as the submitter accepts the transaction. The lock is not held
// while submitting; a target change in the meantime drops the result.
func (m *AllowanceMachine) Approve(ctx context.Context, amount model.Amount, spender common.Address) (common.Hash, error) {
	m.mu.Lock()
	m.setTargetLocked(m.session.Owner, spender, amount.Asset)
	if err := m.approvableLocked(amount); err != nil {
		m.mu.Unlock()
		return common.Hash{}, err
	}

	value := math.MaxBig256
	if m.opts.ExactApproval {
		value = amount.Raw
	}
	data, err := dex.EncodeApprove(spender, value)
	if err != nil {
		m.mu.Unlock()
		return common.Hash{}, err
	}

	m.session.Submitted = true
	m.required = model.NewAmount(amount.Asset, amount.Raw)
	m.state = AllowancePending
	m.submitting = true
	session := m.session
	generation := m.generation
	m.mu.Unlock()

	hash, err := m.submitter.Submit(ctx, TxRequest{From: session.Owner, To: amount.Asset.Address, Value: new(big.Int), Data: data})

	m.mu.Lock()
	current := generation == m.generation
	if current {
		m.submitting = false
	}
	if err != nil {
		if current {
			m.state = AllowanceNotApproved
		}
		m.mu.Unlock()
		metrics.Submissions.WithLabelValues(model.SubmissionApprove, model.StatusFailed).Inc()
		m.logger.Warn("approval rejected", zap.String("asset", amount.Asset.String()), zap.Error(err))
		return common.Hash{}, fmt.Errorf("%w: %v", ErrApprovalRejected, err)
	}
	if current {
		m.state = AllowancePending
		m.pending = hash
	}
	m.mu.Unlock()

	metrics.Submissions.WithLabelValues(model.SubmissionApprove, model.StatusPending).Inc()
	m.logger.Info("approval submitted",
		zap.String("tx", hash.Hex()),
		zap.String("asset", amount.Asset.String()),
		zap.String("spender", spender.Hex()),
	)
	m.record(ctx, session, hash, value, model.StatusPending, "")
	return hash, nil
}

func (m *AllowanceMachine) approvableLocked(amount model.Amount) error {
	if amount.Asset.Native {
		return fmt.Errorf("%w: native input needs no approval", ErrGuardViolation)
	}
	if m.submitter == nil {
		return fmt.Errorf("%w: no submitter configured", ErrApprovalRejected)
	}
	if m.submitting {
		return fmt.Errorf("%w: approval already submitting", ErrGuardViolation)
	}
	switch m.state {
	case AllowancePending:
		return fmt.Errorf("%w: approval %s already pending", ErrGuardViolation, m.pending.Hex())
	case AllowanceApproved:
		return fmt.Errorf("%w: allowance already sufficient", ErrGuardViolation)
	}
	return nil
}

// Resolve waits for an approval receipt. A reverted approval returns the
// machine to NotApproved; a mined one triggers a fresh allowance read.
func (m *AllowanceMachine) Resolve(ctx context.Context, hash common.Hash) (AllowanceState, error) {
	if m.submitter == nil {
		return m.State(), fmt.Errorf("no submitter configured")
	}
	start := m.now()
	receipt, err := m.submitter.WaitMined(ctx, hash)
	if err != nil {
		return m.State(), fmt.Errorf("wait approval %s: %w", hash.Hex(), err)
	}
	metrics.ConfirmDuration.WithLabelValues(model.SubmissionApprove).Observe(m.now().Sub(start).Seconds())

	m.mu.Lock()
	if m.pending != hash {
		state := m.state
		m.mu.Unlock()
		return state, nil
	}
	m.pending = common.Hash{}
	required := m.required
	session := m.session

	if receipt.Status != types.ReceiptStatusSuccessful {
		m.state = AllowanceNotApproved
		m.mu.Unlock()
		metrics.Submissions.WithLabelValues(model.SubmissionApprove, model.StatusFailed).Inc()
		m.record(ctx, session, hash, nil, model.StatusFailed, "reverted")
		return AllowanceNotApproved, fmt.Errorf("%w: %s reverted", ErrApprovalRejected, hash.Hex())
	}
	m.mu.Unlock()

	var granted *big.Int
	if approvals, err := dex.DecodeApprovals(receipt, session.Asset.Address); err == nil {
		for _, approval := range approvals {
			if approval.Owner == session.Owner && approval.Spender == session.Spender {
				granted = approval.Value
			}
		}
	}
	metrics.Submissions.WithLabelValues(model.SubmissionApprove, model.StatusConfirmed).Inc()
	if granted != nil {
		m.logger.Info("approval confirmed", zap.String("tx", hash.Hex()), zap.String("value", granted.String()))
	}
	m.record(ctx, session, hash, granted, model.StatusConfirmed, "")
	return m.Check(ctx, required, session.Spender), nil
}

func (m *AllowanceMachine) record(ctx context.Context, session ApprovalSession, hash common.Hash, value *big.Int, status, reason string) {
	now := m.now().UTC()
	rec := model.SubmissionRecord{
		ChainID:     m.opts.ChainID,
		Kind:        model.SubmissionApprove,
		Account:     session.Owner.Hex(),
		Asset:       session.Asset.ID(),
		Target:      session.Spender.Hex(),
		TxHash:      hash.Hex(),
		Status:      status,
		Error:       reason,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if value != nil {
		rec.Amount = value.String()
	}
	if err := m.opts.Journal.Record(ctx, rec); err != nil {
		m.logger.Warn("journal approval failed", zap.String("tx", hash.Hex()), zap.Error(err))
	}
}
