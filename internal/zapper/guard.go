package zapper

import (
	"zapScope/internal/metrics"
	"zapScope/internal/model"
)

// Severity is the price impact warning tier, 0 (none) to 3 (blocked).
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityBlocked
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// SeverityPolicy holds the price impact breakpoints in basis points. An
// impact at or above a breakpoint falls into the higher tier.
type SeverityPolicy struct {
	LowBps     uint64 `mapstructure:"low_bps"`
	MediumBps  uint64 `mapstructure:"medium_bps"`
	BlockedBps uint64 `mapstructure:"blocked_bps"`
}

// DefaultSeverityPolicy returns the 1% / 3% / 5% breakpoints.
func DefaultSeverityPolicy() SeverityPolicy {
	return SeverityPolicy{LowBps: 100, MediumBps: 300, BlockedBps: 500}
}

// Classify maps a price impact onto a severity tier.
func (p SeverityPolicy) Classify(impact model.Percent) Severity {
	switch {
	case impact.AtLeastBps(p.BlockedBps):
		return SeverityBlocked
	case impact.AtLeastBps(p.MediumBps):
		return SeverityMedium
	case impact.AtLeastBps(p.LowBps):
		return SeverityLow
	default:
		return SeverityNone
	}
}

// ClassifySeverity classifies with the default breakpoints.
func ClassifySeverity(impact model.Percent) Severity {
	return DefaultSeverityPolicy().Classify(impact)
}

// GuardState names the execution guard outcomes.
type GuardState int

const (
	GuardConnectWallet GuardState = iota
	GuardInsufficientLiquidity
	GuardInputError
	GuardApprovalRequired
	GuardPriceImpactTooHigh
	GuardConfirmRequired
	GuardReady
)

func (s GuardState) String() string {
	switch s {
	case GuardConnectWallet:
		return "connect_wallet"
	case GuardInsufficientLiquidity:
		return "insufficient_liquidity"
	case GuardInputError:
		return "input_error"
	case GuardApprovalRequired:
		return "approval_required"
	case GuardPriceImpactTooHigh:
		return "price_impact_too_high"
	case GuardConfirmRequired:
		return "confirm_required"
	case GuardReady:
		return "ready"
	default:
		return "unknown"
	}
}

// GuardInput is everything the guard looks at.
type GuardInput struct {
	Connected         bool
	Info              DerivedZapInfo
	Allowance         AllowanceState
	ApprovalSubmitted bool
}

// Decision is the guard verdict for the current inputs.
type Decision struct {
	State        GuardState
	Severity     Severity
	CanExecute   bool
	NeedsConfirm bool
	Label        string

	ShowApproveFlow bool
	CanApprove      bool
	ApproveLabel    string
}

// Guard applies the execution decision table.
type Guard struct {
	policy SeverityPolicy
}

// NewGuard builds a Guard. A zero policy falls back to the defaults.
func NewGuard(policy SeverityPolicy) *Guard {
	if policy == (SeverityPolicy{}) {
		policy = DefaultSeverityPolicy()
	}
	return &Guard{policy: policy}
}

// Policy returns the active breakpoints.
func (g *Guard) Policy() SeverityPolicy {
	return g.policy
}

// Decide runs the decision table.
func (g *Guard) Decide(in GuardInput) Decision {
	d := g.decide(in)
	metrics.GuardDecisions.WithLabelValues(d.State.String()).Inc()
	return d
}

func (g *Guard) decide(in GuardInput) Decision {
	info := in.Info
	d := Decision{
		Severity:     g.policy.Classify(info.PriceImpact),
		ApproveLabel: approveLabel(in, info.Input),
		CanApprove:   in.Allowance == AllowanceNotApproved,
	}
	d.ShowApproveFlow = info.Error == nil &&
		(in.Allowance == AllowanceNotApproved ||
			in.Allowance == AllowancePending ||
			(in.ApprovalSubmitted && in.Allowance == AllowanceApproved))

	switch {
	case !in.Connected:
		d.State, d.Label = GuardConnectWallet, "Connect Wallet"
	case info.Trade == nil && info.HasAmount():
		d.State, d.Label = GuardInsufficientLiquidity, reasonFor(ErrNoRouteFound, "")
	case info.Error != nil:
		d.State, d.Label = GuardInputError, info.Reason
	case in.Allowance != AllowanceApproved:
		d.State, d.Label = GuardApprovalRequired, d.ApproveLabel
	case d.Severity >= SeverityBlocked:
		d.State, d.Label = GuardPriceImpactTooHigh, "Price Impact Too High"
	case d.Severity > SeverityNone:
		d.State, d.Label = GuardConfirmRequired, "Zap Anyway"
		d.CanExecute, d.NeedsConfirm = true, true
	default:
		d.State, d.Label = GuardReady, "Zap"
		d.CanExecute = true
	}
	return d
}

func approveLabel(in GuardInput, input model.Asset) string {
	switch {
	case in.Allowance == AllowancePending:
		return "Approving"
	case in.ApprovalSubmitted && in.Allowance == AllowanceApproved:
		return "Approved"
	default:
		return "Approve " + input.String()
	}
}
