package zapper

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"zapScope/internal/model"
)

func readyInfo(impactBps uint64) DerivedZapInfo {
	parsed := model.NewAmount(token0, big.NewInt(1000))
	return DerivedZapInfo{
		Input:       token0,
		Parsed:      &parsed,
		Trade:       &model.Trade{Path: []model.Asset{token0, token1}},
		PriceImpact: model.PercentFromBps(impactBps),
	}
}

func TestClassifySeverity(t *testing.T) {
	cases := []struct {
		bps  uint64
		want Severity
	}{
		{0, SeverityNone},
		{99, SeverityNone},
		{100, SeverityLow},
		{299, SeverityLow},
		{300, SeverityMedium},
		{450, SeverityMedium},
		{499, SeverityMedium},
		{500, SeverityBlocked},
		{800, SeverityBlocked},
		{10000, SeverityBlocked},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifySeverity(model.PercentFromBps(tc.bps)), "bps %d", tc.bps)
	}
}

func TestClassifySeverityMonotonic(t *testing.T) {
	prev := SeverityNone
	for bps := uint64(0); bps <= 1000; bps += 7 {
		got := ClassifySeverity(model.PercentFromBps(bps))
		assert.GreaterOrEqual(t, int(got), int(prev), "bps %d", bps)
		prev = got
	}
}

func TestCustomSeverityPolicy(t *testing.T) {
	policy := SeverityPolicy{LowBps: 50, MediumBps: 200, BlockedBps: 1000}
	assert.Equal(t, SeverityLow, policy.Classify(model.PercentFromBps(60)))
	assert.Equal(t, SeverityMedium, policy.Classify(model.PercentFromBps(800)))
	assert.Equal(t, DefaultSeverityPolicy(), NewGuard(SeverityPolicy{}).Policy())
}

func TestGuardDecisionTable(t *testing.T) {
	guard := NewGuard(DefaultSeverityPolicy())

	noRoute := readyInfo(0)
	noRoute.Trade = nil
	noRoute = noRoute.fail(ErrNoRouteFound)

	inputErr := readyInfo(0)
	inputErr = inputErr.fail(ErrInsufficientBalance)

	cases := []struct {
		name    string
		in      GuardInput
		state   GuardState
		execute bool
		confirm bool
		label   string
	}{
		{"no wallet", GuardInput{Info: readyInfo(0), Allowance: AllowanceApproved}, GuardConnectWallet, false, false, "Connect Wallet"},
		{"no route", GuardInput{Connected: true, Info: noRoute, Allowance: AllowanceApproved}, GuardInsufficientLiquidity, false, false, "Insufficient liquidity for this trade."},
		{"input error", GuardInput{Connected: true, Info: inputErr, Allowance: AllowanceApproved}, GuardInputError, false, false, "Insufficient T0 balance"},
		{"not approved", GuardInput{Connected: true, Info: readyInfo(0), Allowance: AllowanceNotApproved}, GuardApprovalRequired, false, false, "Approve T0"},
		{"approving", GuardInput{Connected: true, Info: readyInfo(0), Allowance: AllowancePending, ApprovalSubmitted: true}, GuardApprovalRequired, false, false, "Approving"},
		{"unknown allowance", GuardInput{Connected: true, Info: readyInfo(0), Allowance: AllowanceUnknown}, GuardApprovalRequired, false, false, "Approve T0"},
		{"scenario C", GuardInput{Connected: true, Info: readyInfo(450), Allowance: AllowanceApproved}, GuardConfirmRequired, true, true, "Zap Anyway"},
		{"low severity", GuardInput{Connected: true, Info: readyInfo(150), Allowance: AllowanceApproved}, GuardConfirmRequired, true, true, "Zap Anyway"},
		{"scenario D", GuardInput{Connected: true, Info: readyInfo(800), Allowance: AllowanceApproved}, GuardPriceImpactTooHigh, false, false, "Price Impact Too High"},
		{"ready", GuardInput{Connected: true, Info: readyInfo(20), Allowance: AllowanceApproved}, GuardReady, true, false, "Zap"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := guard.Decide(tc.in)
			assert.Equal(t, tc.state, d.State)
			assert.Equal(t, tc.execute, d.CanExecute)
			assert.Equal(t, tc.confirm, d.NeedsConfirm)
			assert.Equal(t, tc.label, d.Label)
		})
	}
}

func TestGuardSeverityReported(t *testing.T) {
	d := NewGuard(DefaultSeverityPolicy()).Decide(GuardInput{Connected: true, Info: readyInfo(450), Allowance: AllowanceApproved})
	assert.Equal(t, SeverityMedium, d.Severity)

	d = NewGuard(DefaultSeverityPolicy()).Decide(GuardInput{Connected: true, Info: readyInfo(800), Allowance: AllowanceApproved})
	assert.Equal(t, SeverityBlocked, d.Severity)
	assert.False(t, d.CanExecute, "blocked regardless of confirmation")
}

func TestShowApproveFlow(t *testing.T) {
	guard := NewGuard(DefaultSeverityPolicy())
	base := GuardInput{Connected: true, Info: readyInfo(0)}

	in := base
	in.Allowance = AllowanceNotApproved
	d := guard.Decide(in)
	assert.True(t, d.ShowApproveFlow)
	assert.True(t, d.CanApprove)

	in.Allowance = AllowancePending
	d = guard.Decide(in)
	assert.True(t, d.ShowApproveFlow)
	assert.False(t, d.CanApprove)

	in.Allowance = AllowanceApproved
	assert.False(t, guard.Decide(in).ShowApproveFlow, "approved in an earlier session")

	in.ApprovalSubmitted = true
	d = guard.Decide(in)
	assert.True(t, d.ShowApproveFlow)
	assert.Equal(t, "Approved", d.ApproveLabel)

	in.Allowance = AllowanceNotApproved
	in.Info = in.Info.fail(ErrInsufficientBalance)
	assert.False(t, guard.Decide(in).ShowApproveFlow)
}
