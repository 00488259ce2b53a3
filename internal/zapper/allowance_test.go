package zapper

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapScope/internal/dex"
	"zapScope/internal/model"
)

func newTestMachine(allowance int64, opts AllowanceOptions) (*AllowanceMachine, *fakeAllowances, *fakeSubmitter) {
	reader := &fakeAllowances{allowance: big.NewInt(allowance)}
	submitter := &fakeSubmitter{receipts: map[common.Hash]*types.Receipt{}}
	m := NewAllowanceMachine(reader, submitter, opts, nil)
	m.SetTarget(accountAddr, zapperAddr, token0)
	return m, reader, submitter
}

// gatedSubmitter blocks Submit until release is closed.
type gatedSubmitter struct {
	fakeSubmitter
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSubmitter) Submit(ctx context.Context, req TxRequest) (common.Hash, error) {
	close(g.entered)
	<-g.release
	return g.fakeSubmitter.Submit(ctx, req)
}

func TestApproveDoesNotHoldLockWhileSubmitting(t *testing.T) {
	submitter := &gatedSubmitter{entered: make(chan struct{}), release: make(chan struct{})}
	m := NewAllowanceMachine(&fakeAllowances{allowance: big.NewInt(0)}, submitter, AllowanceOptions{}, nil)
	m.SetTarget(accountAddr, zapperAddr, token0)
	ctx := context.Background()
	required := model.NewAmount(token0, big.NewInt(100))
	require.Equal(t, AllowanceNotApproved, m.Check(ctx, required, zapperAddr))

	done := make(chan error, 1)
	go func() {
		_, err := m.Approve(ctx, required, zapperAddr)
		done <- err
	}()
	<-submitter.entered

	assert.Equal(t, AllowancePending, m.State())
	assert.True(t, m.Session().Submitted)
	assert.Equal(t, AllowancePending, m.Check(ctx, required, zapperAddr))
	_, err := m.Approve(ctx, required, zapperAddr)
	require.ErrorIs(t, err, ErrGuardViolation)

	close(submitter.release)
	require.NoError(t, <-done)
	assert.Equal(t, AllowancePending, m.State())
}

func TestApproveTargetChangeDuringSubmit(t *testing.T) {
	submitter := &gatedSubmitter{entered: make(chan struct{}), release: make(chan struct{})}
	m := NewAllowanceMachine(&fakeAllowances{allowance: big.NewInt(0)}, submitter, AllowanceOptions{}, nil)
	m.SetTarget(accountAddr, zapperAddr, token0)
	required := model.NewAmount(token0, big.NewInt(100))

	done := make(chan error, 1)
	go func() {
		_, err := m.Approve(context.Background(), required, zapperAddr)
		done <- err
	}()
	<-submitter.entered
	m.SetTarget(accountAddr, zapperAddr, token1)
	close(submitter.release)

	require.NoError(t, <-done)
	assert.Equal(t, AllowanceUnknown, m.State(), "result for the old target is dropped")
	assert.False(t, m.Session().Submitted)
}

func TestAllowanceScenarioB(t *testing.T) {
	journal := &memJournal{}
	m, reader, submitter := newTestMachine(0, AllowanceOptions{ChainID: 1, Journal: journal})
	ctx := context.Background()
	required := model.NewAmount(token0, big.NewInt(100))

	assert.Equal(t, AllowanceUnknown, m.State())
	assert.Equal(t, AllowanceNotApproved, m.Check(ctx, required, zapperAddr))

	hash, err := m.Approve(ctx, required, zapperAddr)
	require.NoError(t, err)
	assert.Equal(t, AllowancePending, m.State())
	assert.True(t, m.Session().Submitted)

	sent := submitter.last()
	assert.Equal(t, token0.Address, sent.To)
	assert.Equal(t, accountAddr, sent.From)
	erc20, err := dex.ERC20ABI()
	require.NoError(t, err)
	args, err := erc20.Methods["approve"].Inputs.Unpack(sent.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, zapperAddr, args[0])
	assert.Equal(t, 0, args[1].(*big.Int).Cmp(math.MaxBig256))

	// still below the requirement while the approval is outstanding
	assert.Equal(t, AllowancePending, m.Check(ctx, required, zapperAddr))

	reader.set(100)
	assert.Equal(t, AllowanceApproved, m.Check(ctx, required, zapperAddr))

	state, err := m.Resolve(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, AllowanceApproved, state)
	assert.Equal(t, []string{"approve:pending"}, journal.statuses(), "resolve after approval is a no-op")
}

func TestAllowanceResolveRechecks(t *testing.T) {
	journal := &memJournal{}
	m, reader, _ := newTestMachine(0, AllowanceOptions{Journal: journal})
	ctx := context.Background()
	required := model.NewAmount(token0, big.NewInt(100))

	m.Check(ctx, required, zapperAddr)
	hash, err := m.Approve(ctx, required, zapperAddr)
	require.NoError(t, err)

	reader.set(150)
	state, err := m.Resolve(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, AllowanceApproved, state)
	assert.Equal(t, []string{"approve:pending", "approve:confirmed"}, journal.statuses())
}

func TestAllowanceRevertedApproval(t *testing.T) {
	m, _, submitter := newTestMachine(0, AllowanceOptions{})
	ctx := context.Background()
	required := model.NewAmount(token0, big.NewInt(100))

	m.Check(ctx, required, zapperAddr)
	hash, err := m.Approve(ctx, required, zapperAddr)
	require.NoError(t, err)
	submitter.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusFailed}

	state, err := m.Resolve(ctx, hash)
	require.ErrorIs(t, err, ErrApprovalRejected)
	assert.Equal(t, AllowanceNotApproved, state)
	assert.True(t, m.Session().Submitted, "attempt flag survives a revert")
}

func TestAllowanceRejectedSubmission(t *testing.T) {
	m, _, submitter := newTestMachine(0, AllowanceOptions{})
	submitter.submitErr = errBoom
	ctx := context.Background()
	required := model.NewAmount(token0, big.NewInt(100))

	m.Check(ctx, required, zapperAddr)
	_, err := m.Approve(ctx, required, zapperAddr)
	require.ErrorIs(t, err, ErrApprovalRejected)
	assert.Equal(t, AllowanceNotApproved, m.State())
	assert.True(t, m.Session().Submitted)
}

func TestAllowanceNeverApprovedBelowRequired(t *testing.T) {
	m, reader, _ := newTestMachine(0, AllowanceOptions{})
	ctx := context.Background()
	required := model.NewAmount(token0, big.NewInt(1000))

	for _, allowance := range []int64{0, 1, 500, 999} {
		reader.set(allowance)
		assert.NotEqual(t, AllowanceApproved, m.Check(ctx, required, zapperAddr), "allowance %d", allowance)
	}
	reader.set(1000)
	assert.Equal(t, AllowanceApproved, m.Check(ctx, required, zapperAddr))
	reader.set(999)
	assert.Equal(t, AllowanceNotApproved, m.Check(ctx, required, zapperAddr))
}

func TestAllowanceReadFailureIsUnknown(t *testing.T) {
	m, reader, _ := newTestMachine(0, AllowanceOptions{})
	reader.err = errBoom
	assert.Equal(t, AllowanceUnknown, m.Check(context.Background(), model.NewAmount(token0, big.NewInt(1)), zapperAddr))
}

func TestAllowanceNativeAlwaysApproved(t *testing.T) {
	m, _, _ := newTestMachine(0, AllowanceOptions{})
	native := model.NativeAsset("ETH")
	assert.Equal(t, AllowanceApproved, m.Check(context.Background(), model.NewAmount(native, big.NewInt(1)), zapperAddr))

	_, err := m.Approve(context.Background(), model.NewAmount(native, big.NewInt(1)), zapperAddr)
	require.ErrorIs(t, err, ErrGuardViolation)
}

func TestAllowanceTargetChangeResetsSession(t *testing.T) {
	m, _, _ := newTestMachine(0, AllowanceOptions{})
	ctx := context.Background()
	required := model.NewAmount(token0, big.NewInt(100))

	m.Check(ctx, required, zapperAddr)
	_, err := m.Approve(ctx, required, zapperAddr)
	require.NoError(t, err)
	require.True(t, m.Session().Submitted)

	m.SetTarget(accountAddr, zapperAddr, token0)
	assert.True(t, m.Session().Submitted, "same target keeps the flag")

	m.SetTarget(accountAddr, zapperAddr, token1)
	assert.False(t, m.Session().Submitted)
	assert.Equal(t, AllowanceUnknown, m.State())
}

func TestAllowanceExactApproval(t *testing.T) {
	m, _, submitter := newTestMachine(0, AllowanceOptions{ExactApproval: true})
	ctx := context.Background()
	required := model.NewAmount(token0, big.NewInt(100))

	m.Check(ctx, required, zapperAddr)
	_, err := m.Approve(ctx, required, zapperAddr)
	require.NoError(t, err)

	erc20, err := dex.ERC20ABI()
	require.NoError(t, err)
	args, err := erc20.Methods["approve"].Inputs.Unpack(submitter.last().Data[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(100), args[1].(*big.Int).Int64())
}

func TestAllowanceDoubleApproveIsGuarded(t *testing.T) {
	m, _, _ := newTestMachine(0, AllowanceOptions{})
	ctx := context.Background()
	required := model.NewAmount(token0, big.NewInt(100))

	m.Check(ctx, required, zapperAddr)
	_, err := m.Approve(ctx, required, zapperAddr)
	require.NoError(t, err)
	_, err = m.Approve(ctx, required, zapperAddr)
	require.ErrorIs(t, err, ErrGuardViolation)
}
