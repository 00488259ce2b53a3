package slippage

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Preferences persists per-account tolerances, e.g. in Postgres.
type Preferences interface {
	LoadSlippage(ctx context.Context, chainID uint64, account string) (uint16, bool, error)
	SaveSlippage(ctx context.Context, chainID uint64, account string, bps uint16) error
}

// AccountStore binds Preferences to one account on one chain.
type AccountStore struct {
	prefs   Preferences
	chainID uint64
	account common.Address
}

func NewAccountStore(prefs Preferences, chainID uint64, account common.Address) *AccountStore {
	return &AccountStore{prefs: prefs, chainID: chainID, account: account}
}

func (s *AccountStore) SlippageBps(ctx context.Context) (uint16, error) {
	bps, ok, err := s.prefs.LoadSlippage(ctx, s.chainID, s.account.Hex())
	if err != nil {
		return 0, fmt.Errorf("load slippage for %s: %w", s.account.Hex(), err)
	}
	if !ok {
		return DefaultBps, nil
	}
	return Validate(int64(bps))
}

func (s *AccountStore) SetSlippageBps(ctx context.Context, bps uint16) error {
	if _, err := Validate(int64(bps)); err != nil {
		return err
	}
	if err := s.prefs.SaveSlippage(ctx, s.chainID, s.account.Hex(), bps); err != nil {
		return fmt.Errorf("save slippage for %s: %w", s.account.Hex(), err)
	}
	return nil
}
