package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestWithRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 1, time.Millisecond, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	reverted := errors.New("execution reverted")
	err := WithRetry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		calls++
		return Permanent(reverted)
	})
	if err != reverted {
		t.Fatalf("expected unwrapped revert, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestParseAddress(t *testing.T) {
	got, err := ParseAddress(" 0x2222222222222222222222222222222222222222 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != common.HexToAddress("0x2222222222222222222222222222222222222222") {
		t.Fatalf("unexpected address: %v", got)
	}

	if _, err := ParseAddress("0x123"); err == nil {
		t.Fatalf("expected error for short address")
	}
}

type stubReceipts struct {
	misses  int
	receipt *types.Receipt
}

func (s *stubReceipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if s.misses > 0 {
		s.misses--
		return nil, ethereum.NotFound
	}
	return s.receipt, nil
}

func TestWaitMined(t *testing.T) {
	want := &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10)}
	reader := &stubReceipts{misses: 2, receipt: want}

	got, err := WaitMined(context.Background(), reader, common.Hash{1}, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("unexpected receipt")
	}
}

func TestWaitMinedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	reader := &stubReceipts{misses: 1 << 20}
	if _, err := WaitMined(ctx, reader, common.Hash{1}, time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
