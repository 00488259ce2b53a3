package zapper

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"zapScope/internal/model"
)

// TxRequest is an unsigned call from the session account.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Submitter signs and broadcasts transactions and waits for their receipts.
type Submitter interface {
	Submit(ctx context.Context, req TxRequest) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Journal records approval and zap submissions. Upserts by tx hash.
type Journal interface {
	Record(ctx context.Context, record model.SubmissionRecord) error
}

type nopJournal struct{}

func (nopJournal) Record(context.Context, model.SubmissionRecord) error { return nil }
