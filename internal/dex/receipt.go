package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ZapReceipt summarises the logs of a mined zap transaction.
type ZapReceipt struct {
	Success         bool
	BlockNumber     uint64
	GasUsed         uint64
	LiquidityMinted *big.Int
	Deposits        []MintEvent
}

// MintEvent is a pair Mint log.
type MintEvent struct {
	Sender  common.Address
	Amount0 *big.Int
	Amount1 *big.Int
}

// ApprovalEvent is an ERC20 Approval log.
type ApprovalEvent struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	Value   *big.Int
}

// DecodeZapReceipt sums LP Transfer logs from pool to account and collects
// the pool's Mint logs.
func DecodeZapReceipt(receipt *types.Receipt, pool, account common.Address) (ZapReceipt, error) {
	if receipt == nil {
		return ZapReceipt{}, fmt.Errorf("receipt is nil")
	}
	pairABI, err := PairABI()
	if err != nil {
		return ZapReceipt{}, fmt.Errorf("parse pair abi: %w", err)
	}

	out := ZapReceipt{
		Success:         receipt.Status == types.ReceiptStatusSuccessful,
		GasUsed:         receipt.GasUsed,
		LiquidityMinted: new(big.Int),
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}

	transfer := pairABI.Events["Transfer"]
	mint := pairABI.Events["Mint"]
	for _, log := range receipt.Logs {
		if log == nil || log.Address != pool || len(log.Topics) == 0 {
			continue
		}
		switch log.Topics[0] {
		case transfer.ID:
			var indexed struct {
				From common.Address
				To   common.Address
			}
			if err := parseIndexed(transfer, log.Topics, &indexed); err != nil {
				return ZapReceipt{}, err
			}
			if indexed.To != account {
				continue
			}
			values, err := transfer.Inputs.NonIndexed().Unpack(log.Data)
			if err != nil {
				return ZapReceipt{}, fmt.Errorf("unpack Transfer: %w", err)
			}
			value, err := asBigInt(values[0])
			if err != nil {
				return ZapReceipt{}, fmt.Errorf("transfer value: %w", err)
			}
			out.LiquidityMinted.Add(out.LiquidityMinted, value)
		case mint.ID:
			var indexed struct {
				Sender common.Address
			}
			if err := parseIndexed(mint, log.Topics, &indexed); err != nil {
				return ZapReceipt{}, err
			}
			values, err := mint.Inputs.NonIndexed().Unpack(log.Data)
			if err != nil {
				return ZapReceipt{}, fmt.Errorf("unpack Mint: %w", err)
			}
			amount0, err := asBigInt(values[0])
			if err != nil {
				return ZapReceipt{}, fmt.Errorf("mint amount0: %w", err)
			}
			amount1, err := asBigInt(values[1])
			if err != nil {
				return ZapReceipt{}, fmt.Errorf("mint amount1: %w", err)
			}
			out.Deposits = append(out.Deposits, MintEvent{Sender: indexed.Sender, Amount0: amount0, Amount1: amount1})
		}
	}
	return out, nil
}

// DecodeApprovals returns the Approval logs emitted by token.
func DecodeApprovals(receipt *types.Receipt, token common.Address) ([]ApprovalEvent, error) {
	if receipt == nil {
		return nil, fmt.Errorf("receipt is nil")
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	approval := erc20.Events["Approval"]

	var out []ApprovalEvent
	for _, log := range receipt.Logs {
		if log == nil || log.Address != token || len(log.Topics) == 0 || log.Topics[0] != approval.ID {
			continue
		}
		var indexed struct {
			Owner   common.Address
			Spender common.Address
		}
		if err := parseIndexed(approval, log.Topics, &indexed); err != nil {
			return nil, err
		}
		values, err := approval.Inputs.NonIndexed().Unpack(log.Data)
		if err != nil {
			return nil, fmt.Errorf("unpack Approval: %w", err)
		}
		value, err := asBigInt(values[0])
		if err != nil {
			return nil, fmt.Errorf("approval value: %w", err)
		}
		out = append(out, ApprovalEvent{Token: token, Owner: indexed.Owner, Spender: indexed.Spender, Value: value})
	}
	return out, nil
}

func parseIndexed(event abi.Event, topics []common.Hash, out interface{}) error {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return fmt.Errorf("%s: expected %d topics, got %d", event.Name, len(indexed)+1, len(topics))
	}
	if err := abi.ParseTopics(out, indexed, topics[1:]); err != nil {
		return fmt.Errorf("parse %s topics: %w", event.Name, err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
