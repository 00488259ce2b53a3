package dex

import (
	"bytes"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"zapScope/internal/model"
)

// ZapCall is the argument tuple of zapIn.
type ZapCall struct {
	FromToken     common.Address
	Pool          common.Address
	Amount        *big.Int
	MinPoolTokens *big.Int
	SwapTarget    common.Address
	SwapData      []byte
}

// EncodeZapIn packs zapIn(address,address,uint256,uint256,address,bytes).
func EncodeZapIn(call ZapCall) ([]byte, error) {
	zapperABI, err := ZapperABI()
	if err != nil {
		return nil, fmt.Errorf("parse zapper abi: %w", err)
	}
	if call.Amount == nil || call.MinPoolTokens == nil {
		return nil, fmt.Errorf("zapIn amount and minimum are required")
	}
	swapData := call.SwapData
	if swapData == nil {
		swapData = []byte{}
	}
	data, err := zapperABI.Pack("zapIn", call.FromToken, call.Pool, call.Amount, call.MinPoolTokens, call.SwapTarget, swapData)
	if err != nil {
		return nil, fmt.Errorf("pack zapIn: %w", err)
	}
	return data, nil
}

// DecodeZapIn recovers the argument tuple from zapIn calldata.
func DecodeZapIn(data []byte) (ZapCall, error) {
	zapperABI, err := ZapperABI()
	if err != nil {
		return ZapCall{}, fmt.Errorf("parse zapper abi: %w", err)
	}
	method := zapperABI.Methods["zapIn"]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return ZapCall{}, fmt.Errorf("calldata is not zapIn")
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return ZapCall{}, fmt.Errorf("unpack zapIn: %w", err)
	}
	if len(values) != 6 {
		return ZapCall{}, fmt.Errorf("zapIn has %d arguments", len(values))
	}

	var call ZapCall
	if call.FromToken, err = asAddress(values[0]); err != nil {
		return ZapCall{}, fmt.Errorf("from token: %w", err)
	}
	if call.Pool, err = asAddress(values[1]); err != nil {
		return ZapCall{}, fmt.Errorf("pool: %w", err)
	}
	if call.Amount, err = asBigInt(values[2]); err != nil {
		return ZapCall{}, fmt.Errorf("amount: %w", err)
	}
	if call.MinPoolTokens, err = asBigInt(values[3]); err != nil {
		return ZapCall{}, fmt.Errorf("min pool tokens: %w", err)
	}
	if call.SwapTarget, err = asAddress(values[4]); err != nil {
		return ZapCall{}, fmt.Errorf("swap target: %w", err)
	}
	swapData, ok := values[5].([]byte)
	if !ok {
		return ZapCall{}, fmt.Errorf("unsupported swap data type %T", values[5])
	}
	call.SwapData = swapData
	return call, nil
}

// EncodeApprove packs ERC20 approve(spender, amount).
func EncodeApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	if amount == nil {
		return nil, fmt.Errorf("approve amount is required")
	}
	data, err := erc20.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}

// RouterEncoder builds router swap calldata with a deadline relative to now.
type RouterEncoder struct {
	Deadline time.Duration
	Now      func() time.Time
}

// NewRouterEncoder returns an encoder with the given deadline window.
func NewRouterEncoder(deadline time.Duration) *RouterEncoder {
	if deadline <= 0 {
		deadline = 20 * time.Minute
	}
	return &RouterEncoder{Deadline: deadline, Now: time.Now}
}

// EncodeSwap packs swapExactTokensForTokens, or swapExactETHForTokens when the
// trade input is the native currency. The swap output goes to recipient.
func (e *RouterEncoder) EncodeSwap(trade *model.Trade, minOut *big.Int, recipient common.Address) ([]byte, error) {
	if err := trade.Validate(); err != nil {
		return nil, err
	}
	routerABI, err := RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	if minOut == nil {
		minOut = new(big.Int)
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	deadline := big.NewInt(now().Add(e.Deadline).Unix())
	path := trade.PathAddresses()

	var data []byte
	if trade.Input.Asset.Native {
		data, err = routerABI.Pack("swapExactETHForTokens", minOut, path, recipient, deadline)
	} else {
		data, err = routerABI.Pack("swapExactTokensForTokens", trade.Input.Raw, minOut, path, recipient, deadline)
	}
	if err != nil {
		return nil, fmt.Errorf("pack router swap: %w", err)
	}
	return data, nil
}
