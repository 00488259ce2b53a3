package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"zapScope/internal/chain"
	"zapScope/internal/zapper"
)

// Backend is the subset of chain.Client the signer needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Options tunes fee and gas selection.
type Options struct {
	// GasLimitBufferBps is added on top of the estimate, e.g. 2000 = +20%.
	GasLimitBufferBps uint64
	PollInterval      time.Duration
}

// Signer signs EIP-1559 transactions with a local key and submits them.
type Signer struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	opts    Options
	logger  *zap.Logger

	// serialises nonce selection
	mu sync.Mutex
}

// NewSigner parses a hex private key (with or without 0x).
func NewSigner(backend Backend, hexKey string, chainID uint64, opts Options, logger *zap.Logger) (*Signer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Signer{
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).SetUint64(chainID),
		opts:    opts,
		logger:  logger,
	}, nil
}

// Address is the account the signer controls.
func (s *Signer) Address() common.Address {
	return s.address
}

// Submit fills nonce, gas and fees, signs and broadcasts req.
func (s *Signer) Submit(ctx context.Context, req zapper.TxRequest) (common.Hash, error) {
	if req.From != (common.Address{}) && req.From != s.address {
		return common.Hash{}, fmt.Errorf("request from %s but signer is %s", req.From.Hex(), s.address.Hex())
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	tip, err := s.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest tip: %w", err)
	}
	head, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &to,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * s.opts.GasLimitBufferBps / 10_000

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: FeeCap(head.BaseFee, tip),
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	s.logger.Info("transaction sent",
		zap.String("tx", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas),
	)
	return signed.Hash(), nil
}

// WaitMined polls for the receipt of hash.
func (s *Signer) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return chain.WaitMined(ctx, s.backend, hash, s.opts.PollInterval)
}

// FeeCap returns 2*baseFee + tip, or tip when the chain has no base fee.
func FeeCap(baseFee, tip *big.Int) *big.Int {
	if baseFee == nil {
		return new(big.Int).Set(tip)
	}
	out := new(big.Int).Mul(baseFee, big.NewInt(2))
	return out.Add(out, tip)
}
