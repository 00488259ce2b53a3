package model

import "time"

const (
	SubmissionApprove = "approve"
	SubmissionZap     = "zap"

	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// SubmissionRecord is the journal entry for an approval or zap transaction.
type SubmissionRecord struct {
	ChainID         uint64    `json:"chain_id"`
	Kind            string    `json:"kind"`
	Account         string    `json:"account"`
	Pool            string    `json:"pool,omitempty"`
	Asset           string    `json:"asset"`
	Amount          string    `json:"amount"`
	MinimumOutput   string    `json:"minimum_output,omitempty"`
	Target          string    `json:"target"`
	TxHash          string    `json:"tx_hash"`
	Status          string    `json:"status"`
	LiquidityMinted string    `json:"liquidity_minted,omitempty"`
	Error           string    `json:"error,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
