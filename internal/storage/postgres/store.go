package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zapScope/internal/model"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for submissions and slippage
// preferences.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Record upserts one submission record.
func (s *Store) Record(ctx context.Context, rec model.SubmissionRecord) error {
	return s.UpsertSubmissions(ctx, []model.SubmissionRecord{rec})
}

// UpsertSubmissions inserts or updates submission records keyed by tx hash.
func (s *Store) UpsertSubmissions(ctx context.Context, records []model.SubmissionRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO zap_submissions (
				chain_id, tx_hash, kind, account, pool, asset, amount, minimum_output,
				target, status, liquidity_minted, error, submitted_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7::text::numeric,$8::text::numeric,$9,$10,$11::text::numeric,$12,$13,$14)
			ON CONFLICT (chain_id, tx_hash)
			DO UPDATE SET
				status = EXCLUDED.status,
				liquidity_minted = COALESCE(EXCLUDED.liquidity_minted, zap_submissions.liquidity_minted),
				error = EXCLUDED.error,
				updated_at = EXCLUDED.updated_at
		`,
			int64(rec.ChainID),
			strings.ToLower(rec.TxHash),
			rec.Kind,
			strings.ToLower(rec.Account),
			strings.ToLower(rec.Pool),
			rec.Asset,
			numeric(rec.Amount),
			nullableNumeric(rec.MinimumOutput),
			rec.Target,
			rec.Status,
			nullableNumeric(rec.LiquidityMinted),
			rec.Error,
			rec.SubmittedAt,
			rec.UpdatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert submission: %w", err)
		}
	}
	return nil
}

// ListSubmissions returns the most recent submissions of an account.
func (s *Store) ListSubmissions(ctx context.Context, chainID uint64, account string, limit int) ([]model.SubmissionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, tx_hash, kind, account, pool, asset, amount::text,
			COALESCE(minimum_output::text, ''), target, status,
			COALESCE(liquidity_minted::text, ''), error, submitted_at, updated_at
		FROM zap_submissions
		WHERE chain_id = $1 AND account = $2
		ORDER BY submitted_at DESC
		LIMIT $3
	`, int64(chainID), strings.ToLower(account), limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []model.SubmissionRecord
	for rows.Next() {
		var rec model.SubmissionRecord
		var chain int64
		if err := rows.Scan(&chain, &rec.TxHash, &rec.Kind, &rec.Account, &rec.Pool, &rec.Asset, &rec.Amount,
			&rec.MinimumOutput, &rec.Target, &rec.Status, &rec.LiquidityMinted, &rec.Error,
			&rec.SubmittedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		rec.ChainID = uint64(chain)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadSlippage returns the stored tolerance of an account.
func (s *Store) LoadSlippage(ctx context.Context, chainID uint64, account string) (uint16, bool, error) {
	if account == "" {
		return 0, false, fmt.Errorf("account required")
	}
	var bps int16
	row := s.pool.QueryRow(ctx, `SELECT slippage_bps FROM slippage_preferences WHERE chain_id=$1 AND account=$2`,
		int64(chainID), strings.ToLower(account))
	if err := row.Scan(&bps); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint16(bps), true, nil
}

// SaveSlippage upserts the tolerance of an account.
func (s *Store) SaveSlippage(ctx context.Context, chainID uint64, account string, bps uint16) error {
	if account == "" {
		return fmt.Errorf("account required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO slippage_preferences (chain_id, account, slippage_bps, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (chain_id, account) DO UPDATE
		SET slippage_bps = EXCLUDED.slippage_bps, updated_at = now()
	`, int64(chainID), strings.ToLower(account), int16(bps))
	return err
}

func numeric(value string) string {
	if value == "" {
		return "0"
	}
	return value
}

func nullableNumeric(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
