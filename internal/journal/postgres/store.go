package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reserveScope/internal/model"
)

// Store provides Postgres persistence for the write journal. It expects a
// write_journal table with an id bigserial key and one column per record
// field.
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

// Record upserts one write outcome keyed by transaction hash, so re-recording
// a watched transaction refreshes its terminal state instead of duplicating
// the row.
func (s *Store) Record(ctx context.Context, rec model.WriteRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO write_journal (
			chain_id, account, kind, tx_hash, state, reason, submitted_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tx_hash)
		DO UPDATE SET
			state = EXCLUDED.state,
			reason = EXCLUDED.reason,
			finished_at = EXCLUDED.finished_at
	`,
		int64(rec.ChainID),
		rec.Account,
		rec.Kind,
		rec.TxHash,
		rec.State,
		rec.Reason,
		rec.SubmittedAt,
		rec.FinishedAt,
	)
	return err
}

// RecordBatch upserts several outcomes in one round trip.
func (s *Store) RecordBatch(ctx context.Context, recs []model.WriteRecord) error {
	if len(recs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(`
			INSERT INTO write_journal (
				chain_id, account, kind, tx_hash, state, reason, submitted_at, finished_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (tx_hash)
			DO UPDATE SET
				state = EXCLUDED.state,
				reason = EXCLUDED.reason,
				finished_at = EXCLUDED.finished_at
		`,
			int64(rec.ChainID),
			rec.Account,
			rec.Kind,
			rec.TxHash,
			rec.State,
			rec.Reason,
			rec.SubmittedAt,
			rec.FinishedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range recs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// List returns the most recent records, newest first. A zero chainID matches
// every network; limit <= 0 falls back to 50.
func (s *Store) List(ctx context.Context, chainID uint64, limit int) ([]model.WriteRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, account, kind, tx_hash, state, reason, submitted_at, finished_at
		FROM write_journal
		WHERE $1 = 0 OR chain_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, int64(chainID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.WriteRecord
	for rows.Next() {
		var rec model.WriteRecord
		var chain int64
		if err := rows.Scan(&chain, &rec.Account, &rec.Kind, &rec.TxHash, &rec.State, &rec.Reason, &rec.SubmittedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		rec.ChainID = uint64(chain)
		records = append(records, rec)
	}
	return records, rows.Err()
}
