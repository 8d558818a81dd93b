package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omenmarkets/omen/internal/domain"
)

// WagerStore implements domain.WagerStore using PostgreSQL. The wagers table
// is append-only.
type WagerStore struct {
	pool *pgxpool.Pool
}

// NewWagerStore creates a new WagerStore backed by the given connection pool.
func NewWagerStore(pool *pgxpool.Pool) *WagerStore {
	return &WagerStore{pool: pool}
}

const wagerCols = `id, market_id, account, option, side, amount, shares, batch_id, created_at`

const insertWagerQuery = `
	INSERT INTO wagers (
		id, market_id, account, option, side, amount, shares, batch_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
	ON CONFLICT (id) DO NOTHING`

// Insert appends a single wager record. Re-inserting the same wager id is a
// no-op so event replays stay idempotent.
func (s *WagerStore) Insert(ctx context.Context, w domain.Wager) error {
	_, err := s.pool.Exec(ctx, insertWagerQuery,
		w.ID, w.MarketID, w.Account, w.Option, string(w.Side),
		w.Amount, w.Shares, w.BatchID, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert wager %s: %w", w.ID, err)
	}
	return nil
}

// InsertBatch appends multiple wagers in a single batch operation.
func (s *WagerStore) InsertBatch(ctx context.Context, wagers []domain.Wager) error {
	if len(wagers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range wagers {
		batch.Queue(insertWagerQuery,
			w.ID, w.MarketID, w.Account, w.Option, string(w.Side),
			w.Amount, w.Shares, w.BatchID, w.CreatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range wagers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert wager batch item %d: %w", i, err)
		}
	}
	return nil
}

// scanWager scans a single wager row into a domain.Wager.
func scanWager(row pgx.Row) (domain.Wager, error) {
	var w domain.Wager
	var side string
	var batchID *string
	err := row.Scan(
		&w.ID, &w.MarketID, &w.Account, &w.Option, &side,
		&w.Amount, &w.Shares, &batchID, &w.CreatedAt,
	)
	if err != nil {
		return domain.Wager{}, err
	}
	w.Side = domain.WagerSide(side)
	if batchID != nil {
		w.BatchID = *batchID
	}
	return w, nil
}

// ListByMarket returns the wager history for one market, newest first.
func (s *WagerStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Wager, error) {
	return s.list(ctx, "WHERE market_id = $1", []any{marketID}, opts)
}

// ListByAccount returns the wager history for one account, newest first.
func (s *WagerStore) ListByAccount(ctx context.Context, account string, opts domain.ListOpts) ([]domain.Wager, error) {
	return s.list(ctx, "WHERE account = $1", []any{account}, opts)
}

// ListBefore returns wagers created strictly before the cutoff. Used by the
// archiver.
func (s *WagerStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Wager, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+wagerCols+` FROM wagers WHERE created_at < $1 ORDER BY created_at ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wagers before %s: %w", before, err)
	}
	defer rows.Close()

	return scanWagerRows(rows)
}

func (s *WagerStore) list(ctx context.Context, where string, args []any, opts domain.ListOpts) ([]domain.Wager, error) {
	query := `SELECT ` + wagerCols + ` FROM wagers ` + where
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wagers: %w", err)
	}
	defer rows.Close()

	return scanWagerRows(rows)
}

func scanWagerRows(rows pgx.Rows) ([]domain.Wager, error) {
	var wagers []domain.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan wager: %w", err)
		}
		wagers = append(wagers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list wagers rows: %w", err)
	}
	return wagers, nil
}
