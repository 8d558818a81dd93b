package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omenmarkets/omen/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionCols = `market_id, account, shares, staked, recovered, claimed, updated_at`

const upsertPositionQuery = `
	INSERT INTO positions (
		market_id, account, shares, staked, recovered, claimed, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (market_id, account) DO UPDATE SET
		shares     = EXCLUDED.shares,
		staked     = EXCLUDED.staked,
		recovered  = EXCLUDED.recovered,
		claimed    = EXCLUDED.claimed,
		updated_at = EXCLUDED.updated_at`

// Upsert inserts or overwrites one account's position in one market.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	_, err := s.pool.Exec(ctx, upsertPositionQuery,
		p.MarketID, p.Account, p.Shares, p.Staked, p.Recovered, p.Claimed, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s/%s: %w", p.MarketID, p.Account, err)
	}
	return nil
}

// scanPosition scans a single position row into a domain.Position.
func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.MarketID, &p.Account, &p.Shares,
		&p.Staked, &p.Recovered, &p.Claimed, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	return p, nil
}

// Get retrieves one account's position in one market.
func (s *PositionStore) Get(ctx context.Context, marketID, account string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionCols+` FROM positions WHERE market_id = $1 AND account = $2`,
		marketID, account)
	p, err := scanPosition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", marketID, account, err)
	}
	return p, nil
}

// ListByMarket returns every position in the given market.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionCols+` FROM positions WHERE market_id = $1 ORDER BY account ASC`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for market %s: %w", marketID, err)
	}
	defer rows.Close()

	return scanPositionRows(rows)
}

// ListByAccount returns the account's positions across markets.
func (s *PositionStore) ListByAccount(ctx context.Context, account string, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionCols + ` FROM positions WHERE account = $1 ORDER BY updated_at DESC`
	args := []any{account}
	argIdx := 2

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
		return nil, fmt.Errorf("postgres: list positions for account %s: %w", account, err)
	}
	defer rows.Close()

	return scanPositionRows(rows)
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions rows: %w", err)
	}
	return positions, nil
}
