package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omenmarkets/omen/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, creator, question, options, end_time, status,
	winning_options, total_shares, pool, payout_pool, total_winning_shares,
	created_at, updated_at`

// Create inserts a new market row.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, creator, question, options, end_time, status,
			winning_options, total_shares, pool, payout_pool,
			total_winning_shares, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13
		)`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Creator, m.Question, m.Options, m.EndTime, string(m.Status),
		m.WinningOptions, m.TotalShares, m.Pool, m.PayoutPool,
		m.TotalWinningShares, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

const updateMarketQuery = `
	UPDATE markets SET
		status               = $2,
		winning_options      = $3,
		total_shares         = $4,
		pool                 = $5,
		payout_pool          = $6,
		total_winning_shares = $7,
		updated_at           = $8
	WHERE id = $1`

// Update overwrites the mutable fields of an existing market row.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	tag, err := s.pool.Exec(ctx, updateMarketQuery,
		m.ID, string(m.Status), m.WinningOptions, m.TotalShares,
		m.Pool, m.PayoutPool, m.TotalWinningShares, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status string
	err := row.Scan(
		&m.ID, &m.Creator, &m.Question, &m.Options, &m.EndTime, &status,
		&m.WinningOptions, &m.TotalShares, &m.Pool, &m.PayoutPool,
		&m.TotalWinningShares, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns all markets with pagination and optional time filtering.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return s.list(ctx, "WHERE 1=1", nil, opts)
}

// ListActive returns active markets with pagination and optional time filtering.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return s.list(ctx, "WHERE status = 'active'", nil, opts)
}

// ListByCreator returns markets created by the given account.
func (s *MarketStore) ListByCreator(ctx context.Context, creator string, opts domain.ListOpts) ([]domain.Market, error) {
	return s.list(ctx, "WHERE creator = $1", []any{creator}, opts)
}

// ListSettledBefore returns resolved or cancelled markets whose betting
// window closed strictly before the cutoff. Used by the archiver.
func (s *MarketStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Market, error) {
	const query = `SELECT ` + marketCols + ` FROM markets
		WHERE status IN ('resolved', 'cancelled') AND end_time < $1
		ORDER BY end_time ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan settled market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list settled markets rows: %w", err)
	}
	return markets, nil
}

// list builds and runs a market query with pagination applied on top of the
// given WHERE clause.
func (s *MarketStore) list(ctx context.Context, where string, args []any, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets ` + where
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

	query += " ORDER BY created_at ASC, id ASC"

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
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM markets")
}

// CountActive returns the number of markets still open or awaiting resolution.
func (s *MarketStore) CountActive(ctx context.Context) (int64, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM markets WHERE status = 'active'")
}

// CountByCreator returns the number of markets created by the given account.
func (s *MarketStore) CountByCreator(ctx context.Context, creator string) (int64, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM markets WHERE creator = $1", creator)
}

func (s *MarketStore) count(ctx context.Context, query string, args ...any) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
