package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omenmarkets/omen/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL. One ledger
// mutation commits the market row, the touched position, and the wager rows
// in a single transaction, so the persisted market totals and position sums
// can never disagree after a crash.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection
// pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// ApplyLedger writes the post-mutation state of one market, one position, and
// the wagers the mutation produced atomically.
func (s *LedgerStore) ApplyLedger(ctx context.Context, m domain.Market, p domain.Position, wagers []domain.Wager) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin ledger tx for market %s: %w", m.ID, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, updateMarketQuery,
		m.ID, string(m.Status), m.WinningOptions, m.TotalShares,
		m.Pool, m.PayoutPool, m.TotalWinningShares, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: ledger update market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(ctx, upsertPositionQuery,
		p.MarketID, p.Account, p.Shares, p.Staked, p.Recovered, p.Claimed, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("postgres: ledger upsert position %s/%s: %w", p.MarketID, p.Account, err)
	}

	for _, w := range wagers {
		if _, err := tx.Exec(ctx, insertWagerQuery,
			w.ID, w.MarketID, w.Account, w.Option, string(w.Side),
			w.Amount, w.Shares, w.BatchID, w.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres: ledger insert wager %s: %w", w.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit ledger tx for market %s: %w", m.ID, err)
	}
	return nil
}

var _ domain.LedgerStore = (*LedgerStore)(nil)
