package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omenmarkets/omen/internal/domain"
)

// ResolutionStore implements domain.ResolutionStore using PostgreSQL.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a new ResolutionStore backed by the given
// connection pool.
func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

const resolutionCols = `id, market_id, proposer, proposed_winners, bond,
	liveness_deadline, disputed, disputer, dispute_bond, status,
	final_winners, created_at, settled_at`

// Create inserts a new resolution request. A partial unique index on
// (market_id) WHERE status = 'pending' enforces at most one live request per
// market at the database level.
func (s *ResolutionStore) Create(ctx context.Context, r domain.ResolutionRequest) error {
	const query = `
		INSERT INTO resolution_requests (
			id, market_id, proposer, proposed_winners, bond,
			liveness_deadline, disputed, disputer, dispute_bond, status,
			final_winners, created_at, settled_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, NULLIF($8, ''), $9, $10,
			$11, $12, $13
		)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.MarketID, r.Proposer, r.ProposedWinners, r.Bond,
		r.LivenessDeadline, r.Disputed, r.Disputer, r.DisputeBond, string(r.Status),
		r.FinalWinners, r.CreatedAt, r.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create resolution request %s: %w", r.ID, err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing resolution request.
func (s *ResolutionStore) Update(ctx context.Context, r domain.ResolutionRequest) error {
	const query = `
		UPDATE resolution_requests SET
			disputed      = $2,
			disputer      = NULLIF($3, ''),
			dispute_bond  = $4,
			status        = $5,
			final_winners = $6,
			settled_at    = $7
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		r.ID, r.Disputed, r.Disputer, r.DisputeBond,
		string(r.Status), r.FinalWinners, r.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update resolution request %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanResolution scans a single resolution request row.
func scanResolution(row pgx.Row) (domain.ResolutionRequest, error) {
	var r domain.ResolutionRequest
	var status string
	var disputer *string
	err := row.Scan(
		&r.ID, &r.MarketID, &r.Proposer, &r.ProposedWinners, &r.Bond,
		&r.LivenessDeadline, &r.Disputed, &disputer, &r.DisputeBond, &status,
		&r.FinalWinners, &r.CreatedAt, &r.SettledAt,
	)
	if err != nil {
		return domain.ResolutionRequest{}, err
	}
	r.Status = domain.ResolutionStatus(status)
	if disputer != nil {
		r.Disputer = *disputer
	}
	return r, nil
}

// GetByMarket retrieves the pending resolution request for a market.
func (s *ResolutionStore) GetByMarket(ctx context.Context, marketID string) (domain.ResolutionRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+resolutionCols+` FROM resolution_requests
		 WHERE market_id = $1 AND status = 'pending'`, marketID)
	r, err := scanResolution(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ResolutionRequest{}, domain.ErrNotFound
		}
		return domain.ResolutionRequest{}, fmt.Errorf("postgres: get resolution request for market %s: %w", marketID, err)
	}
	return r, nil
}

// ListPending returns every pending resolution request, oldest first.
func (s *ResolutionStore) ListPending(ctx context.Context) ([]domain.ResolutionRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+resolutionCols+` FROM resolution_requests
		 WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending resolution requests: %w", err)
	}
	defer rows.Close()

	var reqs []domain.ResolutionRequest
	for rows.Next() {
		r, err := scanResolution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan resolution request: %w", err)
		}
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pending resolution requests rows: %w", err)
	}
	return reqs, nil
}
